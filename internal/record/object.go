package record

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// IDKey is the field every record uses for its identifier.
const IDKey = "id"

// ID returns the record identifier, or "" when it is absent or not a string.
func (obj Object) ID() string {
	return obj.Str(IDKey)
}

// Str returns the string stored at key, or "".
// Int values are formatted so numeric ids from older rows still resolve.
func (obj Object) Str(key string) string {
	switch v := obj[key].(type) {
	case String:
		return string(v)
	case Int:
		return strconv.FormatInt(int64(v), 10)
	default:
		return ""
	}
}

// Decimal reads a numeric field. Strings are parsed; anything else yields zero.
func (obj Object) Decimal(key string) decimal.Decimal {
	return AsDecimal(obj[key])
}

// AsDecimal converts Int, Number and numeric String values to a decimal.
func AsDecimal(v Value) decimal.Decimal {
	switch val := v.(type) {
	case Int:
		return decimal.NewFromInt(int64(val))
	case Number:
		return val.Decimal
	case String:
		d, err := decimal.NewFromString(string(val))
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

// Has reports whether key is present, including explicit nulls.
func (obj Object) Has(key string) bool {
	_, ok := obj[key]
	return ok
}

// Clone returns a deep copy.
func (obj Object) Clone() Object {
	if obj == nil {
		return nil
	}
	out := make(Object, len(obj))
	for k, v := range obj {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v Value) Value {
	switch val := v.(type) {
	case Object:
		return val.Clone()
	case Array:
		out := make(Array, len(val))
		for i, elem := range val {
			out[i] = cloneValue(elem)
		}
		return out
	default:
		return v
	}
}

// Merge returns a copy of obj with every key of patch written over it.
// The merge is shallow: a nested object in patch replaces the nested object in obj.
func (obj Object) Merge(patch Object) Object {
	out := obj.Clone()
	if out == nil {
		out = make(Object, len(patch))
	}
	for k, v := range patch {
		out[k] = cloneValue(v)
	}
	return out
}

// CloneAll deep-copies a slice of records.
func CloneAll(records []Object) []Object {
	out := make([]Object, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}
