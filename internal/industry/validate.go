package industry

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/billbook/internal/record"
)

// FieldError is one failed field check.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks data against the schema of industry and returns every
// violation. Keys not declared by the schema are ignored.
func (r *Registry) Validate(industry string, data record.Object) []FieldError {
	ind, ok := r.industries[industry]
	if !ok {
		return []FieldError{{Field: "industry", Message: fmt.Sprintf("unknown industry %q", industry)}}
	}

	var errs []FieldError
	for _, f := range ind.Fields {
		v, present := data[f.Name]
		if !present || isBlank(v) {
			if f.Required {
				errs = append(errs, FieldError{Field: f.Name, Message: "is required"})
			}
			continue
		}
		if msg := checkValue(f, v); msg != "" {
			errs = append(errs, FieldError{Field: f.Name, Message: msg})
		}
	}
	return errs
}

func isBlank(v record.Value) bool {
	switch val := v.(type) {
	case nil, record.Null:
		return true
	case record.String:
		return strings.TrimSpace(string(val)) == ""
	}
	return false
}

func checkValue(f Field, v record.Value) string {
	switch f.Type {
	case TypeText:
		if _, ok := v.(record.String); !ok {
			return "must be text"
		}
	case TypeNumber:
		d, ok := number(v)
		if !ok {
			return "must be a number"
		}
		if f.Min != nil && d.LessThan(decimal.NewFromFloat(*f.Min)) {
			return fmt.Sprintf("must be at least %v", *f.Min)
		}
		if f.Max != nil && d.GreaterThan(decimal.NewFromFloat(*f.Max)) {
			return fmt.Sprintf("must be at most %v", *f.Max)
		}
	case TypeDate:
		s, ok := v.(record.String)
		if !ok {
			return "must be a date"
		}
		if _, err := time.Parse("2006-01-02", string(s)); err != nil {
			return "must be a date (YYYY-MM-DD)"
		}
	case TypeSelect:
		s, ok := v.(record.String)
		if !ok || !slices.Contains(f.Options, string(s)) {
			return fmt.Sprintf("must be one of %s", strings.Join(f.Options, ", "))
		}
	}
	return ""
}

func number(v record.Value) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case record.Int, record.Number:
		return record.AsDecimal(val), true
	case record.String:
		d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(string(val)), ",", "."))
		return d, err == nil
	}
	return decimal.Zero, false
}

// Entry is a labelled, display-ready industry value.
type Entry struct {
	Label string
	Value string
}

// Describe lists the filled-in fields of data in schema order, for printing
// on documents. Unknown industries yield nothing.
func (r *Registry) Describe(industry string, data record.Object) []Entry {
	ind, ok := r.industries[industry]
	if !ok {
		return nil
	}
	var out []Entry
	for _, f := range ind.Fields {
		v, present := data[f.Name]
		if !present || isBlank(v) {
			continue
		}
		out = append(out, Entry{Label: f.Label, Value: display(f, v)})
	}
	return out
}

func display(f Field, v record.Value) string {
	switch val := v.(type) {
	case record.String:
		if f.Type == TypeDate {
			if t, err := time.Parse("2006-01-02", string(val)); err == nil {
				return t.Format("02.01.2006")
			}
		}
		return string(val)
	case record.Int, record.Number:
		return record.AsDecimal(val).String()
	case record.Bool:
		if val {
			return "ja"
		}
		return "nein"
	}
	b, err := record.MarshalValue(v)
	if err != nil {
		return ""
	}
	return string(b)
}
