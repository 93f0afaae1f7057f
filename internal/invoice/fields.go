package invoice

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/billbook/internal/record"
)

// DateLayout is how dates are stored in records.
const DateLayout = "2006-01-02"

func str(rec record.Object, key string) string {
	return rec.Str(key)
}

func boolean(rec record.Object, key string) bool {
	b, _ := rec[key].(record.Bool)
	return bool(b)
}

// date accepts plain dates and full RFC 3339 timestamps.
func date(rec record.Object, key string) time.Time {
	s := strings.TrimSpace(rec.Str(key))
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if len(s) >= len(DateLayout) {
		if t, err := time.Parse(DateLayout, s[:len(DateLayout)]); err == nil {
			return t
		}
	}
	return time.Time{}
}

func object(rec record.Object, key string) record.Object {
	obj, _ := rec[key].(record.Object)
	return obj.Clone()
}

func stringList(rec record.Object, key string) []string {
	arr, _ := rec[key].(record.Array)
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(record.String); ok {
			out = append(out, string(s))
		}
	}
	return out
}

func putString(rec record.Object, key, value string) {
	if value != "" {
		rec[key] = record.String(value)
	}
}

func putDate(rec record.Object, key string, t time.Time) {
	if !t.IsZero() {
		rec[key] = record.String(t.Format(DateLayout))
	}
}

func putDecimal(rec record.Object, key string, d decimal.Decimal) {
	rec[key] = record.NewNumber(d)
}

func putStrings(rec record.Object, key string, values []string) {
	arr := make(record.Array, len(values))
	for i, v := range values {
		arr[i] = record.String(v)
	}
	rec[key] = arr
}
