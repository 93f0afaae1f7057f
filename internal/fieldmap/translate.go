package fieldmap

import (
	"strings"

	"github.com/roach88/billbook/internal/record"
)

// Normalize converts a backend row into internal field names.
func Normalize(c record.Collection, remote record.Object) record.Object {
	m := For(c)
	return m.normalize(remote)
}

// Denormalize converts an internal record into backend column names.
// Derived address parts are dropped; the combined address is written back.
func Denormalize(c record.Collection, local record.Object) record.Object {
	m := For(c)
	return m.denormalize(local)
}

// NormalizeAll normalizes a slice of rows.
func NormalizeAll(c record.Collection, rows []record.Object) []record.Object {
	out := make([]record.Object, len(rows))
	for i, row := range rows {
		out[i] = Normalize(c, row)
	}
	return out
}

func (m Mapping) normalize(src record.Object) record.Object {
	out := make(record.Object, len(src)+2)
	used := make(map[string]bool, len(src))

	for _, p := range m.Pairs {
		key, v, ok := lookup(src, p.Remote, p.Local)
		if !ok {
			continue
		}
		used[key] = true
		out[p.Local] = p.translateElems(v, true)
	}

	if a := m.Address; a != nil {
		if key, v, ok := lookup(src, a.Remote, a.Combined); ok {
			used[key] = true
			out[a.Combined] = v
			if s, isStr := v.(record.String); isStr {
				street, number := SplitAddress(string(s))
				out[a.Street] = record.String(street)
				out[a.Number] = record.String(number)
				used[a.Street] = true
				used[a.Number] = true
			}
		}
	}

	passThrough(out, src, used)
	return out
}

func (m Mapping) denormalize(src record.Object) record.Object {
	out := make(record.Object, len(src))
	used := make(map[string]bool, len(src))

	for _, p := range m.Pairs {
		key, v, ok := lookup(src, p.Local, p.Remote)
		if !ok {
			continue
		}
		used[key] = true
		out[p.Remote] = p.translateElems(v, false)
	}

	if a := m.Address; a != nil {
		used[a.Street] = true
		used[a.Number] = true
		if key, v, ok := lookup(src, a.Combined, a.Remote); ok {
			used[key] = true
			out[a.Remote] = v
		} else if street, number := src.Str(a.Street), src.Str(a.Number); street != "" || number != "" {
			out[a.Remote] = record.String(JoinAddress(street, number))
		}
	}

	passThrough(out, src, used)
	return out
}

func (p Pair) translateElems(v record.Value, toLocal bool) record.Value {
	arr, ok := v.(record.Array)
	if !ok || p.Elem == nil {
		return v
	}
	out := make(record.Array, len(arr))
	for i, elem := range arr {
		obj, isObj := elem.(record.Object)
		switch {
		case !isObj:
			out[i] = elem
		case toLocal:
			out[i] = p.Elem.normalize(obj)
		default:
			out[i] = p.Elem.denormalize(obj)
		}
	}
	return out
}

// lookup reads primary, then fallback, reporting which key matched.
func lookup(src record.Object, primary, fallback string) (string, record.Value, bool) {
	if v, ok := src[primary]; ok {
		return primary, v, true
	}
	if v, ok := src[fallback]; ok {
		return fallback, v, true
	}
	return "", nil, false
}

func passThrough(out, src record.Object, used map[string]bool) {
	for k, v := range src {
		if used[k] {
			continue
		}
		if _, exists := out[k]; exists {
			continue
		}
		out[k] = v
	}
}

// SplitAddress splits "Hauptstraße 12" into street and house number by taking
// the last whitespace-delimited token as the number. It does not check that
// the token looks like a number; a single-token address yields an empty number.
func SplitAddress(address string) (street, number string) {
	fields := strings.Fields(address)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return strings.Join(fields[:len(fields)-1], " "), fields[len(fields)-1]
	}
}

// JoinAddress is the inverse of SplitAddress for well-formed input.
func JoinAddress(street, number string) string {
	return strings.TrimSpace(strings.TrimSpace(street) + " " + strings.TrimSpace(number))
}
