// Package industry holds the per-industry document field schemas.
//
// Each industry declares an ordered list of extra fields that documents for
// that industry carry in their industryData bag. The schemas live in an
// embedded CUE file; the CUE constraints reject malformed schemas at load
// time and Validate checks document data against the loaded registry.
package industry

import (
	_ "embed"
	"fmt"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed industries.cue
var defaultSchemas []byte

// FieldType is the input type of an industry field.
type FieldType string

const (
	TypeText   FieldType = "text"
	TypeNumber FieldType = "number"
	TypeDate   FieldType = "date"
	TypeSelect FieldType = "select"
)

// Field is one industry-specific document field.
type Field struct {
	Name     string    `json:"name"`
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Options  []string  `json:"options,omitempty"`
	Min      *float64  `json:"min,omitempty"`
	Max      *float64  `json:"max,omitempty"`
}

// Industry is a named field schema.
type Industry struct {
	Key    string  `json:"key"`
	Label  string  `json:"label"`
	Fields []Field `json:"fields"`
}

// Registry maps industry keys to schemas.
type Registry struct {
	industries map[string]Industry
}

// Default loads the embedded schemas.
func Default() (*Registry, error) {
	return Load(defaultSchemas, "industries.cue")
}

// MustDefault is Default for package-level initialization; it panics if the
// embedded schemas are invalid.
func MustDefault() *Registry {
	r, err := Default()
	if err != nil {
		panic(err)
	}
	return r
}

// Load compiles CUE source declaring an `industries` struct.
func Load(src []byte, filename string) (*Registry, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	root := v.LookupPath(cue.ParsePath("industries"))
	if !root.Exists() {
		return nil, fmt.Errorf("%s: no industries declared", filename)
	}

	iter, err := root.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	r := &Registry{industries: make(map[string]Industry)}
	for iter.Next() {
		key := iter.Label()
		var ind Industry
		if err := iter.Value().Decode(&ind); err != nil {
			return nil, fmt.Errorf("industry %s: %w", key, formatCUEError(err))
		}
		ind.Key = key
		if err := checkFields(ind); err != nil {
			return nil, err
		}
		for i := range ind.Fields {
			if ind.Fields[i].Label == "" {
				ind.Fields[i].Label = ind.Fields[i].Name
			}
		}
		r.industries[ind.Key] = ind
	}
	return r, nil
}

// checkFields covers what the CUE schema does not: unique names and
// options on select fields.
func checkFields(ind Industry) error {
	seen := make(map[string]bool, len(ind.Fields))
	for _, f := range ind.Fields {
		if seen[f.Name] {
			return fmt.Errorf("industry %s: duplicate field %q", ind.Key, f.Name)
		}
		seen[f.Name] = true
		if f.Type == TypeSelect && len(f.Options) == 0 {
			return fmt.Errorf("industry %s: select field %q has no options", ind.Key, f.Name)
		}
	}
	return nil
}

// Industry returns the schema for key.
func (r *Registry) Industry(key string) (Industry, bool) {
	ind, ok := r.industries[key]
	return ind, ok
}

// Keys returns all industry keys, sorted.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.industries))
	for k := range r.industries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatCUEError keeps the first CUE error with its position.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if pos := errors.Positions(first); len(pos) > 0 {
		return fmt.Errorf("%s:%d:%d: %s", pos[0].Filename(), pos[0].Line(), pos[0].Column(), first.Error())
	}
	return first
}
