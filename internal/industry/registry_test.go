package industry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/billbook/internal/record"
)

func TestDefault_Loads(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	assert.Contains(t, r.Keys(), "construction")
	assert.Contains(t, r.Keys(), "general")

	ind, ok := r.Industry("consulting")
	require.True(t, ok)
	require.Len(t, ind.Fields, 3)
	assert.Equal(t, "projectCode", ind.Fields[0].Name, "declaration order is kept")
	assert.Equal(t, TypeSelect, ind.Fields[2].Type)
	assert.Equal(t, []string{"hourly", "fixed", "retainer"}, ind.Fields[2].Options)
	require.NotNil(t, ind.Fields[1].Min)
	assert.Equal(t, 0.0, *ind.Fields[1].Min)
}

func TestLoad_RejectsBadSchemas(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{
			name: "unknown field type",
			src: `industries: x: {label: "X", fields: [{name: "a", type: "color"}]}
industries: [string]: fields: [...{type: "text" | "number" | "date" | "select", ...}]`,
		},
		{
			name: "select without options",
			src:  `industries: x: {label: "X", fields: [{name: "a", type: "select"}]}`,
		},
		{
			name: "duplicate field",
			src:  `industries: x: {label: "X", fields: [{name: "a", type: "text"}, {name: "a", type: "date"}]}`,
		},
		{
			name: "no industries",
			src:  `other: 1`,
		},
		{
			name: "syntax error",
			src:  `industries: {`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.src), "test.cue")
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	r := MustDefault()

	tests := []struct {
		name     string
		industry string
		data     record.Object
		want     []string
	}{
		{
			name:     "valid",
			industry: "consulting",
			data: record.Object{
				"projectCode": record.String("P-7"),
				"hours":       record.String("12,5"),
				"billing":     record.String("hourly"),
				"extra":       record.Bool(true),
			},
		},
		{
			name:     "missing required",
			industry: "consulting",
			data:     record.Object{"billing": record.String("  ")},
			want:     []string{"billing"},
		},
		{
			name:     "wrong types",
			industry: "consulting",
			data: record.Object{
				"projectCode": record.Int(7),
				"hours":       record.String("many"),
				"billing":     record.String("barter"),
			},
			want: []string{"projectCode", "hours", "billing"},
		},
		{
			name:     "below minimum",
			industry: "photography",
			data: record.Object{
				"shootDate": record.String("2026-05-01"),
				"images":    record.Int(0),
			},
			want: []string{"images"},
		},
		{
			name:     "bad date",
			industry: "photography",
			data:     record.Object{"shootDate": record.String("01.05.2026")},
			want:     []string{"shootDate"},
		},
		{
			name:     "unknown industry",
			industry: "farming",
			want:     []string{"industry"},
		},
		{
			name:     "general has no fields",
			industry: "general",
			data:     record.Object{"anything": record.String("x")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := r.Validate(tt.industry, tt.data)
			var fields []string
			for _, e := range errs {
				fields = append(fields, e.Field)
				assert.NotEmpty(t, e.Error())
			}
			assert.Equal(t, tt.want, fields)
		})
	}
}

func TestDescribe(t *testing.T) {
	r := MustDefault()

	entries := r.Describe("construction", record.Object{
		"serviceStart": record.String("2026-04-01"),
		"projectName":  record.String("Neubau Lindenweg"),
		"siteAddress":  record.String(""),
	})

	assert.Equal(t, []Entry{
		{Label: "Bauvorhaben", Value: "Neubau Lindenweg"},
		{Label: "Leistungsbeginn", Value: "01.04.2026"},
	}, entries)

	assert.Nil(t, r.Describe("unknown", record.Object{"a": record.String("b")}))
}
