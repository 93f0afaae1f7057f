package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const minimalYAML = `
name: minimal
description: "One load"
steps:
  - op: load
assertions:
  - type: outbox_count
    count: 0
`

func TestLoadScenario_Valid(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "minimal.yaml", minimalYAML)

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "minimal", s.Name)
	require.Len(t, s.Steps, 1)
	assert.Equal(t, OpLoad, s.Steps[0].Op)
}

func TestLoadScenario_FullFields(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "offline_expense_replay.yaml"))
	require.NoError(t, err)

	assert.Equal(t, []string{"exp-1"}, s.IDs)
	require.Len(t, s.Seed["expenses"], 1)
	assert.Equal(t, "exp-0", s.Seed["expenses"][0]["id"])

	save := s.Steps[2]
	assert.Equal(t, OpSave, save.Op)
	require.NotNil(t, save.Expect)
	require.NotNil(t, save.Expect.Queued)
	assert.True(t, *save.Expect.Queued)
	assert.Equal(t, 45.5, save.Record["amount"])

	first := s.Steps[0]
	require.NotNil(t, first.Expect)
	assert.NotNil(t, first.Expect.Failed, "an empty list is still checked")
	assert.Empty(t, first.Expect.Failed)
}

func TestLoadScenario_UnknownFieldRejected(t *testing.T) {
	body := minimalYAML + "assertion: []\n"
	path := writeScenario(t, t.TempDir(), "typo.yaml", body)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing name",
			body: "description: d\nsteps: [{op: load}]\nassertions: [{type: outbox_count}]\n",
			want: "name is required",
		},
		{
			name: "missing description",
			body: "name: n\nsteps: [{op: load}]\nassertions: [{type: outbox_count}]\n",
			want: "description is required",
		},
		{
			name: "no steps",
			body: "name: n\ndescription: d\nassertions: [{type: outbox_count}]\n",
			want: "steps list is required",
		},
		{
			name: "no assertions",
			body: "name: n\ndescription: d\nsteps: [{op: load}]\n",
			want: "assertions list is required",
		},
		{
			name: "unknown op",
			body: "name: n\ndescription: d\nsteps: [{op: sync}]\nassertions: [{type: outbox_count}]\n",
			want: `unknown op "sync"`,
		},
		{
			name: "unknown collection",
			body: "name: n\ndescription: d\nsteps: [{op: save, collection: bills}]\nassertions: [{type: outbox_count}]\n",
			want: `unknown collection "bills"`,
		},
		{
			name: "update without id",
			body: "name: n\ndescription: d\nsteps: [{op: update, collection: invoices}]\nassertions: [{type: outbox_count}]\n",
			want: "id is required for update",
		},
		{
			name: "patch without action",
			body: "name: n\ndescription: d\nsteps: [{op: patch, collection: messages, id: m}]\nassertions: [{type: outbox_count}]\n",
			want: "patch action must be",
		},
		{
			name: "unknown seed collection",
			body: "name: n\ndescription: d\nseed: {bills: []}\nsteps: [{op: load}]\nassertions: [{type: outbox_count}]\n",
			want: `seed: unknown collection "bills"`,
		},
		{
			name: "unknown assertion",
			body: "name: n\ndescription: d\nsteps: [{op: load}]\nassertions: [{type: trace_count}]\n",
			want: `unknown assertion type "trace_count"`,
		},
		{
			name: "state without id",
			body: "name: n\ndescription: d\nsteps: [{op: load}]\nassertions: [{type: state, collection: invoices}]\n",
			want: "id is required for state",
		},
		{
			name: "absent with expect",
			body: "name: n\ndescription: d\nsteps: [{op: load}]\nassertions: [{type: state, collection: invoices, id: x, absent: true, expect: {a: 1}}]\n",
			want: "absent and expect are exclusive",
		},
		{
			name: "order without ids",
			body: "name: n\ndescription: d\nsteps: [{op: load}]\nassertions: [{type: state_order, collection: invoices}]\n",
			want: "ids list is required",
		},
		{
			name: "negative count",
			body: "name: n\ndescription: d\nsteps: [{op: load}]\nassertions: [{type: remote_count, collection: invoices, count: -1}]\n",
			want: "count must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScenario(t, t.TempDir(), "s.yaml", tt.body)
			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadDir_SortedByFileName(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "b.yaml", "name: second\ndescription: d\nsteps: [{op: load}]\nassertions: [{type: outbox_count}]\n")
	writeScenario(t, dir, "a.yaml", "name: first\ndescription: d\nsteps: [{op: load}]\nassertions: [{type: outbox_count}]\n")
	writeScenario(t, dir, "notes.txt", "ignored")

	got, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Name)
	assert.Equal(t, "second", got[1].Name)
}

func TestLoadDir_DuplicateName(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "a.yaml", minimalYAML)
	writeScenario(t, dir, "b.yaml", minimalYAML)

	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `scenario name "minimal" already used by a.yaml`)
}

func TestLoadDir_ReportsFile(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "broken.yaml", "name: x\n")

	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.yaml")
}
