package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/billbook/internal/record"
)

func TestScenarios_Golden(t *testing.T) {
	scenarios, err := LoadDir(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			res, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, res.Pass, "errors: %v", res.Errors)
		})
	}
}

func TestScenarios_Deterministic(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "restart_keeps_outbox.yaml"))
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	a, err := record.MarshalCanonical(Snapshot(s.Name, first))
	require.NoError(t, err)
	b, err := record.MarshalCanonical(Snapshot(s.Name, second))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestSnapshot_OmitsEmptyCollections(t *testing.T) {
	res := NewResult()
	res.State[record.Expenses] = []record.Object{{"id": record.String("e")}}
	res.AddTrace(TraceEvent{Step: 1, Op: OpOffline})

	data, err := record.MarshalCanonical(Snapshot("tiny", res))
	require.NoError(t, err)
	assert.Equal(t, `{"name":"tiny","outbox":[],"state":{"expenses":[{"id":"e"}]},"trace":[{"op":"offline","step":1}]}`, string(data))
}

func TestAssertGolden_ExistingResult(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "dropped_update.yaml"))
	require.NoError(t, err)

	res, err := Run(s)
	require.NoError(t, err)
	require.NoError(t, AssertGolden(t, s.Name, res))
}
