package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/billbook/internal/record"
)

// Snapshot builds the canonical value compared against golden files: the
// trace, the non-empty collections of the final projection and the outbox.
//
// Mutation ids and seqs are left out; they depend on hashing and clock
// ticks, not on behavior.
func Snapshot(name string, res *Result) record.Object {
	trace := make(record.Array, len(res.Trace))
	for i, ev := range res.Trace {
		obj := record.Object{
			"step": record.Int(ev.Step),
			"op":   record.String(ev.Op),
		}
		putNonEmpty(obj, "collection", ev.Collection)
		putNonEmpty(obj, "id", ev.ID)
		putNonEmpty(obj, "action", ev.Action)
		putNonEmpty(obj, "error", ev.Err)
		if ev.Queued != nil {
			obj["queued"] = record.Bool(*ev.Queued)
		}
		if ev.Load != nil {
			obj["replayed"] = record.Int(ev.Load.Replayed)
			obj["dropped"] = record.Int(ev.Load.Dropped)
			obj["pending"] = record.Int(ev.Load.Pending)
			failed := make(record.Array, len(ev.Load.Failed))
			for j, c := range ev.Load.Failed {
				failed[j] = record.String(c)
			}
			obj["failed"] = failed
		}
		trace[i] = obj
	}

	state := record.Object{}
	for c, rows := range res.State {
		arr := make(record.Array, len(rows))
		for i, row := range rows {
			arr[i] = row
		}
		state[string(c)] = arr
	}

	outbox := make(record.Array, len(res.Outbox))
	for i, m := range res.Outbox {
		outbox[i] = record.Object{
			"action":     record.String(string(m.Action)),
			"collection": record.String(string(m.Collection)),
			"record_id":  record.String(m.RecordID),
		}
	}

	return record.Object{
		"name":   record.String(name),
		"trace":  trace,
		"state":  state,
		"outbox": outbox,
	}
}

func putNonEmpty(obj record.Object, key, value string) {
	if value != "" {
		obj[key] = record.String(value)
	}
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return result, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := record.MarshalCanonical(Snapshot(scenarioName, result))
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
