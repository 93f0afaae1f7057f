package merge

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/billbook/internal/record"
)

func rec(id string, fields ...any) record.Object {
	obj := record.Object{"id": record.String(id)}
	for i := 0; i+1 < len(fields); i += 2 {
		obj[fields[i].(string)] = record.String(fields[i+1].(string))
	}
	return obj
}

func mut(action record.Action, id string, payload record.Object) record.Mutation {
	return record.Mutation{
		ID:         fmt.Sprintf("%s-%s", action, id),
		Collection: record.Invoices,
		Action:     action,
		RecordID:   id,
		Payload:    payload,
	}
}

func ids(records []record.Object) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID()
	}
	return out
}

func TestApplyEmptyQueueCopiesSnapshot(t *testing.T) {
	snapshot := []record.Object{rec("a"), rec("b")}
	out := Apply(snapshot, nil)
	assert.Equal(t, []string{"a", "b"}, ids(out))

	out[0]["status"] = record.String("mutated")
	assert.False(t, snapshot[0].Has("status"), "apply must not alias the snapshot")
}

func TestApplyDeleteRemovesRecord(t *testing.T) {
	out := Apply(
		[]record.Object{rec("a"), rec("b"), rec("c")},
		[]record.Mutation{mut(record.ActionDelete, "b", nil)},
	)
	assert.Equal(t, []string{"a", "c"}, ids(out))
}

func TestApplyDeleteOfAbsentRecord(t *testing.T) {
	out := Apply([]record.Object{rec("a")}, []record.Mutation{mut(record.ActionDelete, "zzz", nil)})
	assert.Equal(t, []string{"a"}, ids(out))
}

func TestApplyUpdateMergesPayload(t *testing.T) {
	out := Apply(
		[]record.Object{rec("a", "status", "draft", "currency", "EUR")},
		[]record.Mutation{mut(record.ActionUpdate, "a", rec("a", "status", "paid"))},
	)
	require.Len(t, out, 1)
	assert.Equal(t, "paid", out[0].Str("status"))
	assert.Equal(t, "EUR", out[0].Str("currency"), "fields outside the payload survive")
}

func TestApplyUpdateOfAbsentRecordIsNoOp(t *testing.T) {
	snapshot := []record.Object{rec("a"), rec("b")}
	out := Apply(snapshot, []record.Mutation{mut(record.ActionUpdate, "ghost", rec("ghost", "status", "paid"))})
	assert.Len(t, out, len(snapshot))
	assert.Equal(t, []string{"a", "b"}, ids(out))
}

func TestApplyInsertPrepends(t *testing.T) {
	out := Apply(
		[]record.Object{rec("a")},
		[]record.Mutation{
			mut(record.ActionInsert, "n1", rec("n1")),
			mut(record.ActionInsert, "n2", rec("n2")),
		},
	)
	assert.Equal(t, []string{"n2", "n1", "a"}, ids(out))
}

func TestApplyInsertSkipsExistingID(t *testing.T) {
	out := Apply(
		[]record.Object{rec("a", "status", "remote")},
		[]record.Mutation{mut(record.ActionInsert, "a", rec("a", "status", "local"))},
	)
	require.Len(t, out, 1)
	assert.Equal(t, "remote", out[0].Str("status"))
}

func TestApplyDuplicateQueuedInsertsCollapse(t *testing.T) {
	out := Apply(nil, []record.Mutation{
		mut(record.ActionInsert, "n", rec("n", "v", "first")),
		mut(record.ActionInsert, "n", rec("n", "v", "second")),
	})
	require.Len(t, out, 1)
	assert.Equal(t, "first", out[0].Str("v"))
}

func TestApplyOrderingDeleteThenUpdateThenInsert(t *testing.T) {
	// Queue order is insert, update, delete, but passes run delete, update, insert.
	queue := []record.Mutation{
		mut(record.ActionInsert, "a", rec("a", "v", "inserted")),
		mut(record.ActionUpdate, "a", rec("a", "v", "updated")),
		mut(record.ActionDelete, "a", nil),
	}
	out := Apply([]record.Object{rec("a", "v", "remote")}, queue)

	// delete removes the remote row, the update then has no target,
	// and the insert finds the id free again.
	require.Len(t, out, 1)
	assert.Equal(t, "inserted", out[0].Str("v"))
}

func TestApplyUpdateBeforeInsertOfQueuedOnlyRecord(t *testing.T) {
	queue := []record.Mutation{
		mut(record.ActionInsert, "n", rec("n", "v", "created")),
		mut(record.ActionUpdate, "n", rec("n", "v", "edited")),
	}
	out := Apply(nil, queue)
	require.Len(t, out, 1)
	assert.Equal(t, "created", out[0].Str("v"), "updates run before inserts, so they miss queued-only records")
}

func TestApplyInsertWithoutIDInPayload(t *testing.T) {
	out := Apply(nil, []record.Mutation{mut(record.ActionInsert, "x", record.Object{"title": record.String("t")})})
	require.Len(t, out, 1)
	assert.Equal(t, "x", out[0].ID())
}

func TestApplyNeverProducesDuplicateIDs(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	actions := []record.Action{record.ActionInsert, record.ActionUpdate, record.ActionDelete}

	for round := 0; round < 500; round++ {
		var snapshot []record.Object
		for i := 0; i < r.Intn(8); i++ {
			snapshot = append(snapshot, rec(fmt.Sprintf("r%d", i)))
		}
		var queue []record.Mutation
		for i := 0; i < r.Intn(12); i++ {
			id := fmt.Sprintf("r%d", r.Intn(12))
			queue = append(queue, mut(actions[r.Intn(3)], id, rec(id)))
		}

		out := Apply(snapshot, queue)

		seen := make(map[string]bool)
		for _, o := range out {
			require.False(t, seen[o.ID()], "round %d: duplicate id %s", round, o.ID())
			seen[o.ID()] = true
		}

		deleted := make(map[string]bool)
		for _, m := range queue {
			if m.Action == record.ActionDelete {
				deleted[m.RecordID] = true
			}
		}
		inserted := make(map[string]bool)
		for _, m := range queue {
			if m.Action == record.ActionInsert {
				inserted[m.RecordID] = true
			}
		}
		for id := range deleted {
			if !inserted[id] {
				require.False(t, seen[id], "round %d: deleted id %s survived", round, id)
			}
		}
	}
}

func TestForCollection(t *testing.T) {
	queue := []record.Mutation{
		{ID: "1", Collection: record.Invoices},
		{ID: "2", Collection: record.Expenses},
		{ID: "3", Collection: record.Invoices},
	}
	got := ForCollection(queue, record.Invoices)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "3", got[1].ID)
	assert.Empty(t, ForCollection(queue, record.Quotes))
}

func TestReconcileFetchErrorKeepsCache(t *testing.T) {
	cached := []record.Object{rec("cached-1"), rec("cached-2")}
	queue := []record.Mutation{mut(record.ActionDelete, "cached-1", nil)}

	out, applied := Reconcile(FetchResult{Err: errors.New("offline")}, cached, queue)

	assert.False(t, applied)
	assert.Equal(t, cached, out)
}

func TestReconcileSuccessMerges(t *testing.T) {
	cached := []record.Object{rec("stale")}
	queue := []record.Mutation{mut(record.ActionInsert, "local", rec("local"))}

	out, applied := Reconcile(FetchResult{Records: []record.Object{rec("remote")}}, cached, queue)

	assert.True(t, applied)
	assert.Equal(t, []string{"local", "remote"}, ids(out))
}

func TestReconcileEmptyRemoteIsAuthoritative(t *testing.T) {
	out, applied := Reconcile(FetchResult{Records: nil}, []record.Object{rec("cached")}, nil)
	assert.True(t, applied)
	assert.Empty(t, out)
}
