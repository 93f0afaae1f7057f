// Package merge folds the offline outbox over a remote snapshot.
//
// The fold runs in three fixed passes: deletes, then updates, then inserts.
// When several queued entries target the same id, that ordering alone decides
// the outcome. There is no other conflict resolution.
package merge

import "github.com/roach88/billbook/internal/record"

// Apply returns the working collection for snapshot with queue folded in.
//
//  1. every record whose id matches a queued delete is removed
//  2. each queued update is merged into the matching record, in queue order;
//     an update whose target is absent does nothing
//  3. each queued insert is prepended, in queue order, unless a record with
//     the same id is already present
//
// The snapshot and queue are not modified. Ids in the result are unique
// whenever ids in snapshot are unique.
func Apply(snapshot []record.Object, queue []record.Mutation) []record.Object {
	deleted := make(map[string]bool)
	for _, m := range queue {
		if m.Action == record.ActionDelete {
			deleted[m.RecordID] = true
		}
	}

	out := make([]record.Object, 0, len(snapshot)+len(queue))
	index := make(map[string]int, len(snapshot))
	for _, r := range snapshot {
		id := r.ID()
		if deleted[id] {
			continue
		}
		index[id] = len(out)
		out = append(out, r.Clone())
	}

	for _, m := range queue {
		if m.Action != record.ActionUpdate {
			continue
		}
		if i, ok := index[m.RecordID]; ok {
			out[i] = out[i].Merge(m.Payload)
		}
	}

	var inserted []record.Object
	for _, m := range queue {
		if m.Action != record.ActionInsert {
			continue
		}
		if _, ok := index[m.RecordID]; ok {
			continue
		}
		rec := m.Payload.Clone()
		if rec == nil {
			rec = record.Object{}
		}
		rec[record.IDKey] = record.String(m.RecordID)
		index[m.RecordID] = -1
		inserted = append(inserted, rec)
	}

	if len(inserted) == 0 {
		return out
	}

	// Each insert goes to the front, so the last queued insert ends up first.
	result := make([]record.Object, 0, len(inserted)+len(out))
	for i := len(inserted) - 1; i >= 0; i-- {
		result = append(result, inserted[i])
	}
	return append(result, out...)
}

// ForCollection returns the entries of queue that target c, preserving order.
func ForCollection(queue []record.Mutation, c record.Collection) []record.Mutation {
	var out []record.Mutation
	for _, m := range queue {
		if m.Collection == c {
			out = append(out, m)
		}
	}
	return out
}

// FetchResult is the outcome of one remote collection fetch.
type FetchResult struct {
	Records []record.Object
	Err     error
}

// Reconcile produces the authoritative collection after a remote fetch.
//
// A failed fetch never replaces what is already loaded: cached is returned
// untouched and applied is false. Otherwise the fetched records are merged
// with queue and applied is true.
func Reconcile(fetch FetchResult, cached []record.Object, queue []record.Mutation) (merged []record.Object, applied bool) {
	if fetch.Err != nil {
		return cached, false
	}
	return Apply(fetch.Records, queue), true
}
