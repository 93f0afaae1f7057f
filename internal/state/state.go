// Package state holds the in-memory projection every consumer reads from.
//
// Changes go through Dispatch, which runs the pure Reduce function and then
// notifies listeners in dispatch order. Records inside a State are never
// modified in place; reducers build new slices and records.
package state

import "github.com/roach88/billbook/internal/record"

// State is an immutable view of every collection.
type State struct {
	// Version increases by one on every dispatch.
	Version     int64
	Collections map[record.Collection][]record.Object
}

// Empty returns a state with every known collection present and empty.
func Empty() State {
	cols := make(map[record.Collection][]record.Object, len(record.Collections))
	for _, c := range record.Collections {
		cols[c] = []record.Object{}
	}
	return State{Collections: cols}
}

// Get returns the records of c. Callers must not modify them.
func (s State) Get(c record.Collection) []record.Object {
	return s.Collections[c]
}

// Find returns the record of c with the given id.
func (s State) Find(c record.Collection, id string) (record.Object, bool) {
	for _, r := range s.Collections[c] {
		if r.ID() == id {
			return r, true
		}
	}
	return nil, false
}

// Kind selects the reducer branch.
type Kind int

const (
	// Replace swaps a whole collection, as after a load.
	Replace Kind = iota
	// Insert adds Record at the front, or replaces the record with the same id.
	Insert
	// Update shallow-merges Record into the record with ID. Absent ids are ignored.
	Update
	// Delete removes the record with ID.
	Delete
	// Reset clears every collection, as on sign-out.
	Reset
)

func (k Kind) String() string {
	switch k {
	case Replace:
		return "replace"
	case Insert:
		return "insert"
	case Update:
		return "update"
	case Delete:
		return "delete"
	case Reset:
		return "reset"
	default:
		return "unknown"
	}
}

// Action describes one state change.
type Action struct {
	Kind       Kind
	Collection record.Collection
	ID         string
	Record     record.Object
	Records    []record.Object
}

// Reduce returns the state after applying a. s is not modified.
func Reduce(s State, a Action) State {
	next := State{Version: s.Version + 1}
	if a.Kind == Reset {
		next.Collections = Empty().Collections
		return next
	}

	next.Collections = make(map[record.Collection][]record.Object, len(s.Collections)+1)
	for c, rows := range s.Collections {
		next.Collections[c] = rows
	}

	cur := s.Collections[a.Collection]
	switch a.Kind {
	case Replace:
		next.Collections[a.Collection] = record.CloneAll(a.Records)
	case Insert:
		next.Collections[a.Collection] = upsertFront(cur, a.Record)
	case Update:
		next.Collections[a.Collection] = mergeByID(cur, a.ID, a.Record)
	case Delete:
		next.Collections[a.Collection] = removeByID(cur, a.ID)
	}
	return next
}

func upsertFront(rows []record.Object, rec record.Object) []record.Object {
	rec = rec.Clone()
	id := rec.ID()
	out := make([]record.Object, 0, len(rows)+1)
	for i, r := range rows {
		if r.ID() == id {
			out = append(out, rows[:i]...)
			out = append(out, rec)
			return append(out, rows[i+1:]...)
		}
	}
	out = append(out, rec)
	return append(out, rows...)
}

func mergeByID(rows []record.Object, id string, patch record.Object) []record.Object {
	for i, r := range rows {
		if r.ID() != id {
			continue
		}
		out := make([]record.Object, len(rows))
		copy(out, rows)
		out[i] = r.Merge(patch)
		return out
	}
	return rows
}

func removeByID(rows []record.Object, id string) []record.Object {
	out := make([]record.Object, 0, len(rows))
	for _, r := range rows {
		if r.ID() != id {
			out = append(out, r)
		}
	}
	return out
}
