package state

import (
	"sync"

	"github.com/roach88/billbook/internal/record"
)

// Listener observes every dispatched action together with the state it
// produced. Listeners run synchronously, one dispatch at a time, and must
// not call Dispatch themselves.
type Listener func(a Action, next State)

// Store owns the current State.
type Store struct {
	// dispatchMu serializes dispatches so listeners see states in order.
	dispatchMu sync.Mutex

	mu        sync.RWMutex
	state     State
	listeners []Listener
}

// NewStore returns a store holding Empty().
func NewStore() *Store {
	return &Store{state: Empty()}
}

// Subscribe adds a listener. It is called for dispatches made after it returns.
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Dispatch reduces a into the current state, notifies listeners and
// returns the new state.
func (s *Store) Dispatch(a Action) State {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	next := Reduce(s.state, a)
	s.state = next
	listeners := s.listeners
	s.mu.Unlock()

	for _, l := range listeners {
		l(a, next)
	}
	return next
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Collection returns a deep copy of one collection, safe to modify.
func (s *Store) Collection(c record.Collection) []record.Object {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return record.CloneAll(s.state.Collections[c])
}

// Find returns a copy of one record.
func (s *Store) Find(c record.Collection, id string) (record.Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.state.Find(c, id)
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}
