package remote

import (
	"context"
	"sync"

	"github.com/roach88/billbook/internal/record"
)

var (
	_ Store      = (*Memory)(nil)
	_ Subscriber = (*Memory)(nil)
)

type tableKey struct {
	userID     string
	collection record.Collection
}

// Memory is an in-process Store with failure injection, used by tests and
// by the CLI when no database is configured.
type Memory struct {
	mu      sync.Mutex
	tables  map[tableKey][]record.Object
	offline bool
	failing map[record.Collection]error
	subs    map[string][]chan Patch
	calls   int
}

// NewMemory returns an empty, reachable backend.
func NewMemory() *Memory {
	return &Memory{
		tables:  make(map[tableKey][]record.Object),
		failing: make(map[record.Collection]error),
		subs:    make(map[string][]chan Patch),
	}
}

// SetOffline makes every subsequent call fail with ErrUnavailable.
func (m *Memory) SetOffline(offline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = offline
}

// FailFetch makes Fetch of c return err until cleared with a nil err.
func (m *Memory) FailFetch(c record.Collection, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failing, c)
		return
	}
	m.failing[c] = err
}

// Seed replaces the rows of one table. Rows are stored in the given order.
func (m *Memory) Seed(userID string, c record.Collection, rows []record.Object) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[tableKey{userID, c}] = record.CloneAll(rows)
}

// Rows returns a copy of one table regardless of the offline flag.
func (m *Memory) Rows(userID string, c record.Collection) []record.Object {
	m.mu.Lock()
	defer m.mu.Unlock()
	return record.CloneAll(m.tables[tableKey{userID, c}])
}

// Calls reports how many Store operations have been attempted.
func (m *Memory) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *Memory) begin(ctx context.Context) error {
	m.calls++
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.offline {
		return ErrUnavailable
	}
	return nil
}

func (m *Memory) Fetch(ctx context.Context, userID string, c record.Collection) ([]record.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx); err != nil {
		return nil, err
	}
	if err := m.failing[c]; err != nil {
		return nil, err
	}
	return record.CloneAll(m.tables[tableKey{userID, c}]), nil
}

func (m *Memory) Insert(ctx context.Context, userID string, c record.Collection, rec record.Object) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx); err != nil {
		return err
	}
	key := tableKey{userID, c}
	if indexOf(m.tables[key], rec.ID()) >= 0 {
		return nil
	}
	m.tables[key] = append([]record.Object{rec.Clone()}, m.tables[key]...)
	m.publishLocked(userID, Patch{Collection: c, Action: record.ActionInsert, ID: rec.ID(), UserID: userID, Record: rec.Clone()})
	return nil
}

func (m *Memory) Update(ctx context.Context, userID string, c record.Collection, id string, patch record.Object) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx); err != nil {
		return err
	}
	key := tableKey{userID, c}
	i := indexOf(m.tables[key], id)
	if i < 0 {
		return ErrNotFound
	}
	m.tables[key][i] = m.tables[key][i].Merge(patch)
	m.publishLocked(userID, Patch{Collection: c, Action: record.ActionUpdate, ID: id, UserID: userID, Record: m.tables[key][i].Clone()})
	return nil
}

func (m *Memory) Delete(ctx context.Context, userID string, c record.Collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx); err != nil {
		return err
	}
	key := tableKey{userID, c}
	i := indexOf(m.tables[key], id)
	if i < 0 {
		return nil
	}
	rows := m.tables[key]
	m.tables[key] = append(rows[:i:i], rows[i+1:]...)
	m.publishLocked(userID, Patch{Collection: c, Action: record.ActionDelete, ID: id, UserID: userID})
	return nil
}

// Subscribe registers a listener for userID. Only realtime collections are
// delivered, matching the backend triggers.
func (m *Memory) Subscribe(ctx context.Context, userID string) (<-chan Patch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return nil, ErrUnavailable
	}
	ch := make(chan Patch, 64)
	m.subs[userID] = append(m.subs[userID], ch)

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		subs := m.subs[userID]
		for i, s := range subs {
			if s == ch {
				m.subs[userID] = append(subs[:i:i], subs[i+1:]...)
				close(ch)
				return
			}
		}
	}()
	return ch, nil
}

// Publish pushes p to every subscriber of p.UserID as if another client had
// written the row.
func (m *Memory) Publish(p Patch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishLocked(p.UserID, p)
}

func (m *Memory) publishLocked(userID string, p Patch) {
	if !p.Collection.Realtime() {
		return
	}
	for _, ch := range m.subs[userID] {
		select {
		case ch <- p:
		default:
			// full buffer: drop
		}
	}
}

func indexOf(rows []record.Object, id string) int {
	for i, r := range rows {
		if r.ID() == id {
			return i
		}
	}
	return -1
}
