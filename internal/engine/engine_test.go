package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/billbook/internal/record"
	"github.com/roach88/billbook/internal/remote"
	"github.com/roach88/billbook/internal/store"
)

const testUser = "user-1"

type testHarness struct {
	cache  *store.Store
	mem    *remote.Memory
	engine *Engine
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newHarness(t *testing.T, opts ...Option) *testHarness {
	t.Helper()
	cache := setupTestStore(t)
	mem := remote.NewMemory()
	e, err := New(context.Background(), testUser, cache, mem, opts...)
	require.NoError(t, err)
	return &testHarness{cache: cache, mem: mem, engine: e}
}

// reopen builds a fresh engine over the same cache and remote, as after an
// app restart.
func (h *testHarness) reopen(t *testing.T) *Engine {
	t.Helper()
	e, err := New(context.Background(), testUser, h.cache, h.mem)
	require.NoError(t, err)
	require.NoError(t, e.Hydrate(context.Background()))
	return e
}

func invoice(id, number string) record.Object {
	return record.Object{
		"id":            record.String(id),
		"number":        record.String(number),
		"recipientName": record.String("ACME GmbH"),
		"status":        record.String("draft"),
	}
}

func countID(rows []record.Object, id string) int {
	n := 0
	for _, r := range rows {
		if r.ID() == id {
			n++
		}
	}
	return n
}

func TestNew_Validates(t *testing.T) {
	cache := setupTestStore(t)
	_, err := New(context.Background(), "", cache, remote.NewMemory())
	assert.Error(t, err)
	_, err = New(context.Background(), "u", nil, remote.NewMemory())
	assert.Error(t, err)
}

func TestNew_ResumesClockFromCache(t *testing.T) {
	cache := setupTestStore(t)
	require.NoError(t, cache.SaveSnapshot(context.Background(), testUser, record.Invoices, nil, 41))

	e, err := New(context.Background(), testUser, cache, remote.NewMemory())
	require.NoError(t, err)
	assert.Equal(t, int64(41), e.clock.Current())
}

func TestSave_Online(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.engine.Save(ctx, record.Invoices, invoice("inv-1", "RE-1"))
	require.NoError(t, err)
	assert.False(t, res.Queued)

	rows := h.mem.Rows(testUser, record.Invoices)
	require.Len(t, rows, 1)
	assert.Equal(t, "ACME GmbH", rows[0].Str("customer_name"), "remote receives remote field names")
	assert.False(t, rows[0].Has("recipientName"))

	n, err := h.cache.PendingCount(ctx, testUser)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSave_OfflineIsOptimisticAndQueued(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.mem.SetOffline(true)

	res, err := h.engine.Save(ctx, record.Invoices, invoice("inv-1", "RE-1"))
	require.NoError(t, err, "remote failure is not surfaced")
	assert.True(t, res.Queued)

	_, ok := h.engine.State().Find(record.Invoices, "inv-1")
	assert.True(t, ok, "projection updated before remote write")

	pending, err := h.cache.Pending(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, record.ActionInsert, pending[0].Action)
	assert.Equal(t, "ACME GmbH", pending[0].Payload.Str("recipientName"), "outbox keeps local shape")

	cached, found, err := h.cache.LoadSnapshot(ctx, testUser, record.Invoices)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1, countID(cached, "inv-1"), "cache rewritten on state change")

	preview, err := h.cache.LoadPreview(ctx)
	require.NoError(t, err)
	assert.Equal(t, "inv-1", preview.ID())
}

func TestOfflineSaveThenReload_ExactlyOneCopy(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.mem.SetOffline(true)
	_, err := h.engine.Save(ctx, record.Invoices, invoice("inv-1", "RE-1"))
	require.NoError(t, err)

	h.mem.SetOffline(false)
	e := h.reopen(t)
	report, err := e.Load(ctx)
	require.NoError(t, err)

	assert.True(t, report.Online())
	assert.Equal(t, 1, report.Replayed)
	assert.Zero(t, report.Pending)
	assert.Equal(t, 1, countID(e.State().Collection(record.Invoices), "inv-1"))
	assert.Len(t, h.mem.Rows(testUser, record.Invoices), 1)

	// A second reload must not duplicate either.
	_, err = e.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, countID(e.State().Collection(record.Invoices), "inv-1"))
}

func TestLoad_RemoteAlreadyHasQueuedInsert(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.mem.SetOffline(true)
	_, err := h.engine.Save(ctx, record.Invoices, invoice("inv-1", "RE-1"))
	require.NoError(t, err)
	h.mem.SetOffline(false)

	// The write reached the backend even though the client saw an error.
	h.mem.Seed(testUser, record.Invoices, []record.Object{{"id": record.String("inv-1"), "invoice_number": record.String("RE-1")}})

	report, err := h.engine.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Replayed)
	assert.Equal(t, 1, countID(h.engine.State().Collection(record.Invoices), "inv-1"))
	assert.Len(t, h.mem.Rows(testUser, record.Invoices), 1)
}

func TestLoad_FetchErrorKeepsCachedState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.engine.Save(ctx, record.Quotes, invoice("q-1", "AN-1"))
	require.NoError(t, err)

	h.mem.FailFetch(record.Quotes, errors.New("timeout"))
	h.mem.Seed(testUser, record.Quotes, nil)

	report, err := h.engine.Load(ctx)
	require.NoError(t, err)
	assert.False(t, report.Online())
	assert.Contains(t, report.Failed, record.Quotes)

	_, ok := h.engine.State().Find(record.Quotes, "q-1")
	assert.True(t, ok, "failed fetch must not wipe the collection")
}

func TestLoad_NormalizesRemoteRows(t *testing.T) {
	h := newHarness(t)
	h.mem.Seed(testUser, record.Invoices, []record.Object{{
		"id":               record.String("inv-9"),
		"customer_name":    record.String("Beta AG"),
		"customer_address": record.String("Hauptstraße 12"),
	}})

	report, err := h.engine.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Fetched[record.Invoices])

	got, ok := h.engine.State().Find(record.Invoices, "inv-9")
	require.True(t, ok)
	assert.Equal(t, "Beta AG", got.Str("recipientName"))
	assert.Equal(t, "Hauptstraße", got.Str("recipientStreet"))
	assert.Equal(t, "12", got.Str("recipientHouseNumber"))
}

func TestLoad_QueuedDeleteHidesRemoteRow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.mem.Seed(testUser, record.Expenses, []record.Object{{"id": record.String("e-1")}, {"id": record.String("e-2")}})
	_, err := h.engine.Load(ctx)
	require.NoError(t, err)

	h.mem.SetOffline(true)
	_, err = h.engine.Delete(ctx, record.Expenses, "e-1")
	require.NoError(t, err)

	// Fetch works again but the push of the delete fails.
	h.mem.SetOffline(false)
	failing := &failingRemote{Memory: h.mem, failDelete: true}
	e, err := New(ctx, testUser, h.cache, failing)
	require.NoError(t, err)

	report, err := e.Load(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Replayed)
	assert.Equal(t, 1, report.Pending)

	_, ok := e.State().Find(record.Expenses, "e-1")
	assert.False(t, ok, "queued delete wins over fetched row")
}

func TestLoad_ReplayStopsAtFirstFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.mem.SetOffline(true)
	_, err := h.engine.Save(ctx, record.Invoices, invoice("bad", "RE-1"))
	require.NoError(t, err)
	_, err = h.engine.Save(ctx, record.Invoices, invoice("good", "RE-2"))
	require.NoError(t, err)
	h.mem.SetOffline(false)

	failing := &failingRemote{Memory: h.mem, failInsertID: "bad"}
	e, err := New(ctx, testUser, h.cache, failing)
	require.NoError(t, err)
	require.NoError(t, e.Hydrate(ctx))

	report, err := e.Load(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Replayed)
	assert.Equal(t, 2, report.Pending, "later entries must not overtake the failed one")
	assert.Len(t, e.State().Collection(record.Invoices), 2)
}

func TestLoad_DropsUpdateOfVanishedRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.mem.Seed(testUser, record.Invoices, []record.Object{{"id": record.String("inv-1"), "status": record.String("draft")}})
	_, err := h.engine.Load(ctx)
	require.NoError(t, err)

	h.mem.SetOffline(true)
	_, err = h.engine.Update(ctx, record.Invoices, "inv-1", record.Object{"status": record.String("paid")})
	require.NoError(t, err)
	h.mem.SetOffline(false)

	// Deleted elsewhere meanwhile.
	h.mem.Seed(testUser, record.Invoices, nil)

	report, err := h.engine.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Dropped)
	assert.Zero(t, report.Pending)
	assert.Empty(t, h.engine.State().Collection(record.Invoices), "update of an absent record is a no-op")
}

// gatedRemote parks Fetch of one collection until gate is closed.
type gatedRemote struct {
	*remote.Memory
	col       record.Collection
	entered   chan struct{}
	gate      chan struct{}
	insertErr error
	once      sync.Once
}

func newGatedRemote(col record.Collection, insertErr error) *gatedRemote {
	return &gatedRemote{
		Memory:    remote.NewMemory(),
		col:       col,
		entered:   make(chan struct{}),
		gate:      make(chan struct{}),
		insertErr: insertErr,
	}
}

func (g *gatedRemote) Fetch(ctx context.Context, userID string, c record.Collection) ([]record.Object, error) {
	if c == g.col {
		g.once.Do(func() { close(g.entered) })
		<-g.gate
	}
	return g.Memory.Fetch(ctx, userID, c)
}

func (g *gatedRemote) Insert(ctx context.Context, userID string, c record.Collection, rec record.Object) error {
	if g.insertErr != nil {
		return g.insertErr
	}
	return g.Memory.Insert(ctx, userID, c, rec)
}

func TestLoad_KeepsWritesMadeDuringFetch(t *testing.T) {
	tests := []struct {
		name        string
		insertErr   error
		wantPending int
	}{
		{name: "queued write", insertErr: remote.ErrUnavailable, wantPending: 1},
		{name: "acknowledged write", insertErr: nil, wantPending: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			cache := setupTestStore(t)
			rs := newGatedRemote(record.Invoices, tt.insertErr)
			e, err := New(ctx, testUser, cache, rs)
			require.NoError(t, err)

			type loadResult struct {
				report LoadReport
				err    error
			}
			done := make(chan loadResult, 1)
			go func() {
				report, err := e.Load(ctx)
				done <- loadResult{report, err}
			}()

			<-rs.entered
			res, err := e.Save(ctx, record.Invoices, invoice("inv-x", "RE-2026-001"))
			require.NoError(t, err)
			assert.Equal(t, tt.insertErr != nil, res.Queued)

			close(rs.gate)
			out := <-done
			require.NoError(t, out.err)
			assert.Equal(t, tt.wantPending, out.report.Pending)

			assert.Equal(t, 1, countID(e.State().Collection(record.Invoices), "inv-x"))

			cached, found, err := cache.LoadSnapshot(ctx, testUser, record.Invoices)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, 1, countID(cached, "inv-x"), "cache must not lose the write either")
		})
	}
}

func TestUpdate_MergesAndDenormalizes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.engine.Save(ctx, record.Invoices, invoice("inv-1", "RE-1"))
	require.NoError(t, err)

	res, err := h.engine.Update(ctx, record.Invoices, "inv-1", record.Object{"status": record.String("sent"), "tax": record.Int(19)})
	require.NoError(t, err)
	assert.False(t, res.Queued)
	assert.Equal(t, "sent", res.Record.Str("status"))
	assert.Equal(t, "RE-1", res.Record.Str("number"))

	row := h.mem.Rows(testUser, record.Invoices)[0]
	assert.Equal(t, "sent", row.Str("status"))
	assert.True(t, row.Has("tax_amount"))
}

func TestUpdateDelete_UnknownRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.engine.Update(ctx, record.Invoices, "nope", record.Object{})
	assert.ErrorIs(t, err, ErrUnknownRecord)
	_, err = h.engine.Delete(ctx, record.Invoices, "nope")
	assert.ErrorIs(t, err, ErrUnknownRecord)
	assert.Zero(t, h.mem.Calls())
}

func TestDelete_Online(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.engine.Save(ctx, record.Employees, record.Object{"id": record.String("emp-1")})
	require.NoError(t, err)

	res, err := h.engine.Delete(ctx, record.Employees, "emp-1")
	require.NoError(t, err)
	assert.False(t, res.Queued)
	assert.Empty(t, h.mem.Rows(testUser, record.Employees))
	assert.Empty(t, h.engine.State().Collection(record.Employees))
}

func TestHydrate_RestoresProjection(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.mem.SetOffline(true)
	_, err := h.engine.Save(ctx, record.Expenses, record.Object{"id": record.String("e-1"), "title": record.String("Paper")})
	require.NoError(t, err)

	e := h.reopen(t)
	got, ok := e.State().Find(record.Expenses, "e-1")
	require.True(t, ok)
	assert.Equal(t, "Paper", got.Str("title"))
}

func TestHydrate_FoldsOutboxWhenCacheWriteWasLost(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	m, err := record.NewMutation(testUser, record.Invoices, record.ActionInsert, "lost", invoice("lost", "RE-9"), 1)
	require.NoError(t, err)
	require.NoError(t, h.cache.Enqueue(ctx, m))

	e := h.reopen(t)
	_, ok := e.State().Find(record.Invoices, "lost")
	assert.True(t, ok)
}

func TestRealtime_ListenAndRun(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- h.engine.Run(ctx) }()

	ch, err := h.mem.Subscribe(ctx, testUser)
	require.NoError(t, err)
	go func() {
		for p := range ch {
			h.engine.Enqueue(p)
		}
	}()

	h.mem.Publish(remote.Patch{
		Collection: record.Messages,
		Action:     record.ActionInsert,
		ID:         "msg-1",
		UserID:     testUser,
		Record:     record.Object{"content": record.String("hi"), "is_read": record.Bool(false)},
	})

	require.Eventually(t, func() bool {
		_, ok := h.engine.State().Find(record.Messages, "msg-1")
		return ok
	}, time.Second, 5*time.Millisecond)

	got, _ := h.engine.State().Find(record.Messages, "msg-1")
	assert.Equal(t, record.Bool(false), got["read"], "pushes are normalized")

	h.engine.Enqueue(remote.Patch{Collection: record.Messages, Action: record.ActionUpdate, ID: "msg-1", UserID: testUser, Record: record.Object{"is_read": record.Bool(true)}})
	h.engine.Enqueue(remote.Patch{Collection: record.Messages, Action: record.ActionInsert, ID: "foreign", UserID: "someone-else"})

	require.Eventually(t, func() bool {
		got, _ := h.engine.State().Find(record.Messages, "msg-1")
		return got["read"] == record.Bool(true)
	}, time.Second, 5*time.Millisecond)
	_, ok := h.engine.State().Find(record.Messages, "foreign")
	assert.False(t, ok)

	h.engine.Enqueue(remote.Patch{Collection: record.Messages, Action: record.ActionDelete, ID: "msg-1", UserID: testUser})
	require.Eventually(t, func() bool {
		_, ok := h.engine.State().Find(record.Messages, "msg-1")
		return !ok
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRun_StopReturnsNil(t *testing.T) {
	h := newHarness(t)
	done := make(chan error, 1)
	go func() { done <- h.engine.Run(context.Background()) }()

	h.engine.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestDrain_AppliesQueuedPatchesInOrder(t *testing.T) {
	h := newHarness(t)

	h.engine.Enqueue(remote.Patch{Collection: record.DailyReports, Action: record.ActionInsert, ID: "r-1", UserID: testUser, Record: record.Object{"notes": record.String("draft")}})
	h.engine.Enqueue(remote.Patch{Collection: record.DailyReports, Action: record.ActionUpdate, ID: "r-1", UserID: testUser, Record: record.Object{"notes": record.String("final")}})
	h.engine.Enqueue(remote.Patch{Collection: record.DailyReports, Action: record.ActionDelete, ID: "absent", UserID: testUser})

	assert.Equal(t, 3, h.engine.Drain())
	assert.Equal(t, 0, h.engine.Drain(), "queue is empty afterwards")

	got, ok := h.engine.State().Find(record.DailyReports, "r-1")
	require.True(t, ok)
	assert.Equal(t, record.String("final"), got["notes"])
	assert.Len(t, h.engine.State().Snapshot().Get(record.DailyReports), 1)
}

func TestListen_UnavailableSubscriber(t *testing.T) {
	h := newHarness(t)
	err := h.engine.Listen(context.Background(), remote.Offline{})
	assert.ErrorIs(t, err, remote.ErrUnavailable)
}

func TestSessions_ReuseEngine(t *testing.T) {
	cache := setupTestStore(t)
	mem := remote.NewMemory()
	mem.Seed("alice", record.Invoices, []record.Object{{"id": record.String("a-1")}})

	sessions := NewSessions(cache, mem, nil)
	defer sessions.Close()

	e1, err := sessions.Get(context.Background(), "alice")
	require.NoError(t, err)
	e2, err := sessions.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.Same(t, e1, e2)

	_, ok := e1.State().Find(record.Invoices, "a-1")
	assert.True(t, ok, "session is loaded on first use")

	bob, err := sessions.Get(context.Background(), "bob")
	require.NoError(t, err)
	assert.NotSame(t, e1, bob)
	assert.Empty(t, bob.State().Collection(record.Invoices))
}

func TestSessions_OfflineStillServesCache(t *testing.T) {
	cache := setupTestStore(t)
	require.NoError(t, cache.SaveSnapshot(context.Background(), "alice", record.Expenses, []record.Object{{"id": record.String("cached")}}, 1))

	sessions := NewSessions(cache, remote.Offline{}, nil)
	e, err := sessions.Get(context.Background(), "alice")
	require.NoError(t, err)

	_, ok := e.State().Find(record.Expenses, "cached")
	assert.True(t, ok)
}

func TestSignOut_ClearsProjectionCacheAndOutbox(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.mem.Seed(testUser, record.Expenses, []record.Object{{"id": record.String("exp-1")}})
	_, err := h.engine.Load(ctx)
	require.NoError(t, err)

	h.mem.SetOffline(true)
	res, err := h.engine.Save(ctx, record.Invoices, invoice("inv-1", "RE-2026-001"))
	require.NoError(t, err)
	require.True(t, res.Queued)

	require.NoError(t, h.engine.SignOut(ctx))

	for _, c := range record.Collections {
		assert.Empty(t, h.engine.State().Collection(c), c)
		_, found, err := h.cache.LoadSnapshot(ctx, testUser, c)
		require.NoError(t, err)
		assert.False(t, found, c)
	}
	pending, err := h.engine.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	e := h.reopen(t)
	assert.Empty(t, e.State().Collection(record.Invoices), "nothing comes back after a restart")
}

func TestSessions_SignOut(t *testing.T) {
	cache := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, cache.SaveSnapshot(ctx, "bob", record.Expenses, []record.Object{{"id": record.String("b-1")}}, 1))

	sessions := NewSessions(cache, remote.Offline{}, nil)
	defer sessions.Close()

	alice, err := sessions.Get(ctx, "alice")
	require.NoError(t, err)
	_, err = alice.Save(ctx, record.Expenses, record.Object{"id": record.String("a-1")})
	require.NoError(t, err)

	require.NoError(t, sessions.SignOut(ctx, "alice"))
	n, err := cache.PendingCount(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, n)

	again, err := sessions.Get(ctx, "alice")
	require.NoError(t, err)
	assert.NotSame(t, alice, again, "a fresh engine is opened after sign-out")
	assert.Empty(t, again.State().Collection(record.Expenses))

	// bob never opened an engine; his cache is cleared all the same.
	require.NoError(t, sessions.SignOut(ctx, "bob"))
	_, found, err := cache.LoadSnapshot(ctx, "bob", record.Expenses)
	require.NoError(t, err)
	assert.False(t, found)
}

// failingRemote wraps Memory and fails selected pushes.
type failingRemote struct {
	*remote.Memory
	failInsertID string
	failDelete   bool
}

func (f *failingRemote) Insert(ctx context.Context, userID string, c record.Collection, rec record.Object) error {
	if rec.ID() == f.failInsertID {
		return errors.New("constraint violation")
	}
	return f.Memory.Insert(ctx, userID, c, rec)
}

func (f *failingRemote) Delete(ctx context.Context, userID string, c record.Collection, id string) error {
	if f.failDelete {
		return remote.ErrUnavailable
	}
	return f.Memory.Delete(ctx, userID, c, id)
}
