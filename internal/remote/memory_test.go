package remote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/billbook/internal/record"
)

func row(id, status string) record.Object {
	return record.Object{"id": record.String(id), "status": record.String(status)}
}

func TestMemoryInsertFetch(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Insert(ctx, "u1", record.Invoices, row("a", "draft")))
	require.NoError(t, m.Insert(ctx, "u1", record.Invoices, row("b", "draft")))

	rows, err := m.Fetch(ctx, "u1", record.Invoices)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "b", rows[0].ID(), "newest first")

	other, err := m.Fetch(ctx, "u2", record.Invoices)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestMemoryInsertExistingIsNoOp(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Insert(ctx, "u1", record.Invoices, row("a", "draft")))
	require.NoError(t, m.Insert(ctx, "u1", record.Invoices, row("a", "paid")))

	rows := m.Rows("u1", record.Invoices)
	require.Len(t, rows, 1)
	assert.Equal(t, "draft", rows[0].Str("status"))
}

func TestMemoryUpdate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Seed("u1", record.Invoices, []record.Object{row("a", "draft")})

	require.NoError(t, m.Update(ctx, "u1", record.Invoices, "a", record.Object{"status": record.String("paid")}))
	assert.Equal(t, "paid", m.Rows("u1", record.Invoices)[0].Str("status"))

	err := m.Update(ctx, "u1", record.Invoices, "missing", record.Object{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Seed("u1", record.Expenses, []record.Object{row("a", ""), row("b", "")})

	require.NoError(t, m.Delete(ctx, "u1", record.Expenses, "a"))
	require.NoError(t, m.Delete(ctx, "u1", record.Expenses, "a"))

	rows := m.Rows("u1", record.Expenses)
	require.Len(t, rows, 1)
	assert.Equal(t, "b", rows[0].ID())
}

func TestMemoryOffline(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.SetOffline(true)

	_, err := m.Fetch(ctx, "u1", record.Invoices)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, m.Insert(ctx, "u1", record.Invoices, row("a", "")), ErrUnavailable)
	assert.ErrorIs(t, m.Update(ctx, "u1", record.Invoices, "a", nil), ErrUnavailable)
	assert.ErrorIs(t, m.Delete(ctx, "u1", record.Invoices, "a"), ErrUnavailable)
	assert.Empty(t, m.Rows("u1", record.Invoices))
	assert.Equal(t, 4, m.Calls())

	m.SetOffline(false)
	assert.NoError(t, m.Insert(ctx, "u1", record.Invoices, row("a", "")))
}

func TestMemoryFailFetch(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	boom := errors.New("boom")
	m.FailFetch(record.Quotes, boom)

	_, err := m.Fetch(ctx, "u1", record.Quotes)
	assert.ErrorIs(t, err, boom)

	_, err = m.Fetch(ctx, "u1", record.Invoices)
	assert.NoError(t, err)

	m.FailFetch(record.Quotes, nil)
	_, err = m.Fetch(ctx, "u1", record.Quotes)
	assert.NoError(t, err)
}

func TestMemoryCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemory().Fetch(ctx, "u1", record.Invoices)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemorySubscribeDeliversRealtimeOnly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := NewMemory()

	ch, err := m.Subscribe(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, m.Insert(ctx, "u1", record.Invoices, row("inv", "")))
	require.NoError(t, m.Insert(ctx, "u1", record.Messages, record.Object{"id": record.String("msg")}))
	require.NoError(t, m.Insert(ctx, "u2", record.Messages, record.Object{"id": record.String("other")}))

	select {
	case p := <-ch:
		assert.Equal(t, record.Messages, p.Collection)
		assert.Equal(t, record.ActionInsert, p.Action)
		assert.Equal(t, "msg", p.ID)
	case <-time.After(time.Second):
		t.Fatal("no patch delivered")
	}

	select {
	case p := <-ch:
		t.Fatalf("unexpected patch %+v", p)
	default:
	}
}

func TestMemorySubscribeClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewMemory()

	ch, err := m.Subscribe(ctx, "u1")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestOfflineStore(t *testing.T) {
	ctx := context.Background()
	var s Store = Offline{}
	_, err := s.Fetch(ctx, "u", record.Profile)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, s.Insert(ctx, "u", record.Profile, record.Object{}), ErrUnavailable)

	_, err = Offline{}.Subscribe(ctx, "u")
	assert.ErrorIs(t, err, ErrUnavailable)
}
