// Package remote talks to the hosted backend. Records crossing this
// boundary are in remote shape: the engine denormalizes before calling in
// and normalizes what comes back.
package remote

import (
	"context"
	"errors"

	"github.com/roach88/billbook/internal/record"
)

// ErrNotFound indicates an update targeted a row that does not exist.
var ErrNotFound = errors.New("remote: record not found")

// ErrUnavailable indicates the backend could not be reached.
var ErrUnavailable = errors.New("remote: unavailable")

// Store captures the per-collection operations the sync engine needs.
type Store interface {
	// Fetch returns every row of c owned by userID, newest first.
	Fetch(ctx context.Context, userID string, c record.Collection) ([]record.Object, error)
	// Insert adds rec. Inserting an id that already exists is a no-op.
	Insert(ctx context.Context, userID string, c record.Collection, rec record.Object) error
	// Update shallow-merges patch into the row with the given id.
	Update(ctx context.Context, userID string, c record.Collection, id string, patch record.Object) error
	// Delete removes the row. Deleting a missing row is a no-op.
	Delete(ctx context.Context, userID string, c record.Collection, id string) error
}

// Patch is one row-level change pushed by the backend.
type Patch struct {
	Collection record.Collection
	Action     record.Action
	ID         string
	UserID     string
	// Record is nil for deletes.
	Record record.Object
}

// Subscriber delivers realtime patches for a user.
//
// The returned channel is closed when ctx is done or the subscription
// breaks. Callers resubscribe after a reload if they want to keep listening.
type Subscriber interface {
	Subscribe(ctx context.Context, userID string) (<-chan Patch, error)
}

// Offline is a Store that is never reachable. Every call fails with
// ErrUnavailable, so all writes land in the outbox.
type Offline struct{}

var (
	_ Store      = Offline{}
	_ Subscriber = Offline{}
)

func (Offline) Fetch(context.Context, string, record.Collection) ([]record.Object, error) {
	return nil, ErrUnavailable
}

func (Offline) Insert(context.Context, string, record.Collection, record.Object) error {
	return ErrUnavailable
}

func (Offline) Update(context.Context, string, record.Collection, string, record.Object) error {
	return ErrUnavailable
}

func (Offline) Delete(context.Context, string, record.Collection, string) error {
	return ErrUnavailable
}

func (Offline) Subscribe(context.Context, string) (<-chan Patch, error) {
	return nil, ErrUnavailable
}
