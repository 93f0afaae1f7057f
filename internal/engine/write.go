package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/billbook/internal/fieldmap"
	"github.com/roach88/billbook/internal/record"
	"github.com/roach88/billbook/internal/state"
)

// ErrUnknownRecord is returned by Update and Delete when the projection has
// no record with the given id.
var ErrUnknownRecord = errors.New("engine: unknown record")

// WriteResult reports the outcome of an optimistic write.
type WriteResult struct {
	Record record.Object `json:"record,omitempty"`
	// Queued is true when the remote write failed and the mutation was
	// parked in the outbox.
	Queued bool `json:"queued"`
}

// Save creates rec in c. A missing id is assigned. The record is visible in
// the projection before the remote is contacted.
func (e *Engine) Save(ctx context.Context, c record.Collection, rec record.Object) (WriteResult, error) {
	rec = rec.Clone()
	if rec == nil {
		rec = record.Object{}
	}
	if rec.ID() == "" {
		rec[record.IDKey] = record.String(e.ids.Generate())
	}

	e.dispatch(state.Action{Kind: state.Insert, Collection: c, Record: rec})

	err := e.remote.Insert(ctx, e.userID, c, fieldmap.Denormalize(c, rec))
	queued, qerr := e.afterRemote(ctx, c, record.ActionInsert, rec.ID(), rec, err)
	return WriteResult{Record: rec, Queued: queued}, qerr
}

// Update shallow-merges patch into the record with id.
func (e *Engine) Update(ctx context.Context, c record.Collection, id string, patch record.Object) (WriteResult, error) {
	if _, ok := e.state.Find(c, id); !ok {
		return WriteResult{}, fmt.Errorf("update %s %s: %w", c, id, ErrUnknownRecord)
	}
	patch = patch.Clone()
	if patch == nil {
		patch = record.Object{}
	}
	delete(patch, record.IDKey)

	next := e.dispatch(state.Action{Kind: state.Update, Collection: c, ID: id, Record: patch})
	updated, _ := next.Find(c, id)

	err := e.remote.Update(ctx, e.userID, c, id, fieldmap.Denormalize(c, patch))
	queued, qerr := e.afterRemote(ctx, c, record.ActionUpdate, id, patch, err)
	return WriteResult{Record: updated.Clone(), Queued: queued}, qerr
}

// Delete removes the record with id.
func (e *Engine) Delete(ctx context.Context, c record.Collection, id string) (WriteResult, error) {
	if _, ok := e.state.Find(c, id); !ok {
		return WriteResult{}, fmt.Errorf("delete %s %s: %w", c, id, ErrUnknownRecord)
	}

	e.dispatch(state.Action{Kind: state.Delete, Collection: c, ID: id})

	err := e.remote.Delete(ctx, e.userID, c, id)
	queued, qerr := e.afterRemote(ctx, c, record.ActionDelete, id, record.Object{record.IDKey: record.String(id)}, err)
	return WriteResult{Queued: queued}, qerr
}

// afterRemote logs a failed remote write and parks the mutation. Only a
// failure to write the outbox is returned.
func (e *Engine) afterRemote(ctx context.Context, c record.Collection, action record.Action, id string, payload record.Object, remoteErr error) (queued bool, err error) {
	if remoteErr == nil {
		return false, nil
	}

	e.logger.Warn("remote write failed, queued for replay",
		"user", e.userID,
		"collection", c,
		"action", action,
		"id", id,
		"error", remoteErr,
	)

	m, err := record.NewMutation(e.userID, c, action, id, payload, e.clock.Next())
	if err != nil {
		return false, fmt.Errorf("queue %s %s: %w", action, c, err)
	}
	// Enqueue may run after the caller's context is gone; the outbox write
	// must still land.
	if err := e.cache.Enqueue(context.WithoutCancel(ctx), m); err != nil {
		return false, fmt.Errorf("queue %s %s: %w", action, c, err)
	}
	return true, nil
}
