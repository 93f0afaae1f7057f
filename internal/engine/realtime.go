package engine

import (
	"context"
	"fmt"

	"github.com/roach88/billbook/internal/fieldmap"
	"github.com/roach88/billbook/internal/record"
	"github.com/roach88/billbook/internal/remote"
	"github.com/roach88/billbook/internal/state"
)

// Listen subscribes to realtime pushes and forwards them to the patch
// queue until ctx is done or the subscription ends.
func (e *Engine) Listen(ctx context.Context, sub remote.Subscriber) error {
	ch, err := sub.Subscribe(ctx, e.userID)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	for p := range ch {
		if !e.Enqueue(p) {
			return nil
		}
	}
	return ctx.Err()
}

// Enqueue submits a realtime patch for Run. Returns false once stopped.
func (e *Engine) Enqueue(p remote.Patch) bool {
	return e.queue.Enqueue(p)
}

// Run drains the patch queue on the calling goroutine.
// Blocks until ctx is cancelled or Stop is called.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Debug("realtime loop starting", "user", e.userID)

	for {
		if p, ok := e.queue.TryDequeue(); ok {
			e.applyPatch(p)
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Debug("realtime loop stopping: context cancelled", "user", e.userID)
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel is closed by Stop.
			if e.queue.Len() == 0 && e.stopped() {
				e.logger.Debug("realtime loop stopping: queue closed", "user", e.userID)
				return nil
			}
		}
	}
}

// Drain applies the patches queued so far on the calling goroutine and
// returns how many it applied. It must not run concurrently with Run.
func (e *Engine) Drain() int {
	n := 0
	for {
		p, ok := e.queue.TryDequeue()
		if !ok {
			return n
		}
		e.applyPatch(p)
		n++
	}
}

// Stop closes the patch queue, which makes Run return.
func (e *Engine) Stop() {
	e.queue.Close()
}

func (e *Engine) stopped() bool {
	e.queue.mu.Lock()
	defer e.queue.mu.Unlock()
	return e.queue.closed
}

// applyPatch applies one push by id. Patches are independent; whichever is
// applied last wins.
func (e *Engine) applyPatch(p remote.Patch) {
	if p.UserID != "" && p.UserID != e.userID {
		return
	}
	rec := fieldmap.Normalize(p.Collection, p.Record)

	switch p.Action {
	case record.ActionInsert:
		rec[record.IDKey] = record.String(p.ID)
		e.dispatch(state.Action{Kind: state.Insert, Collection: p.Collection, Record: rec})
	case record.ActionUpdate:
		e.dispatch(state.Action{Kind: state.Update, Collection: p.Collection, ID: p.ID, Record: rec})
	case record.ActionDelete:
		e.dispatch(state.Action{Kind: state.Delete, Collection: p.Collection, ID: p.ID})
	default:
		e.logger.Warn("ignoring realtime patch", "action", p.Action, "collection", p.Collection)
		return
	}

	e.logger.Debug("realtime patch applied", "collection", p.Collection, "action", p.Action, "id", p.ID)
}
