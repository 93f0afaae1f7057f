package engine

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/billbook/internal/fieldmap"
	"github.com/roach88/billbook/internal/merge"
	"github.com/roach88/billbook/internal/record"
	"github.com/roach88/billbook/internal/remote"
	"github.com/roach88/billbook/internal/state"
)

// LoadReport summarizes one Load.
type LoadReport struct {
	// Fetched counts the records each successful fetch returned.
	Fetched map[record.Collection]int `json:"fetched"`
	// Failed holds the error of each collection whose fetch failed. Those
	// collections kept their previous contents.
	Failed map[record.Collection]error `json:"-"`
	// Replayed counts outbox entries pushed and acknowledged.
	Replayed int `json:"replayed"`
	// Dropped counts updates acknowledged because their target no longer exists.
	Dropped int `json:"dropped"`
	// Pending is the outbox size after replay.
	Pending int `json:"pending"`
}

// Online reports whether every fetch succeeded.
func (r LoadReport) Online() bool {
	return len(r.Failed) == 0
}

// Load fetches every collection, reconciles it with the outbox and then
// replays the outbox. Remote failures end up in the report; only local
// cache errors are returned.
func (e *Engine) Load(ctx context.Context) (LoadReport, error) {
	report := LoadReport{
		Fetched: make(map[record.Collection]int),
		Failed:  make(map[record.Collection]error),
	}

	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	e.mu.Lock()
	e.journaling, e.journal = true, nil
	e.mu.Unlock()

	results := e.fetchAll(ctx)

	for i, c := range record.Collections {
		if err := results[i].Err; err != nil {
			report.Failed[c] = err
			e.logger.Warn("fetch failed, keeping cached data", "user", e.userID, "collection", c, "error", err)
		} else {
			report.Fetched[c] = len(results[i].Records)
		}
	}

	pending, err := e.reconcile(ctx, results)
	if err != nil {
		return report, fmt.Errorf("load: %w", err)
	}

	replayed, dropped, err := e.replay(ctx, pending, report.Failed)
	report.Replayed, report.Dropped = replayed, dropped
	if err != nil {
		return report, err
	}

	report.Pending, err = e.cache.PendingCount(ctx, e.userID)
	if err != nil {
		return report, fmt.Errorf("load: %w", err)
	}

	e.logger.Info("load finished",
		"user", e.userID,
		"failed", len(report.Failed),
		"replayed", report.Replayed,
		"pending", report.Pending,
	)
	return report, nil
}

// reconcile reads the outbox and replaces every fetched collection with the
// fetched rows plus queued mutations. Changes made while the fetch ran are
// then applied again so no optimistic write is rolled back.
func (e *Engine) reconcile(ctx context.Context, results []merge.FetchResult) ([]record.Mutation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer func() { e.journaling, e.journal = false, nil }()

	pending, err := e.cache.Pending(ctx, e.userID)
	if err != nil {
		return nil, err
	}

	replaced := make(map[record.Collection]bool, len(record.Collections))
	for i, c := range record.Collections {
		cached := e.state.Snapshot().Get(c)
		merged, applied := merge.Reconcile(results[i], cached, merge.ForCollection(pending, c))
		if applied {
			e.state.Dispatch(state.Action{Kind: state.Replace, Collection: c, Records: merged})
			replaced[c] = true
		}
	}

	for _, a := range e.journal {
		if replaced[a.Collection] {
			e.state.Dispatch(a)
		}
	}
	return pending, nil
}

// fetchAll runs every fetch concurrently and waits for all of them. A
// failing collection does not cancel the others.
func (e *Engine) fetchAll(ctx context.Context) []merge.FetchResult {
	results := make([]merge.FetchResult, len(record.Collections))

	var g errgroup.Group
	for i, c := range record.Collections {
		g.Go(func() error {
			rows, err := e.remote.Fetch(ctx, e.userID, c)
			if err != nil {
				results[i] = merge.FetchResult{Err: err}
				return nil
			}
			results[i] = merge.FetchResult{Records: fieldmap.NormalizeAll(c, rows)}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// replay pushes queued mutations in seq order. Entries for collections that
// could not be fetched are left for the next load. The first push failure
// stops the replay so later entries never overtake earlier ones.
func (e *Engine) replay(ctx context.Context, pending []record.Mutation, skip map[record.Collection]error) (replayed, dropped int, err error) {
	for _, m := range pending {
		if _, ok := skip[m.Collection]; ok {
			continue
		}

		pushErr := e.push(ctx, m)
		switch {
		case pushErr == nil:
			replayed++
		case m.Action == record.ActionUpdate && errors.Is(pushErr, remote.ErrNotFound):
			dropped++
			e.logger.Warn("dropping queued update for missing record", "collection", m.Collection, "id", m.RecordID)
		default:
			e.logger.Warn("replay stopped", "mutation", m.ID, "collection", m.Collection, "error", pushErr)
			return replayed, dropped, nil
		}

		if err := e.cache.Ack(ctx, m.ID); err != nil {
			return replayed, dropped, fmt.Errorf("replay: %w", err)
		}
	}
	return replayed, dropped, nil
}

// push sends one mutation to the remote in remote shape.
func (e *Engine) push(ctx context.Context, m record.Mutation) error {
	payload := fieldmap.Denormalize(m.Collection, m.Payload)
	switch m.Action {
	case record.ActionInsert:
		payload[record.IDKey] = record.String(m.RecordID)
		return e.remote.Insert(ctx, e.userID, m.Collection, payload)
	case record.ActionUpdate:
		return e.remote.Update(ctx, e.userID, m.Collection, m.RecordID, payload)
	case record.ActionDelete:
		return e.remote.Delete(ctx, e.userID, m.Collection, m.RecordID)
	default:
		return fmt.Errorf("push: unknown action %q", m.Action)
	}
}
