package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/billbook/internal/merge"
	"github.com/roach88/billbook/internal/record"
	"github.com/roach88/billbook/internal/remote"
	"github.com/roach88/billbook/internal/state"
	"github.com/roach88/billbook/internal/store"
)

// Engine owns the projection, cache and outbox of one user.
//
// Thread-safety model:
//   - Save/Update/Delete/Load: safe from any goroutine; Loads run one at a time
//   - Run: must be called from exactly one goroutine
type Engine struct {
	userID string
	cache  *store.Store
	remote remote.Store
	state  *state.Store
	clock  *Clock
	ids    IDGenerator
	queue  *patchQueue
	logger *slog.Logger

	loadMu sync.Mutex // one Load at a time

	// mu orders projection changes against the replace step of a Load.
	// While a Load is fetching, changes are journaled and replayed on top
	// of the fetched rows.
	mu         sync.Mutex
	journaling bool
	journal    []state.Action
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the clock. By default the clock resumes after the
// highest seq in the cache.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithIDGenerator sets how ids are assigned to new records.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an engine for userID. The projection starts empty; call
// Hydrate and then Load.
func New(ctx context.Context, userID string, cache *store.Store, rs remote.Store, opts ...Option) (*Engine, error) {
	if userID == "" {
		return nil, errors.New("engine: empty user id")
	}
	if cache == nil || rs == nil {
		return nil, errors.New("engine: cache and remote are required")
	}

	e := &Engine{
		userID: userID,
		cache:  cache,
		remote: rs,
		state:  state.NewStore(),
		ids:    UUIDv7Generator{},
		queue:  newPatchQueue(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.clock == nil {
		seq, err := cache.MaxSeq(ctx)
		if err != nil {
			return nil, fmt.Errorf("engine: resume clock: %w", err)
		}
		e.clock = NewClockAt(seq)
	}

	e.state.Subscribe(e.persist)
	return e, nil
}

// UserID returns the user this engine syncs for.
func (e *Engine) UserID() string {
	return e.userID
}

// State exposes the projection for readers.
func (e *Engine) State() *state.Store {
	return e.state
}

// Pending returns the outbox for this user in replay order.
func (e *Engine) Pending(ctx context.Context) ([]record.Mutation, error) {
	return e.cache.Pending(ctx, e.userID)
}

// dispatch applies a to the projection, journaling it while a Load is
// fetching.
func (e *Engine) dispatch(a state.Action) state.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.journaling {
		e.journal = append(e.journal, a)
	}
	return e.state.Dispatch(a)
}

// persist rewrites the cached snapshot of whatever a touched. It runs
// inside Dispatch. Failures are logged and never surface to the writer.
func (e *Engine) persist(a state.Action, next state.State) {
	ctx := context.Background()
	cols := []record.Collection{a.Collection}
	if a.Kind == state.Reset {
		cols = record.Collections
	}

	seq := e.clock.Next()
	for _, c := range cols {
		if err := e.cache.SaveSnapshot(ctx, e.userID, c, next.Get(c), seq); err != nil {
			e.logger.Warn("cache write failed", "user", e.userID, "collection", c, "error", err)
		}
	}

	if a.Collection != record.Invoices {
		return
	}
	id := a.ID
	if a.Kind == state.Insert {
		id = a.Record.ID()
	}
	if a.Kind != state.Insert && a.Kind != state.Update {
		return
	}
	if inv, ok := next.Find(record.Invoices, id); ok {
		if err := e.cache.SavePreview(ctx, inv, seq); err != nil {
			e.logger.Warn("preview write failed", "invoice", id, "error", err)
		}
	}
}

// SignOut stops the realtime loop, empties the projection and drops the
// user's cached snapshots and outbox. Mutations that were never replayed
// are lost.
func (e *Engine) SignOut(ctx context.Context) error {
	e.Stop()

	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	e.dispatch(state.Action{Kind: state.Reset})
	if err := e.cache.ClearUser(ctx, e.userID); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	e.logger.Info("signed out", "user", e.userID)
	return nil
}

// Hydrate loads the cached snapshots into the projection without touching
// the network. Queued mutations are folded in again so a lost cache write
// cannot hide an outbox entry.
func (e *Engine) Hydrate(ctx context.Context) error {
	pending, err := e.cache.Pending(ctx, e.userID)
	if err != nil {
		return fmt.Errorf("hydrate: %w", err)
	}

	for _, c := range record.Collections {
		rows, found, err := e.cache.LoadSnapshot(ctx, e.userID, c)
		if err != nil {
			return fmt.Errorf("hydrate %s: %w", c, err)
		}
		queued := merge.ForCollection(pending, c)
		if !found && len(queued) == 0 {
			continue
		}
		e.state.Dispatch(state.Action{
			Kind:       state.Replace,
			Collection: c,
			Records:    merge.Apply(rows, queued),
		})
	}

	e.logger.Debug("hydrated from cache", "user", e.userID, "pending", len(pending))
	return nil
}
