package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/billbook/internal/remote"
	"github.com/roach88/billbook/internal/store"
)

// Sessions keeps one hydrated engine per user for servers that act on
// behalf of many users.
type Sessions struct {
	cache  *store.Store
	remote remote.Store
	opts   []Option
	logger *slog.Logger

	mu       sync.Mutex
	engines  map[string]*Engine
	inflight map[string]chan struct{}

	// set by EnableRealtime
	liveCtx context.Context
	sub     remote.Subscriber
}

// NewSessions creates an empty registry. opts are applied to every engine.
func NewSessions(cache *store.Store, rs remote.Store, logger *slog.Logger, opts ...Option) *Sessions {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sessions{
		cache:    cache,
		remote:   rs,
		opts:     append([]Option{WithLogger(logger)}, opts...),
		logger:   logger,
		engines:  make(map[string]*Engine),
		inflight: make(map[string]chan struct{}),
	}
}

// EnableRealtime makes every engine opened afterwards listen on sub and run
// its patch loop until ctx is done.
func (s *Sessions) EnableRealtime(ctx context.Context, sub remote.Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liveCtx = ctx
	s.sub = sub
}

// Get returns the engine for userID, creating it on first use. A new engine
// is hydrated from cache and then loaded; a failed load still yields a
// usable engine serving cached data.
func (s *Sessions) Get(ctx context.Context, userID string) (*Engine, error) {
	for {
		s.mu.Lock()
		if e, ok := s.engines[userID]; ok {
			s.mu.Unlock()
			return e, nil
		}
		wait, busy := s.inflight[userID]
		if !busy {
			done := make(chan struct{})
			s.inflight[userID] = done
			s.mu.Unlock()
			return s.open(ctx, userID, done)
		}
		s.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (s *Sessions) open(ctx context.Context, userID string, done chan struct{}) (*Engine, error) {
	var e *Engine
	defer func() {
		s.mu.Lock()
		if e != nil {
			s.engines[userID] = e
		}
		delete(s.inflight, userID)
		s.mu.Unlock()
		close(done)
	}()

	created, err := New(ctx, userID, s.cache, s.remote, s.opts...)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	if err := created.Hydrate(ctx); err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	if _, err := created.Load(ctx); err != nil {
		s.logger.Warn("initial load failed, serving cache", "user", userID, "error", err)
	}
	e = created

	s.mu.Lock()
	liveCtx, sub := s.liveCtx, s.sub
	s.mu.Unlock()
	if sub != nil {
		go func() {
			if err := e.Listen(liveCtx, sub); err != nil && liveCtx.Err() == nil {
				s.logger.Warn("realtime listener ended", "user", userID, "error", err)
			}
		}()
		go func() { _ = e.Run(liveCtx) }()
	}
	return e, nil
}

// SignOut forgets the engine of userID and clears the user's cache. Users
// without an open engine still have their cache cleared.
func (s *Sessions) SignOut(ctx context.Context, userID string) error {
	s.mu.Lock()
	e, ok := s.engines[userID]
	delete(s.engines, userID)
	s.mu.Unlock()

	if ok {
		return e.SignOut(ctx)
	}
	if err := s.cache.ClearUser(ctx, userID); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// Close stops every engine's realtime loop and forgets them.
func (s *Sessions) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.engines {
		e.Stop()
		delete(s.engines, id)
	}
}
