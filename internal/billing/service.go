package billing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/billbook/internal/csvio"
	"github.com/roach88/billbook/internal/document"
	"github.com/roach88/billbook/internal/engine"
	"github.com/roach88/billbook/internal/industry"
	"github.com/roach88/billbook/internal/invoice"
	"github.com/roach88/billbook/internal/record"
)

// ReceiptStore uploads receipt images and returns their URL.
type ReceiptStore interface {
	Upload(ctx context.Context, userID, expenseID, contentType string, body io.Reader) (string, error)
}

// Service implements the user-facing operations.
type Service struct {
	sessions   *engine.Sessions
	industries *industry.Registry
	renderer   *document.Renderer
	receipts   ReceiptStore
	datev      csvio.DATEVOptions
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithReceipts enables receipt uploads.
func WithReceipts(r ReceiptStore) Option {
	return func(s *Service) { s.receipts = r }
}

// WithDATEV sets the booking accounts for DATEV exports.
func WithDATEV(o csvio.DATEVOptions) Option {
	return func(s *Service) { s.datev = o }
}

// WithNow overrides the wall clock.
func WithNow(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a service.
func New(sessions *engine.Sessions, industries *industry.Registry, renderer *document.Renderer, opts ...Option) *Service {
	s := &Service{
		sessions:   sessions,
		industries: industries,
		renderer:   renderer,
		datev:      csvio.DATEVOptions{Account: "10000", ContraAccount: "8400"},
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Industries exposes the registry for form rendering.
func (s *Service) Industries() *industry.Registry {
	return s.industries
}

func (s *Service) session(ctx context.Context, userID string) (*engine.Engine, error) {
	if userID == "" {
		return nil, invalid("missing user")
	}
	return s.sessions.Get(ctx, userID)
}

// ParseCollection validates a collection name from user input.
func ParseCollection(name string) (record.Collection, error) {
	c, ok := record.ParseCollection(name)
	if !ok {
		return "", invalid(fmt.Sprintf("unknown collection %q", name))
	}
	return c, nil
}

// List returns the merged records of c.
func (s *Service) List(ctx context.Context, userID string, c record.Collection) ([]record.Object, error) {
	e, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.State().Collection(c), nil
}

// Get returns one record.
func (s *Service) Get(ctx context.Context, userID string, c record.Collection, id string) (record.Object, error) {
	e, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	rec, ok := e.State().Find(c, id)
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", c, id, ErrNotFound)
	}
	return rec, nil
}

// Sync reloads the user's state from the remote and replays the outbox.
func (s *Service) Sync(ctx context.Context, userID string) (engine.LoadReport, error) {
	e, err := s.session(ctx, userID)
	if err != nil {
		return engine.LoadReport{}, err
	}
	return e.Load(ctx)
}

// Outbox lists mutations waiting for replay.
func (s *Service) Outbox(ctx context.Context, userID string) ([]record.Mutation, error) {
	e, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.Pending(ctx)
}

// SignOut drops the user's engine, cache and outbox.
func (s *Service) SignOut(ctx context.Context, userID string) error {
	return s.sessions.SignOut(ctx, userID)
}

func (s *Service) profile(e *engine.Engine) invoice.Profile {
	return invoice.ProfileOf(e.State().Collection(record.Profile))
}

// engineErr maps engine errors onto service errors.
func engineErr(err error) error {
	if errors.Is(err, engine.ErrUnknownRecord) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}
