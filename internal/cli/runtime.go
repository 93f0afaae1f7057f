package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roach88/billbook/internal/billing"
	"github.com/roach88/billbook/internal/config"
	"github.com/roach88/billbook/internal/csvio"
	"github.com/roach88/billbook/internal/document"
	"github.com/roach88/billbook/internal/engine"
	"github.com/roach88/billbook/internal/industry"
	"github.com/roach88/billbook/internal/receipts"
	"github.com/roach88/billbook/internal/remote"
	"github.com/roach88/billbook/internal/store"
)

// runtime is everything a command needs to talk to the billing service.
type runtime struct {
	cfg        config.Config
	logger     *slog.Logger
	cache      *store.Store
	postgres   *remote.Postgres
	sessions   *engine.Sessions
	subscriber remote.Subscriber
	svc        *billing.Service
	user       string
}

// openRuntime loads the config and wires cache, backend and service. The
// caller must Close it.
func openRuntime(ctx context.Context, opts *RootOptions, f *OutputFormatter) (*runtime, error) {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(f.GetErrWriter(), &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	rt := &runtime{cfg: cfg, logger: logger, user: cfg.DefaultUser}
	if opts.User != "" {
		rt.user = opts.User
	}

	f.VerboseLog("opening cache %s", cfg.CachePath)
	rt.cache, err = store.Open(cfg.CachePath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open cache", err)
	}

	var backend remote.Store
	switch {
	case opts.Remote != nil:
		backend = opts.Remote
		if sub, ok := opts.Remote.(remote.Subscriber); ok {
			rt.subscriber = sub
		}
	case cfg.Offline:
		logger.Info("offline mode, writes are queued locally")
		backend = remote.Offline{}
	default:
		rt.postgres, err = remote.NewPostgres(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			// A missing server is not fatal: the cache serves reads and
			// writes queue until the next sync.
			logger.Warn("remote unavailable, working offline", "error", err)
			backend = remote.Offline{}
		} else {
			backend = rt.postgres
			rt.subscriber = rt.postgres
		}
	}

	rt.sessions = engine.NewSessions(rt.cache, backend, logger, engine.WithLogger(logger))

	renderer := document.NewRenderer(
		document.NewHTTPFetcher(cfg.QR.Timeout),
		document.WithQREndpoints(document.QREndpoints{Primary: cfg.QR.Primary, Fallback: cfg.QR.Fallback}),
		document.WithIndustries(industry.MustDefault()),
		document.WithLogger(logger),
	)

	svcOpts := []billing.Option{
		billing.WithLogger(logger),
		billing.WithDATEV(csvio.DATEVOptions{
			Account:       cfg.DATEV.Account,
			ContraAccount: cfg.DATEV.ContraAccount,
			TaxKey:        cfg.DATEV.TaxKey,
		}),
	}
	uploader, err := receipts.New(receipts.Config{
		Endpoint:  cfg.Storage.Endpoint,
		Region:    cfg.Storage.Region,
		Bucket:    cfg.Storage.Bucket,
		PublicURL: cfg.Storage.PublicURL,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
	})
	switch {
	case err == nil:
		svcOpts = append(svcOpts, billing.WithReceipts(uploader))
	case errors.Is(err, receipts.ErrDisabled):
		f.VerboseLog("receipt uploads disabled")
	default:
		rt.Close()
		return nil, WrapExitError(ExitCommandError, "failed to configure receipt storage", err)
	}

	rt.svc = billing.New(rt.sessions, industry.MustDefault(), renderer, svcOpts...)
	return rt, nil
}

// Close releases sessions, backend and cache.
func (rt *runtime) Close() {
	if rt.sessions != nil {
		rt.sessions.Close()
	}
	if rt.postgres != nil {
		rt.postgres.Close()
	}
	if rt.cache != nil {
		if err := rt.cache.Close(); err != nil {
			rt.logger.Error("error closing cache", "error", err)
		}
	}
}
