package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/roach88/billbook/internal/auth"
	"github.com/roach88/billbook/internal/config"
	"github.com/roach88/billbook/internal/http/handlers"
	"github.com/roach88/billbook/internal/middleware"
)

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// New wires up middleware, routes, and returns a ready server. With auth
// disabled every request acts as cfg.DefaultUser.
func New(cfg config.Config, svc handlers.Billing, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	r := mux.NewRouter()
	handlers.NewHealthHandler(time.Now()).Register(r)
	handlers.NewAPIHandler(svc, logger).Register(r)

	var tokens *auth.TokenManager
	if cfg.Auth.Enabled() {
		tokens = auth.NewTokenManager(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TTL)
	}
	handler := middleware.CORS(cfg.CORSOrigins,
		middleware.Logging(logger,
			middleware.Auth(tokens, cfg.DefaultUser, []string{"/health"}, r)))

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{inner: httpServer}
}

// Handler exposes the wired handler chain.
func (s *Server) Handler() http.Handler {
	return s.inner.Handler
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
