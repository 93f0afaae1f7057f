package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/billbook/internal/server"
)

const shutdownTimeout = 15 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the JSON API on the configured port.

With a database URL the server also listens for realtime changes to
messages and daily reports. Without JWT_SECRET every request acts as the
default user.

Example:
  billbook serve
  PORT=9000 billbook serve --config billbook.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(rootOpts, cmd)
		},
	}
	return cmd
}

func runServe(opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(cmd, opts)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	rt, err := openRuntime(ctx, opts, f)
	if err != nil {
		return err
	}
	defer rt.Close()

	if rt.subscriber != nil {
		rt.sessions.EnableRealtime(ctx, rt.subscriber)
	}

	srv := server.New(rt.cfg, rt.svc, rt.logger)
	errCh := make(chan error, 1)
	go func() {
		rt.logger.Info("billbook listening", "addr", rt.cfg.HTTPAddress(), "auth", rt.cfg.Auth.Enabled())
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		rt.logger.Info("received signal, shutting down", "signal", sig)
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok {
			return WrapExitError(ExitFailure, "http server error", err)
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "graceful shutdown failed", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "server stopped")
	return nil
}
