package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/billbook/internal/auth"
	"github.com/roach88/billbook/internal/config"
)

// TokenOptions holds flags for the token command.
type TokenOptions struct {
	*RootOptions
	Email string
	Role  string
	TTL   time.Duration
}

// TokenResult is the issued token.
type TokenResult struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewTokenCommand creates the token command.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token for development",
		Long: `Issue a signed bearer token for the user given by --user (or the
configured default user). Requires JWT_SECRET.

Example:
  JWT_SECRET=dev billbook token --user 42 --email a@example.com`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "email claim")
	cmd.Flags().StringVar(&opts.Role, "role", "owner", "role claim")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 0, "lifetime (default jwt_ttl from config)")

	return cmd
}

func runToken(opts *TokenOptions, cmd *cobra.Command) error {
	f := newFormatter(cmd, opts.RootOptions)
	cfg, err := config.Read(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if !cfg.Auth.Enabled() {
		return NewExitError(ExitCommandError, "auth is disabled: set JWT_SECRET")
	}

	ttl := cfg.Auth.TTL
	if opts.TTL > 0 {
		ttl = opts.TTL
	}
	user := cfg.DefaultUser
	if opts.User != "" {
		user = opts.User
	}

	tokens := auth.NewTokenManager(cfg.Auth.Secret, cfg.Auth.Issuer, ttl)
	raw, err := tokens.Generate(user, opts.Email, opts.Role)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to issue token", err)
	}
	if opts.Format == "json" {
		return f.Success(TokenResult{Token: raw, UserID: user, ExpiresAt: time.Now().Add(ttl).UTC().Truncate(time.Second)})
	}
	fmt.Fprintln(cmd.OutOrStdout(), raw)
	return nil
}
