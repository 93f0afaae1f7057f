package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/billbook/internal/remote"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Config  string
	User    string
	Verbose bool
	Format  string // "json" | "text"

	// Remote overrides the backend chosen from the config (for testing).
	Remote remote.Store
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Execute runs the CLI with os.Args and returns the process exit code.
// Failures are reported in the format chosen with --format.
func Execute(ctx context.Context) int {
	opts := &RootOptions{}
	return execute(ctx, newRootCommand(opts), opts)
}

func execute(ctx context.Context, cmd *cobra.Command, opts *RootOptions) int {
	if err := cmd.ExecuteContext(ctx); err != nil {
		reportError(cmd, opts, err)
		return GetExitCode(err)
	}
	return ExitSuccess
}

// NewRootCommand creates the root command for the billbook CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "billbook",
		Short: "billbook - offline-first invoicing",
		Long: `Invoices, quotes and expenses kept in a local cache and synced with the
server whenever it is reachable. Writes made while offline are queued
and replayed on the next sync.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().StringVarP(&opts.User, "user", "u", "", "user id (defaults to default_user from config)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewOutboxCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewPDFCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewReportCommand(opts))
	cmd.AddCommand(NewRecurringCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
