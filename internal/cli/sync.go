package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/billbook/internal/record"
)

// SyncResult is the outcome of one sync.
type SyncResult struct {
	Fetched  map[record.Collection]int    `json:"fetched"`
	Failed   map[record.Collection]string `json:"failed,omitempty"`
	Replayed int                          `json:"replayed"`
	Dropped  int                          `json:"dropped"`
	Pending  int                          `json:"pending"`
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Fetch from the server and replay queued writes",
		Long: `Fetch every collection, merge it with the local cache and push the
writes that were queued while offline.

Exit codes:
  0 - Sync finished, all collections fetched
  1 - Some collections could not be fetched (cached data kept)
  2 - Command error (bad config, cache not readable, etc.)`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(cmd, rootOpts)
			rt, err := openRuntime(cmd.Context(), rootOpts, f)
			if err != nil {
				return err
			}
			defer rt.Close()

			rep, err := rt.svc.Sync(cmd.Context(), rt.user)
			if err != nil {
				return commandError("sync failed", err)
			}
			res := SyncResult{Fetched: rep.Fetched, Replayed: rep.Replayed, Dropped: rep.Dropped, Pending: rep.Pending}
			if len(rep.Failed) > 0 {
				res.Failed = make(map[record.Collection]string, len(rep.Failed))
				for c, err := range rep.Failed {
					res.Failed[c] = err.Error()
				}
			}

			if rootOpts.Format == "json" {
				if err := f.Success(res); err != nil {
					return err
				}
			} else {
				writeSyncText(cmd, res)
			}
			if len(res.Failed) > 0 {
				return NewExitError(ExitFailure, fmt.Sprintf("%d collections could not be fetched", len(res.Failed)))
			}
			return nil
		},
	}
}

func writeSyncText(cmd *cobra.Command, res SyncResult) {
	out := cmd.OutOrStdout()
	for _, c := range record.Collections {
		if msg, ok := res.Failed[c]; ok {
			fmt.Fprintf(out, "  %-14s failed: %s\n", c, msg)
			continue
		}
		fmt.Fprintf(out, "  %-14s %d records\n", c, res.Fetched[c])
	}
	fmt.Fprintf(out, "Replayed %d, dropped %d, pending %d\n", res.Replayed, res.Dropped, res.Pending)
}

// NewOutboxCommand creates the outbox command.
func NewOutboxCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "outbox",
		Short:         "List writes waiting to be synced",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(cmd, rootOpts)
			rt, err := openRuntime(cmd.Context(), rootOpts, f)
			if err != nil {
				return err
			}
			defer rt.Close()

			pending, err := rt.svc.Outbox(cmd.Context(), rt.user)
			if err != nil {
				return commandError("failed to read outbox", err)
			}
			if pending == nil {
				pending = []record.Mutation{}
			}
			if rootOpts.Format == "json" {
				return f.Success(pending)
			}

			out := cmd.OutOrStdout()
			if len(pending) == 0 {
				fmt.Fprintln(out, "Outbox is empty.")
				return nil
			}
			for _, m := range pending {
				fmt.Fprintf(out, "%6d  %-6s  %-14s %s\n", m.Seq, m.Action, m.Collection, m.RecordID)
			}
			return nil
		},
	}
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Clear the local cache and outbox of the user",
		Long: `Clear the cached records and the outbox of the user. Writes still in the
outbox are refused unless --force is given, in which case they are lost.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(cmd, rootOpts)
			rt, err := openRuntime(cmd.Context(), rootOpts, f)
			if err != nil {
				return err
			}
			defer rt.Close()

			pending, err := rt.svc.Outbox(cmd.Context(), rt.user)
			if err != nil {
				return commandError("failed to read outbox", err)
			}
			if len(pending) > 0 && !force {
				return NewExitError(ExitCommandError, fmt.Sprintf("%d writes not synced yet; run sync first or pass --force", len(pending)))
			}

			if err := rt.svc.SignOut(cmd.Context(), rt.user); err != nil {
				return commandError("failed to sign out", err)
			}
			if rootOpts.Format == "json" {
				return f.Success(map[string]any{"user": rt.user, "discarded": len(pending)})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed out %s (%d queued writes discarded)\n", rt.user, len(pending))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "discard writes that were not synced")
	return cmd
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <collection>",
		Short: "Print the records of a collection",
		Long: `Print the merged records of a collection: server data plus writes
still waiting in the outbox.

Collections: profile, invoices, quotes, expenses, employees, messages,
daily_reports, templates`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(cmd, rootOpts)
			c, ok := record.ParseCollection(args[0])
			if !ok {
				return NewExitError(ExitCommandError, fmt.Sprintf("unknown collection %q", args[0]))
			}
			rt, err := openRuntime(cmd.Context(), rootOpts, f)
			if err != nil {
				return err
			}
			defer rt.Close()

			rows, err := rt.svc.List(cmd.Context(), rt.user, c)
			if err != nil {
				return commandError("list failed", err)
			}
			if rootOpts.Format == "json" {
				return f.Success(rows)
			}
			out := cmd.OutOrStdout()
			for _, rec := range rows {
				fmt.Fprintf(out, "%s  %s\n", rec.ID(), summaryLine(rec))
			}
			fmt.Fprintf(out, "%d %s\n", len(rows), c)
			return nil
		},
	}
}

// summaryLine picks a few human-readable fields of rec.
func summaryLine(rec record.Object) string {
	var parts []string
	for _, k := range []string{"number", "name", "title", "recipientName", "companyName", "status", "total", "amount", "content"} {
		if !rec.Has(k) {
			continue
		}
		v := rec.Str(k)
		if v == "" {
			v = rec.Decimal(k).String()
		}
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, " ")
}
