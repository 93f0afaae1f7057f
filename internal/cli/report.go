package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/billbook/internal/document"
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
	periodFlags
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print revenue, expenses and open invoices",
		Long: `Summarize a period: revenue from paid invoices, outstanding and
overdue amounts, expenses by category and profit.

Example:
  billbook report --year 2026
  billbook report --year 2026 --month 3 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(opts, cmd)
		},
	}
	opts.periodFlags.register(cmd)
	return cmd
}

func runReport(opts *ReportOptions, cmd *cobra.Command) error {
	f := newFormatter(cmd, opts.RootOptions)
	p, err := opts.period(time.Now())
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid period", err)
	}
	rt, err := openRuntime(cmd.Context(), opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer rt.Close()

	sum, err := rt.svc.Summary(cmd.Context(), rt.user, p)
	if err != nil {
		return commandError("report failed", err)
	}
	if opts.Format == "json" {
		return f.Success(sum)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Revenue      %14s  (%d of %d invoices paid)\n", document.FormatMoney(sum.Revenue, "EUR"), sum.PaidInvoices, sum.Invoices)
	fmt.Fprintf(out, "Outstanding  %14s\n", document.FormatMoney(sum.Outstanding, "EUR"))
	fmt.Fprintf(out, "Overdue      %14s  (%d invoices)\n", document.FormatMoney(sum.Overdue, "EUR"), sum.OverdueCount)
	fmt.Fprintf(out, "Expenses     %14s\n", document.FormatMoney(sum.Expenses, "EUR"))
	for _, c := range sum.ExpensesByCategory {
		fmt.Fprintf(out, "  %-10s %14s\n", c.Category, document.FormatMoney(c.Amount, "EUR"))
	}
	fmt.Fprintf(out, "Profit       %14s\n", document.FormatMoney(sum.Profit, "EUR"))
	fmt.Fprintf(out, "Quotes       %d open, %d accepted\n", sum.OpenQuotes, sum.AcceptedQuote)
	return nil
}

// NewRecurringCommand creates the recurring command.
func NewRecurringCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recurring",
		Short: "Create the invoices of due recurring templates",
		Long: `Create a draft invoice for every active template whose next run is
due and advance the template. A template several intervals behind
produces one invoice per missed run.`,
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

			created, err := rt.svc.RunRecurring(cmd.Context(), rt.user)
			if err != nil {
				return commandError("recurring run failed", err)
			}
			if rootOpts.Format == "json" {
				return f.Success(created)
			}
			for _, rec := range created {
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s for %s\n", rec.Str("number"), rec.Str("recipientName"))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d invoices created\n", len(created))
			return nil
		},
	}
}
