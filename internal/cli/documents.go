package cli

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/billbook/internal/billing"
	"github.com/roach88/billbook/internal/invoice"
	"github.com/roach88/billbook/internal/record"
	"github.com/roach88/billbook/internal/report"
)

// PDFOptions holds flags for the pdf command.
type PDFOptions struct {
	*RootOptions
	Output string
	Quote  bool
}

// NewPDFCommand creates the pdf command.
func NewPDFCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PDFOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "pdf <id>",
		Short: "Render an invoice or quote as PDF",
		Long: `Render an invoice (or a quote with --quote) as an A4 PDF.

Invoices with an IBAN get a SEPA payment QR code when one of the QR
services is reachable.

Example:
  billbook pdf 0192f3c4-... -o RE-2026-001.pdf
  billbook pdf --quote 0192f3c4-... -o angebot.pdf`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPDF(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (required)")
	_ = cmd.MarkFlagRequired("output")
	cmd.Flags().BoolVar(&opts.Quote, "quote", false, "render a quote instead of an invoice")

	return cmd
}

func runPDF(opts *PDFOptions, id string, cmd *cobra.Command) error {
	f := newFormatter(cmd, opts.RootOptions)
	rt, err := openRuntime(cmd.Context(), opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer rt.Close()

	c := record.Invoices
	if opts.Quote {
		c = record.Quotes
	}
	var buf bytes.Buffer
	if err := rt.svc.RenderPDF(cmd.Context(), rt.user, c, id, &buf); err != nil {
		return commandError("render failed", err)
	}
	if err := writeOutput(opts.Output, buf.Bytes()); err != nil {
		return err
	}
	return reportWritten(f, opts.Output, buf.Len())
}

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	periodFlags
	Output string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <csv|datev>",
		Short: "Export invoices for a period",
		Long: `Export the invoices issued in a period.

csv    one row per invoice, UTF-8
datev  DATEV booking batch (semicolon separated, Windows-1252); quotes
       and drafts are skipped

Example:
  billbook export csv --year 2026 -o rechnungen.csv
  billbook export datev --from 2026-01-01 --to 2026-04-01 -o q1.csv`,
		Args:          cobra.ExactArgs(1),
		ValidArgs:     []string{string(billing.FormatCSV), string(billing.FormatDATEV)},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, billing.Format(args[0]), cmd)
		},
	}

	opts.periodFlags.register(cmd)
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (default stdout)")

	return cmd
}

func runExport(opts *ExportOptions, format billing.Format, cmd *cobra.Command) error {
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

	var buf bytes.Buffer
	if err := rt.svc.Export(cmd.Context(), rt.user, format, p, &buf); err != nil {
		return commandError("export failed", err)
	}
	if opts.Output == "" {
		_, err := cmd.OutOrStdout().Write(buf.Bytes())
		return err
	}
	if err := writeOutput(opts.Output, buf.Bytes()); err != nil {
		return err
	}
	return reportWritten(f, opts.Output, buf.Len())
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import records from files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "expenses <file.csv>",
		Short: "Import expenses from a CSV file",
		Long: `Import expenses from a comma separated file with a header row.

Recognized columns (English or German): title/titel, amount/betrag,
category/kategorie, date/datum, currency/währung. Amounts accept a
decimal comma; dates accept 2026-03-31 and 31.03.2026. Invalid rows are
reported and skipped.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImportExpenses(rootOpts, args[0], cmd)
		},
	})
	return cmd
}

func runImportExpenses(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(cmd, opts)
	file, err := os.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open file", err)
	}
	defer file.Close()

	rt, err := openRuntime(cmd.Context(), opts, f)
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := rt.svc.ImportExpenses(cmd.Context(), rt.user, file)
	if err != nil {
		return commandError("import failed", err)
	}
	if opts.Format == "json" {
		return f.Success(res)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Imported %d expenses (%d queued offline)\n", res.Imported, res.Queued)
	for _, s := range res.Skipped {
		fmt.Fprintf(out, "  skipped %s\n", s)
	}
	return nil
}

// periodFlags selects a reporting period.
type periodFlags struct {
	Year  int
	Month int
	From  string
	To    string
}

func (p *periodFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&p.Year, "year", 0, "calendar year (default current year)")
	cmd.Flags().IntVar(&p.Month, "month", 0, "month 1-12 within --year")
	cmd.Flags().StringVar(&p.From, "from", "", "start date YYYY-MM-DD (inclusive)")
	cmd.Flags().StringVar(&p.To, "to", "", "end date YYYY-MM-DD (exclusive)")
}

func (p periodFlags) period(now time.Time) (report.Period, error) {
	if p.From != "" || p.To != "" {
		var out report.Period
		var err error
		if p.From != "" {
			if out.From, err = time.Parse(invoice.DateLayout, p.From); err != nil {
				return out, fmt.Errorf("--from: %w", err)
			}
		}
		if p.To != "" {
			if out.To, err = time.Parse(invoice.DateLayout, p.To); err != nil {
				return out, fmt.Errorf("--to: %w", err)
			}
		}
		return out, nil
	}
	year := p.Year
	if year == 0 {
		year = now.Year()
	}
	switch {
	case p.Month == 0:
		return report.Year(year), nil
	case p.Month < 1 || p.Month > 12:
		return report.Period{}, fmt.Errorf("--month %d out of range", p.Month)
	}
	return report.Month(year, time.Month(p.Month)), nil
}

func writeOutput(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}
	return nil
}

func reportWritten(f *OutputFormatter, path string, n int) error {
	if f.Format == "json" {
		return f.Success(map[string]any{"path": path, "bytes": n})
	}
	fmt.Fprintf(f.Writer, "Wrote %s (%d bytes)\n", path, n)
	return nil
}
