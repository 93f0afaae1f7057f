package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"

	"github.com/roach88/billbook/internal/invoice"
)

var csvHeader = []string{
	"number", "status", "recipient", "issue_date", "due_date",
	"subtotal", "tax_rate", "tax", "total", "currency",
}

// ExportCSV writes docs as a comma-separated file with a header row.
func ExportCSV(w io.Writer, docs []invoice.Document) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, d := range docs {
		row := []string{
			d.Number,
			string(d.Status),
			d.Recipient.Name,
			formatISO(d),
			dueISO(d),
			d.Subtotal.StringFixed(2),
			d.TaxRate.String(),
			d.Tax.StringFixed(2),
			d.Total.StringFixed(2),
			d.Currency,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write %s: %w", d.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatISO(d invoice.Document) string {
	if d.IssueDate.IsZero() {
		return ""
	}
	return d.IssueDate.Format(invoice.DateLayout)
}

func dueISO(d invoice.Document) string {
	if d.DueDate.IsZero() {
		return ""
	}
	return d.DueDate.Format(invoice.DateLayout)
}

// DATEVOptions selects the booking accounts.
type DATEVOptions struct {
	// Account is the debtor account, e.g. 10000.
	Account string
	// ContraAccount is the revenue account, e.g. 8400 in SKR03.
	ContraAccount string
	// TaxKey is the optional BU key.
	TaxKey string
}

var datevHeader = []string{
	"Umsatz (ohne Soll/Haben-Kz)",
	"Soll/Haben-Kennzeichen",
	"WKZ Umsatz",
	"Konto",
	"Gegenkonto (ohne BU-Schlüssel)",
	"BU-Schlüssel",
	"Belegdatum",
	"Belegfeld 1",
	"Buchungstext",
}

const maxBookingText = 60

// ExportDATEV writes one booking row per invoice, skipping drafts and
// quotes. Output is Windows-1252; characters outside it are replaced.
func ExportDATEV(w io.Writer, docs []invoice.Document, opts DATEVOptions) error {
	if opts.Account == "" || opts.ContraAccount == "" {
		return fmt.Errorf("datev export: account and contra account are required")
	}

	enc := charmap.Windows1252.NewEncoder()
	cw := csv.NewWriter(enc.Writer(w))
	cw.Comma = ';'
	cw.UseCRLF = true

	if err := cw.Write(datevHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, d := range docs {
		if d.Kind == invoice.KindQuote || d.Status == invoice.StatusDraft {
			continue
		}
		row := []string{
			decimalComma(d.Total.Abs()),
			debitCredit(d.Total),
			d.Currency,
			opts.Account,
			opts.ContraAccount,
			opts.TaxKey,
			ddmm(d),
			bookingField(d.Number),
			bookingText(d.Recipient.Name),
		}
		for i := range row {
			row[i] = encodable(row[i])
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write %s: %w", d.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func decimalComma(d decimal.Decimal) string {
	return strings.Replace(d.StringFixed(2), ".", ",", 1)
}

// debitCredit is S for receivables and H for credit notes.
func debitCredit(total decimal.Decimal) string {
	if total.IsNegative() {
		return "H"
	}
	return "S"
}

func ddmm(d invoice.Document) string {
	if d.IssueDate.IsZero() {
		return ""
	}
	return d.IssueDate.Format("0201")
}

// bookingField keeps the characters DATEV accepts in Belegfeld 1.
func bookingField(number string) string {
	var b strings.Builder
	for _, r := range number {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9',
			r == '-', r == '/', r == '_', r == '.', r == '$', r == '&', r == '%', r == '+':
			b.WriteRune(r)
		}
		if b.Len() == 36 {
			break
		}
	}
	return b.String()
}

func bookingText(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > maxBookingText {
		r = r[:maxBookingText]
	}
	return string(r)
}

// encodable replaces runes Windows-1252 cannot represent.
func encodable(s string) string {
	return strings.Map(func(r rune) rune {
		if _, ok := charmap.Windows1252.EncodeRune(r); ok {
			return r
		}
		return '?'
	}, s)
}
