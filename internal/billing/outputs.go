package billing

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/roach88/billbook/internal/csvio"
	"github.com/roach88/billbook/internal/invoice"
	"github.com/roach88/billbook/internal/record"
	"github.com/roach88/billbook/internal/report"
)

// RenderPDF writes the invoice or quote with id as PDF.
func (s *Service) RenderPDF(ctx context.Context, userID string, c record.Collection, id string, w io.Writer) error {
	if c != record.Invoices && c != record.Quotes {
		return invalid(fmt.Sprintf("%s cannot be rendered", c))
	}
	e, err := s.session(ctx, userID)
	if err != nil {
		return err
	}
	rec, ok := e.State().Find(c, id)
	if !ok {
		return fmt.Errorf("%s %s: %w", c, id, ErrNotFound)
	}
	d := invoice.FromRecord(rec)
	d.Kind = kindOf(c)
	return s.renderer.Render(ctx, d, s.profile(e), w)
}

// Format selects an export layout.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatDATEV Format = "datev"
)

// Export writes the user's invoices issued in p.
func (s *Service) Export(ctx context.Context, userID string, format Format, p report.Period, w io.Writer) error {
	e, err := s.session(ctx, userID)
	if err != nil {
		return err
	}
	var docs []invoice.Document
	for _, d := range invoice.Documents(e.State().Collection(record.Invoices)) {
		if p.Contains(d.IssueDate) {
			docs = append(docs, d)
		}
	}
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].IssueDate.Before(docs[j].IssueDate) })

	switch format {
	case FormatCSV:
		return csvio.ExportCSV(w, docs)
	case FormatDATEV:
		return csvio.ExportDATEV(w, docs, s.datev)
	default:
		return invalid(fmt.Sprintf("unknown export format %q", format))
	}
}

// ImportResult reports a CSV expense import.
type ImportResult struct {
	Imported int      `json:"imported"`
	Queued   int      `json:"queued"`
	Skipped  []string `json:"skipped"`
}

// ImportExpenses parses r and creates one expense per valid row.
func (s *Service) ImportExpenses(ctx context.Context, userID string, r io.Reader) (ImportResult, error) {
	res := ImportResult{Skipped: []string{}}
	rows, err := csvio.ParseCSV(r)
	if err != nil {
		return res, invalid(err.Error())
	}
	recs, rowErrs := csvio.ImportExpenses(rows)
	for _, re := range rowErrs {
		res.Skipped = append(res.Skipped, re.Error())
	}
	for _, rec := range recs {
		w, err := s.Create(ctx, userID, record.Expenses, rec)
		if err != nil {
			return res, err
		}
		res.Imported++
		if w.Queued {
			res.Queued++
		}
	}
	return res, nil
}

// Summary computes the financial report for p.
func (s *Service) Summary(ctx context.Context, userID string, p report.Period) (report.Summary, error) {
	e, err := s.session(ctx, userID)
	if err != nil {
		return report.Summary{}, err
	}
	st := e.State()
	docs := invoice.Documents(st.Collection(record.Invoices))
	for _, q := range invoice.Documents(st.Collection(record.Quotes)) {
		q.Kind = invoice.KindQuote
		docs = append(docs, q)
	}
	expenses := invoice.Expenses(st.Collection(record.Expenses))
	return report.Summarize(docs, expenses, p, s.now()), nil
}

// UploadReceipt stores a receipt image and links it to the expense.
func (s *Service) UploadReceipt(ctx context.Context, userID, expenseID, contentType string, body io.Reader) (string, error) {
	if s.receipts == nil {
		return "", fmt.Errorf("receipts: %w", ErrDisabled)
	}
	if _, err := s.Get(ctx, userID, record.Expenses, expenseID); err != nil {
		return "", err
	}
	url, err := s.receipts.Upload(ctx, userID, expenseID, contentType, body)
	if err != nil {
		return "", err
	}
	patch := record.Object{"receiptUrl": record.String(url)}
	if _, err := s.Update(ctx, userID, record.Expenses, expenseID, patch); err != nil {
		return "", err
	}
	return url, nil
}

// RunRecurring creates a draft invoice for every due template and advances
// the templates. Templates far behind produce one invoice per missed run.
func (s *Service) RunRecurring(ctx context.Context, userID string) ([]record.Object, error) {
	e, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	profile := s.profile(e)
	created := []record.Object{}

	for _, t := range invoice.Due(e.State().Collection(record.Templates), now) {
		for !t.NextRun.After(now) {
			existing := invoice.Documents(e.State().Collection(record.Invoices))
			number := invoice.NextNumber(existing, invoice.KindInvoice, t.NextRun.Year())

			d, next, err := invoice.Materialize(t, "", number)
			if err != nil {
				return created, err
			}
			d.UserID = userID
			d.CreatedAt = now
			if len(d.CompanySnapshot) == 0 {
				d.CompanySnapshot = profile.Snapshot()
			}

			res, err := e.Save(ctx, record.Invoices, d.ToRecord())
			if err != nil {
				return created, fmt.Errorf("recurring %s: %w", t.ID, err)
			}
			created = append(created, res.Record)
			t = next
		}

		patch := record.Object{"nextRun": record.String(t.NextRun.Format(invoice.DateLayout))}
		if _, err := e.Update(ctx, record.Templates, t.ID, patch); err != nil {
			return created, fmt.Errorf("advance template %s: %w", t.ID, engineErr(err))
		}
	}
	return created, nil
}
