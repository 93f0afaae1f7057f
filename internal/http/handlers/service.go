package handlers

import (
	"context"
	"io"

	"github.com/roach88/billbook/internal/billing"
	"github.com/roach88/billbook/internal/engine"
	"github.com/roach88/billbook/internal/record"
	"github.com/roach88/billbook/internal/report"
)

// Billing is the subset of billing.Service the API needs.
type Billing interface {
	List(ctx context.Context, userID string, c record.Collection) ([]record.Object, error)
	Get(ctx context.Context, userID string, c record.Collection, id string) (record.Object, error)
	Create(ctx context.Context, userID string, c record.Collection, rec record.Object) (engine.WriteResult, error)
	Update(ctx context.Context, userID string, c record.Collection, id string, patch record.Object) (engine.WriteResult, error)
	Delete(ctx context.Context, userID string, c record.Collection, id string) (engine.WriteResult, error)
	Sync(ctx context.Context, userID string) (engine.LoadReport, error)
	Outbox(ctx context.Context, userID string) ([]record.Mutation, error)
	SignOut(ctx context.Context, userID string) error
	RenderPDF(ctx context.Context, userID string, c record.Collection, id string, w io.Writer) error
	Export(ctx context.Context, userID string, format billing.Format, p report.Period, w io.Writer) error
	ImportExpenses(ctx context.Context, userID string, r io.Reader) (billing.ImportResult, error)
	Summary(ctx context.Context, userID string, p report.Period) (report.Summary, error)
	UploadReceipt(ctx context.Context, userID, expenseID, contentType string, body io.Reader) (string, error)
	RunRecurring(ctx context.Context, userID string) ([]record.Object, error)
}
