package invoice

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/billbook/internal/record"
)

// Kind distinguishes invoices from quotes. Both share one document shape.
type Kind string

const (
	KindInvoice Kind = "invoice"
	KindQuote   Kind = "quote"
)

// Status is the lifecycle state of a document.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusSent     Status = "sent"
	StatusViewed   Status = "viewed"
	StatusPaid     Status = "paid"
	StatusPartial  Status = "partial"
	StatusOverdue  Status = "overdue"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

var invoiceStatuses = []Status{StatusDraft, StatusSent, StatusViewed, StatusPaid, StatusPartial, StatusOverdue}

// Statuses lists the statuses allowed for kind.
func Statuses(kind Kind) []Status {
	if kind == KindQuote {
		return append(append([]Status(nil), invoiceStatuses...), StatusAccepted, StatusRejected)
	}
	return append([]Status(nil), invoiceStatuses...)
}

// ValidStatus reports whether status is allowed for kind.
func ValidStatus(kind Kind, status Status) bool {
	for _, s := range Statuses(kind) {
		if s == status {
			return true
		}
	}
	return false
}

// DefaultTaxRate is the German standard VAT rate in percent.
var DefaultTaxRate = decimal.NewFromInt(19)

// LineItem is one billed position.
type LineItem struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// Amount is quantity times unit price.
func (li LineItem) Amount() decimal.Decimal {
	return li.Quantity.Mul(li.UnitPrice)
}

// Recipient is the billed party.
type Recipient struct {
	Name        string
	Address     string
	Street      string
	HouseNumber string
	Zip         string
	City        string
	Email       string
}

// Document is an invoice or a quote.
type Document struct {
	ID        string
	UserID    string
	Kind      Kind
	Number    string
	Recipient Recipient
	Items     []LineItem

	Subtotal decimal.Decimal
	// TaxRate is a percentage, 19 means 19 %.
	TaxRate decimal.Decimal
	Tax     decimal.Decimal
	Total   decimal.Decimal

	Currency  string
	Status    Status
	IssueDate time.Time
	DueDate   time.Time
	Notes     string
	CreatedAt time.Time

	IndustryData    record.Object
	CompanySnapshot record.Object
}

// Totals computes subtotal, tax and total for items at taxRate percent.
// Tax is rounded half away from zero to cents.
func Totals(items []LineItem, taxRate decimal.Decimal) (subtotal, tax, total decimal.Decimal) {
	subtotal = decimal.Zero
	for _, li := range items {
		subtotal = subtotal.Add(li.Amount())
	}
	subtotal = subtotal.Round(2)
	tax = subtotal.Mul(taxRate).Div(decimal.NewFromInt(100)).Round(2)
	total = subtotal.Add(tax)
	return subtotal, tax, total
}

// Recalculate refreshes Subtotal, Tax and Total from Items and TaxRate.
func (d *Document) Recalculate() {
	d.Subtotal, d.Tax, d.Total = Totals(d.Items, d.TaxRate)
}

// Outstanding reports whether money is still expected for the document.
func (d Document) Outstanding() bool {
	if d.Kind == KindQuote {
		return false
	}
	switch d.Status {
	case StatusSent, StatusViewed, StatusOverdue, StatusPartial:
		return true
	}
	return false
}

// IsOverdue reports whether an unpaid invoice is past its due date at now.
func (d Document) IsOverdue(now time.Time) bool {
	if d.Kind == KindQuote || d.DueDate.IsZero() {
		return false
	}
	if d.Status != StatusSent && d.Status != StatusViewed && d.Status != StatusPartial {
		return false
	}
	return now.After(d.DueDate.AddDate(0, 0, 1))
}

// FromRecord reads a document in internal field names.
func FromRecord(rec record.Object) Document {
	d := Document{
		ID:     rec.ID(),
		UserID: str(rec, "userId"),
		Kind:   Kind(str(rec, "kind")),
		Number: str(rec, "number"),
		Recipient: Recipient{
			Name:        str(rec, "recipientName"),
			Address:     str(rec, "recipientAddress"),
			Street:      str(rec, "recipientStreet"),
			HouseNumber: str(rec, "recipientHouseNumber"),
			Zip:         str(rec, "recipientZip"),
			City:        str(rec, "recipientCity"),
			Email:       str(rec, "recipientEmail"),
		},
		Subtotal:        rec.Decimal("subtotal"),
		TaxRate:         rec.Decimal("taxRate"),
		Tax:             rec.Decimal("tax"),
		Total:           rec.Decimal("total"),
		Currency:        str(rec, "currency"),
		Status:          Status(str(rec, "status")),
		IssueDate:       date(rec, "issueDate"),
		DueDate:         date(rec, "dueDate"),
		Notes:           str(rec, "notes"),
		CreatedAt:       date(rec, "createdAt"),
		IndustryData:    object(rec, "industryData"),
		CompanySnapshot: object(rec, "companySnapshot"),
	}
	if d.Kind == "" {
		d.Kind = KindInvoice
	}
	if d.Currency == "" {
		d.Currency = "EUR"
	}

	items, _ := rec["items"].(record.Array)
	for _, v := range items {
		obj, ok := v.(record.Object)
		if !ok {
			continue
		}
		d.Items = append(d.Items, LineItem{
			Description: obj.Str("description"),
			Quantity:    obj.Decimal("quantity"),
			UnitPrice:   obj.Decimal("unitPrice"),
		})
	}
	return d
}

// ToRecord writes the document in internal field names.
func (d Document) ToRecord() record.Object {
	rec := record.Object{}
	putString(rec, record.IDKey, d.ID)
	putString(rec, "userId", d.UserID)
	putString(rec, "kind", string(d.Kind))
	putString(rec, "number", d.Number)
	putString(rec, "recipientName", d.Recipient.Name)
	putString(rec, "recipientAddress", d.Recipient.Address)
	putString(rec, "recipientStreet", d.Recipient.Street)
	putString(rec, "recipientHouseNumber", d.Recipient.HouseNumber)
	putString(rec, "recipientZip", d.Recipient.Zip)
	putString(rec, "recipientCity", d.Recipient.City)
	putString(rec, "recipientEmail", d.Recipient.Email)
	putDecimal(rec, "subtotal", d.Subtotal)
	putDecimal(rec, "taxRate", d.TaxRate)
	putDecimal(rec, "tax", d.Tax)
	putDecimal(rec, "total", d.Total)
	putString(rec, "currency", d.Currency)
	putString(rec, "status", string(d.Status))
	putDate(rec, "issueDate", d.IssueDate)
	putDate(rec, "dueDate", d.DueDate)
	putString(rec, "notes", d.Notes)
	if !d.CreatedAt.IsZero() {
		rec["createdAt"] = record.String(d.CreatedAt.UTC().Format(time.RFC3339))
	}
	if d.IndustryData != nil {
		rec["industryData"] = d.IndustryData.Clone()
	}
	if d.CompanySnapshot != nil {
		rec["companySnapshot"] = d.CompanySnapshot.Clone()
	}

	items := make(record.Array, len(d.Items))
	for i, li := range d.Items {
		items[i] = record.Object{
			"description": record.String(li.Description),
			"quantity":    record.NewNumber(li.Quantity),
			"unitPrice":   record.NewNumber(li.UnitPrice),
		}
	}
	rec["items"] = items
	return rec
}

// Documents converts a collection.
func Documents(rows []record.Object) []Document {
	out := make([]Document, len(rows))
	for i, r := range rows {
		out[i] = FromRecord(r)
	}
	return out
}
