package csvio

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/billbook/internal/invoice"
	"github.com/roach88/billbook/internal/record"
)

// headerAliases maps lower-cased CSV headers to expense fields.
var headerAliases = map[string]string{
	"title":        "title",
	"titel":        "title",
	"description":  "title",
	"beschreibung": "title",
	"amount":       "amount",
	"betrag":       "amount",
	"currency":     "currency",
	"währung":      "currency",
	"category":     "category",
	"kategorie":    "category",
	"date":         "date",
	"datum":        "date",
}

// RowError reports a CSV row that could not be imported. Line is 1-based
// and counts data rows only.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Line, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

// ImportExpenses converts parsed rows to expense records without ids.
// Rows without a title or with an unreadable amount or date are reported
// and skipped.
func ImportExpenses(rows []record.Object) ([]record.Object, []RowError) {
	out := []record.Object{}
	var errs []RowError
	for i, row := range rows {
		exp, err := expenseFromRow(row)
		if err != nil {
			errs = append(errs, RowError{Line: i + 1, Err: err})
			continue
		}
		rec := exp.ToRecord()
		delete(rec, record.IDKey)
		out = append(out, rec)
	}
	return out, errs
}

func expenseFromRow(row record.Object) (invoice.Expense, error) {
	fields := make(map[string]string, len(row))
	for k, v := range row {
		name, ok := headerAliases[strings.ToLower(strings.TrimSpace(k))]
		if !ok {
			continue
		}
		if s, ok := v.(record.String); ok && fields[name] == "" {
			fields[name] = strings.TrimSpace(string(s))
		}
	}

	if fields["title"] == "" {
		return invoice.Expense{}, fmt.Errorf("missing title")
	}
	amount, err := ParseAmount(fields["amount"])
	if err != nil {
		return invoice.Expense{}, err
	}
	exp := invoice.Expense{
		Title:    fields["title"],
		Amount:   amount,
		Currency: strings.ToUpper(fields["currency"]),
		Category: strings.ToLower(fields["category"]),
	}
	if exp.Currency == "" {
		exp.Currency = "EUR"
	}
	if exp.Category == "" {
		exp.Category = invoice.CategoryOther
	}
	if s := fields["date"]; s != "" {
		exp.Date, err = parseDate(s)
		if err != nil {
			return invoice.Expense{}, err
		}
	}
	return exp, nil
}

// ParseAmount reads 12.50, 12,50 and 1.234,50. A comma is always the
// decimal separator when present.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "€"))
	if s == "" {
		return decimal.Zero, fmt.Errorf("missing amount")
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return d, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "02.01.2006", "2.1.2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}
