// Package report computes financial summaries over invoices and expenses.
package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/billbook/internal/invoice"
)

// Period is a half-open date range [From, To). A zero bound is open.
type Period struct {
	From time.Time `json:"from,omitzero"`
	To   time.Time `json:"to,omitzero"`
}

// Year returns the calendar year y in UTC.
func Year(y int) Period {
	from := time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
	return Period{From: from, To: from.AddDate(1, 0, 0)}
}

// Month returns one calendar month in UTC.
func Month(y int, m time.Month) Period {
	from := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	return Period{From: from, To: from.AddDate(0, 1, 0)}
}

// Contains reports whether t falls in p. Undated entries only fall in an
// unbounded period.
func (p Period) Contains(t time.Time) bool {
	if t.IsZero() {
		return p.From.IsZero() && p.To.IsZero()
	}
	if !p.From.IsZero() && t.Before(p.From) {
		return false
	}
	if !p.To.IsZero() && !t.Before(p.To) {
		return false
	}
	return true
}

// CategoryTotal is the expense sum of one category.
type CategoryTotal struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// MonthTotal is revenue and expenses for one month, keyed YYYY-MM.
type MonthTotal struct {
	Month    string          `json:"month"`
	Revenue  decimal.Decimal `json:"revenue"`
	Expenses decimal.Decimal `json:"expenses"`
}

// Summary is the financial overview for a period.
type Summary struct {
	Period      Period          `json:"period"`
	Revenue     decimal.Decimal `json:"revenue"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Overdue     decimal.Decimal `json:"overdue"`
	Expenses    decimal.Decimal `json:"expenses"`
	Profit      decimal.Decimal `json:"profit"`

	Invoices      int `json:"invoices"`
	PaidInvoices  int `json:"paidInvoices"`
	OverdueCount  int `json:"overdueInvoices"`
	OpenQuotes    int `json:"openQuotes"`
	AcceptedQuote int `json:"acceptedQuotes"`

	ExpensesByCategory []CategoryTotal `json:"expensesByCategory"`
	Monthly            []MonthTotal    `json:"monthly"`
}

// Summarize aggregates docs and expenses dated inside p. Revenue counts
// paid and partially paid invoices; now decides which open invoices are
// overdue.
func Summarize(docs []invoice.Document, expenses []invoice.Expense, p Period, now time.Time) Summary {
	s := Summary{
		Period:      p,
		Revenue:     decimal.Zero,
		Outstanding: decimal.Zero,
		Overdue:     decimal.Zero,
		Expenses:    decimal.Zero,
	}
	months := map[string]*MonthTotal{}
	month := func(t time.Time) *MonthTotal {
		if t.IsZero() {
			return nil
		}
		key := t.Format("2006-01")
		m, ok := months[key]
		if !ok {
			m = &MonthTotal{Month: key, Revenue: decimal.Zero, Expenses: decimal.Zero}
			months[key] = m
		}
		return m
	}

	for _, d := range docs {
		date := documentDate(d)
		if !p.Contains(date) {
			continue
		}
		if d.Kind == invoice.KindQuote {
			switch d.Status {
			case invoice.StatusAccepted:
				s.AcceptedQuote++
			case invoice.StatusRejected:
			default:
				s.OpenQuotes++
			}
			continue
		}

		s.Invoices++
		switch d.Status {
		case invoice.StatusPaid, invoice.StatusPartial:
			s.Revenue = s.Revenue.Add(d.Total)
			if m := month(date); m != nil {
				m.Revenue = m.Revenue.Add(d.Total)
			}
			if d.Status == invoice.StatusPaid {
				s.PaidInvoices++
			}
		}
		if d.Outstanding() {
			s.Outstanding = s.Outstanding.Add(d.Total)
		}
		if d.Status == invoice.StatusOverdue || d.IsOverdue(now) {
			s.Overdue = s.Overdue.Add(d.Total)
			s.OverdueCount++
		}
	}

	byCategory := map[string]decimal.Decimal{}
	for _, e := range expenses {
		if !p.Contains(e.Date) {
			continue
		}
		s.Expenses = s.Expenses.Add(e.Amount)
		byCategory[e.Category] = byCategory[e.Category].Add(e.Amount)
		if m := month(e.Date); m != nil {
			m.Expenses = m.Expenses.Add(e.Amount)
		}
	}

	s.Profit = s.Revenue.Sub(s.Expenses)

	s.ExpensesByCategory = make([]CategoryTotal, 0, len(byCategory))
	for c, amt := range byCategory {
		s.ExpensesByCategory = append(s.ExpensesByCategory, CategoryTotal{Category: c, Amount: amt})
	}
	sort.Slice(s.ExpensesByCategory, func(i, j int) bool {
		a, b := s.ExpensesByCategory[i], s.ExpensesByCategory[j]
		if c := a.Amount.Cmp(b.Amount); c != 0 {
			return c > 0
		}
		return a.Category < b.Category
	})

	s.Monthly = make([]MonthTotal, 0, len(months))
	for _, m := range months {
		s.Monthly = append(s.Monthly, *m)
	}
	sort.Slice(s.Monthly, func(i, j int) bool { return s.Monthly[i].Month < s.Monthly[j].Month })
	return s
}

func documentDate(d invoice.Document) time.Time {
	if !d.IssueDate.IsZero() {
		return d.IssueDate
	}
	return d.CreatedAt
}
