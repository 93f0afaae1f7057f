package invoice

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/billbook/internal/record"
)

// Expense is one outgoing payment.
type Expense struct {
	ID         string
	Title      string
	Amount     decimal.Decimal
	Currency   string
	Category   string
	ReceiptURL string
	Date       time.Time
}

// ExpenseFromRecord reads an expense in internal field names.
func ExpenseFromRecord(rec record.Object) Expense {
	e := Expense{
		ID:         rec.ID(),
		Title:      str(rec, "title"),
		Amount:     rec.Decimal("amount"),
		Currency:   str(rec, "currency"),
		Category:   str(rec, "category"),
		ReceiptURL: str(rec, "receiptUrl"),
		Date:       date(rec, "date"),
	}
	if e.Currency == "" {
		e.Currency = "EUR"
	}
	if e.Category == "" {
		e.Category = CategoryOther
	}
	return e
}

// ToRecord writes the expense in internal field names.
func (e Expense) ToRecord() record.Object {
	rec := record.Object{}
	putString(rec, record.IDKey, e.ID)
	putString(rec, "title", e.Title)
	putDecimal(rec, "amount", e.Amount)
	putString(rec, "currency", e.Currency)
	putString(rec, "category", e.Category)
	putString(rec, "receiptUrl", e.ReceiptURL)
	putDate(rec, "date", e.Date)
	return rec
}

// Expenses converts a collection.
func Expenses(rows []record.Object) []Expense {
	out := make([]Expense, len(rows))
	for i, r := range rows {
		out[i] = ExpenseFromRecord(r)
	}
	return out
}

// CategoryOther is where uncategorized expenses land.
const CategoryOther = "other"

// DefaultCategories cannot be removed from a Categories list.
var DefaultCategories = []string{"material", "travel", "office", "software", "vehicle", "insurance", CategoryOther}

var (
	ErrCategoryExists    = errors.New("category already exists")
	ErrCategoryProtected = errors.New("default categories cannot be removed")
	ErrCategoryEmpty     = errors.New("category name is empty")
)

// Categories is the user's expense category list: the defaults followed by
// custom entries in the order they were added.
type Categories struct {
	custom []string
}

// NewCategories builds a list from previously saved custom categories.
// Duplicates and defaults are skipped.
func NewCategories(custom ...string) *Categories {
	c := &Categories{}
	for _, name := range custom {
		_ = c.Add(name)
	}
	return c
}

// All returns defaults and custom categories.
func (c *Categories) All() []string {
	return append(slices.Clone(DefaultCategories), c.custom...)
}

// Custom returns only user-added categories.
func (c *Categories) Custom() []string {
	return slices.Clone(c.custom)
}

// Has reports whether name is in the list, ignoring case.
func (c *Categories) Has(name string) bool {
	name = normalizeCategory(name)
	for _, existing := range c.All() {
		if existing == name {
			return true
		}
	}
	return false
}

// Add appends a custom category.
func (c *Categories) Add(name string) error {
	name = normalizeCategory(name)
	if name == "" {
		return ErrCategoryEmpty
	}
	if c.Has(name) {
		return fmt.Errorf("add %q: %w", name, ErrCategoryExists)
	}
	c.custom = append(c.custom, name)
	return nil
}

// Remove deletes a custom category. Defaults are protected.
func (c *Categories) Remove(name string) error {
	name = normalizeCategory(name)
	if slices.Contains(DefaultCategories, name) {
		return fmt.Errorf("remove %q: %w", name, ErrCategoryProtected)
	}
	i := slices.Index(c.custom, name)
	if i < 0 {
		return nil
	}
	c.custom = slices.Delete(c.custom, i, i+1)
	return nil
}

func normalizeCategory(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
