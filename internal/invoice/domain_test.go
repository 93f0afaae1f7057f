package invoice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/billbook/internal/record"
)

func TestCategories_AddRemove(t *testing.T) {
	c := NewCategories("Tools", "tools", "travel")

	assert.Equal(t, []string{"tools"}, c.Custom(), "duplicates and defaults are skipped")

	require.NoError(t, c.Add("  Marketing "))
	assert.True(t, c.Has("marketing"))
	assert.ErrorIs(t, c.Add("MARKETING"), ErrCategoryExists)
	assert.ErrorIs(t, c.Add(" "), ErrCategoryEmpty)

	assert.ErrorIs(t, c.Remove("Office"), ErrCategoryProtected)
	assert.True(t, c.Has("office"))

	require.NoError(t, c.Remove("marketing"))
	assert.False(t, c.Has("marketing"))
	require.NoError(t, c.Remove("unknown"))

	all := c.All()
	assert.Equal(t, DefaultCategories, all[:len(DefaultCategories)])
	assert.Equal(t, "tools", all[len(all)-1])
}

func TestExpenseFromRecord(t *testing.T) {
	e := ExpenseFromRecord(record.Object{
		"id":     record.String("e1"),
		"title":  record.String("Fuel"),
		"amount": record.String("45.90"),
		"date":   record.String("2026-02-03"),
	})

	assert.Equal(t, "Fuel", e.Title)
	assert.Equal(t, "45.9", e.Amount.String())
	assert.Equal(t, "EUR", e.Currency)
	assert.Equal(t, CategoryOther, e.Category)
	assert.Equal(t, time.February, e.Date.Month())

	back := ExpenseFromRecord(e.ToRecord())
	assert.Equal(t, e, back)
}

func TestEmployee(t *testing.T) {
	e := EmployeeFromRecord(record.Object{
		"id":    record.String("emp-1"),
		"name":  record.String("Jo"),
		"role":  record.String("supervisor"),
		"sites": record.Array{record.String("north"), record.Int(3)},
	})

	assert.Equal(t, RoleEmployee, e.Role, "unknown role falls back")
	assert.Equal(t, EmployeeActive, e.Status)
	assert.Equal(t, []string{"north"}, e.Sites)
	assert.True(t, e.AssignedTo("north"))
	assert.False(t, e.AssignedTo("south"))
	assert.True(t, RoleAdmin.CanManage())
	assert.False(t, RoleManager.CanManage())

	assert.Equal(t, e, EmployeeFromRecord(e.ToRecord()))
}

func TestMessages_VisibilityAndUnread(t *testing.T) {
	rows := []record.Object{
		{"id": record.String("1"), "senderId": record.String("boss"), "content": record.String("all hands")},
		{"id": record.String("2"), "senderId": record.String("boss"), "receiverId": record.String("jo")},
		{"id": record.String("3"), "senderId": record.String("boss"), "receiverId": record.String("kim")},
		{"id": record.String("4"), "senderId": record.String("boss"), "receiverId": record.String("jo"), "read": record.Bool(true)},
		{"id": record.String("5"), "senderId": record.String("jo")},
	}

	broadcast := MessageFromRecord(rows[0])
	assert.True(t, broadcast.Broadcast())
	assert.True(t, broadcast.VisibleTo("anyone"))
	assert.Equal(t, MessageInternal, broadcast.Category)

	private := MessageFromRecord(rows[2])
	assert.False(t, private.VisibleTo("jo"))
	assert.True(t, private.VisibleTo("kim"))
	assert.True(t, private.VisibleTo("boss"))

	assert.Equal(t, 2, Unread(rows, "jo"))
}

func TestProfile(t *testing.T) {
	p := ProfileOf(nil)
	assert.Equal(t, PlanFree, p.Plan)
	assert.Equal(t, 5, p.Plan.MonthlyDocumentLimit())

	p = ProfileOf([]record.Object{{
		"companyName": record.String("Holz & Co"),
		"iban":        record.String("DE89 3704 0044 0532 0130 00"),
		"plan":        record.String("business"),
	}})
	assert.Equal(t, "Holz & Co", p.AccountHolder, "account holder defaults to company name")
	assert.True(t, p.Plan.Employees())
	assert.Zero(t, p.Plan.MonthlyDocumentLimit())
}

func TestSenderFor_PrefersSnapshot(t *testing.T) {
	live := Profile{CompanyName: "New Name", IBAN: "DE02", Plan: PlanPro, AccentColor: "#123456"}
	old := Profile{CompanyName: "Old Name", IBAN: "DE01"}

	d := Document{CompanySnapshot: old.Snapshot()}
	sender := SenderFor(d, live)
	assert.Equal(t, "Old Name", sender.CompanyName)
	assert.Equal(t, "DE01", sender.IBAN)
	assert.Equal(t, "#123456", sender.AccentColor)

	assert.Equal(t, live, SenderFor(Document{}, live))
}

func TestDueAndMaterialize(t *testing.T) {
	tmpl := Template{
		ID:       "t1",
		Name:     "Wartung",
		Interval: Monthly,
		NextRun:  day("2026-01-31"),
		Active:   true,
		Document: Document{
			Recipient: Recipient{Name: "Kunde"},
			Items:     []LineItem{{Description: "Wartung", Quantity: dec("1"), UnitPrice: dec("100")}},
			TaxRate:   dec("19"),
			Currency:  "EUR",
		},
	}
	paused := tmpl
	paused.ID = "t2"
	paused.Active = false
	later := tmpl
	later.ID = "t3"
	later.NextRun = day("2026-06-01")

	rows := []record.Object{tmpl.ToRecord(), paused.ToRecord(), later.ToRecord()}
	due := Due(rows, day("2026-02-01"))
	require.Len(t, due, 1)
	assert.Equal(t, "t1", due[0].ID)

	doc, advanced, err := Materialize(due[0], "inv-9", "RE-2026-009")
	require.NoError(t, err)

	assert.Equal(t, "inv-9", doc.ID)
	assert.Equal(t, StatusDraft, doc.Status)
	assert.Equal(t, day("2026-01-31"), doc.IssueDate)
	assert.Equal(t, day("2026-02-14"), doc.DueDate)
	assert.Equal(t, "119", doc.Total.String())
	assert.Equal(t, day("2026-03-03"), advanced.NextRun, "AddDate normalizes Feb 31")
}

func TestMaterialize_UnknownInterval(t *testing.T) {
	_, _, err := Materialize(Template{ID: "t", Interval: "daily"}, "x", "n")
	assert.Error(t, err)
}

func TestNextNumber(t *testing.T) {
	docs := []Document{
		{Kind: KindInvoice, Number: "RE-2026-001"},
		{Kind: KindInvoice, Number: "RE-2026-014"},
		{Kind: KindInvoice, Number: "RE-2025-099"},
		{Kind: KindInvoice, Number: "custom"},
		{Kind: KindQuote, Number: "AN-2026-003"},
	}

	assert.Equal(t, "RE-2026-015", NextNumber(docs, KindInvoice, 2026))
	assert.Equal(t, "AN-2026-004", NextNumber(docs, KindQuote, 2026))
	assert.Equal(t, "RE-2027-001", NextNumber(docs, KindInvoice, 2027))
}
