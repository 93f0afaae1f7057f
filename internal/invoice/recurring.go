package invoice

import (
	"fmt"
	"time"

	"github.com/roach88/billbook/internal/record"
)

// Interval is how often a recurring template produces a document.
type Interval string

const (
	Weekly    Interval = "weekly"
	Monthly   Interval = "monthly"
	Quarterly Interval = "quarterly"
	Yearly    Interval = "yearly"
)

// Advance returns t moved forward by one interval.
func (i Interval) Advance(t time.Time) (time.Time, error) {
	switch i {
	case Weekly:
		return t.AddDate(0, 0, 7), nil
	case Monthly:
		return t.AddDate(0, 1, 0), nil
	case Quarterly:
		return t.AddDate(0, 3, 0), nil
	case Yearly:
		return t.AddDate(1, 0, 0), nil
	}
	return t, fmt.Errorf("unknown interval %q", string(i))
}

// DefaultPaymentTerm is the due-date offset for generated invoices.
const DefaultPaymentTerm = 14 * 24 * time.Hour

// Template is a recurring billing template.
type Template struct {
	ID       string
	Name     string
	Interval Interval
	NextRun  time.Time
	Active   bool
	Document Document
}

// TemplateFromRecord reads a template in internal field names. The document
// body is stored under "document".
func TemplateFromRecord(rec record.Object) Template {
	t := Template{
		ID:       rec.ID(),
		Name:     str(rec, "name"),
		Interval: Interval(str(rec, "interval")),
		NextRun:  date(rec, "nextRun"),
		Active:   true,
		Document: FromRecord(object(rec, "document")),
	}
	if v, ok := rec["active"].(record.Bool); ok {
		t.Active = bool(v)
	}
	return t
}

// ToRecord writes the template in internal field names.
func (t Template) ToRecord() record.Object {
	rec := record.Object{}
	putString(rec, record.IDKey, t.ID)
	putString(rec, "name", t.Name)
	putString(rec, "interval", string(t.Interval))
	putDate(rec, "nextRun", t.NextRun)
	rec["active"] = record.Bool(t.Active)
	body := t.Document.ToRecord()
	delete(body, record.IDKey)
	rec["document"] = body
	return rec
}

// Due returns the active templates whose next run is on or before now.
func Due(rows []record.Object, now time.Time) []Template {
	var due []Template
	for _, r := range rows {
		t := TemplateFromRecord(r)
		if !t.Active || t.NextRun.IsZero() {
			continue
		}
		if !t.NextRun.After(now) {
			due = append(due, t)
		}
	}
	return due
}

// Materialize produces a draft invoice from t dated at its next run, and
// returns t with NextRun advanced by one interval.
func Materialize(t Template, id, number string) (Document, Template, error) {
	next, err := t.Interval.Advance(t.NextRun)
	if err != nil {
		return Document{}, t, fmt.Errorf("materialize %s: %w", t.ID, err)
	}

	d := t.Document
	d.ID = id
	d.Kind = KindInvoice
	d.Number = number
	d.Status = StatusDraft
	d.IssueDate = t.NextRun
	d.DueDate = t.NextRun.Add(DefaultPaymentTerm)
	d.Items = append([]LineItem(nil), t.Document.Items...)
	d.IndustryData = t.Document.IndustryData.Clone()
	d.CompanySnapshot = t.Document.CompanySnapshot.Clone()
	d.Recalculate()

	t.NextRun = next
	return d, t, nil
}
