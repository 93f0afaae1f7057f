package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/billbook/internal/auth"
	"github.com/roach88/billbook/internal/engine"
	"github.com/roach88/billbook/internal/invoice"
	"github.com/roach88/billbook/internal/record"
)

// Create validates rec, fills derived fields and saves it optimistically.
func (s *Service) Create(ctx context.Context, userID string, c record.Collection, rec record.Object) (engine.WriteResult, error) {
	e, err := s.session(ctx, userID)
	if err != nil {
		return engine.WriteResult{}, err
	}
	rec = rec.Clone()
	if rec == nil {
		rec = record.Object{}
	}

	switch c {
	case record.Invoices, record.Quotes:
		rec, err = s.prepareDocument(e, c, rec)
	case record.Expenses:
		rec, err = prepareExpense(rec)
	case record.Employees:
		rec, err = s.prepareEmployee(e, rec, true)
	case record.Messages:
		rec, err = s.prepareMessage(userID, rec)
	case record.Templates:
		rec, err = prepareTemplate(rec)
	case record.Profile:
		if len(e.State().Collection(record.Profile)) > 0 {
			err = invalid("profile already exists; update it instead")
		}
	}
	if err != nil {
		return engine.WriteResult{}, err
	}

	res, err := e.Save(ctx, c, rec)
	if err != nil {
		return res, fmt.Errorf("create %s: %w", c, err)
	}
	if res.Queued {
		s.logger.Info("saved offline", "user", userID, "collection", c, "id", res.Record.ID())
	}
	return res, nil
}

// Update validates patch and merges it into the record with id.
func (s *Service) Update(ctx context.Context, userID string, c record.Collection, id string, patch record.Object) (engine.WriteResult, error) {
	e, err := s.session(ctx, userID)
	if err != nil {
		return engine.WriteResult{}, err
	}
	current, ok := e.State().Find(c, id)
	if !ok {
		return engine.WriteResult{}, fmt.Errorf("%s %s: %w", c, id, ErrNotFound)
	}
	patch = patch.Clone()
	if patch == nil {
		patch = record.Object{}
	}
	delete(patch, record.IDKey)

	switch c {
	case record.Invoices, record.Quotes:
		patch, err = s.prepareDocumentPatch(e, c, current, patch)
	case record.Expenses:
		if patch.Has("amount") {
			if _, derr := strictDecimal(patch["amount"]); derr != nil {
				err = invalid("amount: " + derr.Error())
				break
			}
		}
		if patch.Has("category") {
			patch["category"] = record.String(strings.ToLower(strings.TrimSpace(patch.Str("category"))))
		}
	case record.Employees:
		patch, err = s.prepareEmployee(e, patch, false)
	case record.Templates:
		if patch.Has("interval") {
			if _, err = invoice.Interval(patch.Str("interval")).Advance(time.Time{}); err != nil {
				err = invalid(err.Error())
			}
		}
	}
	if err != nil {
		return engine.WriteResult{}, err
	}

	res, err := e.Update(ctx, c, id, patch)
	if err != nil {
		return res, fmt.Errorf("update %s: %w", c, engineErr(err))
	}
	return res, nil
}

// Delete removes the record with id.
func (s *Service) Delete(ctx context.Context, userID string, c record.Collection, id string) (engine.WriteResult, error) {
	e, err := s.session(ctx, userID)
	if err != nil {
		return engine.WriteResult{}, err
	}
	res, err := e.Delete(ctx, c, id)
	if err != nil {
		return res, fmt.Errorf("delete %s: %w", c, engineErr(err))
	}
	return res, nil
}

func kindOf(c record.Collection) invoice.Kind {
	if c == record.Quotes {
		return invoice.KindQuote
	}
	return invoice.KindInvoice
}

// prepareDocument turns user input into a complete invoice or quote:
// defaults, number, totals, company snapshot and industry validation.
func (s *Service) prepareDocument(e *engine.Engine, c record.Collection, rec record.Object) (record.Object, error) {
	now := s.now().UTC()
	profile := s.profile(e)

	if limit := profile.Plan.MonthlyDocumentLimit(); limit > 0 {
		if n := createdInMonth(e, now); n >= limit {
			return nil, fmt.Errorf("%w: %d documents per month on the %s plan", ErrPlanLimit, limit, profile.Plan)
		}
	}
	if err := checkItems(rec); err != nil {
		return nil, err
	}

	d := invoice.FromRecord(rec)
	d.Kind = kindOf(c)
	d.UserID = e.UserID()
	if d.Status == "" {
		d.Status = invoice.StatusDraft
	}
	if !invoice.ValidStatus(d.Kind, d.Status) {
		return nil, invalid(fmt.Sprintf("invalid status %q for %s", d.Status, d.Kind))
	}
	if strings.TrimSpace(d.Recipient.Name) == "" {
		return nil, invalid("recipient name is required")
	}
	if d.IssueDate.IsZero() {
		d.IssueDate = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	if d.DueDate.IsZero() {
		d.DueDate = d.IssueDate.Add(invoice.DefaultPaymentTerm)
	}
	if d.Number == "" {
		d.Number = invoice.NextNumber(invoice.Documents(e.State().Collection(c)), d.Kind, d.IssueDate.Year())
	}
	if d.TaxRate.IsZero() && !rec.Has("taxRate") {
		d.TaxRate = invoice.DefaultTaxRate
	}
	d.CreatedAt = now
	if len(d.CompanySnapshot) == 0 {
		d.CompanySnapshot = profile.Snapshot()
	}
	if err := s.validateIndustry(profile, d.IndustryData); err != nil {
		return nil, err
	}
	d.Recalculate()

	return rec.Merge(d.ToRecord()), nil
}

// prepareDocumentPatch recomputes totals when items or the tax rate change.
func (s *Service) prepareDocumentPatch(e *engine.Engine, c record.Collection, current, patch record.Object) (record.Object, error) {
	kind := kindOf(c)
	if patch.Has("status") && !invoice.ValidStatus(kind, invoice.Status(patch.Str("status"))) {
		return nil, invalid(fmt.Sprintf("invalid status %q for %s", patch.Str("status"), kind))
	}
	if err := checkItems(patch); err != nil {
		return nil, err
	}
	if patch.Has("industryData") {
		data, _ := patch["industryData"].(record.Object)
		if err := s.validateIndustry(s.profile(e), data); err != nil {
			return nil, err
		}
	}
	for _, k := range []string{"subtotal", "tax", "total", "companySnapshot", "userId", "kind", "createdAt"} {
		delete(patch, k)
	}
	if patch.Has("items") || patch.Has("taxRate") {
		d := invoice.FromRecord(current.Merge(patch))
		d.Recalculate()
		patch["subtotal"] = record.NewNumber(d.Subtotal)
		patch["tax"] = record.NewNumber(d.Tax)
		patch["total"] = record.NewNumber(d.Total)
	}
	return patch, nil
}

func (s *Service) validateIndustry(profile invoice.Profile, data record.Object) error {
	if s.industries == nil || profile.Industry == "" {
		return nil
	}
	if _, ok := s.industries.Industry(profile.Industry); !ok {
		return nil
	}
	if errs := s.industries.Validate(profile.Industry, data); len(errs) > 0 {
		return &InputError{Message: "invalid industry data", Fields: errs}
	}
	return nil
}

// checkItems rejects line items whose numbers cannot be read.
func checkItems(rec record.Object) error {
	v, ok := rec["items"]
	if !ok {
		return nil
	}
	items, ok := v.(record.Array)
	if !ok {
		return invalid("items must be a list")
	}
	for i, item := range items {
		obj, ok := item.(record.Object)
		if !ok {
			return invalid(fmt.Sprintf("item %d must be an object", i+1))
		}
		for _, key := range []string{"quantity", "unitPrice"} {
			if _, err := strictDecimal(obj[key]); err != nil {
				return invalid(fmt.Sprintf("item %d: %s: %v", i+1, key, err))
			}
		}
	}
	return nil
}

func createdInMonth(e *engine.Engine, now time.Time) int {
	n := 0
	for _, c := range []record.Collection{record.Invoices, record.Quotes} {
		for _, d := range invoice.Documents(e.State().Collection(c)) {
			if d.CreatedAt.Year() == now.Year() && d.CreatedAt.Month() == now.Month() {
				n++
			}
		}
	}
	return n
}

func prepareExpense(rec record.Object) (record.Object, error) {
	if strings.TrimSpace(rec.Str("title")) == "" {
		return nil, invalid("title is required")
	}
	if _, err := strictDecimal(rec["amount"]); err != nil {
		return nil, invalid("amount: " + err.Error())
	}
	exp := invoice.ExpenseFromRecord(rec)
	exp.Category = strings.ToLower(strings.TrimSpace(exp.Category))
	return rec.Merge(exp.ToRecord()), nil
}

// prepareEmployee checks the role and replaces a plain "pin" with its hash.
func (s *Service) prepareEmployee(e *engine.Engine, rec record.Object, create bool) (record.Object, error) {
	if create {
		if !s.profile(e).Plan.Employees() {
			return nil, fmt.Errorf("%w: employees need the business plan", ErrPlanLimit)
		}
		if strings.TrimSpace(rec.Str("name")) == "" {
			return nil, invalid("name is required")
		}
		if !rec.Has("role") {
			rec["role"] = record.String(string(invoice.RoleEmployee))
		}
		if !rec.Has("status") {
			rec["status"] = record.String(string(invoice.EmployeeActive))
		}
	}
	if rec.Has("role") && !invoice.ValidRole(invoice.Role(rec.Str("role"))) {
		return nil, invalid(fmt.Sprintf("invalid role %q", rec.Str("role")))
	}
	if rec.Has("pin") {
		hash, err := auth.HashPIN(rec.Str("pin"))
		if err != nil {
			return nil, invalid(err.Error())
		}
		delete(rec, "pin")
		rec["pinHash"] = record.String(hash)
	}
	return rec, nil
}

func (s *Service) prepareMessage(userID string, rec record.Object) (record.Object, error) {
	if strings.TrimSpace(rec.Str("content")) == "" {
		return nil, invalid("content is required")
	}
	if rec.Str("senderId") == "" {
		rec["senderId"] = record.String(userID)
	}
	switch invoice.MessageCategory(rec.Str("category")) {
	case "":
		rec["category"] = record.String(string(invoice.MessageInternal))
	case invoice.MessageInternal, invoice.MessageCustomer:
	default:
		return nil, invalid(fmt.Sprintf("invalid message category %q", rec.Str("category")))
	}
	rec["read"] = record.Bool(false)
	rec["createdAt"] = record.String(s.now().UTC().Format(time.RFC3339))
	return rec, nil
}

func prepareTemplate(rec record.Object) (record.Object, error) {
	t := invoice.TemplateFromRecord(rec)
	if _, err := t.Interval.Advance(time.Time{}); err != nil {
		return nil, invalid(err.Error())
	}
	if t.NextRun.IsZero() {
		return nil, invalid("nextRun is required")
	}
	if err := checkItems(object(rec, "document")); err != nil {
		return nil, err
	}
	return rec, nil
}

func object(rec record.Object, key string) record.Object {
	obj, _ := rec[key].(record.Object)
	return obj
}
