// Package fieldmap translates rows between the backend's snake_case column
// names and the camelCase names the rest of the application works with.
//
// Both directions are total: a missing source field is looked up under its
// already-translated name before giving up, so rows that are already in
// internal shape (outbox payloads, cached snapshots) pass through unharmed.
// Keys without a mapping are carried over unchanged.
package fieldmap

import "github.com/roach88/billbook/internal/record"

// Pair links one remote column to one internal field.
// Elem, when set, maps each object inside an array-valued field.
type Pair struct {
	Remote string
	Local  string
	Elem   *Mapping
}

// AddressRule derives street and house number from a combined address column.
// The combined string is always kept next to the parts.
type AddressRule struct {
	Remote   string
	Combined string
	Street   string
	Number   string
}

// Mapping describes how one collection's rows are translated.
type Mapping struct {
	Pairs   []Pair
	Address *AddressRule
}

var lineItem = &Mapping{
	Pairs: []Pair{
		{Remote: "description", Local: "description"},
		{Remote: "quantity", Local: "quantity"},
		{Remote: "unit_price", Local: "unitPrice"},
	},
}

var documentMapping = Mapping{
	Pairs: []Pair{
		{Remote: "id", Local: "id"},
		{Remote: "user_id", Local: "userId"},
		{Remote: "document_type", Local: "kind"},
		{Remote: "invoice_number", Local: "number"},
		{Remote: "customer_name", Local: "recipientName"},
		{Remote: "customer_email", Local: "recipientEmail"},
		{Remote: "customer_zip", Local: "recipientZip"},
		{Remote: "customer_city", Local: "recipientCity"},
		{Remote: "items", Local: "items", Elem: lineItem},
		{Remote: "subtotal", Local: "subtotal"},
		{Remote: "tax_rate", Local: "taxRate"},
		{Remote: "tax_amount", Local: "tax"},
		{Remote: "total", Local: "total"},
		{Remote: "currency", Local: "currency"},
		{Remote: "status", Local: "status"},
		{Remote: "issue_date", Local: "issueDate"},
		{Remote: "due_date", Local: "dueDate"},
		{Remote: "industry_data", Local: "industryData"},
		{Remote: "company_snapshot", Local: "companySnapshot"},
		{Remote: "notes", Local: "notes"},
		{Remote: "created_at", Local: "createdAt"},
	},
	Address: &AddressRule{
		Remote:   "customer_address",
		Combined: "recipientAddress",
		Street:   "recipientStreet",
		Number:   "recipientHouseNumber",
	},
}

var mappings = map[record.Collection]Mapping{
	record.Invoices: documentMapping,
	record.Quotes:   documentMapping,
	record.Templates: {
		Pairs: []Pair{
			{Remote: "id", Local: "id"},
			{Remote: "user_id", Local: "userId"},
			{Remote: "name", Local: "name"},
			{Remote: "interval", Local: "interval"},
			{Remote: "next_run", Local: "nextRun"},
			{Remote: "active", Local: "active"},
			{Remote: "template", Local: "document"},
			{Remote: "created_at", Local: "createdAt"},
		},
	},
	record.Expenses: {
		Pairs: []Pair{
			{Remote: "id", Local: "id"},
			{Remote: "user_id", Local: "userId"},
			{Remote: "title", Local: "title"},
			{Remote: "amount", Local: "amount"},
			{Remote: "currency", Local: "currency"},
			{Remote: "category", Local: "category"},
			{Remote: "receipt_url", Local: "receiptUrl"},
			{Remote: "expense_date", Local: "date"},
			{Remote: "created_at", Local: "createdAt"},
		},
	},
	record.Profile: {
		Pairs: []Pair{
			{Remote: "id", Local: "id"},
			{Remote: "user_id", Local: "userId"},
			{Remote: "company_name", Local: "companyName"},
			{Remote: "owner_name", Local: "ownerName"},
			{Remote: "email", Local: "email"},
			{Remote: "phone", Local: "phone"},
			{Remote: "zip", Local: "zip"},
			{Remote: "city", Local: "city"},
			{Remote: "tax_id", Local: "taxId"},
			{Remote: "iban", Local: "iban"},
			{Remote: "bic", Local: "bic"},
			{Remote: "bank_name", Local: "bankName"},
			{Remote: "account_holder", Local: "accountHolder"},
			{Remote: "accent_color", Local: "accentColor"},
			{Remote: "logo_url", Local: "logoUrl"},
			{Remote: "industry", Local: "industry"},
			{Remote: "plan", Local: "plan"},
		},
		Address: &AddressRule{
			Remote:   "company_address",
			Combined: "address",
			Street:   "street",
			Number:   "houseNumber",
		},
	},
	record.Employees: {
		Pairs: []Pair{
			{Remote: "id", Local: "id"},
			{Remote: "user_id", Local: "userId"},
			{Remote: "name", Local: "name"},
			{Remote: "role", Local: "role"},
			{Remote: "site_ids", Local: "sites"},
			{Remote: "status", Local: "status"},
			{Remote: "pin_hash", Local: "pinHash"},
			{Remote: "created_at", Local: "createdAt"},
		},
	},
	record.Messages: {
		Pairs: []Pair{
			{Remote: "id", Local: "id"},
			{Remote: "user_id", Local: "userId"},
			{Remote: "sender_id", Local: "senderId"},
			{Remote: "receiver_id", Local: "receiverId"},
			{Remote: "category", Local: "category"},
			{Remote: "content", Local: "content"},
			{Remote: "is_read", Local: "read"},
			{Remote: "created_at", Local: "createdAt"},
		},
	},
	record.DailyReports: {
		Pairs: []Pair{
			{Remote: "id", Local: "id"},
			{Remote: "user_id", Local: "userId"},
			{Remote: "employee_id", Local: "employeeId"},
			{Remote: "site_id", Local: "siteId"},
			{Remote: "report_date", Local: "date"},
			{Remote: "content", Local: "content"},
			{Remote: "created_at", Local: "createdAt"},
		},
	},
}

// For returns the mapping for a collection. Unknown collections get an empty
// mapping, which passes every key through untouched.
func For(c record.Collection) Mapping {
	return mappings[c]
}
