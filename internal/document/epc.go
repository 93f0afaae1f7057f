package document

import (
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/roach88/billbook/internal/invoice"
)

const (
	maxNameLen = 70
	maxTextLen = 140
)

// Beneficiary holds the SEPA credit-transfer details encoded in a GiroCode.
type Beneficiary struct {
	Name      string
	IBAN      string
	BIC       string
	Amount    decimal.Decimal
	Purpose   string
	Reference string
	Text      string
}

// BeneficiaryFor builds the transfer details for paying d to sender.
func BeneficiaryFor(d invoice.Document, sender invoice.Profile) Beneficiary {
	name := sender.AccountHolder
	if name == "" {
		name = sender.CompanyName
	}
	text := d.Number
	if text == "" {
		text = d.ID
	}
	return Beneficiary{
		Name:   name,
		IBAN:   sender.IBAN,
		BIC:    sender.BIC,
		Amount: d.Total,
		Text:   text,
	}
}

// giroCodeFor reports whether d gets a payment QR code. GiroCodes only
// carry EUR amounts.
func giroCodeFor(d invoice.Document, sender invoice.Profile) bool {
	if d.Kind != invoice.KindInvoice || sender.IBAN == "" {
		return false
	}
	return d.Currency == "" || strings.EqualFold(d.Currency, "EUR")
}

// EPCPayload returns the EPC069-12 payload for b: BCD, version 002,
// character set 1 (UTF-8), SCT, then BIC, name, IBAN, amount, purpose,
// reference and text on separate lines. Trailing empty lines are dropped.
func EPCPayload(b Beneficiary) string {
	amount := ""
	if b.Amount.IsPositive() {
		amount = "EUR" + b.Amount.StringFixed(2)
	}

	lines := []string{
		"BCD",
		"002",
		"1",
		"SCT",
		strings.TrimSpace(b.BIC),
		truncate(strings.TrimSpace(b.Name), maxNameLen),
		normalizeIBAN(b.IBAN),
		amount,
		strings.TrimSpace(b.Purpose),
		strings.TrimSpace(b.Reference),
		truncate(strings.TrimSpace(b.Text), maxTextLen),
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

func normalizeIBAN(iban string) string {
	return strings.ToUpper(strings.Join(strings.Fields(iban), ""))
}

// truncate cuts s to n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
