package invoice

import "github.com/roach88/billbook/internal/record"

// Plan is the subscription tier of an account.
type Plan string

const (
	PlanFree     Plan = "free"
	PlanPro      Plan = "pro"
	PlanBusiness Plan = "business"
)

// MonthlyDocumentLimit returns how many documents the plan may create per
// calendar month, or 0 for unlimited.
func (p Plan) MonthlyDocumentLimit() int {
	switch p {
	case PlanPro, PlanBusiness:
		return 0
	default:
		return 5
	}
}

// Employees reports whether the plan includes team features.
func (p Plan) Employees() bool {
	return p == PlanBusiness
}

// Profile is the account's company data. There is one per account.
type Profile struct {
	ID            string
	CompanyName   string
	OwnerName     string
	Address       string
	Street        string
	HouseNumber   string
	Zip           string
	City          string
	Email         string
	Phone         string
	TaxID         string
	IBAN          string
	BIC           string
	BankName      string
	AccountHolder string
	AccentColor   string
	LogoURL       string
	Industry      string
	Plan          Plan
}

// ProfileFromRecord reads the profile. A nil record gives a free-tier
// profile with no data.
func ProfileFromRecord(rec record.Object) Profile {
	p := Profile{
		ID:            rec.ID(),
		CompanyName:   str(rec, "companyName"),
		OwnerName:     str(rec, "ownerName"),
		Address:       str(rec, "address"),
		Street:        str(rec, "street"),
		HouseNumber:   str(rec, "houseNumber"),
		Zip:           str(rec, "zip"),
		City:          str(rec, "city"),
		Email:         str(rec, "email"),
		Phone:         str(rec, "phone"),
		TaxID:         str(rec, "taxId"),
		IBAN:          str(rec, "iban"),
		BIC:           str(rec, "bic"),
		BankName:      str(rec, "bankName"),
		AccountHolder: str(rec, "accountHolder"),
		AccentColor:   str(rec, "accentColor"),
		LogoURL:       str(rec, "logoUrl"),
		Industry:      str(rec, "industry"),
		Plan:          Plan(str(rec, "plan")),
	}
	if p.Plan == "" {
		p.Plan = PlanFree
	}
	if p.AccountHolder == "" {
		p.AccountHolder = p.CompanyName
	}
	return p
}

// ProfileOf returns the first profile row, which is the account's profile.
func ProfileOf(rows []record.Object) Profile {
	if len(rows) == 0 {
		return ProfileFromRecord(nil)
	}
	return ProfileFromRecord(rows[0])
}

// Snapshot is the copy of the sender data frozen into a new document.
func (p Profile) Snapshot() record.Object {
	rec := record.Object{}
	putString(rec, "companyName", p.CompanyName)
	putString(rec, "ownerName", p.OwnerName)
	putString(rec, "address", p.Address)
	putString(rec, "zip", p.Zip)
	putString(rec, "city", p.City)
	putString(rec, "email", p.Email)
	putString(rec, "phone", p.Phone)
	putString(rec, "taxId", p.TaxID)
	putString(rec, "iban", p.IBAN)
	putString(rec, "bic", p.BIC)
	putString(rec, "bankName", p.BankName)
	putString(rec, "accountHolder", p.AccountHolder)
	return rec
}

// SenderFor returns the sender data to print on d: the snapshot taken when
// d was created, falling back to the live profile.
func SenderFor(d Document, live Profile) Profile {
	if len(d.CompanySnapshot) == 0 {
		return live
	}
	snap := ProfileFromRecord(d.CompanySnapshot)
	snap.Plan = live.Plan
	snap.AccentColor = live.AccentColor
	snap.LogoURL = live.LogoURL
	snap.Industry = live.Industry
	return snap
}
