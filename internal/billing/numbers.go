package billing

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/roach88/billbook/internal/record"
)

// strictDecimal accepts numbers and numeric strings. Unlike
// record.AsDecimal it reports unreadable input instead of yielding zero.
func strictDecimal(v record.Value) (decimal.Decimal, error) {
	switch val := v.(type) {
	case nil:
		return decimal.Zero, errors.New("is required")
	case record.Int, record.Number:
		return record.AsDecimal(val), nil
	case record.String:
		d, err := decimal.NewFromString(strings.TrimSpace(string(val)))
		if err != nil {
			return decimal.Zero, errors.New("is not a number")
		}
		return d, nil
	}
	return decimal.Zero, errors.New("is not a number")
}
