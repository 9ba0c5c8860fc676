// Package money provides fixed-scale exact arithmetic for monetary values.
// All amounts in the ledger are 2-decimal quantities; binary floating point
// never crosses a package boundary.
package money

import (
	"github.com/shopspring/decimal"

	"github.com/kassa-fin/kassa/internal/shared"
)

// Scale is the fixed number of fractional digits for all monetary values.
const Scale = 2

// Round rounds d half-up to the monetary scale.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Parse converts a decimal string into an exact amount. It rejects values
// that are not valid decimals or carry more than two fractional digits.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, shared.Validationf("invalid amount %q", s)
	}
	if d.Exponent() < -Scale {
		return decimal.Zero, shared.Validationf("amount %q has more than %d decimal places", s, Scale)
	}
	return d, nil
}

// ParsePositive parses s and additionally requires the amount to be > 0.
func ParsePositive(s string) (decimal.Decimal, error) {
	d, err := Parse(s)
	if err != nil {
		return decimal.Zero, err
	}
	if err := RequirePositive(d, "amount"); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// RequirePositive validates that d is strictly greater than zero.
func RequirePositive(d decimal.Decimal, field string) error {
	if !d.IsPositive() {
		return shared.Validationf("%s must be positive, got %s", field, d.String())
	}
	return nil
}

// RequireScale validates that d has no more than two fractional digits.
func RequireScale(d decimal.Decimal, field string) error {
	if d.Exponent() < -Scale {
		return shared.Validationf("%s has more than %d decimal places", field, Scale)
	}
	return nil
}
