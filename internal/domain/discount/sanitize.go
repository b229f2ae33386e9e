package discount

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xenking/folio-checkout/internal/domain/apperr"
)

const (
	minCodeLen = 3
	maxCodeLen = 50

	// MaxCount is the largest usage cap an INTEGER column holds.
	MaxCount = math.MaxInt32

	// Amounts with an exponent outside this window are rejected before any
	// rescaling, which would otherwise grow with the exponent.
	minAmountExp = -18
	maxAmountExp = 8
)

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero

	// MaxAmount is the largest amount a NUMERIC(10,2) column holds.
	MaxAmount = decimal.RequireFromString("99999999.99")
)

// SanitizeCode normalizes user input into a code: uppercase, only [A-Z0-9-],
// trimmed. It fails if the result is not 3 to 50 characters long.
func SanitizeCode(input string) (string, error) {
	upper := strings.ToUpper(strings.TrimSpace(input))

	var b strings.Builder
	b.Grow(len(upper))
	for i := range len(upper) {
		ch := upper[i]
		if (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '-' {
			b.WriteByte(ch)
		}
	}

	code := b.String()
	if len(code) < minCodeLen || len(code) > maxCodeLen {
		return "", apperr.New(apperr.KindValidation, "Discount code must be between 3 and 50 characters")
	}
	return code, nil
}

// IsAmount reports whether v is storable as money: at most two fractional
// digits and an absolute value no greater than MaxAmount.
func IsAmount(v decimal.Decimal) bool {
	if v.IsZero() {
		return true
	}
	if e := v.Exponent(); e < minAmountExp || e > maxAmountExp {
		return false
	}
	return v.Equal(v.Round(2)) && v.Abs().LessThanOrEqual(MaxAmount)
}

// CheckAmount fails with a validation error naming field when v is not a
// storable amount.
func CheckAmount(field string, v decimal.Decimal) error {
	if !IsAmount(v) {
		return apperr.New(apperr.KindValidation,
			field+" must have at most 2 decimal places and not exceed "+MaxAmount.String())
	}
	return nil
}

// CheckValue enforces the bounds on a discount value: strictly positive, a
// storable amount, and at most 100 for percentages. It is the single source of
// those bounds.
func CheckValue(t Type, v decimal.Decimal) error {
	if err := CheckAmount("discountValue", v); err != nil {
		return err
	}
	if !v.IsPositive() {
		return apperr.New(apperr.KindValidation, "discountValue must be greater than 0")
	}
	if t == TypePercentage && v.GreaterThan(hundred) {
		return apperr.New(apperr.KindValidation, "percentage discountValue must not exceed 100")
	}
	return nil
}
