package discount

import "github.com/shopspring/decimal"

// CalculateInput holds the terms of a validated code and the cart total.
type CalculateInput struct {
	DiscountType      Type
	DiscountValue     decimal.Decimal
	MaxDiscountAmount *decimal.Decimal
	CartTotal         decimal.Decimal
}

// Amounts is the computed discount and the resulting total.
type Amounts struct {
	DiscountAmount decimal.Decimal
	FinalTotal     decimal.Decimal
}

// InputFor builds a CalculateInput from a stored code.
func InputFor(c *Code, cartTotal decimal.Decimal) CalculateInput {
	return CalculateInput{
		DiscountType:      c.DiscountType,
		DiscountValue:     c.DiscountValue,
		MaxDiscountAmount: c.MaxDiscountAmount,
		CartTotal:         cartTotal,
	}
}

// Calculate turns a discount and a cart total into concrete amounts.
// Negative cart totals are treated as zero and negative discounts are floored
// at zero; the discount never exceeds the cart total.
func Calculate(in CalculateInput) Amounts {
	total := floorAtZero(in.CartTotal)

	var amount decimal.Decimal
	switch in.DiscountType {
	case TypePercentage:
		amount = total.Mul(in.DiscountValue).Div(hundred)
	case TypeFixed:
		amount = in.DiscountValue
	}

	if in.MaxDiscountAmount != nil {
		amount = decimal.Min(amount, *in.MaxDiscountAmount)
	}
	amount = decimal.Min(floorAtZero(amount), total)
	// Round is half away from zero, which is half-up for non-negative values.
	amount = amount.Round(2)

	return Amounts{
		DiscountAmount: amount,
		FinalTotal:     floorAtZero(total.Sub(amount)).Round(2),
	}
}

func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return zero
	}
	return d
}
