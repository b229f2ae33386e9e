package discount

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name         string
		in           CalculateInput
		wantDiscount decimal.Decimal
		wantFinal    decimal.Decimal
	}{
		{
			name:         "percentage 20 of 100",
			in:           CalculateInput{DiscountType: TypePercentage, DiscountValue: d("20"), CartTotal: d("100")},
			wantDiscount: d("20.00"),
			wantFinal:    d("80.00"),
		},
		{
			name:         "fixed 50 capped at cart total 30",
			in:           CalculateInput{DiscountType: TypeFixed, DiscountValue: d("50"), CartTotal: d("30")},
			wantDiscount: d("30.00"),
			wantFinal:    d("0.00"),
		},
		{
			name: "max discount caps percentage",
			in: CalculateInput{
				DiscountType:      TypePercentage,
				DiscountValue:     d("20"),
				MaxDiscountAmount: decPtr("10"),
				CartTotal:         d("200"),
			},
			wantDiscount: d("10.00"),
			wantFinal:    d("190.00"),
		},
		{
			name: "max discount above computed amount has no effect",
			in: CalculateInput{
				DiscountType:      TypeFixed,
				DiscountValue:     d("15"),
				MaxDiscountAmount: decPtr("100"),
				CartTotal:         d("60"),
			},
			wantDiscount: d("15.00"),
			wantFinal:    d("45.00"),
		},
		{
			name:         "half up on the cents boundary",
			in:           CalculateInput{DiscountType: TypePercentage, DiscountValue: d("15"), CartTotal: d("29.97")},
			wantDiscount: d("4.50"), // 4.4955
			wantFinal:    d("25.47"),
		},
		{
			name:         "exact half cent rounds up",
			in:           CalculateInput{DiscountType: TypePercentage, DiscountValue: d("50"), CartTotal: d("0.05")},
			wantDiscount: d("0.03"), // 0.025
			wantFinal:    d("0.02"),
		},
		{
			name:         "100 percent",
			in:           CalculateInput{DiscountType: TypePercentage, DiscountValue: d("100"), CartTotal: d("49.99")},
			wantDiscount: d("49.99"),
			wantFinal:    d("0.00"),
		},
		{
			name:         "zero cart",
			in:           CalculateInput{DiscountType: TypeFixed, DiscountValue: d("10"), CartTotal: d("0")},
			wantDiscount: d("0"),
			wantFinal:    d("0"),
		},
		{
			name:         "negative cart treated as zero",
			in:           CalculateInput{DiscountType: TypeFixed, DiscountValue: d("10"), CartTotal: d("-5")},
			wantDiscount: d("0"),
			wantFinal:    d("0"),
		},
		{
			name:         "negative discount floored at zero",
			in:           CalculateInput{DiscountType: TypeFixed, DiscountValue: d("-10"), CartTotal: d("40")},
			wantDiscount: d("0"),
			wantFinal:    d("40"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(tt.in)
			assert.True(t, tt.wantDiscount.Equal(got.DiscountAmount),
				"discount: want %s, got %s", tt.wantDiscount, got.DiscountAmount)
			assert.True(t, tt.wantFinal.Equal(got.FinalTotal),
				"final: want %s, got %s", tt.wantFinal, got.FinalTotal)
			assert.False(t, got.FinalTotal.IsNegative())
			assert.True(t, got.DiscountAmount.LessThanOrEqual(decimal.Max(tt.in.CartTotal, decimal.Zero)))
		})
	}
}

func TestCalculate_Idempotent(t *testing.T) {
	in := CalculateInput{
		DiscountType:      TypePercentage,
		DiscountValue:     d("33.33"),
		MaxDiscountAmount: decPtr("25"),
		CartTotal:         d("10.01"),
	}

	first := Calculate(in)
	second := Calculate(in)

	assert.True(t, first.DiscountAmount.Equal(second.DiscountAmount))
	assert.True(t, first.FinalTotal.Equal(second.FinalTotal))
	assert.True(t, d("3.34").Equal(first.DiscountAmount))
}

func TestInputFor(t *testing.T) {
	c := &Code{DiscountType: TypeFixed, DiscountValue: d("5"), MaxDiscountAmount: decPtr("3")}
	in := InputFor(c, d("20"))

	assert.Equal(t, TypeFixed, in.DiscountType)
	assert.True(t, d("3").Equal(Calculate(in).DiscountAmount))
}
