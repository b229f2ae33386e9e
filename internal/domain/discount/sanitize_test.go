package discount

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/folio-checkout/internal/domain/apperr"
)

func TestSanitizeCode(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: " sa-ve50! ", want: "SA-VE50"},
		{in: "summer_2025", want: "SUMMER2025"},
		{in: "abc", want: "ABC"},
		{in: "a b", wantErr: true},
		{in: "!!", wantErr: true},
		{in: "", wantErr: true},
		{in: "ümlaut-10", want: "MLAUT-10"},
		{in: strings.Repeat("A", 50), want: strings.Repeat("A", 50)},
		{in: strings.Repeat("A", 51), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := SanitizeCode(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckValue(t *testing.T) {
	tests := []struct {
		name    string
		typ     Type
		value   string
		wantErr bool
	}{
		{name: "percentage in range", typ: TypePercentage, value: "20"},
		{name: "percentage at 100", typ: TypePercentage, value: "100"},
		{name: "percentage above 100", typ: TypePercentage, value: "100.01", wantErr: true},
		{name: "fixed above 100 allowed", typ: TypeFixed, value: "250"},
		{name: "zero rejected", typ: TypeFixed, value: "0", wantErr: true},
		{name: "negative rejected", typ: TypePercentage, value: "-1", wantErr: true},
		{name: "rounds to zero in storage", typ: TypeFixed, value: "0.001", wantErr: true},
		{name: "three decimals", typ: TypeFixed, value: "12.345", wantErr: true},
		{name: "trailing zero decimals", typ: TypeFixed, value: "12.340"},
		{name: "column overflow", typ: TypeFixed, value: "1000000000", wantErr: true},
		{name: "largest fixed", typ: TypeFixed, value: "99999999.99"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckValue(tt.typ, decimal.RequireFromString(tt.value))
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestIsAmount(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want bool
	}{
		{in: "0", want: true},
		{in: "0e100", want: true},
		{in: "100.50", want: true},
		{in: "-5.25", want: true},
		{in: "99999999.99", want: true},
		{in: "100000000", want: false},
		{in: "-100000000", want: false},
		{in: "0.005", want: false},
		{in: "1e10000000", want: false},
		{in: "1e-10000000", want: false},
		{in: "1.00000000000000000000000", want: false},
	} {
		assert.Equal(t, tt.want, IsAmount(decimal.RequireFromString(tt.in)), tt.in)
	}
}

func TestParseType(t *testing.T) {
	typ, err := ParseType("FIXED")
	require.NoError(t, err)
	assert.Equal(t, TypeFixed, typ)

	_, err = ParseType("percentage")
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}
