package shared

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscountApply(t *testing.T) {
	tests := []struct {
		name  string
		price string
		rate  string
		want  string
	}{
		{name: "ten percent of 100", price: "100", rate: "0.1", want: "90"},
		{name: "no discount", price: "49.99", rate: "0", want: "49.99"},
		{name: "full discount", price: "250", rate: "1", want: "0"},
		{name: "free course", price: "0", rate: "0.5", want: "0"},
		{name: "thirds round to cents", price: "10", rate: "0.333333", want: "6.67"},
		{name: "binary-unfriendly values stay exact", price: "0.3", rate: "0.1", want: "0.27"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewDiscount(decimal.RequireFromString(tt.rate))
			require.NoError(t, err)

			got := d.Apply(decimal.RequireFromString(tt.price))
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

func TestDiscountApplyMatchesFormulaAcrossGrid(t *testing.T) {
	for p := int64(0); p <= 500; p += 37 {
		for r := int64(0); r <= 100; r += 7 {
			price := decimal.NewFromInt(p)
			rate := decimal.New(r, -2)
			d, err := NewDiscount(rate)
			require.NoError(t, err)

			want := price.Mul(decimal.NewFromInt(1).Sub(rate)).Round(CurrencyPlaces)
			assert.True(t, want.Equal(d.Apply(price)), "price=%s rate=%s", price, rate)
		}
	}
}

func TestNewDiscountRejectsOutOfRange(t *testing.T) {
	for _, rate := range []string{"-0.01", "1.01", "2"} {
		_, err := NewDiscount(decimal.RequireFromString(rate))
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, "rate %s", rate)
		assert.Equal(t, "discount", verr.Field)
	}
}

func TestValidatePrice(t *testing.T) {
	assert.NoError(t, ValidatePrice(decimal.Zero))
	assert.NoError(t, ValidatePrice(decimal.NewFromInt(100)))

	var verr *ValidationError
	assert.ErrorAs(t, ValidatePrice(decimal.NewFromInt(-1)), &verr)
}

func TestIsCurrencyPrecise(t *testing.T) {
	tests := []struct {
		amount string
		want   bool
	}{
		{"10", true},
		{"0.01", true},
		{"12.30", true},
		{"0.004", false},
		{"1.005", false},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCurrencyPrecise(decimal.RequireFromString(tt.amount)))
		})
	}
}
