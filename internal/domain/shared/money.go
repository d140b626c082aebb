package shared

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CurrencyPlaces is the number of fractional digits every persisted amount is
// rounded to.
const CurrencyPlaces int32 = 2

var (
	zero = decimal.Zero
	one  = decimal.NewFromInt(1)
)

// RoundCurrency rounds an amount to currency precision.
func RoundCurrency(d decimal.Decimal) decimal.Decimal { return d.Round(CurrencyPlaces) }

// IsCurrencyPrecise reports whether d survives storage at currency precision
// unchanged.
func IsCurrencyPrecise(d decimal.Decimal) bool { return d.Equal(RoundCurrency(d)) }

// ValidatePrice ensures a catalogue price is non-negative.
func ValidatePrice(price decimal.Decimal) error {
	if price.LessThan(zero) {
		return NewValidationError("price", fmt.Sprintf("must be >= 0, got %s", price))
	}
	return nil
}

// Discount is a fractional reduction in the closed range [0,1].
type Discount struct{ rate decimal.Decimal }

// NoDiscount applies no reduction.
var NoDiscount = Discount{rate: zero}

// NewDiscount validates the rate and returns a Discount.
func NewDiscount(rate decimal.Decimal) (Discount, error) {
	if rate.LessThan(zero) || rate.GreaterThan(one) {
		return Discount{}, NewValidationError("discount", fmt.Sprintf("must be within [0,1], got %s", rate))
	}
	return Discount{rate: rate}, nil
}

// Rate returns the fractional discount.
func (d Discount) Rate() decimal.Decimal { return d.rate }

// IsZero reports whether no reduction applies.
func (d Discount) IsZero() bool { return d.rate.IsZero() }

// Apply computes price × (1 − rate) at currency precision.
func (d Discount) Apply(price decimal.Decimal) decimal.Decimal {
	return RoundCurrency(price.Mul(one.Sub(d.rate)))
}
