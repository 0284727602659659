package billing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// FromCents converts an integer amount in cents to a currency amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// ToCents converts a currency amount to cents, rounding half away from zero.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}
