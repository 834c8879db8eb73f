// Package money centralizes the rounding rules for monetary arithmetic.
// Every amount crossing a component boundary is rounded half-up to two
// decimal places; intermediate values are never accumulated unrounded.
package money

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Round2 rounds to two decimal places, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FromRupees builds an exact two-place amount from a float literal.
// Intended for tests and fixtures, not for arithmetic chains.
func FromRupees(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

// Percent returns round(base * pct / 100, 2).
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return Round2(base.Mul(pct).Div(hundred))
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// NonNegative floors the amount at zero.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ToPaise converts a two-place rupee amount to integer paise, the unit the
// payment gateway expects.
func ToPaise(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}

// FromPaise converts integer paise back to a two-place rupee amount.
func FromPaise(p int64) decimal.Decimal {
	return decimal.NewFromInt(p).Div(hundred).Round(2)
}
