// Package pricing computes line subtotals and order totals for sales and
// purchase orders. Every function in this package is pure and never fails:
// invalid numeric input degrades to zero so that drafts can be recomputed
// on every edit.
package pricing

import (
	"math"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// MoneyPlaces is the number of decimal places kept on persisted amounts.
const MoneyPlaces = 2

// FromFloat converts a user supplied float into a decimal. NaN and infinities become zero.
func FromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

// PercentOf returns percent% of base.
func PercentOf(base, percent decimal.Decimal) decimal.Decimal {
	return base.Mul(percent).Div(hundred)
}

// ClampNonNegative returns max(0, x).
func ClampNonNegative(x decimal.Decimal) decimal.Decimal {
	if x.IsNegative() {
		return decimal.Zero
	}
	return x
}

// ClampPercent bounds x to [0, 100].
func ClampPercent(x decimal.Decimal) decimal.Decimal {
	if x.IsNegative() {
		return decimal.Zero
	}
	if x.GreaterThan(hundred) {
		return hundred
	}
	return x
}

// Discount returns the discount amount for base at percent. The amount is
// capped at base and is never negative.
func Discount(base, percent decimal.Decimal) decimal.Decimal {
	base = ClampNonNegative(base)
	amount := PercentOf(base, ClampPercent(percent))
	if amount.GreaterThan(base) {
		amount = base
	}
	return ClampNonNegative(amount)
}

// ApplyDiscount returns base minus its discount, clamped to zero.
func ApplyDiscount(base, percent decimal.Decimal) decimal.Decimal {
	return ClampNonNegative(base.Sub(Discount(base, percent)))
}

// RoundMoney rounds an amount to MoneyPlaces.
func RoundMoney(x decimal.Decimal) decimal.Decimal {
	return x.Round(MoneyPlaces)
}
