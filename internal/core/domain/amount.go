package domain

import "github.com/shopspring/decimal"

// DefaultUnitScale converts one whole currency unit into its smallest
// indivisible unit (10^24, the yocto denomination).
var DefaultUnitScale = decimal.New(1, 24)

// MaxAmount is the largest amount the escrow holds, 2^128-1 smallest units.
// Every backend stores amounts up to this bound exactly.
var MaxAmount = decimal.RequireFromString("340282366920938463463374607431768211455")

// PlatformFeeDivisor sets the platform cut: deposit / 10, rounded down.
const PlatformFeeDivisor = 10

// ScalePrice converts a human price into smallest units. The result must be
// a whole number of units.
func ScalePrice(price, unitScale decimal.Decimal) (decimal.Decimal, error) {
	if !unitScale.IsPositive() || !unitScale.IsInteger() {
		return decimal.Decimal{}, invalid("unit scale must be a positive integer")
	}
	scaled := price.Mul(unitScale)
	if !scaled.IsInteger() {
		return decimal.Decimal{}, invalid("price %s is finer than the smallest unit", price)
	}
	if scaled.GreaterThan(MaxAmount) {
		return decimal.Decimal{}, invalid("price %s exceeds the maximum amount", price)
	}
	return scaled, nil
}

// PlatformFee returns floor(deposit / PlatformFeeDivisor).
func PlatformFee(deposit decimal.Decimal) decimal.Decimal {
	q, _ := deposit.QuoRem(decimal.NewFromInt(PlatformFeeDivisor), 0)
	return q
}

// ParseAmount parses an amount in smallest units. Fractions, negative
// values and values above MaxAmount are rejected.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, invalid("amount %q is not a number", s)
	}
	if d.IsNegative() || !d.IsInteger() {
		return decimal.Decimal{}, invalid("amount %q must be a whole non-negative number of units", s)
	}
	if d.GreaterThan(MaxAmount) {
		return decimal.Decimal{}, invalid("amount %q exceeds the maximum amount", s)
	}
	return d, nil
}
