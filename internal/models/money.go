package models

import "math"

// amountEpsilon is the tolerance used when comparing currency amounts.
const amountEpsilon = 0.01

// Round2 rounds amount to the currency's minor-unit precision (2 decimal places).
func Round2(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// AmountsEqual reports whether two amounts are equal within rounding tolerance.
func AmountsEqual(a, b float64) bool {
	return math.Abs(a-b) < amountEpsilon
}
