// Package money provides the decimal arithmetic used by every ledger
// mutation. Balances are stored as float64 but all intermediate math runs
// through shopspring/decimal so repeated fills and transfers do not drift
// beyond two decimal places.
package money

import (
	"math"

	"github.com/shopspring/decimal"
)

func dec(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

// Round2 rounds half away from zero to two decimal places.
func Round2(v float64) float64 {
	f, _ := dec(v).Round(2).Float64()
	return f
}

// Mul returns quantity*price rounded to cents.
func Mul(quantity, price float64) float64 {
	f, _ := dec(quantity).Mul(dec(price)).Round(2).Float64()
	return f
}

// Add returns a+b rounded to cents.
func Add(a, b float64) float64 {
	f, _ := dec(a).Add(dec(b)).Round(2).Float64()
	return f
}

// Sub returns a-b rounded to cents.
func Sub(a, b float64) float64 {
	f, _ := dec(a).Sub(dec(b)).Round(2).Float64()
	return f
}

// WeightedAvgCost recomputes the average cost per unit after adding a fill:
// (oldInvested + addCost) / (oldUnits + addUnits). Returns 0 when the
// resulting position is empty.
func WeightedAvgCost(oldUnits, oldInvested, addUnits, addCost float64) float64 {
	totalUnits := dec(oldUnits).Add(dec(addUnits))
	if totalUnits.Sign() <= 0 {
		return 0
	}
	f, _ := dec(oldInvested).Add(dec(addCost)).Div(totalUnits).Round(2).Float64()
	return f
}
