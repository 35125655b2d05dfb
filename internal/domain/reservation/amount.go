package reservation

import "math"

// Amount computes seats * unitPrice rounded half-up to two decimals.
// The rounding rule is a fixed contract: the amount is computed once at
// creation time and frozen, so later price changes on the event never touch
// existing reservations.
func Amount(seats int, unitPrice float64) float64 {
	return round2(float64(seats) * unitPrice)
}

func round2(v float64) float64 {
	// math.Round rounds half away from zero, which is half-up for the
	// non-negative amounts we deal with.
	return math.Round(v*100) / 100
}
