// Package fees holds the commission model shared by the tracker and the
// position entity. The rate is always an explicit per-strategy input, never a
// package constant.
package fees

// Commission returns the fee charged on a trade of the given notional value.
// The rate is a fraction (0.00075 means 0.075%). The result is never
// negative; nonsensical negative inputs cost nothing rather than paying the
// trader.
func Commission(notional, rate float64) float64 {
	fee := notional * rate
	if fee < 0 {
		return 0
	}
	return fee
}
