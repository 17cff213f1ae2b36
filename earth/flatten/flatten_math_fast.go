//go:build fastmath

package flatten

import (
	"github.com/meko-christian/algo-approx"
)

// mathLog computes ln(x) using fast approximation.
func mathLog(x float64) float64 {
	return approx.FastLog(x)
}

// mathPow computes x^y for x > 0 as e^(y ln x).
func mathPow(x, y float64) float64 {
	return approx.FastExp(y * approx.FastLog(x))
}
