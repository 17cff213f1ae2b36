//go:build !fastmath

package flatten

import "math"

// mathLog computes ln(x) using standard library math.
func mathLog(x float64) float64 {
	return math.Log(x)
}

// mathPow computes x^y using standard library math.
func mathPow(x, y float64) float64 {
	return math.Pow(x, y)
}
