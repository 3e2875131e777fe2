// Package mathx provides tolerance-aware floating-point comparisons.
//
// The comparisons follow Knuth (TAOCP Vol. 2, Sec. 4.2.2): two values are
// compared relative to the magnitude of the larger operand, so callers never
// test raw equality on computed reals.
package mathx

import "math"

// DefaultTolerance is used by the comparison helpers when the caller has no
// domain-specific tolerance at hand.
const DefaultTolerance = 1e-9

// ApproximatelyEqual reports whether x and y are equal within tol relative to
// the smaller magnitude.
func ApproximatelyEqual(x, y, tol float64) bool {
	if x == y {
		return true
	}
	if math.IsNaN(x) || math.IsNaN(y) {
		return false
	}
	if math.IsInf(x, 0) || math.IsInf(y, 0) {
		return x == y
	}
	return math.Abs(x-y) <= math.Min(math.Abs(x), math.Abs(y))*tol
}

// EssentiallyEqual reports whether x and y are equal within tol relative to
// the larger magnitude. It is a looser test than ApproximatelyEqual.
func EssentiallyEqual(x, y, tol float64) bool {
	if x == y {
		return true
	}
	if math.IsNaN(x) || math.IsNaN(y) {
		return false
	}
	if math.IsInf(x, 0) || math.IsInf(y, 0) {
		return x == y
	}
	return math.Abs(x-y) <= math.Max(math.Abs(x), math.Abs(y))*tol
}

// DefinitelyGreater reports whether x exceeds y by more than tol relative to
// the larger magnitude.
func DefinitelyGreater(x, y, tol float64) bool {
	if x <= y {
		return false
	}
	if math.IsNaN(x) || math.IsNaN(y) {
		return false
	}
	if math.IsInf(x, 1) && !math.IsInf(y, 0) {
		return true
	}
	if !math.IsInf(x, 0) && math.IsInf(y, 0) {
		return false
	}
	return (x - y) > math.Max(math.Abs(x), math.Abs(y))*tol
}

// DefinitelyLess reports whether x falls short of y by more than tol relative
// to the larger magnitude.
func DefinitelyLess(x, y, tol float64) bool {
	if x >= y {
		return false
	}
	if math.IsNaN(x) || math.IsNaN(y) {
		return false
	}
	if math.IsInf(x, -1) && !math.IsInf(y, 0) {
		return true
	}
	if !math.IsInf(x, 0) && math.IsInf(y, 0) {
		return false
	}
	return (y - x) > math.Max(math.Abs(x), math.Abs(y))*tol
}

// EssentiallyGreaterEqual reports x >= y under tolerance tol.
func EssentiallyGreaterEqual(x, y, tol float64) bool {
	return DefinitelyGreater(x, y, tol) || EssentiallyEqual(x, y, tol)
}

// EssentiallyLessEqual reports x <= y under tolerance tol.
func EssentiallyLessEqual(x, y, tol float64) bool {
	return DefinitelyLess(x, y, tol) || EssentiallyEqual(x, y, tol)
}
