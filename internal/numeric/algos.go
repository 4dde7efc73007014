// Package numeric holds the small numeric utilities shared by the pricing
// engines: a bounded binary search over a monotonic function, float
// comparison with a fixed tolerance, and the normal pdf used by numeric
// bucket allocation.
package numeric

import "math"

// Epsilon is the shared float comparison tolerance. It also bounds the
// precision of every binary-search inversion, so changing it changes
// settlement results.
const Epsilon = 1e-8

// ApproxEqual reports whether a and b differ by less than Epsilon.
func ApproxEqual(a, b float64) bool {
	return math.Abs(a-b) < Epsilon
}

// GreaterEqual reports a >= b up to Epsilon.
func GreaterEqual(a, b float64) bool {
	return a+Epsilon >= b
}

// LesserEqual reports a <= b up to Epsilon.
func LesserEqual(a, b float64) bool {
	return a-Epsilon <= b
}

// BinarySearch finds the zero crossing of comparator within [min, max].
// The comparator must be monotonically increasing: negative when the guess
// is too low, positive when too high. Iteration stops when the midpoint
// collapses onto a bound, i.e. at float resolution.
func BinarySearch(min, max float64, comparator func(x float64) float64) float64 {
	mid := min + (max-min)/2
	for mid != min && mid != max {
		c := comparator(mid)
		switch {
		case c == 0:
			return mid
		case c > 0:
			max = mid
		default:
			min = mid
		}
		mid = min + (max-min)/2
	}
	return mid
}
