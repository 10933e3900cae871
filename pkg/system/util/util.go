package util

import "math"

// DeltaU64 returns now-prev for a monotonic counter.
func DeltaU64(now, prev uint64) uint64 {
	if now >= prev {
		return now - prev
	}
	// counter reset or prev unset
	return 0
}

// SafeDiv divides n by d, returning 0 when d is (nearly) zero.
func SafeDiv(n, d float64) float64 {
	const eps = 1e-12
	if d > eps || d < -eps {
		return n / d
	}
	return 0
}

// Clamp bounds x to [lo, hi]. NaN maps to lo.
func Clamp(x, lo, hi float64) float64 {
	if math.IsNaN(x) || x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
