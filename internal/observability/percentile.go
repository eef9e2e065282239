package observability

import "math"

// percentile computes the p-th percentile (0-100) of sorted samples using
// rank interpolation: rank = (p/100)*(n-1); an integral rank selects that
// sample exactly, otherwise the floor and ceiling ranks are interpolated
// linearly.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := (p / 100) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	if float64(lower) == rank {
		return sorted[lower]
	}
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[lower] + (sorted[upper]-sorted[lower])*(rank-float64(lower))
}

// median returns the midpoint of sorted samples, averaging the two middle
// values for even-length input.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
