package diagnostics

import (
	"math"
	"sort"
)

// Percentile returns the q-th percentile of counts using the nearest-rank
// index round(q*(n-1)), with round-half-to-even, clamped to the valid range.
// counts is not modified. An empty input yields 0.
func Percentile(counts []int64, q float64) int64 {
	n := len(counts)
	if n == 0 {
		return 0
	}
	sorted := append([]int64(nil), counts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(math.RoundToEven(q * float64(n-1)))
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return sorted[idx]
}

// P95 is Percentile(counts, 0.95).
func P95(counts []int64) int64 {
	return Percentile(counts, 0.95)
}

// singletonRatio is the share of counts equal to one. Zero for no counts.
func singletonRatio(counts []int64) (int, float64) {
	if len(counts) == 0 {
		return 0, 0
	}
	singles := 0
	for _, c := range counts {
		if c == 1 {
			singles++
		}
	}
	return singles, float64(singles) / float64(len(counts))
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
