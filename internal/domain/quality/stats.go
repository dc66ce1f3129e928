// Package quality evaluates how closely sampled controls match their cases.
package quality

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// Quartiles are the percentiles reported per dimension.
var Quartiles = []float64{0.25, 0.50, 0.75} //nolint:gochecknoglobals // read-only table

// Percentiles returns, for each p in ps, the element at index round(p*(n-1))
// of the ascending-sorted data. Rounding is half away from zero. data is not
// modified. An empty series yields zeros.
func Percentiles(data []int64, ps []float64) []int64 {
	out := make([]int64, len(ps))
	if len(data) == 0 {
		return out
	}
	sorted := slices.Clone(data)
	slices.Sort(sorted)

	last := len(sorted) - 1
	for i, p := range ps {
		k := int(math.Round(p * float64(last)))
		k = max(0, min(k, last))
		out[i] = sorted[k]
	}
	return out
}

// Balance is mean(diffs) / sd(diffs) with the n-1 standard deviation, taken
// over the difference series itself. It is not a two-group standardized mean
// difference. Fewer than two values give NaN.
func Balance(diffs []int64) float64 {
	if len(diffs) < 2 {
		return math.NaN()
	}
	x := make([]float64, len(diffs))
	for i, d := range diffs {
		x[i] = float64(d)
	}
	return stat.Mean(x, nil) / stat.StdDev(x, nil)
}
