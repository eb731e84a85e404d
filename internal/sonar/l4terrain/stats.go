package l4terrain

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// summarize returns population statistics of xs, which must be non-empty.
func summarize(xs []float64) Summary {
	mean, std := stat.PopMeanStdDev(xs, nil)
	return Summary{
		Mean: mean,
		Std:  std,
		Min:  floats.Min(xs),
		Max:  floats.Max(xs),
	}
}

// quantile returns the p-quantile of xs, interpolated linearly. xs is not
// modified.
func quantile(p float64, xs []float64) float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	return stat.Quantile(p, stat.LinInterp, sorted, nil)
}

// median returns the middle value of xs, averaging the two middle values
// for even lengths. xs is not modified.
func median(xs []float64) float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
