package l4filters

import (
	"math"
	"sort"

	"github.com/banshee-data/bathymetry.report/internal/sonar/l3grid"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// gaussianKernel returns normalised weights for offsets -radius..radius,
// radius = floor(4σ + 0.5).
func gaussianKernel(sigma float64) []float64 {
	radius := int(4*sigma + 0.5)
	k := make([]float64, 2*radius+1)
	sum := 0.0
	for i := range k {
		x := float64(i - radius)
		k[i] = math.Exp(-x * x / (2 * sigma * sigma))
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// gaussian blurs src separably with mirrored edges.
func gaussian(src *mat.Dense, sigma float64) *mat.Dense {
	n, _ := src.Dims()
	k := gaussianKernel(sigma)
	radius := len(k) / 2

	tmp := mat.NewDense(n, n, nil)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			acc := 0.0
			for j, w := range k {
				acc += w * src.At(r, l3grid.Reflect(c+j-radius, n))
			}
			tmp.Set(r, c, acc)
		}
	}
	out := mat.NewDense(n, n, nil)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			acc := 0.0
			for j, w := range k {
				acc += w * tmp.At(l3grid.Reflect(r+j-radius, n), c)
			}
			out.Set(r, c, acc)
		}
	}
	return out
}

// unsharp returns src + 0.5·(src - gaussian(src, sigma)).
func unsharp(src *mat.Dense, sigma float64) *mat.Dense {
	blur := gaussian(src, sigma)
	var detail mat.Dense
	detail.Sub(src, blur)
	var out mat.Dense
	out.Scale(0.5, &detail)
	out.Add(src, &out)
	return &out
}

// medianFilter replaces each cell with the median of its window×window
// neighbourhood. window must be odd.
func medianFilter(src *mat.Dense, window int) *mat.Dense {
	n, _ := src.Dims()
	half := window / 2
	buf := make([]float64, 0, window*window)
	out := mat.NewDense(n, n, nil)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			buf = buf[:0]
			for dr := -half; dr <= half; dr++ {
				for dc := -half; dc <= half; dc++ {
					buf = append(buf, src.At(l3grid.Reflect(r+dr, n), l3grid.Reflect(c+dc, n)))
				}
			}
			sort.Float64s(buf)
			out.Set(r, c, buf[len(buf)/2])
		}
	}
	return out
}

// suppressOutliers replaces every cell further than k·std from the mean of
// the valid cells with their median. It returns the filtered grid and the
// number of replaced cells.
func suppressOutliers(src *mat.Dense, mask []bool, k float64) (*mat.Dense, int) {
	n, _ := src.Dims()
	vals := make([]float64, 0, n*n)
	for i, ok := range mask {
		if ok {
			vals = append(vals, src.At(i/n, i%n))
		}
	}
	out := mat.DenseCopyOf(src)
	if len(vals) == 0 {
		return out, 0
	}
	mean, std := stat.PopMeanStdDev(vals, nil)
	sort.Float64s(vals)
	med := vals[len(vals)/2]
	if len(vals)%2 == 0 {
		med = (vals[len(vals)/2-1] + med) / 2
	}

	limit := k * std
	replaced := 0
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			if math.Abs(src.At(r, c)-mean) > limit {
				out.Set(r, c, med)
				if mask[r*n+c] {
					replaced++
				}
			}
		}
	}
	return out, replaced
}
