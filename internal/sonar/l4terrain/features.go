package l4terrain

import (
	"math"

	"github.com/banshee-data/bathymetry.report/internal/sonar/l3grid"
)

// FeatureResult holds the Laplacian feature products of a grid.
type FeatureResult struct {
	Laplacian *Map   `json:"laplacian"`
	Strong    []bool `json:"strong"` // row-major

	// Threshold is twice the population std of the Laplacian over valid cells.
	Threshold   float64 `json:"threshold"`
	StrongCount int     `json:"strong_count"`
	Density     float64 `json:"density"` // strong cells / valid cells
	MeanAbs     float64 `json:"mean_abs"`
	MaxAbs      float64 `json:"max_abs"`
	// Regions is the number of 4-connected groups of strong cells.
	Regions int `json:"regions"`
}

// Features computes the discrete 4-neighbour Laplacian with mirrored edges
// and flags valid cells whose |Laplacian| exceeds twice its std.
func Features(d *l3grid.Dense) (*FeatureResult, error) {
	if d.ValidCount() == 0 {
		return nil, ErrEmptyGrid
	}
	n := d.Size()
	lap := newMap(d)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			i := r*n + c
			if !lap.Valid[i] {
				continue
			}
			lap.Values[i] = d.AtReflect(r-1, c) + d.AtReflect(r+1, c) +
				d.AtReflect(r, c-1) + d.AtReflect(r, c+1) - 4*d.Values.At(r, c)
		}
	}

	vals := lap.ValidValues()
	s := summarize(vals)
	res := &FeatureResult{
		Laplacian: lap,
		Strong:    make([]bool, n*n),
		Threshold: 2 * s.Std,
	}

	sumAbs := 0.0
	for i, ok := range lap.Valid {
		if !ok {
			continue
		}
		a := math.Abs(lap.Values[i])
		sumAbs += a
		if a > res.MaxAbs {
			res.MaxAbs = a
		}
		if a > res.Threshold {
			res.Strong[i] = true
			res.StrongCount++
		}
	}
	res.MeanAbs = sumAbs / float64(len(vals))
	res.Density = float64(res.StrongCount) / float64(len(vals))
	res.Regions = countRegions(res.Strong, n)
	return res, nil
}

// countRegions counts 4-connected components of set cells.
func countRegions(set []bool, n int) int {
	seen := make([]bool, len(set))
	stack := make([]int, 0, 16)
	regions := 0
	for start, ok := range set {
		if !ok || seen[start] {
			continue
		}
		regions++
		seen[start] = true
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			r, c := i/n, i%n
			for _, nb := range [4][2]int{{r - 1, c}, {r + 1, c}, {r, c - 1}, {r, c + 1}} {
				if nb[0] < 0 || nb[0] >= n || nb[1] < 0 || nb[1] >= n {
					continue
				}
				j := nb[0]*n + nb[1]
				if set[j] && !seen[j] {
					seen[j] = true
					stack = append(stack, j)
				}
			}
		}
	}
	return regions
}
