package l4terrain

import (
	"math"

	"github.com/banshee-data/bathymetry.report/internal/sonar/l3grid"
)

// SlopeResult holds the slope products of a grid.
type SlopeResult struct {
	// Magnitude is the depth gradient magnitude in metres per cell.
	Magnitude *Map `json:"magnitude"`
	// Degrees is the seabed inclination, using the cell size as run.
	Degrees *Map `json:"degrees"`

	Stats        Summary `json:"stats"`
	DegreesStats Summary `json:"degrees_stats"`
}

// Slope computes the depth gradient by finite differences: central in the
// interior, one-sided at the edges. The magnitude is sqrt(dx² + dy²).
func Slope(d *l3grid.Dense) (*SlopeResult, error) {
	if d.ValidCount() == 0 {
		return nil, ErrEmptyGrid
	}
	n := d.Size()
	mag := newMap(d)
	deg := newMap(d)

	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			i := r*n + c
			if !mag.Valid[i] {
				continue
			}
			dy := gradient(d, r, c, true)
			dx := gradient(d, r, c, false)
			m := math.Hypot(dx, dy)
			mag.Values[i] = m
			deg.Values[i] = math.Atan(m/d.CellSizeMeters) * 180 / math.Pi
		}
	}

	return &SlopeResult{
		Magnitude:    mag,
		Degrees:      deg,
		Stats:        summarize(mag.ValidValues()),
		DegreesStats: summarize(deg.ValidValues()),
	}, nil
}

// gradient returns the derivative along rows (alongRows) or columns at one
// cell. Single-cell axes have zero gradient.
func gradient(d *l3grid.Dense, r, c int, alongRows bool) float64 {
	n := d.Size()
	if n < 2 {
		return 0
	}
	at := func(k int) float64 {
		if alongRows {
			return d.Values.At(k, c)
		}
		return d.Values.At(r, k)
	}
	k := c
	if alongRows {
		k = r
	}
	switch k {
	case 0:
		return at(1) - at(0)
	case n - 1:
		return at(n-1) - at(n-2)
	default:
		return (at(k+1) - at(k-1)) / 2
	}
}
