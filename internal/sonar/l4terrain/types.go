package l4terrain

import (
	"errors"

	"github.com/banshee-data/bathymetry.report/internal/sonar/l3grid"
)

// ErrEmptyGrid is returned when an analysis is requested for a grid with
// no valid cells.
var ErrEmptyGrid = errors.New("grid has no valid cells")

// Map is a derived per-cell product. Values at invalid cells are zero and
// must not be read.
type Map struct {
	Size   int       `json:"size"`
	Values []float64 `json:"values"`
	Valid  []bool    `json:"valid"`
}

func newMap(d *l3grid.Dense) *Map {
	n := d.Size()
	m := &Map{
		Size:   n,
		Values: make([]float64, n*n),
		Valid:  make([]bool, n*n),
	}
	copy(m.Valid, d.Mask)
	return m
}

// At returns the value at (row, col) and whether the cell holds data.
func (m *Map) At(row, col int) (float64, bool) {
	if row < 0 || row >= m.Size || col < 0 || col >= m.Size {
		return 0, false
	}
	i := row*m.Size + col
	if !m.Valid[i] {
		return 0, false
	}
	return m.Values[i], true
}

// ValidValues returns the values of all valid cells in row-major order.
func (m *Map) ValidValues() []float64 {
	out := make([]float64, 0, len(m.Values))
	for i, ok := range m.Valid {
		if ok {
			out = append(out, m.Values[i])
		}
	}
	return out
}

// Summary holds basic statistics of a set of values.
type Summary struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}
