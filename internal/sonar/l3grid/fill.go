package l3grid

import (
	"gonum.org/v1/gonum/mat"
)

// DefaultFillDepthMeters is the uniform depth used when a grid with no
// valid cells is filled.
const DefaultFillDepthMeters = 20.0

// Dense is a gap-filled copy of a grid together with the validity mask the
// grid had before filling. Analysis and filter operators work on Dense and
// use Mask to report "no data" where the source had none.
type Dense struct {
	Values         *mat.Dense
	Mask           []bool // row-major, true where the source cell held data
	CellSizeMeters float64
}

// Size returns the number of cells per side.
func (d *Dense) Size() int {
	r, _ := d.Values.Dims()
	return r
}

// Valid reports whether (row, col) held data before filling.
func (d *Dense) Valid(row, col int) bool {
	return d.Mask[row*d.Size()+col]
}

// ValidCount returns the number of originally valid cells.
func (d *Dense) ValidCount() int {
	n := 0
	for _, ok := range d.Mask {
		if ok {
			n++
		}
	}
	return n
}

// ToSnapshot converts the dense values back to a Snapshot, keeping only the
// originally valid cells. Values are clamped up to floor.
func (d *Dense) ToSnapshot(floor float64) *Snapshot {
	n := d.Size()
	s := NewEmptySnapshot(n, d.CellSizeMeters)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			i := r*n + c
			if !d.Mask[i] {
				continue
			}
			v := d.Values.At(r, c)
			if v < floor {
				v = floor
			}
			s.Depths[i] = v
			s.Valid[i] = true
		}
	}
	return s
}

// GapFiller densifies a snapshot by 1-D linear interpolation over the
// row-major flattened cell order. Gaps before the first or after the last
// valid cell take that cell's value. This is a deliberate approximation of
// 2-D interpolation: rows are joined end to end, so a gap at the end of one
// row is bridged towards the start of the next.
type GapFiller struct {
	// DefaultDepthMeters fills a snapshot that has no valid cells.
	DefaultDepthMeters float64
}

// Fill returns a dense copy of s. s is not modified.
func (f GapFiller) Fill(s *Snapshot) *Dense {
	n := s.Size
	flat := make([]float64, n*n)
	mask := make([]bool, n*n)
	copy(mask, s.Valid)

	prev := -1
	for i := range flat {
		if !s.Valid[i] {
			continue
		}
		flat[i] = s.Depths[i]
		switch {
		case prev < 0:
			for j := 0; j < i; j++ {
				flat[j] = s.Depths[i]
			}
		case i-prev > 1:
			lo, hi := s.Depths[prev], s.Depths[i]
			span := float64(i - prev)
			for j := prev + 1; j < i; j++ {
				t := float64(j-prev) / span
				flat[j] = lo + t*(hi-lo)
			}
		}
		prev = i
	}

	if prev < 0 {
		def := f.DefaultDepthMeters
		if def <= 0 {
			def = DefaultFillDepthMeters
		}
		for i := range flat {
			flat[i] = def
		}
	} else {
		for j := prev + 1; j < len(flat); j++ {
			flat[j] = s.Depths[prev]
		}
	}

	return &Dense{
		Values:         mat.NewDense(n, n, flat),
		Mask:           mask,
		CellSizeMeters: s.CellSizeMeters,
	}
}

// AtReflect returns the value at (row, col), mirroring indices that fall
// outside the grid about the edge (d c b a | a b c d | d c b a).
func (d *Dense) AtReflect(row, col int) float64 {
	n := d.Size()
	return d.Values.At(Reflect(row, n), Reflect(col, n))
}

// Reflect maps any index onto [0, n) by mirroring about the edges, with the
// edge sample repeated.
func Reflect(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return i
}
