package l3grid

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"

	"github.com/klauspost/compress/zstd"
)

// Snapshot is a detached copy of a DepthGrid. Depths and Valid are
// row-major and parallel; Depths entries for invalid cells are zero.
type Snapshot struct {
	Size           int
	CellSizeMeters float64
	Depths         []float64
	Valid          []bool
}

// NewEmptySnapshot returns a snapshot with no valid cells.
func NewEmptySnapshot(size int, cellSizeMeters float64) *Snapshot {
	return &Snapshot{
		Size:           size,
		CellSizeMeters: cellSizeMeters,
		Depths:         make([]float64, size*size),
		Valid:          make([]bool, size*size),
	}
}

// At returns the depth at (row, col) and whether the cell holds data.
func (s *Snapshot) At(row, col int) (float64, bool) {
	if row < 0 || row >= s.Size || col < 0 || col >= s.Size {
		return 0, false
	}
	i := row*s.Size + col
	if !s.Valid[i] {
		return 0, false
	}
	return s.Depths[i], true
}

// Set marks (row, col) valid with the given depth. Intended for fixtures.
func (s *Snapshot) Set(row, col int, depth float64) {
	i := row*s.Size + col
	s.Depths[i] = depth
	s.Valid[i] = true
}

// ValidCount returns the number of cells holding data.
func (s *Snapshot) ValidCount() int {
	n := 0
	for _, ok := range s.Valid {
		if ok {
			n++
		}
	}
	return n
}

// ValidDepths returns the depths of all valid cells in row-major order.
func (s *Snapshot) ValidDepths() []float64 {
	out := make([]float64, 0, s.ValidCount())
	for i, ok := range s.Valid {
		if ok {
			out = append(out, s.Depths[i])
		}
	}
	return out
}

// Validate checks internal consistency. Errors wrap ErrCorruptSnapshot.
func (s *Snapshot) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil snapshot", ErrCorruptSnapshot)
	}
	if s.Size < 1 {
		return fmt.Errorf("%w: size %d", ErrCorruptSnapshot, s.Size)
	}
	if !(s.CellSizeMeters > 0) || math.IsInf(s.CellSizeMeters, 0) {
		return fmt.Errorf("%w: cell size %v", ErrCorruptSnapshot, s.CellSizeMeters)
	}
	n := s.Size * s.Size
	if len(s.Depths) != n || len(s.Valid) != n {
		return fmt.Errorf("%w: %d depths and %d mask entries for a %dx%d grid",
			ErrCorruptSnapshot, len(s.Depths), len(s.Valid), s.Size, s.Size)
	}
	for i, ok := range s.Valid {
		if !ok {
			continue
		}
		d := s.Depths[i]
		if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
			return fmt.Errorf("%w: cell %d holds %v", ErrCorruptSnapshot, i, d)
		}
	}
	return nil
}

// CheckFloor reports the first valid cell shallower than floor. Errors wrap
// ErrCorruptSnapshot.
func (s *Snapshot) CheckFloor(floor float64) error {
	for i, ok := range s.Valid {
		if ok && s.Depths[i] < floor {
			return fmt.Errorf("%w: cell %d holds %v below the %gm floor",
				ErrCorruptSnapshot, i, s.Depths[i], floor)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{
		Size:           s.Size,
		CellSizeMeters: s.CellSizeMeters,
		Depths:         make([]float64, len(s.Depths)),
		Valid:          make([]bool, len(s.Valid)),
	}
	copy(c.Depths, s.Depths)
	copy(c.Valid, s.Valid)
	return c
}

// EncodeSnapshot serializes a snapshot using gob encoding and zstd compression.
func EncodeSnapshot(s *Snapshot) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("create zstd writer: %w", err)
	}
	if err := gob.NewEncoder(zw).Encode(s); err != nil {
		zw.Close()
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("flush zstd writer: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeSnapshot decompresses and decodes a blob produced by EncodeSnapshot
// and validates the result. Every failure wraps ErrCorruptSnapshot.
func DecodeSnapshot(blob []byte) (*Snapshot, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("%w: empty blob", ErrCorruptSnapshot)
	}
	zr, err := zstd.NewReader(bytes.NewReader(blob), zstd.WithDecoderConcurrency(0))
	if err != nil {
		return nil, fmt.Errorf("%w: zstd reader: %v", ErrCorruptSnapshot, err)
	}
	defer zr.Close()

	var s Snapshot
	if err := gob.NewDecoder(zr).Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrCorruptSnapshot, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}
