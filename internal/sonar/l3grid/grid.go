package l3grid

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

var (
	// ErrOutOfBounds is returned when a beam does not resolve to a cell.
	ErrOutOfBounds = errors.New("beam maps outside the grid")
	// ErrCorruptSnapshot is returned when a snapshot cannot be installed.
	ErrCorruptSnapshot = errors.New("corrupt grid snapshot")
)

// DepthGrid is a square array of depth cells with a validity mask.
// Invalid cells hold no data; their stored value is meaningless and never
// returned. All access goes through the mutex; readers that need more than
// one cell take a Snapshot.
type DepthGrid struct {
	mu sync.RWMutex

	size           int
	cellSizeMeters float64

	depths []float64 // row-major
	valid  []bool
	nValid int

	changesSinceSnapshot int
	lastUpdate           time.Time
}

// NewDepthGrid creates an empty size×size grid.
func NewDepthGrid(size int, cellSizeMeters float64) (*DepthGrid, error) {
	if size < 1 {
		return nil, fmt.Errorf("grid size must be positive, got %d", size)
	}
	if !(cellSizeMeters > 0) || math.IsInf(cellSizeMeters, 0) {
		return nil, fmt.Errorf("cell size must be positive and finite, got %f", cellSizeMeters)
	}
	return &DepthGrid{
		size:           size,
		cellSizeMeters: cellSizeMeters,
		depths:         make([]float64, size*size),
		valid:          make([]bool, size*size),
	}, nil
}

// Size returns the number of cells per side.
func (g *DepthGrid) Size() int { return g.size }

// CellSizeMeters returns the side of one cell.
func (g *DepthGrid) CellSizeMeters() float64 { return g.cellSizeMeters }

// TileSizeMeters returns the side of the area the grid covers.
func (g *DepthGrid) TileSizeMeters() float64 { return float64(g.size) * g.cellSizeMeters }

// Mapper returns a GridMapper matching this grid's geometry.
func (g *DepthGrid) Mapper() GridMapper {
	return GridMapper{Size: g.size, CellSizeMeters: g.cellSizeMeters}
}

// At returns the depth of a cell and whether it holds data.
func (g *DepthGrid) At(row, col int) (float64, bool) {
	if row < 0 || row >= g.size || col < 0 || col >= g.size {
		return 0, false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	i := row*g.size + col
	if !g.valid[i] {
		return 0, false
	}
	return g.depths[i], true
}

// ValidCount returns the number of cells holding data.
func (g *DepthGrid) ValidCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nValid
}

// ChangesSinceSnapshot returns the number of cell writes since the last
// MarkPersisted call.
func (g *DepthGrid) ChangesSinceSnapshot() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.changesSinceSnapshot
}

// MarkPersisted subtracts n from the change counter. Pass the value read
// before persisting so writes made during the save are not lost.
func (g *DepthGrid) MarkPersisted(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.changesSinceSnapshot -= n
	if g.changesSinceSnapshot < 0 {
		g.changesSinceSnapshot = 0
	}
}

// LastUpdate returns the time of the most recent mutation.
func (g *DepthGrid) LastUpdate() time.Time {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lastUpdate
}

// Snapshot returns a consistent copy of the grid.
func (g *DepthGrid) Snapshot() *Snapshot {
	g.mu.RLock()
	s := &Snapshot{
		Size:           g.size,
		CellSizeMeters: g.cellSizeMeters,
		Depths:         make([]float64, len(g.depths)),
		Valid:          make([]bool, len(g.valid)),
	}
	copy(s.Valid, g.valid)
	for i, ok := range g.valid {
		if ok {
			s.Depths[i] = g.depths[i]
		}
	}
	g.mu.RUnlock()
	return s
}

// Reset clears every cell.
func (g *DepthGrid) Reset() {
	g.mu.Lock()
	for i := range g.depths {
		g.depths[i] = 0
		g.valid[i] = false
	}
	g.nValid = 0
	g.changesSinceSnapshot = 0
	g.lastUpdate = time.Now()
	g.mu.Unlock()
	diagf("grid reset: size=%d cell=%.3fm", g.size, g.cellSizeMeters)
}

// Replace installs s as the grid contents. The snapshot is checked against
// the grid geometry before the lock is taken; on error the grid is left
// untouched. The errors wrap ErrCorruptSnapshot.
func (g *DepthGrid) Replace(s *Snapshot) error {
	if err := s.Validate(); err != nil {
		opsf("rejected snapshot: %v", err)
		return err
	}
	if s.Size != g.size || s.CellSizeMeters != g.cellSizeMeters {
		opsf("rejected snapshot: geometry %dx%d@%.3fm does not match grid %dx%d@%.3fm",
			s.Size, s.Size, s.CellSizeMeters, g.size, g.size, g.cellSizeMeters)
		return fmt.Errorf("%w: geometry %dx%d@%gm does not match grid %dx%d@%gm",
			ErrCorruptSnapshot, s.Size, s.Size, s.CellSizeMeters, g.size, g.size, g.cellSizeMeters)
	}

	depths := make([]float64, len(s.Depths))
	valid := make([]bool, len(s.Valid))
	copy(depths, s.Depths)
	copy(valid, s.Valid)
	n := s.ValidCount()

	g.mu.Lock()
	g.depths = depths
	g.valid = valid
	g.nValid = n
	g.changesSinceSnapshot += n
	g.lastUpdate = time.Now()
	g.mu.Unlock()

	diagf("grid replaced: valid=%d/%d", n, g.size*g.size)
	return nil
}

// observe folds one reading into cell i. Caller holds the write lock.
func (g *DepthGrid) observe(i int, depth, alpha float64) {
	if !g.valid[i] {
		g.depths[i] = depth
		g.valid[i] = true
		g.nValid++
	} else {
		g.depths[i] = (1-alpha)*g.depths[i] + alpha*depth
	}
	g.changesSinceSnapshot++
}

// set overwrites cell i. Caller holds the write lock.
func (g *DepthGrid) set(i int, depth float64) {
	if !g.valid[i] {
		g.valid[i] = true
		g.nValid++
	}
	g.depths[i] = depth
	g.changesSinceSnapshot++
}
