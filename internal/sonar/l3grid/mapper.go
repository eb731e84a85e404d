package l3grid

import (
	"fmt"
	"math"

	"github.com/banshee-data/bathymetry.report/internal/sonar/l1packets"
)

// GridMapper converts survey positions and beams to cell indices.
//
// A beam at angle a (degrees from nadir, port negative) with slant range r
// lands a horizontal distance d = r·tan(|a|) from the vessel, at
// (x + d·cos(a), y + d·sin(a)). Both coordinates wrap modulo the tile side;
// the column comes from x and the row from y.
type GridMapper struct {
	Size           int
	CellSizeMeters float64
}

// TileSizeMeters returns the side of the tile.
func (m GridMapper) TileSizeMeters() float64 {
	return float64(m.Size) * m.CellSizeMeters
}

// MapToCell resolves the cell hit by one beam.
func (m GridMapper) MapToCell(pos l1packets.Point, angleDeg, rangeM float64) (row, col int, err error) {
	if math.IsNaN(angleDeg) || angleDeg <= -l1packets.MaxBeamAngleDegrees || angleDeg >= l1packets.MaxBeamAngleDegrees {
		return 0, 0, fmt.Errorf("%w: angle %v outside (-90, 90)", l1packets.ErrInvalidPacket, angleDeg)
	}
	x, y := BeamFootprint(pos, angleDeg, rangeM)
	return m.CellForPosition(l1packets.Point{X: x, Y: y})
}

// CellForPosition resolves the cell under a raw position.
func (m GridMapper) CellForPosition(pos l1packets.Point) (row, col int, err error) {
	col, okX := m.index(pos.X)
	row, okY := m.index(pos.Y)
	if !okX || !okY {
		return 0, 0, fmt.Errorf("%w: (%v, %v)", ErrOutOfBounds, pos.X, pos.Y)
	}
	return row, col, nil
}

// BeamFootprint returns the world position a beam lands on.
func BeamFootprint(pos l1packets.Point, angleDeg, rangeM float64) (x, y float64) {
	a := angleDeg * math.Pi / 180
	d := rangeM * math.Tan(math.Abs(a))
	return pos.X + d*math.Cos(a), pos.Y + d*math.Sin(a)
}

func (m GridMapper) index(v float64) (int, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	tile := m.TileSizeMeters()
	r := math.Mod(v, tile)
	if r < 0 {
		r += tile
	}
	// r + tile can round up to exactly tile for tiny negative r.
	if r >= tile {
		r = 0
	}
	idx := int(math.Floor(r / tile * float64(m.Size)))
	if idx < 0 || idx >= m.Size {
		return 0, false
	}
	return idx, true
}
