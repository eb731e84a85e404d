package l5survey

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/bathymetry.report/internal/sonar/l3grid"
)

// DefaultSwathHalfAngleDegrees is the half-angle used for swath estimates.
const DefaultSwathHalfAngleDegrees = 75.0

// DepthStats summarises the valid cells of a grid.
type DepthStats struct {
	Mean float64 `json:"mean"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// Statistics is an aggregate view of a survey. Depth is nil when the grid
// has no valid cells.
type Statistics struct {
	Depth *DepthStats `json:"depth,omitempty"`

	ValidCells       int     `json:"valid_cells"`
	TotalCells       int     `json:"total_cells"`
	CoverageFraction float64 `json:"coverage_fraction"`
	TileAreaM2       float64 `json:"tile_area_m2"`
	CoveredAreaM2    float64 `json:"covered_area_m2"`

	TrackPoints  int           `json:"track_points"`
	TrackLengthM float64       `json:"track_length_m"`
	Duration     time.Duration `json:"duration_ns"`
	// SwathAreaM2 estimates swept area as track length times the swath
	// width implied by the mean depth. Zero when depth is undefined.
	SwathAreaM2 float64 `json:"swath_area_m2"`
}

// Defined reports whether depth statistics are available.
func (s Statistics) Defined() bool { return s.Depth != nil }

// Compute aggregates a grid snapshot and a track. swathHalfAngleDeg must be
// in (0, 90); other values fall back to DefaultSwathHalfAngleDegrees.
func Compute(grid *l3grid.Snapshot, track []TrackPoint, swathHalfAngleDeg float64) Statistics {
	st := Statistics{
		TotalCells:   grid.Size * grid.Size,
		TileAreaM2:   math.Pow(float64(grid.Size)*grid.CellSizeMeters, 2),
		TrackPoints:  len(track),
		TrackLengthM: PathLength(track),
	}
	if len(track) > 1 {
		st.Duration = track[len(track)-1].Timestamp.Sub(track[0].Timestamp)
	}

	depths := grid.ValidDepths()
	st.ValidCells = len(depths)
	if st.TotalCells > 0 {
		st.CoverageFraction = float64(st.ValidCells) / float64(st.TotalCells)
	}
	st.CoveredAreaM2 = st.CoverageFraction * st.TileAreaM2
	if len(depths) == 0 {
		return st
	}

	st.Depth = &DepthStats{
		Mean: floats.Sum(depths) / float64(len(depths)),
		Min:  floats.Min(depths),
		Max:  floats.Max(depths),
	}
	if !(swathHalfAngleDeg > 0 && swathHalfAngleDeg < 90) {
		swathHalfAngleDeg = DefaultSwathHalfAngleDegrees
	}
	width := 2 * st.Depth.Mean * math.Tan(swathHalfAngleDeg*math.Pi/180)
	st.SwathAreaM2 = st.TrackLengthM * width
	return st
}
