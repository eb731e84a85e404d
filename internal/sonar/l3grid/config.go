package l3grid

import (
	"fmt"

	"github.com/banshee-data/bathymetry.report/internal/config"
)

// GridConfig is a builder for DepthGrid, GridUpdater and GapFiller
// parameters. It is validated once, before any grid is created.
type GridConfig struct {
	Size                   int     // Cells per side (default: 100)
	CellSizeMeters         float64 // Side of one cell (default: 0.2)
	UpdateAlpha            float64 // EWMA weight of a new reading (default: 0.3)
	BeamStride             int     // Apply every Nth beam (default: 4)
	DepthFloorMeters       float64 // Ranges are clamped up to this (default: 5)
	DefaultFillDepthMeters float64 // Fill value for an empty grid (default: 20)
}

// DefaultGridConfig returns the built-in grid defaults.
func DefaultGridConfig() *GridConfig {
	return GridConfigFromSurvey(config.DefaultSurveyConfig())
}

// GridConfigFromSurvey builds a GridConfig from a loaded SurveyConfig.
func GridConfigFromSurvey(cfg *config.SurveyConfig) *GridConfig {
	return &GridConfig{
		Size:                   cfg.GetGridSize(),
		CellSizeMeters:         cfg.GetCellSizeMeters(),
		UpdateAlpha:            cfg.GetUpdateAlpha(),
		BeamStride:             cfg.GetBeamStride(),
		DepthFloorMeters:       cfg.GetDepthFloorMeters(),
		DefaultFillDepthMeters: cfg.GetDefaultFillDepthMeters(),
	}
}

// WithSize sets the number of cells per side.
func (c *GridConfig) WithSize(n int) *GridConfig {
	c.Size = n
	return c
}

// WithCellSize sets the side of one cell in metres.
func (c *GridConfig) WithCellSize(m float64) *GridConfig {
	c.CellSizeMeters = m
	return c
}

// WithUpdateAlpha sets the EWMA weight.
func (c *GridConfig) WithUpdateAlpha(alpha float64) *GridConfig {
	c.UpdateAlpha = alpha
	return c
}

// WithBeamStride sets the beam decimation stride.
func (c *GridConfig) WithBeamStride(n int) *GridConfig {
	c.BeamStride = n
	return c
}

// WithDepthFloor sets the minimum depth.
func (c *GridConfig) WithDepthFloor(m float64) *GridConfig {
	c.DepthFloorMeters = m
	return c
}

// WithDefaultFillDepth sets the depth used to fill an empty grid.
func (c *GridConfig) WithDefaultFillDepth(m float64) *GridConfig {
	c.DefaultFillDepthMeters = m
	return c
}

// TileSizeMeters is the side of the square area the grid covers.
func (c *GridConfig) TileSizeMeters() float64 {
	return float64(c.Size) * c.CellSizeMeters
}

// Validate checks that all parameters are within valid ranges.
func (c *GridConfig) Validate() error {
	if c.Size < 3 {
		return fmt.Errorf("Size must be at least 3, got %d", c.Size)
	}
	if c.CellSizeMeters <= 0 {
		return fmt.Errorf("CellSizeMeters must be positive, got %f", c.CellSizeMeters)
	}
	if c.UpdateAlpha <= 0 || c.UpdateAlpha > 1 {
		return fmt.Errorf("UpdateAlpha must be in (0, 1], got %f", c.UpdateAlpha)
	}
	if c.BeamStride < 1 {
		return fmt.Errorf("BeamStride must be at least 1, got %d", c.BeamStride)
	}
	if c.DepthFloorMeters < 0 {
		return fmt.Errorf("DepthFloorMeters must be non-negative, got %f", c.DepthFloorMeters)
	}
	if c.DefaultFillDepthMeters < c.DepthFloorMeters {
		return fmt.Errorf("DefaultFillDepthMeters %f is below DepthFloorMeters %f", c.DefaultFillDepthMeters, c.DepthFloorMeters)
	}
	return nil
}

// NewGrid validates the config and creates an empty grid from it.
func (c *GridConfig) NewGrid() (*DepthGrid, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid grid config: %w", err)
	}
	return NewDepthGrid(c.Size, c.CellSizeMeters)
}

// NewUpdater returns a GridUpdater using this config's update parameters.
func (c *GridConfig) NewUpdater() *GridUpdater {
	return &GridUpdater{
		Alpha:            c.UpdateAlpha,
		BeamStride:       c.BeamStride,
		DepthFloorMeters: c.DepthFloorMeters,
	}
}

// NewFiller returns a GapFiller using this config's default fill depth.
func (c *GridConfig) NewFiller() GapFiller {
	return GapFiller{DefaultDepthMeters: c.DefaultFillDepthMeters}
}
