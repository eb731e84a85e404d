package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical survey defaults file.
const DefaultConfigPath = "config/survey.defaults.json"

const maxConfigFileSize = 1 * 1024 * 1024 // 1MB

// SurveyConfig holds the tunable parameters of the grid engine, the
// synthetic sensor source and the snapshot flusher. Every field is optional;
// the Get* methods supply defaults for anything omitted, so partial files
// are safe. The same schema is accepted as JSON or YAML.
type SurveyConfig struct {
	// Grid params
	GridSize               *int     `json:"grid_size,omitempty" yaml:"grid_size,omitempty"`
	CellSizeMeters         *float64 `json:"cell_size_meters,omitempty" yaml:"cell_size_meters,omitempty"`
	UpdateAlpha            *float64 `json:"update_alpha,omitempty" yaml:"update_alpha,omitempty"`
	BeamStride             *int     `json:"beam_stride,omitempty" yaml:"beam_stride,omitempty"`
	DepthFloorMeters       *float64 `json:"depth_floor_meters,omitempty" yaml:"depth_floor_meters,omitempty"`
	DefaultFillDepthMeters *float64 `json:"default_fill_depth_meters,omitempty" yaml:"default_fill_depth_meters,omitempty"`

	// Survey params
	TrackCapacity         *int     `json:"track_capacity,omitempty" yaml:"track_capacity,omitempty"`
	TrendWindow           *int     `json:"trend_window,omitempty" yaml:"trend_window,omitempty"`
	SwathHalfAngleDegrees *float64 `json:"swath_half_angle_degrees,omitempty" yaml:"swath_half_angle_degrees,omitempty"`

	// Flush params
	FlushInterval *string `json:"flush_interval,omitempty" yaml:"flush_interval,omitempty"` // duration string like "60s"
	FlushDisable  *bool   `json:"flush_disable,omitempty" yaml:"flush_disable,omitempty"`
	SnapshotKeep  *int    `json:"snapshot_keep,omitempty" yaml:"snapshot_keep,omitempty"` // 0 keeps every snapshot

	// Simulator params
	SimInterval    *string  `json:"sim_interval,omitempty" yaml:"sim_interval,omitempty"` // duration string like "500ms"
	SimBeamCount   *int     `json:"sim_beam_count,omitempty" yaml:"sim_beam_count,omitempty"`
	SimNoiseLevel  *float64 `json:"sim_noise_level,omitempty" yaml:"sim_noise_level,omitempty"`
	SimQualityMode *string  `json:"sim_quality_mode,omitempty" yaml:"sim_quality_mode,omitempty"`
	SimBufferSize  *int     `json:"sim_buffer_size,omitempty" yaml:"sim_buffer_size,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptySurveyConfig returns a SurveyConfig with all fields unset.
func EmptySurveyConfig() *SurveyConfig {
	return &SurveyConfig{}
}

// DefaultSurveyConfig returns a fully populated config with the built-in
// defaults. It matches config/survey.defaults.json.
func DefaultSurveyConfig() *SurveyConfig {
	return &SurveyConfig{
		GridSize:               ptrInt(100),
		CellSizeMeters:         ptrFloat64(0.2),
		UpdateAlpha:            ptrFloat64(0.3),
		BeamStride:             ptrInt(4),
		DepthFloorMeters:       ptrFloat64(5.0),
		DefaultFillDepthMeters: ptrFloat64(20.0),
		TrackCapacity:          ptrInt(1000),
		TrendWindow:            ptrInt(500),
		SwathHalfAngleDegrees:  ptrFloat64(75.0),
		FlushInterval:          ptrString("60s"),
		FlushDisable:           ptrBool(false),
		SnapshotKeep:           ptrInt(100),
		SimInterval:            ptrString("500ms"),
		SimBeamCount:           ptrInt(64),
		SimNoiseLevel:          ptrFloat64(0.2),
		SimQualityMode:         ptrString("high"),
		SimBufferSize:          ptrInt(64),
	}
}

// LoadSurveyConfig loads a SurveyConfig from a .json, .yaml or .yml file.
// The file must be under 1MB.
func LoadSurveyConfig(path string) (*SurveyConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	switch ext {
	case ".json", ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxConfigFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptySurveyConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents up to the repository root. Panics if the file
// cannot be loaded; intended for test setup.
func MustLoadDefaultConfig() *SurveyConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,          // from internal/config/
		"../../../" + DefaultConfigPath,       // from internal/sonar/l3grid/
		"../../../../" + DefaultConfigPath,    // from internal/sonar/storage/sqlite/
		"../../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadSurveyConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that every set field is in range.
func (c *SurveyConfig) Validate() error {
	if c.GridSize != nil && *c.GridSize < 3 {
		return fmt.Errorf("grid_size must be at least 3, got %d", *c.GridSize)
	}
	if c.CellSizeMeters != nil && *c.CellSizeMeters <= 0 {
		return fmt.Errorf("cell_size_meters must be positive, got %f", *c.CellSizeMeters)
	}
	if c.UpdateAlpha != nil && (*c.UpdateAlpha <= 0 || *c.UpdateAlpha > 1) {
		return fmt.Errorf("update_alpha must be in (0, 1], got %f", *c.UpdateAlpha)
	}
	if c.BeamStride != nil && *c.BeamStride < 1 {
		return fmt.Errorf("beam_stride must be at least 1, got %d", *c.BeamStride)
	}
	if c.DepthFloorMeters != nil && *c.DepthFloorMeters < 0 {
		return fmt.Errorf("depth_floor_meters must be non-negative, got %f", *c.DepthFloorMeters)
	}
	if c.DefaultFillDepthMeters != nil && c.DepthFloorMeters != nil && *c.DefaultFillDepthMeters < *c.DepthFloorMeters {
		return fmt.Errorf("default_fill_depth_meters %f is below depth_floor_meters %f", *c.DefaultFillDepthMeters, *c.DepthFloorMeters)
	}
	if c.TrackCapacity != nil && *c.TrackCapacity < 1 {
		return fmt.Errorf("track_capacity must be positive, got %d", *c.TrackCapacity)
	}
	if c.TrendWindow != nil && *c.TrendWindow < 1 {
		return fmt.Errorf("trend_window must be positive, got %d", *c.TrendWindow)
	}
	if c.SwathHalfAngleDegrees != nil && (*c.SwathHalfAngleDegrees <= 0 || *c.SwathHalfAngleDegrees >= 90) {
		return fmt.Errorf("swath_half_angle_degrees must be in (0, 90), got %f", *c.SwathHalfAngleDegrees)
	}
	if c.FlushInterval != nil && *c.FlushInterval != "" {
		d, err := time.ParseDuration(*c.FlushInterval)
		if err != nil {
			return fmt.Errorf("invalid flush_interval '%s': %w", *c.FlushInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("flush_interval must be positive, got %s", d)
		}
	}
	if c.SnapshotKeep != nil && *c.SnapshotKeep < 0 {
		return fmt.Errorf("snapshot_keep must be non-negative, got %d", *c.SnapshotKeep)
	}
	if c.SimInterval != nil && *c.SimInterval != "" {
		d, err := time.ParseDuration(*c.SimInterval)
		if err != nil {
			return fmt.Errorf("invalid sim_interval '%s': %w", *c.SimInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("sim_interval must be positive, got %s", d)
		}
	}
	if c.SimBeamCount != nil && *c.SimBeamCount < 1 {
		return fmt.Errorf("sim_beam_count must be positive, got %d", *c.SimBeamCount)
	}
	if c.SimNoiseLevel != nil && *c.SimNoiseLevel < 0 {
		return fmt.Errorf("sim_noise_level must be non-negative, got %f", *c.SimNoiseLevel)
	}
	if c.SimQualityMode != nil {
		switch *c.SimQualityMode {
		case "high", "standard", "fast":
		default:
			return fmt.Errorf("sim_quality_mode must be one of high, standard, fast; got %q", *c.SimQualityMode)
		}
	}
	if c.SimBufferSize != nil && *c.SimBufferSize < 0 {
		return fmt.Errorf("sim_buffer_size must be non-negative, got %d", *c.SimBufferSize)
	}
	return nil
}

// GetGridSize returns the grid side length in cells.
func (c *SurveyConfig) GetGridSize() int {
	if c.GridSize == nil {
		return 100
	}
	return *c.GridSize
}

// GetCellSizeMeters returns the side of one cell in metres.
func (c *SurveyConfig) GetCellSizeMeters() float64 {
	if c.CellSizeMeters == nil {
		return 0.2
	}
	return *c.CellSizeMeters
}

// GetUpdateAlpha returns the EWMA weight given to a new observation.
func (c *SurveyConfig) GetUpdateAlpha() float64 {
	if c.UpdateAlpha == nil {
		return 0.3
	}
	return *c.UpdateAlpha
}

// GetBeamStride returns the beam decimation stride.
func (c *SurveyConfig) GetBeamStride() int {
	if c.BeamStride == nil {
		return 4
	}
	return *c.BeamStride
}

// GetDepthFloorMeters returns the minimum depth applied to every range.
func (c *SurveyConfig) GetDepthFloorMeters() float64 {
	if c.DepthFloorMeters == nil {
		return 5.0
	}
	return *c.DepthFloorMeters
}

// GetDefaultFillDepthMeters returns the depth used to fill a grid with no data.
func (c *SurveyConfig) GetDefaultFillDepthMeters() float64 {
	if c.DefaultFillDepthMeters == nil {
		return 20.0
	}
	return *c.DefaultFillDepthMeters
}

// GetTrackCapacity returns the maximum number of retained track points.
func (c *SurveyConfig) GetTrackCapacity() int {
	if c.TrackCapacity == nil {
		return 1000
	}
	return *c.TrackCapacity
}

// GetTrendWindow returns the depth-trend history length.
func (c *SurveyConfig) GetTrendWindow() int {
	if c.TrendWindow == nil {
		return 500
	}
	return *c.TrendWindow
}

// GetSwathHalfAngleDegrees returns the half-angle used for swath estimates.
func (c *SurveyConfig) GetSwathHalfAngleDegrees() float64 {
	if c.SwathHalfAngleDegrees == nil {
		return 75.0
	}
	return *c.SwathHalfAngleDegrees
}

// GetFlushInterval parses FlushInterval, falling back to 60s.
func (c *SurveyConfig) GetFlushInterval() time.Duration {
	return parseDurationOr(c.FlushInterval, 60*time.Second)
}

// GetFlushDisable reports whether periodic snapshot flushing is off.
func (c *SurveyConfig) GetFlushDisable() bool {
	if c.FlushDisable == nil {
		return false
	}
	return *c.FlushDisable
}

// GetSnapshotKeep returns how many snapshots per survey the flusher retains.
// Zero disables pruning.
func (c *SurveyConfig) GetSnapshotKeep() int {
	if c.SnapshotKeep == nil {
		return 100
	}
	return *c.SnapshotKeep
}

// GetSimInterval parses SimInterval, falling back to 500ms.
func (c *SurveyConfig) GetSimInterval() time.Duration {
	return parseDurationOr(c.SimInterval, 500*time.Millisecond)
}

// GetSimBeamCount returns the simulated beam count.
func (c *SurveyConfig) GetSimBeamCount() int {
	if c.SimBeamCount == nil {
		return 64
	}
	return *c.SimBeamCount
}

// GetSimNoiseLevel returns the simulated range noise standard deviation.
func (c *SurveyConfig) GetSimNoiseLevel() float64 {
	if c.SimNoiseLevel == nil {
		return 0.2
	}
	return *c.SimNoiseLevel
}

// GetSimQualityMode returns the simulated quality mode.
func (c *SurveyConfig) GetSimQualityMode() string {
	if c.SimQualityMode == nil {
		return "high"
	}
	return *c.SimQualityMode
}

// GetSimBufferSize returns the capacity of the simulator output channel.
func (c *SurveyConfig) GetSimBufferSize() int {
	if c.SimBufferSize == nil {
		return 64
	}
	return *c.SimBufferSize
}

func parseDurationOr(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def
	}
	return d
}
