package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/banshee-data/bathymetry.report/internal/monitoring"
	"github.com/banshee-data/bathymetry.report/internal/sonar/l4filters"
	"github.com/banshee-data/bathymetry.report/internal/sonar/l4terrain"
)

// AnalysisKind names a terrain analysis.
type AnalysisKind string

const (
	AnalysisSlope        AnalysisKind = "slope"
	AnalysisFeatures     AnalysisKind = "features"
	AnalysisQuality      AnalysisKind = "quality"
	AnalysisDistribution AnalysisKind = "distribution"
)

// ErrUnknownAnalysis is returned for an unrecognised AnalysisKind.
var ErrUnknownAnalysis = errors.New("unknown analysis")

// ParseAnalysisKind resolves an analysis name.
func ParseAnalysisKind(s string) (AnalysisKind, error) {
	switch k := AnalysisKind(strings.ToLower(strings.TrimSpace(s))); k {
	case AnalysisSlope, AnalysisFeatures, AnalysisQuality, AnalysisDistribution:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAnalysis, s)
}

// Analysis is the result of Engine.Analyze. Exactly one product is set.
type Analysis struct {
	Kind         AnalysisKind                  `json:"kind"`
	Slope        *l4terrain.SlopeResult        `json:"slope,omitempty"`
	Features     *l4terrain.FeatureResult      `json:"features,omitempty"`
	Quality      *l4terrain.QualityResult      `json:"quality,omitempty"`
	Distribution *l4terrain.DistributionResult `json:"distribution,omitempty"`
}

// Analyze runs one terrain analysis over a gap-filled copy of the grid.
// Ingestion is not blocked while it runs. A grid with no valid cells
// yields l4terrain.ErrEmptyGrid.
func (e *Engine) Analyze(kind AnalysisKind) (*Analysis, error) {
	d := e.filler.Fill(e.grid.Snapshot())
	a := &Analysis{Kind: kind}
	var err error
	switch kind {
	case AnalysisSlope:
		a.Slope, err = l4terrain.Slope(d)
	case AnalysisFeatures:
		a.Features, err = l4terrain.Features(d)
	case AnalysisQuality:
		a.Quality, err = l4terrain.Quality(d)
	case AnalysisDistribution:
		a.Distribution, err = l4terrain.Distribution(d)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAnalysis, kind)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Filter applies a filter to the grid and installs the result. The grid
// keeps its validity mask. Packets are held off while the filter runs so
// none are lost when the result is installed.
func (e *Engine) Filter(kind l4filters.Kind, strength float64) (*l4filters.Result, error) {
	e.mutateMu.Lock()
	defer e.mutateMu.Unlock()

	snap := e.grid.Snapshot()
	if snap.ValidCount() == 0 {
		return nil, l4terrain.ErrEmptyGrid
	}
	res, err := l4filters.Apply(e.filler.Fill(snap), kind, strength)
	if err != nil {
		return nil, err
	}
	if err := e.grid.Replace(res.Dense.ToSnapshot(e.cfg.Grid.DepthFloorMeters)); err != nil {
		return nil, fmt.Errorf("install filtered grid: %w", err)
	}
	monitoring.Logf("[Engine] applied filter %s strength=%.1f replaced=%d", res.Kind, res.Strength, res.Replaced)
	return res, nil
}
