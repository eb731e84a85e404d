package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/bathymetry.report/internal/config"
	"github.com/banshee-data/bathymetry.report/internal/monitoring"
	"github.com/banshee-data/bathymetry.report/internal/sonar/l1packets"
	"github.com/banshee-data/bathymetry.report/internal/sonar/l3grid"
	"github.com/banshee-data/bathymetry.report/internal/sonar/l5survey"
)

// Config holds the engine parameters.
type Config struct {
	Grid                  *l3grid.GridConfig
	TrackCapacity         int
	TrendWindow           int
	SwathHalfAngleDegrees float64
	// SurveyID labels persisted snapshots. Empty is allowed.
	SurveyID string
}

// ConfigFromSurvey builds an engine Config from a loaded SurveyConfig.
func ConfigFromSurvey(cfg *config.SurveyConfig) Config {
	return Config{
		Grid:                  l3grid.GridConfigFromSurvey(cfg),
		TrackCapacity:         cfg.GetTrackCapacity(),
		TrendWindow:           cfg.GetTrendWindow(),
		SwathHalfAngleDegrees: cfg.GetSwathHalfAngleDegrees(),
	}
}

// DefaultConfig returns the built-in engine defaults.
func DefaultConfig() Config {
	return ConfigFromSurvey(config.DefaultSurveyConfig())
}

// Engine owns one survey: its depth grid, track and depth trend.
type Engine struct {
	cfg     Config
	grid    *l3grid.DepthGrid
	updater *l3grid.GridUpdater
	filler  l3grid.GapFiller
	track   *l5survey.Track
	trend   *l5survey.DepthTrend

	counters monitoring.IngestCounters

	// mutateMu serialises every grid and track mutation.
	mutateMu sync.Mutex
	stopped  atomic.Bool
	running  atomic.Bool
}

// NewEngine validates cfg and creates an engine with an empty grid.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Grid == nil {
		cfg.Grid = l3grid.DefaultGridConfig()
	}
	grid, err := cfg.Grid.NewGrid()
	if err != nil {
		return nil, err
	}
	if cfg.TrackCapacity < 1 {
		cfg.TrackCapacity = l5survey.DefaultTrackCapacity
	}
	if cfg.TrendWindow < 1 {
		cfg.TrendWindow = cfg.TrackCapacity
	}
	return &Engine{
		cfg:     cfg,
		grid:    grid,
		updater: cfg.Grid.NewUpdater(),
		filler:  cfg.Grid.NewFiller(),
		track:   l5survey.NewTrack(cfg.TrackCapacity),
		trend:   l5survey.NewDepthTrend(cfg.TrendWindow),
	}, nil
}

// SurveyID returns the label used for persisted snapshots.
func (e *Engine) SurveyID() string { return e.cfg.SurveyID }

// Ingest applies one packet. Invalid packets are counted, logged and
// returned as an error wrapping l1packets.ErrInvalidPacket; the grid and
// track are unchanged in that case.
func (e *Engine) Ingest(p *l1packets.BeamPacket) error {
	if e == nil || e.grid == nil {
		return fmt.Errorf("engine or grid nil")
	}
	e.mutateMu.Lock()
	res, err := e.updater.Apply(e.grid, p)
	if err == nil {
		e.track.Append(l5survey.TrackPoint{X: p.Position.X, Y: p.Position.Y, Timestamp: p.Timestamp})
		e.trend.Add(l5survey.TrendSample{Timestamp: p.Timestamp, MeanDepth: res.MeanRange})
	}
	e.mutateMu.Unlock()

	if err != nil {
		e.counters.Rejected()
		monitoring.Logf("[Engine] rejected packet: %v", err)
		return err
	}
	e.counters.Accepted(res.BeamsApplied, res.BeamsSkipped)
	return nil
}

// Run consumes packets until ctx is cancelled, in is closed or Stop is
// called. Stopping is checked between packets; a packet that has been
// received is always applied. Invalid packets do not stop the loop.
func (e *Engine) Run(ctx context.Context, in <-chan *l1packets.BeamPacket) error {
	if !e.running.CompareAndSwap(false, true) {
		return errors.New("engine already running")
	}
	defer e.running.Store(false)
	e.stopped.Store(false)
	monitoring.Logf("[Engine] ingestion started: grid=%dx%d cell=%.2fm",
		e.grid.Size(), e.grid.Size(), e.grid.CellSizeMeters())

	for {
		if e.stopped.Load() {
			monitoring.Logf("[Engine] ingestion stopped")
			return nil
		}
		select {
		case <-ctx.Done():
			monitoring.Logf("[Engine] ingestion stopping: %v", ctx.Err())
			return nil
		case p, ok := <-in:
			if !ok {
				monitoring.Logf("[Engine] packet source closed")
				return nil
			}
			_ = e.Ingest(p)
		}
	}
}

// Stop asks Run to return before the next packet.
func (e *Engine) Stop() { e.stopped.Store(true) }

// IsRunning reports whether Run is active.
func (e *Engine) IsRunning() bool { return e.running.Load() }

// Grid returns the live grid. Callers must not mutate it; use the engine
// methods instead.
func (e *Engine) Grid() *l3grid.DepthGrid { return e.grid }

// CurrentGrid returns a copy of the grid.
func (e *Engine) CurrentGrid() *l3grid.Snapshot { return e.grid.Snapshot() }

// CurrentTrack returns a copy of the track, oldest first.
func (e *Engine) CurrentTrack() []l5survey.TrackPoint { return e.track.Points() }

// CurrentStatistics aggregates the current grid and track.
func (e *Engine) CurrentStatistics() l5survey.Statistics {
	grid, track := e.consistentCopy()
	return l5survey.Compute(grid, track, e.cfg.SwathHalfAngleDegrees)
}

// Trend reports the per-packet depth history with the given moving-average
// window.
func (e *Engine) Trend(window int) l5survey.TrendReport {
	return e.trend.Report(window)
}

// Counters returns a copy of the ingestion counters.
func (e *Engine) Counters() monitoring.IngestStats { return e.counters.Stats() }

// IngestCounters exposes the live counters so a packet source can report
// drops.
func (e *Engine) IngestCounters() *monitoring.IngestCounters { return &e.counters }

// Reset clears the grid, track and trend.
func (e *Engine) Reset() {
	e.mutateMu.Lock()
	e.grid.Reset()
	e.track.Reset()
	e.trend.Reset()
	e.mutateMu.Unlock()
	monitoring.Logf("[Engine] survey reset")
}

// consistentCopy returns grid and track copies taken between packets.
func (e *Engine) consistentCopy() (*l3grid.Snapshot, []l5survey.TrackPoint) {
	e.mutateMu.Lock()
	defer e.mutateMu.Unlock()
	return e.grid.Snapshot(), e.track.Points()
}
