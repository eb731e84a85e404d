package simulator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/bathymetry.report/internal/config"
	"github.com/banshee-data/bathymetry.report/internal/sonar/l1packets"
	"github.com/banshee-data/bathymetry.report/internal/sonar/l3grid"
	"github.com/banshee-data/bathymetry.report/internal/timeutil"
)

// QualityMode scales the configured noise level.
type QualityMode string

const (
	QualityHigh     QualityMode = "high"
	QualityStandard QualityMode = "standard"
	QualityFast     QualityMode = "fast"
)

// ErrInvalidParams is returned by SetParams and NewSensor for unusable
// parameters.
var ErrInvalidParams = errors.New("invalid sensor parameters")

// ParseQualityMode resolves a quality mode name.
func ParseQualityMode(s string) (QualityMode, error) {
	switch m := QualityMode(strings.ToLower(strings.TrimSpace(s))); m {
	case QualityHigh, QualityStandard, QualityFast:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown quality mode %q", ErrInvalidParams, s)
}

// NoiseMultiplier returns the factor applied to the noise level.
func (m QualityMode) NoiseMultiplier() float64 {
	switch m {
	case QualityHigh:
		return 0.5
	case QualityFast:
		return 2.0
	default:
		return 1.0
	}
}

// SwathHalfAngleDegrees is the outermost simulated beam angle.
const SwathHalfAngleDegrees = 75.0

// Params are the runtime-tunable sensor settings.
type Params struct {
	Interval   time.Duration
	BeamCount  int
	NoiseLevel float64
	Quality    QualityMode
}

// ParamsFromSurvey reads the sim_* settings of cfg.
func ParamsFromSurvey(cfg *config.SurveyConfig) (Params, error) {
	q, err := ParseQualityMode(cfg.GetSimQualityMode())
	if err != nil {
		return Params{}, err
	}
	p := Params{
		Interval:   cfg.GetSimInterval(),
		BeamCount:  cfg.GetSimBeamCount(),
		NoiseLevel: cfg.GetSimNoiseLevel(),
		Quality:    q,
	}
	return p, p.Validate()
}

// Validate checks p.
func (p Params) Validate() error {
	if p.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %v", ErrInvalidParams, p.Interval)
	}
	if p.BeamCount < 1 {
		return fmt.Errorf("%w: beam count must be positive, got %d", ErrInvalidParams, p.BeamCount)
	}
	if !(p.NoiseLevel >= 0) || math.IsInf(p.NoiseLevel, 0) {
		return fmt.Errorf("%w: noise level must be non-negative and finite, got %v", ErrInvalidParams, p.NoiseLevel)
	}
	if _, err := ParseQualityMode(string(p.Quality)); err != nil {
		return err
	}
	return nil
}

// DropCounter receives packets discarded because the output was full.
// monitoring.IngestCounters implements it.
type DropCounter interface {
	Dropped(n int64)
}

// SensorConfig configures a Sensor.
type SensorConfig struct {
	Params Params
	// BufferSize is the output channel capacity (default 64).
	BufferSize int
	Terrain    *Terrain
	// Seed fixes the noise sequence. Zero seeds from the clock.
	Seed   int64
	Drops  DropCounter
	Clock  timeutil.Clock
	Logger *log.Logger
}

// Sensor emits synthetic beam packets on a ticker.
type Sensor struct {
	terrain Terrain
	clock   timeutil.Clock
	logger  *log.Logger
	drops   DropCounter
	out     chan *l1packets.BeamPacket
	retune  chan struct{}

	mu     sync.Mutex
	params Params
	rng    *rand.Rand
	pos    l1packets.Point

	running  atomic.Bool
	produced atomic.Int64
	dropped  atomic.Int64
}

// NewSensor creates a Sensor positioned at the origin.
func NewSensor(cfg SensorConfig) (*Sensor, error) {
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	buf := cfg.BufferSize
	if buf <= 0 {
		buf = 64
	}
	terrain := DefaultTerrain()
	if cfg.Terrain != nil {
		terrain = *cfg.Terrain
	}
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = clock.Now().UnixNano()
	}
	return &Sensor{
		terrain: terrain,
		clock:   clock,
		logger:  logger,
		drops:   cfg.Drops,
		out:     make(chan *l1packets.BeamPacket, buf),
		retune:  make(chan struct{}, 1),
		params:  cfg.Params,
		rng:     rand.New(rand.NewSource(seed)),
	}, nil
}

// Out returns the packet channel. It is closed when Run returns.
func (s *Sensor) Out() <-chan *l1packets.BeamPacket { return s.out }

// Params returns the current settings.
func (s *Sensor) Params() Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// SetParams changes the settings of a running sensor. A new interval takes
// effect from the next tick.
func (s *Sensor) SetParams(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	old := s.params
	s.params = p
	s.mu.Unlock()
	if old.Interval != p.Interval {
		select {
		case s.retune <- struct{}{}:
		default:
		}
	}
	s.logger.Printf("[Sensor] params updated: interval=%v beams=%d noise=%.2f quality=%s",
		p.Interval, p.BeamCount, p.NoiseLevel, p.Quality)
	return nil
}

// Run emits one packet per tick until ctx is cancelled, then closes Out.
// Packets that do not fit in the output buffer are dropped and counted.
// Run may be called once.
func (s *Sensor) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("sensor already running")
	}
	defer close(s.out)

	ticker := s.clock.NewTicker(s.Params().Interval)
	defer ticker.Stop()
	s.logger.Printf("[Sensor] started: interval=%v buffer=%d", s.Params().Interval, cap(s.out))

	for {
		select {
		case <-ctx.Done():
			s.logger.Printf("[Sensor] stopped: produced=%d dropped=%d", s.produced.Load(), s.dropped.Load())
			return nil
		case <-s.retune:
			ticker.Reset(s.Params().Interval)
		case <-ticker.C():
			p := s.Next()
			select {
			case s.out <- p:
				s.produced.Add(1)
			default:
				s.dropped.Add(1)
				if s.drops != nil {
					s.drops.Dropped(1)
				}
			}
		}
	}
}

// Next advances the vessel one step and returns the packet it would emit.
func (s *Sensor) Next() *l1packets.BeamPacket {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.pos
	s.pos.X += 0.1
	s.pos.Y += 0.05 * math.Sin(s.pos.X*0.8)

	p := s.params
	noise := p.NoiseLevel * p.Quality.NoiseMultiplier()
	base := BaseDepth(s.pos)

	angles := beamAngles(p.BeamCount)
	ranges := make([]float64, len(angles))
	for i, a := range angles {
		x, y := l3grid.BeamFootprint(s.pos, a, base)
		ranges[i] = s.terrain.Depth(base, x, y, s.rng.NormFloat64()*noise)
	}

	return &l1packets.BeamPacket{
		Timestamp:  s.clock.Now(),
		Position:   s.pos,
		Heading:    math.Mod(math.Atan2(s.pos.Y-prev.Y, s.pos.X-prev.X)*180/math.Pi+360, 360),
		Quality:    string(p.Quality),
		BeamAngles: angles,
		BeamRanges: ranges,
	}
}

// Stats returns the number of packets delivered and dropped.
func (s *Sensor) Stats() (produced, dropped int64) {
	return s.produced.Load(), s.dropped.Load()
}

// beamAngles spaces n beams evenly over ±SwathHalfAngleDegrees. A single
// beam points at the port edge.
func beamAngles(n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = -SwathHalfAngleDegrees
		return out
	}
	step := 2 * SwathHalfAngleDegrees / float64(n-1)
	for i := range out {
		out[i] = -SwathHalfAngleDegrees + step*float64(i)
	}
	return out
}
