package l5survey

import (
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultMovingAverageWindow is the moving-average length of a TrendReport.
const DefaultMovingAverageWindow = 10

// TrendSample is the mean range of one accepted packet.
type TrendSample struct {
	Timestamp time.Time `json:"timestamp"`
	MeanDepth float64   `json:"mean_depth"`
}

// DepthTrend keeps a bounded history of per-packet mean depths. Safe for
// concurrent use.
type DepthTrend struct {
	mu      sync.RWMutex
	samples ring[TrendSample]
}

// NewDepthTrend creates a history of at most capacity samples.
func NewDepthTrend(capacity int) *DepthTrend {
	return &DepthTrend{samples: newRing[TrendSample](capacity)}
}

// Add records a sample, dropping the oldest when full.
func (d *DepthTrend) Add(s TrendSample) {
	d.mu.Lock()
	d.samples.push(s)
	d.mu.Unlock()
}

// Samples returns a copy of the history, oldest first.
func (d *DepthTrend) Samples() []TrendSample {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.samples.items()
}

// Reset discards the history.
func (d *DepthTrend) Reset() {
	d.mu.Lock()
	d.samples.reset()
	d.mu.Unlock()
}

// TrendReport describes the depth history.
type TrendReport struct {
	Samples int  `json:"samples"`
	Defined bool `json:"defined"`

	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`

	// MovingAverage has one entry per full window, oldest first.
	MovingAverage []float64 `json:"moving_average"`
	// Slope and Intercept fit depth = Intercept + Slope·i over sample index i.
	// Both are zero with fewer than two samples.
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
}

// Report summarises the history with a moving average of the given window
// (DefaultMovingAverageWindow when < 1).
func (d *DepthTrend) Report(window int) TrendReport {
	samples := d.Samples()
	rep := TrendReport{Samples: len(samples)}
	if len(samples) == 0 {
		return rep
	}
	if window < 1 {
		window = DefaultMovingAverageWindow
	}

	ys := make([]float64, len(samples))
	xs := make([]float64, len(samples))
	for i, s := range samples {
		ys[i] = s.MeanDepth
		xs[i] = float64(i)
	}
	rep.Defined = true
	rep.Mean, rep.Std = stat.PopMeanStdDev(ys, nil)
	rep.Min = floats.Min(ys)
	rep.Max = floats.Max(ys)

	if len(ys) >= window {
		rep.MovingAverage = make([]float64, 0, len(ys)-window+1)
		sum := floats.Sum(ys[:window])
		rep.MovingAverage = append(rep.MovingAverage, sum/float64(window))
		for i := window; i < len(ys); i++ {
			sum += ys[i] - ys[i-window]
			rep.MovingAverage = append(rep.MovingAverage, sum/float64(window))
		}
	}

	if len(ys) >= 2 {
		rep.Intercept, rep.Slope = stat.LinearRegression(xs, ys, nil, false)
	}
	return rep
}
