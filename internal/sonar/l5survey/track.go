package l5survey

import (
	"math"
	"sync"
	"time"
)

// DefaultTrackCapacity is the number of positions a Track retains.
const DefaultTrackCapacity = 1000

// TrackPoint is one accepted vessel position.
type TrackPoint struct {
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Timestamp time.Time `json:"timestamp"`
}

// Track is a bounded FIFO of vessel positions. Safe for concurrent use.
type Track struct {
	mu     sync.RWMutex
	points ring[TrackPoint]
}

// NewTrack creates a track retaining at most capacity points.
func NewTrack(capacity int) *Track {
	return &Track{points: newRing[TrackPoint](capacity)}
}

// Append adds a point, dropping the oldest when full.
func (t *Track) Append(p TrackPoint) {
	t.mu.Lock()
	t.points.push(p)
	t.mu.Unlock()
}

// Points returns a copy of the retained points, oldest first.
func (t *Track) Points() []TrackPoint {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.points.items()
}

// Len returns the number of retained points.
func (t *Track) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.points.n
}

// Capacity returns the maximum number of retained points.
func (t *Track) Capacity() int {
	return len(t.points.buf)
}

// Replace discards the current points and appends pts in order.
func (t *Track) Replace(pts []TrackPoint) {
	t.mu.Lock()
	t.points.reset()
	for _, p := range pts {
		t.points.push(p)
	}
	t.mu.Unlock()
}

// Reset discards all points.
func (t *Track) Reset() {
	t.mu.Lock()
	t.points.reset()
	t.mu.Unlock()
}

// PathLength returns the summed straight-line distance between
// consecutive points. Fewer than two points give zero.
func PathLength(pts []TrackPoint) float64 {
	total := 0.0
	for i := 1; i < len(pts); i++ {
		total += math.Hypot(pts[i].X-pts[i-1].X, pts[i].Y-pts[i-1].Y)
	}
	return total
}
