package simulator

import (
	"math"

	"github.com/banshee-data/bathymetry.report/internal/sonar/l1packets"
)

// FeatureKind names a seafloor feature shape.
type FeatureKind string

const (
	Ridge    FeatureKind = "ridge"
	Crater   FeatureKind = "crater"
	Seamount FeatureKind = "seamount"
)

// Feature is one procedural relief element. Positive Height raises the
// seafloor (shallower water); Crater uses Height as its depth.
type Feature struct {
	Kind   FeatureKind
	Center l1packets.Point
	Height float64
	// Width is the ridge half-width; Radius bounds craters and seamounts.
	Width  float64
	Radius float64
}

// offset returns the depth change the feature adds at (x, y).
func (f Feature) offset(x, y float64) float64 {
	dx := x - f.Center.X
	dy := y - f.Center.Y
	dist := math.Hypot(dx, dy)
	switch f.Kind {
	case Ridge:
		if math.Abs(dx) < f.Width {
			return -f.Height * math.Exp(-(dx/f.Width)*(dx/f.Width))
		}
	case Crater:
		if dist < f.Radius {
			return f.Height * (1 - dist/f.Radius)
		}
	case Seamount:
		if dist < f.Radius {
			k := 1 - dist/f.Radius
			return -f.Height * k * k
		}
	}
	return 0
}

// Terrain is the synthetic seafloor: an undulating base plus features.
type Terrain struct {
	Features []Feature
	// MinDepth clamps generated depths.
	MinDepth float64
}

// DefaultTerrain returns a ridge, a crater and a seamount near the start
// of the default track.
func DefaultTerrain() Terrain {
	return Terrain{
		Features: []Feature{
			{Kind: Ridge, Center: l1packets.Point{X: 3.5, Y: 5.0}, Height: 8, Width: 1.5},
			{Kind: Crater, Center: l1packets.Point{X: 7.0, Y: 3.0}, Height: 5, Radius: 1.0},
			{Kind: Seamount, Center: l1packets.Point{X: 2.0, Y: 8.0}, Height: 10, Radius: 0.8},
		},
		MinDepth: 5,
	}
}

// BaseDepth is the regional depth under the vessel at pos.
func BaseDepth(pos l1packets.Point) float64 {
	return 20 + 5*math.Sin(pos.X*0.5) + 3*math.Cos(pos.Y*0.4)
}

// Relief sums the feature offsets at (x, y).
func (t Terrain) Relief(x, y float64) float64 {
	var d float64
	for _, f := range t.Features {
		d += f.offset(x, y)
	}
	return d
}

// Depth returns base plus relief plus noise at (x, y), clamped to MinDepth.
func (t Terrain) Depth(base, x, y, noise float64) float64 {
	return math.Max(base+t.Relief(x, y)+noise, t.MinDepth)
}
