package l4filters

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/bathymetry.report/internal/sonar/l3grid"
	"gonum.org/v1/gonum/mat"
)

// Kind names a filter operator.
type Kind string

const (
	LowPass   Kind = "lowpass"
	Enhance   Kind = "enhance"
	Median    Kind = "median"
	Outlier   Kind = "outlier"
	Composite Kind = "composite"
)

// Kinds lists every supported filter.
var Kinds = []Kind{LowPass, Enhance, Median, Outlier, Composite}

// ErrUnknownFilter is returned for an unrecognised Kind.
var ErrUnknownFilter = errors.New("unknown filter")

// ParseKind resolves a filter name. "highpass" is accepted for Enhance.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case LowPass, Enhance, Median, Outlier, Composite:
		return k, nil
	case "highpass":
		return Enhance, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFilter, s)
}

// Strength bounds. Out-of-range strengths are clamped.
const (
	MinStrength = 1.0
	MaxStrength = 10.0
)

// Safe parameter ranges.
const (
	minSigma = 0.1
	maxSigma = 10.0
	minK     = 0.1
	maxK     = 10.0
)

// Params are the operator parameters derived from a strength.
type Params struct {
	Sigma     float64 // low-pass and composite spread, in cells
	WideSigma float64 // enhance blur spread, in cells; 2× the s/5 enhance spread
	Window    int     // median window, odd
	K         float64 // outlier threshold, in std
}

// ParamsForStrength maps a strength in [1, 10] to operator parameters.
// gridSize caps the median window.
//
// The enhance blur is twice the enhance smoothing spread of s/5 cells
// (σ 1.0, blur 2.0 at the default strength). It is measured against that
// spread, not against the low-pass Sigma.
func ParamsForStrength(kind Kind, strength float64, gridSize int) Params {
	s := ClampStrength(strength)
	enhanceSigma := s / 5
	p := Params{
		WideSigma: clamp(2*enhanceSigma, minSigma, maxSigma),
		Window:    oddWindow(1+2*int(math.Round(s)), gridSize),
		K:         clamp(0.2*s, minK, maxK),
	}
	if kind == Composite {
		p.Sigma = clamp(0.3*s, minSigma, maxSigma)
	} else {
		p.Sigma = clamp(0.5*s, minSigma, maxSigma)
	}
	return p
}

// Result is the output of Apply.
type Result struct {
	Kind     Kind          `json:"kind"`
	Strength float64       `json:"strength"`
	Params   Params        `json:"params"`
	Dense    *l3grid.Dense `json:"-"`
	// Replaced counts cells changed by outlier suppression.
	Replaced int `json:"replaced"`
}

// Apply runs one filter over d and returns a new Dense carrying d's mask.
// d is not modified.
func Apply(d *l3grid.Dense, kind Kind, strength float64) (*Result, error) {
	p := ParamsForStrength(kind, strength, d.Size())
	res := &Result{Kind: kind, Strength: ClampStrength(strength), Params: p}

	var out *mat.Dense
	switch kind {
	case LowPass:
		out = gaussian(d.Values, p.Sigma)
	case Enhance:
		out = unsharp(d.Values, p.WideSigma)
	case Median:
		out = medianFilter(d.Values, p.Window)
	case Outlier:
		out, res.Replaced = suppressOutliers(d.Values, d.Mask, p.K)
	case Composite:
		out, res.Replaced = suppressOutliers(d.Values, d.Mask, p.K)
		out = gaussian(out, p.Sigma)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFilter, kind)
	}

	mask := make([]bool, len(d.Mask))
	copy(mask, d.Mask)
	res.Dense = &l3grid.Dense{Values: out, Mask: mask, CellSizeMeters: d.CellSizeMeters}
	return res, nil
}

// ClampStrength bounds a strength to [MinStrength, MaxStrength]. NaN maps
// to MinStrength.
func ClampStrength(s float64) float64 {
	if math.IsNaN(s) {
		return MinStrength
	}
	return clamp(s, MinStrength, MaxStrength)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// oddWindow forces w odd and no larger than the largest odd size ≤ n.
func oddWindow(w, n int) int {
	if w < 1 {
		w = 1
	}
	if w%2 == 0 {
		w++
	}
	limit := n
	if limit%2 == 0 {
		limit--
	}
	if limit < 1 {
		limit = 1
	}
	if w > limit {
		w = limit
	}
	return w
}
