package l1packets

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidPacket is returned for packets that cannot be applied to a grid.
var ErrInvalidPacket = errors.New("invalid beam packet")

// MaxBeamAngleDegrees bounds beam angles to the open interval (-90, 90).
// A beam at ±90° would be horizontal and never reach the seafloor.
const MaxBeamAngleDegrees = 90.0

// Point is a position in survey-local metres.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BeamPacket is a single multibeam ping.
type BeamPacket struct {
	Timestamp time.Time
	Position  Point

	// Heading and Quality are carried through for telemetry only.
	Heading float64
	Quality string

	// BeamAngles are degrees from nadir, port negative.
	BeamAngles []float64
	// BeamRanges are slant ranges in metres, parallel to BeamAngles.
	BeamRanges []float64
}

// NewBeamPacket builds and validates a packet. The angle and range slices are
// copied so the caller may reuse its buffers.
func NewBeamPacket(ts time.Time, pos Point, angles, ranges []float64) (*BeamPacket, error) {
	p := &BeamPacket{
		Timestamp:  ts,
		Position:   pos,
		BeamAngles: append([]float64(nil), angles...),
		BeamRanges: append([]float64(nil), ranges...),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the structural invariants of the packet.
func (p *BeamPacket) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil packet", ErrInvalidPacket)
	}
	if len(p.BeamAngles) != len(p.BeamRanges) {
		return fmt.Errorf("%w: %d angles but %d ranges", ErrInvalidPacket, len(p.BeamAngles), len(p.BeamRanges))
	}
	if len(p.BeamAngles) == 0 {
		return fmt.Errorf("%w: no beams", ErrInvalidPacket)
	}
	if !finite(p.Position.X) || !finite(p.Position.Y) {
		return fmt.Errorf("%w: non-finite position (%v, %v)", ErrInvalidPacket, p.Position.X, p.Position.Y)
	}
	for i, a := range p.BeamAngles {
		if !finite(a) || a <= -MaxBeamAngleDegrees || a >= MaxBeamAngleDegrees {
			return fmt.Errorf("%w: beam %d angle %v outside (-90, 90)", ErrInvalidPacket, i, a)
		}
	}
	for i, r := range p.BeamRanges {
		if !finite(r) {
			return fmt.Errorf("%w: beam %d range %v not finite", ErrInvalidPacket, i, r)
		}
	}
	return nil
}

// Len returns the number of beams.
func (p *BeamPacket) Len() int {
	return len(p.BeamAngles)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
