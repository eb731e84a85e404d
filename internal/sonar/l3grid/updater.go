package l3grid

import (
	"errors"
	"time"

	"github.com/banshee-data/bathymetry.report/internal/sonar/l1packets"
)

// GridUpdater folds beam packets into a DepthGrid.
type GridUpdater struct {
	// Alpha is the EWMA weight given to a new reading, in (0, 1].
	Alpha float64
	// BeamStride applies beams 0, N, 2N, ... only.
	BeamStride int
	// DepthFloorMeters clamps shallow ranges before they are mapped.
	DepthFloorMeters float64
}

// UpdateResult summarises one Apply call.
type UpdateResult struct {
	BeamsApplied   int
	BeamsSkipped   int // out of bounds
	BeamsDecimated int // not selected by the stride
	NadirApplied   bool
	MeanRange      float64
}

// Apply folds one packet into the grid under a single write lock.
//
// Every stride-selected beam updates its cell: first observation sets the
// cell, later ones blend with weight Alpha. Afterwards the cell under the
// vessel is set to the mean range of the packet, unless a beam of this
// packet already wrote it.
//
// The only error is l1packets.ErrInvalidPacket, in which case the grid is
// not touched. Out-of-bounds beams are counted and skipped.
func (u *GridUpdater) Apply(g *DepthGrid, p *l1packets.BeamPacket) (UpdateResult, error) {
	var res UpdateResult
	if err := p.Validate(); err != nil {
		return res, err
	}
	stride := u.BeamStride
	if stride < 1 {
		stride = 1
	}
	alpha := u.Alpha
	if alpha <= 0 || alpha > 1 {
		alpha = 0.3
	}
	mapper := g.Mapper()

	ranges := make([]float64, len(p.BeamRanges))
	sum := 0.0
	for i, r := range p.BeamRanges {
		if r < u.DepthFloorMeters {
			r = u.DepthFloorMeters
		}
		ranges[i] = r
		sum += r
	}
	res.MeanRange = sum / float64(len(ranges))

	g.mu.Lock()
	touched := make(map[int]struct{}, len(ranges)/stride+1)
	for i := range ranges {
		if i%stride != 0 {
			res.BeamsDecimated++
			continue
		}
		row, col, err := mapper.MapToCell(p.Position, p.BeamAngles[i], ranges[i])
		if err != nil {
			if errors.Is(err, ErrOutOfBounds) {
				res.BeamsSkipped++
				continue
			}
			// Validate has already checked every angle.
			g.mu.Unlock()
			return res, err
		}
		idx := row*g.size + col
		g.observe(idx, ranges[i], alpha)
		touched[idx] = struct{}{}
		res.BeamsApplied++
	}

	if row, col, err := mapper.CellForPosition(p.Position); err == nil {
		idx := row*g.size + col
		if _, hit := touched[idx]; !hit {
			g.set(idx, res.MeanRange)
			res.NadirApplied = true
		}
	}
	g.lastUpdate = time.Now()
	g.mu.Unlock()

	tracef("applied packet at (%.2f, %.2f): beams=%d skipped=%d nadir=%t mean=%.2fm",
		p.Position.X, p.Position.Y, res.BeamsApplied, res.BeamsSkipped, res.NadirApplied, res.MeanRange)
	return res, nil
}
