package l4terrain

import (
	"github.com/banshee-data/bathymetry.report/internal/sonar/l3grid"
)

// DistributionBins is the number of histogram bins in a Distribution.
const DistributionBins = 30

// Bin is one histogram bucket, [Lo, Hi) except the last which is closed.
type Bin struct {
	Lo    float64 `json:"lo"`
	Hi    float64 `json:"hi"`
	Count int     `json:"count"`
}

// DistributionResult describes the depths of the valid cells.
type DistributionResult struct {
	Count  int     `json:"count"`
	Median float64 `json:"median"`
	Summary
	Bins []Bin `json:"bins"`
}

// Distribution summarises the valid depths of the grid. Filled cells are
// ignored.
func Distribution(d *l3grid.Dense) (*DistributionResult, error) {
	n := d.Size()
	depths := make([]float64, 0, n*n)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			if d.Valid(r, c) {
				depths = append(depths, d.Values.At(r, c))
			}
		}
	}
	if len(depths) == 0 {
		return nil, ErrEmptyGrid
	}

	s := summarize(depths)
	res := &DistributionResult{
		Count:   len(depths),
		Median:  median(depths),
		Summary: s,
		Bins:    make([]Bin, DistributionBins),
	}
	width := (s.Max - s.Min) / DistributionBins
	for i := range res.Bins {
		res.Bins[i].Lo = s.Min + float64(i)*width
		res.Bins[i].Hi = s.Min + float64(i+1)*width
	}
	res.Bins[DistributionBins-1].Hi = s.Max
	for _, v := range depths {
		k := 0
		if width > 0 {
			k = int((v - s.Min) / width)
		}
		if k >= DistributionBins {
			k = DistributionBins - 1
		}
		res.Bins[k].Count++
	}
	return res, nil
}
