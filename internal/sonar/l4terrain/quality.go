package l4terrain

import (
	"github.com/banshee-data/bathymetry.report/internal/sonar/l3grid"
	"gonum.org/v1/gonum/stat"
)

// MinQualityNeighbours is the number of valid cells a 3×3 window needs
// before its local std is trusted.
const MinQualityNeighbours = 5

// QualityResult holds the local-variability quality products of a grid.
type QualityResult struct {
	LocalStd *Map `json:"local_std"`
	// Defined is false when no cell had enough valid neighbours.
	Defined bool `json:"defined"`
	Cells   int  `json:"cells"`

	// Cells above LowThreshold (90th percentile) are low quality; cells
	// below HighThreshold (10th percentile) are high quality.
	LowThreshold        float64 `json:"low_threshold"`
	HighThreshold       float64 `json:"high_threshold"`
	LowQualityCells     int     `json:"low_quality_cells"`
	HighQualityCells    int     `json:"high_quality_cells"`
	LowQualityFraction  float64 `json:"low_quality_fraction"`
	HighQualityFraction float64 `json:"high_quality_fraction"`

	MeanStd float64 `json:"mean_std"`
	MaxStd  float64 `json:"max_std"`
	// Score is 100 - 100·MeanStd/MaxStd; 100 when the grid is flat.
	Score float64 `json:"score"`
}

// Quality computes the population std of each cell's 3×3 neighbourhood
// with mirrored edges. A cell reports no data unless it was valid and at
// least MinQualityNeighbours cells of its window were valid before filling.
//
// The count runs over the mirrored window, so at an edge or corner a cell
// mirrored into the window counts once per appearance. A corner cell counts
// itself four times; with one valid edge neighbour it already reaches the
// threshold. Interior cells count nine distinct cells.
func Quality(d *l3grid.Dense) (*QualityResult, error) {
	if d.ValidCount() == 0 {
		return nil, ErrEmptyGrid
	}
	n := d.Size()
	m := newMap(d)
	window := make([]float64, 0, 9)

	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			i := r*n + c
			if !m.Valid[i] {
				continue
			}
			window = window[:0]
			validNeighbours := 0
			for dr := -1; dr <= 1; dr++ {
				for dc := -1; dc <= 1; dc++ {
					rr, cc := l3grid.Reflect(r+dr, n), l3grid.Reflect(c+dc, n)
					window = append(window, d.Values.At(rr, cc))
					if d.Valid(rr, cc) {
						validNeighbours++
					}
				}
			}
			if validNeighbours < MinQualityNeighbours {
				m.Valid[i] = false
				continue
			}
			m.Values[i] = stat.PopStdDev(window, nil)
		}
	}

	res := &QualityResult{LocalStd: m}
	vals := m.ValidValues()
	if len(vals) == 0 {
		return res, nil
	}
	res.Defined = true
	res.Cells = len(vals)
	res.LowThreshold = quantile(0.9, vals)
	res.HighThreshold = quantile(0.1, vals)

	s := summarize(vals)
	res.MeanStd, res.MaxStd = s.Mean, s.Max
	for _, v := range vals {
		if v > res.LowThreshold {
			res.LowQualityCells++
		}
		if v < res.HighThreshold {
			res.HighQualityCells++
		}
	}
	res.LowQualityFraction = float64(res.LowQualityCells) / float64(len(vals))
	res.HighQualityFraction = float64(res.HighQualityCells) / float64(len(vals))
	res.Score = 100
	if res.MaxStd > 0 {
		res.Score = 100 - res.MeanStd/res.MaxStd*100
	}
	return res, nil
}
