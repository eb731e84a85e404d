package l4terrain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/bathymetry.report/internal/sonar/l3grid"
)

func dense(s *l3grid.Snapshot) *l3grid.Dense {
	return l3grid.GapFiller{DefaultDepthMeters: 20}.Fill(s)
}

func fullSnapshot(n int, depth func(r, c int) float64) *l3grid.Snapshot {
	s := l3grid.NewEmptySnapshot(n, 1)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			s.Set(r, c, depth(r, c))
		}
	}
	return s
}

func TestEmptyGrid(t *testing.T) {
	d := dense(l3grid.NewEmptySnapshot(5, 1))

	_, err := Slope(d)
	assert.ErrorIs(t, err, ErrEmptyGrid)
	_, err = Features(d)
	assert.ErrorIs(t, err, ErrEmptyGrid)
	_, err = Quality(d)
	assert.ErrorIs(t, err, ErrEmptyGrid)
	_, err = Distribution(d)
	assert.ErrorIs(t, err, ErrEmptyGrid)
}

func TestSlope_Plane(t *testing.T) {
	d := dense(fullSnapshot(5, func(r, c int) float64 { return 10 + 2*float64(c) + float64(r) }))

	res, err := Slope(d)
	require.NoError(t, err)
	want := math.Sqrt(5)
	for r := 0; r < 5; r++ {
		for c := 0; c < 5; c++ {
			v, ok := res.Magnitude.At(r, c)
			require.True(t, ok)
			assert.InDelta(t, want, v, 1e-12, "cell (%d, %d)", r, c)
		}
	}
	assert.InDelta(t, want, res.Stats.Mean, 1e-12)
	assert.InDelta(t, 0, res.Stats.Std, 1e-12)

	deg, _ := res.Degrees.At(2, 2)
	assert.InDelta(t, math.Atan(want)*180/math.Pi, deg, 1e-9)
}

func TestSlope_CellSizeScalesDegrees(t *testing.T) {
	s := l3grid.NewEmptySnapshot(4, 2)
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			s.Set(r, c, 10+2*float64(c))
		}
	}
	res, err := Slope(dense(s))
	require.NoError(t, err)
	// 2 m per 2 m cell is 45°.
	assert.InDelta(t, 45.0, res.DegreesStats.Mean, 1e-9)
}

// Cells without data before filling must stay without data in every product.
func TestAnalyses_ReapplyMask(t *testing.T) {
	s := fullSnapshot(6, func(r, c int) float64 { return 15 + float64((r*7+c*3)%5) })
	holes := [][2]int{{0, 0}, {2, 3}, {5, 5}, {4, 1}}
	for _, h := range holes {
		s.Valid[h[0]*6+h[1]] = false
		s.Depths[h[0]*6+h[1]] = 0
	}
	d := dense(s)

	slope, err := Slope(d)
	require.NoError(t, err)
	feat, err := Features(d)
	require.NoError(t, err)
	qual, err := Quality(d)
	require.NoError(t, err)

	for _, h := range holes {
		_, ok := slope.Magnitude.At(h[0], h[1])
		assert.False(t, ok, "slope at %v", h)
		_, ok = slope.Degrees.At(h[0], h[1])
		assert.False(t, ok, "degrees at %v", h)
		_, ok = feat.Laplacian.At(h[0], h[1])
		assert.False(t, ok, "laplacian at %v", h)
		assert.False(t, feat.Strong[h[0]*6+h[1]], "strong at %v", h)
		_, ok = qual.LocalStd.At(h[0], h[1])
		assert.False(t, ok, "quality at %v", h)
	}
}

func TestFeatures_Spike(t *testing.T) {
	s := fullSnapshot(7, func(r, c int) float64 { return 10 })
	s.Set(3, 3, 20)

	res, err := Features(dense(s))
	require.NoError(t, err)

	center, _ := res.Laplacian.At(3, 3)
	assert.InDelta(t, -40, center, 1e-12)
	side, _ := res.Laplacian.At(2, 3)
	assert.InDelta(t, 10, side, 1e-12)

	assert.InDelta(t, 2*math.Sqrt(2000.0/49), res.Threshold, 1e-9)
	assert.Equal(t, 1, res.StrongCount)
	assert.True(t, res.Strong[3*7+3])
	assert.InDelta(t, 1.0/49, res.Density, 1e-12)
	assert.InDelta(t, 40, res.MaxAbs, 1e-12)
	assert.InDelta(t, 80.0/49, res.MeanAbs, 1e-12)
	assert.Equal(t, 1, res.Regions)
}

func TestCountRegions(t *testing.T) {
	x, o := true, false
	set := []bool{
		x, x, o, o,
		o, o, o, x,
		o, x, o, x,
		x, o, o, o,
	}
	// Diagonal neighbours are separate regions.
	assert.Equal(t, 4, countRegions(set, 4))
	assert.Equal(t, 0, countRegions(make([]bool, 9), 3))
}

func TestQuality_Flat(t *testing.T) {
	res, err := Quality(dense(fullSnapshot(5, func(r, c int) float64 { return 12 })))
	require.NoError(t, err)
	assert.True(t, res.Defined)
	assert.Equal(t, 25, res.Cells)
	assert.Equal(t, 0, res.LowQualityCells)
	assert.Equal(t, 0, res.HighQualityCells)
	assert.Equal(t, 100.0, res.Score)
}

func TestQuality_SparseUndefined(t *testing.T) {
	s := l3grid.NewEmptySnapshot(5, 1)
	s.Set(1, 1, 10)
	s.Set(3, 3, 30)

	res, err := Quality(dense(s))
	require.NoError(t, err)
	assert.False(t, res.Defined)
	assert.Empty(t, res.LocalStd.ValidValues())
}

func TestQuality_MirroredWindowCount(t *testing.T) {
	s := l3grid.NewEmptySnapshot(5, 1)
	s.Set(0, 0, 10)
	s.Set(0, 1, 14)

	res, err := Quality(dense(s))
	require.NoError(t, err)

	// (0,0) appears four times in its mirrored window and (0,1) twice.
	corner, ok := res.LocalStd.At(0, 0)
	require.True(t, ok)
	assert.InDelta(t, math.Sqrt(320)/9, corner, 1e-12)

	// (0,1) sees each valid cell only twice.
	_, ok = res.LocalStd.At(0, 1)
	assert.False(t, ok)
	assert.Equal(t, 1, res.Cells)
}

func TestQuality_Classification(t *testing.T) {
	s := fullSnapshot(8, func(r, c int) float64 { return 10 + float64((r*r+3*c)%11) })
	res, err := Quality(dense(s))
	require.NoError(t, err)
	require.True(t, res.Defined)
	assert.Equal(t, 64, res.Cells)

	assert.LessOrEqual(t, res.LowQualityFraction, 0.1+1e-9)
	assert.LessOrEqual(t, res.HighQualityFraction, 0.1+1e-9)
	assert.GreaterOrEqual(t, res.LowThreshold, res.HighThreshold)
	assert.GreaterOrEqual(t, res.MaxStd, res.MeanStd)
	assert.True(t, res.Score >= 0 && res.Score <= 100, "score %v", res.Score)

	for _, v := range res.LocalStd.ValidValues() {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
	}
}

func TestDistribution(t *testing.T) {
	s := l3grid.NewEmptySnapshot(2, 1)
	s.Set(0, 0, 10)
	s.Set(0, 1, 12)
	s.Set(1, 0, 14)
	s.Set(1, 1, 16)

	res, err := Distribution(dense(s))
	require.NoError(t, err)
	assert.Equal(t, 4, res.Count)
	assert.InDelta(t, 13, res.Mean, 1e-12)
	assert.InDelta(t, 13, res.Median, 1e-12)
	assert.Equal(t, 10.0, res.Min)
	assert.Equal(t, 16.0, res.Max)
	assert.InDelta(t, math.Sqrt(5), res.Std, 1e-12)

	require.Len(t, res.Bins, DistributionBins)
	total := 0
	for _, b := range res.Bins {
		total += b.Count
	}
	assert.Equal(t, 4, total)
	assert.Equal(t, 1, res.Bins[DistributionBins-1].Count, "max lands in the last bin")
	assert.Equal(t, 16.0, res.Bins[DistributionBins-1].Hi)
}

func TestDistribution_IgnoresFilledCells(t *testing.T) {
	s := l3grid.NewEmptySnapshot(3, 1)
	s.Set(0, 0, 8)
	s.Set(2, 2, 8)

	res, err := Distribution(dense(s))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, 2, res.Bins[0].Count)
	assert.Equal(t, 0.0, res.Std)
}
