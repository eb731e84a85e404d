package pipeline

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/bathymetry.report/internal/sonar/l1packets"
	"github.com/banshee-data/bathymetry.report/internal/sonar/l4filters"
	"github.com/banshee-data/bathymetry.report/internal/sonar/l4terrain"
	"github.com/banshee-data/bathymetry.report/internal/testutil"
)

func surveyed(t *testing.T) *Engine {
	t.Helper()
	e := smallEngine(t)
	for i := 0; i < 40; i++ {
		x := float64(i) * 0.5
		y := float64(i%5) * 3.7
		depth := 15 + float64(i%7)
		require.NoError(t, e.Ingest(testutil.SwathPacket(t, i, x, y, 32, 70, depth)))
	}
	return e
}

func TestParseAnalysisKind(t *testing.T) {
	k, err := ParseAnalysisKind(" Slope")
	require.NoError(t, err)
	assert.Equal(t, AnalysisSlope, k)
	_, err = ParseAnalysisKind("curvature")
	assert.ErrorIs(t, err, ErrUnknownAnalysis)
}

func TestAnalyze_EmptyGrid(t *testing.T) {
	e := smallEngine(t)
	for _, k := range []AnalysisKind{AnalysisSlope, AnalysisFeatures, AnalysisQuality, AnalysisDistribution} {
		_, err := e.Analyze(k)
		assert.ErrorIs(t, err, l4terrain.ErrEmptyGrid, string(k))
	}
	_, err := e.Analyze("nope")
	assert.ErrorIs(t, err, ErrUnknownAnalysis)
}

func TestAnalyze_MasksMatchGrid(t *testing.T) {
	e := surveyed(t)
	grid := e.CurrentGrid()

	a, err := e.Analyze(AnalysisSlope)
	require.NoError(t, err)
	require.NotNil(t, a.Slope)
	assert.Equal(t, grid.Valid, a.Slope.Magnitude.Valid)

	a, err = e.Analyze(AnalysisFeatures)
	require.NoError(t, err)
	assert.Equal(t, grid.Valid, a.Features.Laplacian.Valid)

	a, err = e.Analyze(AnalysisDistribution)
	require.NoError(t, err)
	assert.Equal(t, grid.ValidCount(), a.Distribution.Count)

	a, err = e.Analyze(AnalysisQuality)
	require.NoError(t, err)
	for i, ok := range a.Quality.LocalStd.Valid {
		if ok {
			assert.True(t, grid.Valid[i], "quality reported at cell %d without data", i)
		}
	}
}

func TestFilter_PreservesMask(t *testing.T) {
	for _, kind := range l4filters.Kinds {
		t.Run(string(kind), func(t *testing.T) {
			e := surveyed(t)
			before := e.CurrentGrid()

			res, err := e.Filter(kind, 4)
			require.NoError(t, err)
			assert.Equal(t, kind, res.Kind)

			after := e.CurrentGrid()
			assert.Equal(t, before.Valid, after.Valid)
			for i, ok := range after.Valid {
				if ok {
					assert.GreaterOrEqual(t, after.Depths[i], 5.0)
				}
			}
		})
	}
}

func TestFilter_Errors(t *testing.T) {
	e := smallEngine(t)
	_, err := e.Filter(l4filters.LowPass, 3)
	assert.ErrorIs(t, err, l4terrain.ErrEmptyGrid)

	e = surveyed(t)
	before := e.CurrentGrid()
	_, err = e.Filter("sharpen", 3)
	assert.ErrorIs(t, err, l4filters.ErrUnknownFilter)
	assert.Equal(t, before, e.CurrentGrid())
}

// Analyses and filters run alongside ingestion without corrupting the grid.
func TestAnalyzeDuringIngest(t *testing.T) {
	e := surveyed(t)
	packets := make([]*l1packets.BeamPacket, 50)
	for i := range packets {
		packets[i] = testutil.SwathPacket(t, 100+i, float64(i)*0.3, 7, 16, 60, 18)
	}
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for _, p := range packets {
			_ = e.Ingest(p)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 10; i++ {
			_, _ = e.Analyze(AnalysisQuality)
			_, _ = e.Filter(l4filters.Median, 1)
			_ = e.CurrentStatistics()
		}
	}()
	wg.Wait()
	require.NoError(t, e.CurrentGrid().Validate())
	assert.Equal(t, int64(90), e.Counters().PacketsAccepted)
}
