package l4filters

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/bathymetry.report/internal/sonar/l3grid"
)

func constSnapshot(n int, depth float64) *l3grid.Snapshot {
	s := l3grid.NewEmptySnapshot(n, 1)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			s.Set(r, c, depth)
		}
	}
	return s
}

func fill(s *l3grid.Snapshot) *l3grid.Dense {
	return l3grid.GapFiller{DefaultDepthMeters: 20}.Fill(s)
}

func TestGaussianKernel(t *testing.T) {
	k := gaussianKernel(1.0)
	require.Len(t, k, 9)
	assert.InDelta(t, 1.0, floats.Sum(k), 1e-12)
	for i := range k {
		assert.InDelta(t, k[i], k[len(k)-1-i], 1e-15)
	}
	assert.Len(t, gaussianKernel(0.1), 1)
}

func TestGaussian_ConstantAndMass(t *testing.T) {
	flat := mat.NewDense(6, 6, nil)
	for r := 0; r < 6; r++ {
		for c := 0; c < 6; c++ {
			flat.Set(r, c, 12)
		}
	}
	assert.True(t, mat.EqualApprox(gaussian(flat, 2), flat, 1e-12))

	spike := mat.NewDense(15, 15, nil)
	spike.Set(7, 7, 100)
	out := gaussian(spike, 1)
	assert.Less(t, out.At(7, 7), 100.0)
	assert.Greater(t, out.At(7, 8), 0.0)
	assert.InDelta(t, 100.0, mat.Sum(out), 1e-9, "interior blur preserves mass")
}

func TestUnsharp_Overshoots(t *testing.T) {
	step := mat.NewDense(8, 8, nil)
	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			if c >= 4 {
				step.Set(r, c, 20)
			} else {
				step.Set(r, c, 10)
			}
		}
	}
	out := unsharp(step, 1)
	assert.Less(t, out.At(3, 3), 10.0, "dark side of the edge gets darker")
	assert.Greater(t, out.At(3, 4), 20.0, "bright side gets brighter")
	assert.InDelta(t, 10.0, out.At(3, 0), 0.05)
}

func TestMedianFilter_RemovesSpike(t *testing.T) {
	d := fill(constSnapshot(5, 10))
	d.Values.Set(2, 2, 99)
	out := medianFilter(d.Values, 3)
	for r := 0; r < 5; r++ {
		for c := 0; c < 5; c++ {
			assert.Equal(t, 10.0, out.At(r, c))
		}
	}
}

func TestSuppressOutliers(t *testing.T) {
	s := constSnapshot(5, 10)
	s.Set(2, 2, 50)
	d := fill(s)

	out, replaced := suppressOutliers(d.Values, d.Mask, 2)
	assert.Equal(t, 1, replaced)
	assert.Equal(t, 10.0, out.At(2, 2))
	assert.Equal(t, 50.0, d.Values.At(2, 2), "source untouched")
}

func TestSuppressOutliers_CountsOnlyValidCells(t *testing.T) {
	s := constSnapshot(5, 10)
	s.Set(2, 1, 50)
	s.Set(2, 3, 50)
	s.Valid[2*5+2] = false
	d := fill(s)
	require.Equal(t, 50.0, d.Values.At(2, 2), "gap between two outliers fills high")

	out, replaced := suppressOutliers(d.Values, d.Mask, 2)
	assert.Equal(t, 2, replaced)
	assert.Equal(t, 10.0, out.At(2, 1))
	assert.Equal(t, 10.0, out.At(2, 2))
	assert.Equal(t, 10.0, out.At(2, 3))
}

func TestApply_PreservesMask(t *testing.T) {
	s := constSnapshot(6, 15)
	for _, i := range []int{0, 7, 20, 35} {
		s.Valid[i] = false
		s.Depths[i] = 0
	}
	s.Set(3, 3, 40)
	d := fill(s)

	for _, kind := range Kinds {
		t.Run(string(kind), func(t *testing.T) {
			res, err := Apply(d, kind, 5)
			require.NoError(t, err)
			assert.Equal(t, s.Valid, res.Dense.Mask)

			out := res.Dense.ToSnapshot(5)
			assert.Equal(t, s.Valid, out.Valid)
			for i, ok := range out.Valid {
				if ok {
					v := out.Depths[i]
					assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
					assert.GreaterOrEqual(t, v, 5.0)
				}
			}
		})
	}
}

func TestApply_CompositeFlattensSpike(t *testing.T) {
	s := constSnapshot(7, 10)
	s.Set(3, 3, 60)
	res, err := Apply(fill(s), Composite, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Replaced)
	assert.InDelta(t, 10.0, res.Dense.Values.At(3, 3), 1e-9)
}

func TestApply_UnknownKind(t *testing.T) {
	_, err := Apply(fill(constSnapshot(3, 10)), Kind("sharpen"), 5)
	assert.ErrorIs(t, err, ErrUnknownFilter)
}

func TestParseKind(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want Kind
	}{
		{"lowpass", LowPass}, {" Median ", Median}, {"HIGHPASS", Enhance}, {"enhance", Enhance},
		{"outlier", Outlier}, {"composite", Composite},
	} {
		got, err := ParseKind(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
	_, err := ParseKind("blur")
	assert.ErrorIs(t, err, ErrUnknownFilter)
}

func TestParamsForStrength(t *testing.T) {
	tests := []struct {
		name     string
		kind     Kind
		strength float64
		size     int
		want     Params
	}{
		{"default", LowPass, 5, 100, Params{Sigma: 2.5, WideSigma: 2.0, Window: 11, K: 1.0}},
		{"clamped low", LowPass, 0, 100, Params{Sigma: 0.5, WideSigma: 0.4, Window: 3, K: 0.2}},
		{"clamped high", Median, 100, 100, Params{Sigma: 5, WideSigma: 4, Window: 21, K: 2}},
		{"window capped", Median, 10, 10, Params{Sigma: 5, WideSigma: 4, Window: 9, K: 2}},
		{"nan", LowPass, math.NaN(), 100, Params{Sigma: 0.5, WideSigma: 0.4, Window: 3, K: 0.2}},
		{"composite", Composite, 5, 100, Params{Sigma: 1.5, WideSigma: 2.0, Window: 11, K: 1.0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParamsForStrength(tt.kind, tt.strength, tt.size)
			assert.InDelta(t, 2*ClampStrength(tt.strength)/5, got.WideSigma, 1e-12, "enhance blur is twice s/5")
			assert.InDelta(t, tt.want.Sigma, got.Sigma, 1e-12)
			assert.InDelta(t, tt.want.WideSigma, got.WideSigma, 1e-12)
			assert.Equal(t, tt.want.Window, got.Window)
			assert.InDelta(t, tt.want.K, got.K, 1e-12)
		})
	}
}
