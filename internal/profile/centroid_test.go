package profile

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gaussianProfile(n int, amplitude, center, sigma, offset float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		d := float64(i) - center
		out[i] = amplitude*math.Exp(-d*d/(2*sigma*sigma)) + offset
	}
	return out
}

func TestEstimateCenter_SymmetricSpike(t *testing.T) {
	got, ok := EstimateCenter([]float64{0, 0, 0, 10, 0, 0, 0})
	require.True(t, ok)
	assert.InDelta(t, 3.0, got, 0.05)
}

func TestEstimateCenter_SingleSampleLine(t *testing.T) {
	for _, n := range []int{7, 50, 500} {
		for _, k := range []int{1, n / 3, n / 2, n - 2} {
			raw := make([]float64, n)
			raw[k] = 10
			got, ok := EstimateCenter(raw)
			require.True(t, ok, "n=%d k=%d", n, k)
			assert.InDelta(t, float64(k), got, 0.05, "n=%d k=%d", n, k)
		}
	}
}

func TestEstimateCenter_LineNarrowerThanPixel(t *testing.T) {
	raw := make([]float64, 60)
	raw[29] = 4
	raw[30] = 100
	raw[31] = 2
	got, ok := EstimateCenter(raw)
	require.True(t, ok)
	assert.InDelta(t, 30, got, 0.5)
}

func TestEstimateCenter_LineAtSensorEdge(t *testing.T) {
	tests := []struct {
		name string
		raw  []float64
		want float64
	}{
		{"first pixel", []float64{10, 0, 0, 0, 0, 0}, 0},
		{"last pixel", []float64{0, 0, 0, 0, 0, 10}, 5},
		{"clipped at start", gaussianProfile(40, 50, -3, 2, 1), 0},
		{"clipped at end", gaussianProfile(40, 50, 42, 2, 1), 39},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := EstimateCenter(tt.raw)
			require.True(t, ok)
			assert.InDelta(t, tt.want, got, 0.05)
		})
	}
}

func TestEstimateCenter_FlatProfile(t *testing.T) {
	_, ok := EstimateCenter([]float64{5, 5, 5, 5, 5})
	assert.False(t, ok)
}

func TestEstimateCenter_NoEstimate(t *testing.T) {
	tests := []struct {
		name string
		raw  []float64
	}{
		{"nil", nil},
		{"two samples", []float64{1, 4}},
		{"all zero", []float64{0, 0, 0, 0}},
		{"all nan", []float64{math.NaN(), math.NaN(), math.NaN()}},
		{"negative only", []float64{-1, -3, -2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				_, ok := EstimateCenter(tt.raw)
				assert.False(t, ok)
			})
		})
	}
}

func TestEstimateCenter_SymmetricPeaks(t *testing.T) {
	for _, k := range []int{2, 7, 15, 27} {
		raw := gaussianProfile(30, 50, float64(k), 1.5, 3)
		got, ok := EstimateCenter(raw)
		require.True(t, ok, "peak at %d", k)
		assert.InDelta(t, float64(k), got, 0.05, "peak at %d", k)
	}
}

func TestEstimator_SubPixelGaussian(t *testing.T) {
	raw := gaussianProfile(40, 120, 17.3, 2.5, 8)

	fit, ok := DefaultEstimator().Fit(raw)
	require.True(t, ok)
	assert.InDelta(t, 17.3, fit.Center, 1e-4)
	assert.InDelta(t, 2.5, fit.Sigma, 1e-3)
	assert.InDelta(t, 120, fit.Amplitude, 1e-2)
	assert.InDelta(t, 8, fit.Offset, 1e-2)
	assert.Greater(t, fit.Iterations, 0)
}

func TestEstimator_Deterministic(t *testing.T) {
	raw := gaussianProfile(25, 40, 9.7, 3, 1)
	raw[4] += 2
	raw[20] += 1.5

	est := DefaultEstimator()
	first, ok := est.Center(raw)
	require.True(t, ok)
	for i := 0; i < 5; i++ {
		again, ok := est.Center(raw)
		require.True(t, ok)
		assert.Equal(t, first, again)
	}
}

func TestEstimator_NaNSamplesIgnored(t *testing.T) {
	raw := gaussianProfile(21, 30, 10, 2, 0)
	raw[0] = math.NaN()
	raw[20] = math.NaN()

	got, ok := EstimateCenter(raw)
	require.True(t, ok)
	assert.InDelta(t, 10, got, 0.05)
}

func TestEstimator_CenterStaysInDomain(t *testing.T) {
	// monotonic ramp: the best gaussian sits past the last sample
	raw := []float64{0, 1, 2, 3, 4, 5, 6, 7}
	if got, ok := EstimateCenter(raw); ok {
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, float64(len(raw)-1))
	}
}

func TestNewEstimator_Defaults(t *testing.T) {
	est := NewEstimator(FitOptions{})
	assert.Equal(t, DefaultFitOptions(), est.Options())

	est = NewEstimator(FitOptions{MaxIterations: 7, Tolerance: 1e-3})
	assert.Equal(t, 7, est.Options().MaxIterations)
	assert.Equal(t, 1e-3, est.Options().Tolerance)
}
