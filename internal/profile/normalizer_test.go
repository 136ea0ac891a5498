package profile

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func TestNormalize_SpansFullRange(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
	}{
		{"ascending", []float64{1, 2, 3, 4, 5}},
		{"peak", []float64{10, 12, 80, 14, 11}},
		{"negative offset", []float64{-5, 0, 5}},
		{"tiny range", []float64{1e-9, 2e-9, 1.5e-9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.values)
			require.Len(t, got, len(tt.values))
			assert.InDelta(t, 0, floats.Min(got), 1e-9)
			assert.InDelta(t, MaxLevel, floats.Max(got), 1e-9)
			for _, v := range got {
				assert.GreaterOrEqual(t, v, 0.0)
				assert.LessOrEqual(t, v, MaxLevel)
			}
		})
	}
}

func TestNormalize_FlatProfile(t *testing.T) {
	got := Normalize([]float64{7, 7, 7, 7})
	assert.Equal(t, []float64{0, 0, 0, 0}, got)
}

func TestNormalize_Empty(t *testing.T) {
	assert.Empty(t, Normalize(nil))
}

func TestNormalize_Scenario(t *testing.T) {
	assert.InDeltaSlice(t, []float64{0, 0, 255, 0, 0}, Normalize([]float64{0, 0, 10, 0, 0}), 1e-12)
}

func TestNormalize_SanitisedPeakStaysFinite(t *testing.T) {
	// the brightest readings are invalid; after smoothing they count as zero
	raw := []float64{1, 2, math.NaN(), math.NaN(), 2, 1}
	smoothed, err := Smooth(raw, 0)
	require.NoError(t, err)

	got := Normalize(smoothed)
	for i, v := range got {
		assert.False(t, math.IsNaN(v), "index %d is NaN", i)
	}
	assert.Equal(t, 0.0, got[2])
	assert.Equal(t, 0.0, got[3])
	assert.InDelta(t, MaxLevel, got[1], 1e-9)
}
