package profile

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmooth_ZeroRadiusIsIdentity(t *testing.T) {
	raw := []float64{3, 1, 4, 1, 5, 9, 2, 6}
	got, err := Smooth(raw, 0)
	require.NoError(t, err)
	if diff := cmp.Diff(raw, got); diff != "" {
		t.Errorf("Smooth(raw, 0) mismatch (-want +got):\n%s", diff)
	}

	// the result must not alias the input
	got[0] = 100
	assert.Equal(t, 3.0, raw[0])
}

func TestSmooth_ValidModeLength(t *testing.T) {
	raw := make([]float64, 11)
	for i := range raw {
		raw[i] = float64(i)
	}

	for r := 0; r <= 5; r++ {
		got, err := Smooth(raw, r)
		require.NoError(t, err, "radius %d", r)
		assert.Len(t, got, len(raw)-2*r, "radius %d", r)
	}
}

func TestSmooth_WindowMeans(t *testing.T) {
	raw := []float64{0, 0, 3, 6, 3, 0, 0}
	got, err := Smooth(raw, 1)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 3, 4, 3, 1}, got, 1e-12)

	got, err = Smooth(raw, 2)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2.4, 2.4, 2.4}, got, 1e-12)
}

func TestSmooth_InsufficientData(t *testing.T) {
	tests := []struct {
		name   string
		length int
		radius int
	}{
		{"window equals length", 4, 2},
		{"window larger than length", 5, 3},
		{"empty profile", 0, 0},
		{"radius at half length", 10, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Smooth(make([]float64, tt.length), tt.radius)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInsufficientData))

			var ide *InsufficientDataError
			require.True(t, errors.As(err, &ide))
			assert.Equal(t, tt.length, ide.Length)
			assert.Equal(t, tt.radius, ide.Radius)
		})
	}
}

func TestSmooth_NegativeRadius(t *testing.T) {
	_, err := Smooth([]float64{1, 2, 3}, -1)
	assert.ErrorIs(t, err, ErrNegativeRadius)
}

func TestSmooth_InvalidSamplesCountAsZero(t *testing.T) {
	raw := []float64{math.NaN(), 3, -6, 3, math.Inf(1)}
	got, err := Smooth(raw, 1)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 2, 1}, got, 1e-12)
	for _, v := range got {
		assert.False(t, math.IsNaN(v))
	}
}

func TestSanitize(t *testing.T) {
	raw := []float64{1, math.NaN(), -2, 4, math.Inf(-1)}
	got, n := Sanitize(raw)
	assert.Equal(t, 3, n)
	assert.Equal(t, []float64{1, 0, 0, 4, 0}, got)
	assert.True(t, math.IsNaN(raw[1]), "input must not be modified")
}
