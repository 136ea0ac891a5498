package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValid(t *testing.T) {
	for _, u := range []string{"px", "um", "mm"} {
		assert.True(t, IsValid(u), u)
	}
	for _, u := range []string{"", "PX", "cm", "mph"} {
		assert.False(t, IsValid(u), u)
	}
}

func TestGetValidUnitsString(t *testing.T) {
	assert.Equal(t, "px, um, mm", GetValidUnitsString())
}

func TestConvertPixels(t *testing.T) {
	tests := []struct {
		name  string
		px    float64
		pitch float64
		units string
		want  float64
	}{
		{"pixels", 12.5, 5.5, Pixels, 12.5},
		{"micrometres", 10, 5.5, Micrometres, 55},
		{"millimetres", 200, 5, Millimetres, 1},
		{"negative offset", -4, 2, Micrometres, -8},
		{"unknown falls back to pixels", 3, 7, "furlong", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ConvertPixels(tt.px, tt.pitch, tt.units), 1e-12)
		})
	}
}
