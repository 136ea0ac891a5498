package analyser

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidMapping is returned when a Mapper cannot be built for the given
// profile length or display extent.
var ErrInvalidMapping = errors.New("invalid display mapping")

// Mapper converts between profile-index space and a vertical display axis.
// Index 0 maps to the bottom of the display (y = Height) and the last
// index to the top (y = 0). Values are not clamped.
type Mapper struct {
	length int
	height float64
}

// NewMapper builds a Mapper for a profile of profileLength samples drawn
// across a display extent of height units.
func NewMapper(profileLength int, height float64) (Mapper, error) {
	if profileLength < 2 {
		return Mapper{}, fmt.Errorf("%w: profile length %d, need at least 2", ErrInvalidMapping, profileLength)
	}
	if math.IsNaN(height) || math.IsInf(height, 0) {
		return Mapper{}, fmt.Errorf("%w: display height %v", ErrInvalidMapping, height)
	}
	return Mapper{length: profileLength, height: height}, nil
}

// Length returns the profile length the mapper was built for.
func (m Mapper) Length() int { return m.length }

// Height returns the display extent.
func (m Mapper) Height() float64 { return m.height }

// ToDisplay maps a profile index to a display position.
func (m Mapper) ToDisplay(p float64) float64 {
	return m.height - p*m.height/float64(m.length-1)
}

// ToProfile is the inverse of ToDisplay. With a zero height every display
// position collapses onto index 0.
func (m Mapper) ToProfile(y float64) float64 {
	if m.height == 0 {
		return 0
	}
	return (m.height - y) * float64(m.length-1) / m.height
}
