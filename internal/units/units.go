// Package units provides shared constants, validation and conversion for the
// length units used to report line positions.
package units

import "strings"

// Unit constants
const (
	Pixels      = "px"
	Micrometres = "um"
	Millimetres = "mm"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{Pixels, Micrometres, Millimetres}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ConvertPixels converts a distance in sensor pixels to the target units
// given the sensor pixel pitch in micrometres. Unknown units fall back to
// pixels.
func ConvertPixels(px, pitchUM float64, targetUnits string) float64 {
	switch targetUnits {
	case Micrometres:
		return px * pitchUM
	case Millimetres:
		return px * pitchUM / 1000
	default:
		return px
	}
}
