package profile

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData is matched (via errors.Is) by *InsufficientDataError.
	ErrInsufficientData = errors.New("insufficient profile data")

	// ErrNegativeRadius is returned when a smoothing radius below zero is requested.
	ErrNegativeRadius = errors.New("smoothing radius must be non-negative")
)

// InsufficientDataError reports a smoothing window that does not fit inside
// the profile (2*Radius >= Length), which would yield an empty result.
type InsufficientDataError struct {
	Length int
	Radius int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%v: smoothing radius %d needs more than %d samples, got %d",
		ErrInsufficientData, e.Radius, 2*e.Radius, e.Length)
}

// Is lets errors.Is(err, ErrInsufficientData) match.
func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}
