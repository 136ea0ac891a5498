// Package chart renders the analyser's normalized profile with its center
// and zero markers, as an interactive HTML page or a PNG image.
//
// The smoothed profile is shorter than the raw one by the smoothing radius
// at each end, so sample i is plotted at raw pixel i+radius. This keeps the
// curve aligned with the center and zero, which are raw pixel positions.
package chart

import (
	"errors"

	"github.com/banshee-data/laserscope/internal/analyser"
)

// ErrNoProfile is returned when the snapshot has no accepted profile yet.
var ErrNoProfile = errors.New("no profile to render")

type point struct{ x, y float64 }

func profilePoints(snap analyser.Snapshot) ([]point, error) {
	if len(snap.Normalized) == 0 {
		return nil, ErrNoProfile
	}
	pts := make([]point, len(snap.Normalized))
	for i, v := range snap.Normalized {
		pts[i] = point{x: float64(i + snap.Radius), y: v}
	}
	return pts, nil
}

// xMax is the last raw pixel position, or the last plotted sample when the
// raw length is unknown.
func xMax(snap analyser.Snapshot) float64 {
	if snap.Length > 1 {
		return float64(snap.Length - 1)
	}
	return float64(len(snap.Normalized) - 1 + snap.Radius)
}
