// Package profile implements the numeric stages applied to a luminosity
// profile: sanitisation, box smoothing, 0..255 normalisation and Gaussian
// centroid estimation.
//
// Every function here is pure. Inputs are never modified and outputs are
// freshly allocated, so callers can hand results to other goroutines as
// snapshots.
package profile
