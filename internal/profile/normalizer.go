package profile

import "gonum.org/v1/gonum/floats"

// MaxLevel is the top of the normalised output range.
const MaxLevel = 255.0

// Normalize rescales values linearly so the smallest maps to 0 and the
// largest to MaxLevel. A flat input is scaled as if its maximum were one
// unit above its minimum, which yields an all-zero profile instead of a
// division by zero. Results are clamped to [0, MaxLevel].
func Normalize(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}

	lo := floats.Min(values)
	hi := floats.Max(values)
	if hi == lo {
		hi = lo + 1
	}

	scale := MaxLevel / (hi - lo)
	for i, v := range values {
		out[i] = clamp((v-lo)*scale, 0, MaxLevel)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}
