package profile

import "math"

// Sanitize returns a copy of raw with NaN, infinite and negative samples
// replaced by 0, together with the number of samples that were replaced.
// A missing reading contributes no intensity.
func Sanitize(raw []float64) ([]float64, int) {
	out := make([]float64, len(raw))
	replaced := 0
	for i, v := range raw {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			replaced++
			continue
		}
		out[i] = v
	}
	return out, replaced
}
