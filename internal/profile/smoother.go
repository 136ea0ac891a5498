package profile

// Smooth applies a centred moving average of width 2*radius+1 to raw using
// valid-mode alignment: the output holds len(raw)-2*radius samples and
// output[i] is the mean of raw[i : i+2*radius+1]. Invalid samples are
// treated as zero intensity.
//
// A radius of zero returns the sanitised input unchanged. When the window
// does not fit (2*radius >= len(raw)) an *InsufficientDataError is
// returned.
func Smooth(raw []float64, radius int) ([]float64, error) {
	if radius < 0 {
		return nil, ErrNegativeRadius
	}
	if 2*radius >= len(raw) {
		return nil, &InsufficientDataError{Length: len(raw), Radius: radius}
	}

	clean, _ := Sanitize(raw)
	if radius == 0 {
		return clean, nil
	}

	width := 2*radius + 1
	out := make([]float64, len(clean)-2*radius)

	// running window sum; subtract the sample leaving, add the one entering
	var sum float64
	for _, v := range clean[:width] {
		sum += v
	}
	out[0] = sum / float64(width)
	for i := 1; i < len(out); i++ {
		sum += clean[i+width-1] - clean[i-1]
		out[i] = sum / float64(width)
	}
	return out, nil
}
