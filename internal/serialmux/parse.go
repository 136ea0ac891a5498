package serialmux

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	EventTypeProfile = "profile"
	EventTypeStatus  = "status"
	EventTypeUnknown = "unknown"
)

// ErrEmptyProfile is returned by ParseProfile for a line with no samples.
var ErrEmptyProfile = errors.New("profile line has no samples")

// ClassifyPayload inspects a sensor line and returns an event type token.
// JSON objects are status reports; lines whose first field parses as a
// sample are profiles.
func ClassifyPayload(payload string) string {
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" {
		return EventTypeUnknown
	}
	if strings.HasPrefix(trimmed, "{") {
		return EventTypeStatus
	}
	first := strings.FieldsFunc(trimmed, isSeparator)
	if len(first) == 0 {
		return EventTypeUnknown
	}
	if _, err := parseSample(first[0]); err != nil {
		return EventTypeUnknown
	}
	return EventTypeProfile
}

// ParseProfile parses one profile line: intensities separated by commas,
// semicolons or whitespace. "nan" (any case) and empty comma-separated
// fields are invalid readings and become NaN; the analyser coerces them.
func ParseProfile(line string) ([]float64, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil, ErrEmptyProfile
	}

	var fields []string
	if strings.ContainsAny(trimmed, ",;") {
		// empty fields keep their position as invalid readings
		fields = strings.Split(strings.ReplaceAll(trimmed, ";", ","), ",")
	} else {
		fields = strings.Fields(trimmed)
	}

	samples := make([]float64, len(fields))
	for i, f := range fields {
		v, err := parseSample(f)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		samples[i] = v
	}
	return samples, nil
}

func parseSample(field string) (float64, error) {
	f := strings.TrimSpace(field)
	if f == "" || strings.EqualFold(f, "nan") {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(f, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid intensity %q", f)
	}
	return v, nil
}

func isSeparator(r rune) bool {
	return r == ',' || r == ';' || r == ' ' || r == '\t'
}
