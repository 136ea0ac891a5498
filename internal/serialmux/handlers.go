package serialmux

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/banshee-data/laserscope/internal/monitoring"
)

// ProfileSink receives parsed profiles. *analyser.Station satisfies it.
type ProfileSink interface {
	PushProfile(raw []float64) error
}

// DeviceState holds the latest status values reported by the sensor so admin
// routes and the API can inspect them.
type DeviceState struct {
	mu     sync.Mutex
	values map[string]any
}

// NewDeviceState returns an empty DeviceState.
func NewDeviceState() *DeviceState {
	return &DeviceState{values: make(map[string]any)}
}

// Merge decodes a JSON status object and merges its keys into the state.
func (d *DeviceState) Merge(payload string) error {
	var status map[string]any
	if err := json.Unmarshal([]byte(payload), &status); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, v := range status {
		d.values[k] = v
	}
	return nil
}

// Values returns a copy of the current state.
func (d *DeviceState) Values() map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]any, len(d.values))
	for k, v := range d.values {
		out[k] = v
	}
	return out
}

// HandleLine dispatches one sensor line: profiles go to sink, status
// objects are merged into state. Unknown lines are logged and ignored.
func HandleLine(sink ProfileSink, state *DeviceState, payload string) error {
	switch ClassifyPayload(payload) {
	case EventTypeProfile:
		samples, err := ParseProfile(payload)
		if err != nil {
			return fmt.Errorf("failed to parse profile: %w", err)
		}
		if err := sink.PushProfile(samples); err != nil {
			return fmt.Errorf("failed to analyse profile: %w", err)
		}
	case EventTypeStatus:
		if state == nil {
			return nil
		}
		if err := state.Merge(payload); err != nil {
			return fmt.Errorf("failed to handle status line: %w", err)
		}
		monitoring.Logf("sensor status: %s", payload)
	default:
		monitoring.Logf("unknown sensor line: %q", payload)
	}
	return nil
}
