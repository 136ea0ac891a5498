package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/banshee-data/laserscope/internal/db"
	"github.com/banshee-data/laserscope/internal/recorder"
	"github.com/banshee-data/laserscope/internal/serialmux"
)

// runSensorLoop feeds every line from the sensor into the analyser until ctx
// is done or the sensor closes its subscription.
func runSensorLoop(ctx context.Context, sensor serialmux.SerialMuxInterface, sink serialmux.ProfileSink, device *serialmux.DeviceState) {
	id, lines := sensor.Subscribe()
	defer sensor.Unsubscribe(id)
	for {
		select {
		case payload, ok := <-lines:
			if !ok {
				return
			}
			if err := serialmux.HandleLine(sink, device, payload); err != nil {
				log.Printf("error handling sensor line: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func readFixture(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixtures file: %w", err)
	}
	var lines []string
	for _, l := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("fixtures file %s has no lines", path)
	}
	return lines, nil
}

// nilStore keeps a nil *db.DB from becoming a non-nil recorder.Store.
func nilStore(database *db.DB) recorder.Store {
	if database == nil {
		return discardStore{}
	}
	return database
}

type discardStore struct{}

func (discardStore) RecordMeasurement(db.Measurement) error { return nil }
func (discardStore) RecordZero(db.ZeroEvent) error          { return nil }
