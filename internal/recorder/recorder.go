// Package recorder persists analyser notifications to the measurement log.
package recorder

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/laserscope/internal/analyser"
	"github.com/banshee-data/laserscope/internal/db"
	"github.com/banshee-data/laserscope/internal/monitoring"
	"github.com/banshee-data/laserscope/internal/timeutil"
)

// DefaultInterval is the minimum spacing between recorded measurements.
const DefaultInterval = time.Second

// Store is the subset of *db.DB the recorder writes to.
type Store interface {
	RecordMeasurement(db.Measurement) error
	RecordZero(db.ZeroEvent) error
}

// Recorder writes every zero change and at most one measurement per
// interval, all tagged with the run ID of this process.
type Recorder struct {
	store    Store
	clock    timeutil.Clock
	interval time.Duration
	runID    string

	zero         *float64
	lastRecorded time.Time
	recorded     bool
}

type Option func(*Recorder)

func WithClock(c timeutil.Clock) Option { return func(r *Recorder) { r.clock = c } }

// WithInterval sets the measurement spacing. Zero records every profile.
func WithInterval(d time.Duration) Option { return func(r *Recorder) { r.interval = d } }

func WithRunID(id string) Option { return func(r *Recorder) { r.runID = id } }

func New(store Store, opts ...Option) *Recorder {
	r := &Recorder{
		store:    store,
		clock:    timeutil.RealClock{},
		interval: DefaultInterval,
	}
	for _, o := range opts {
		o(r)
	}
	if r.runID == "" {
		r.runID = uuid.NewString()
	}
	return r
}

func (r *Recorder) RunID() string { return r.runID }

// Run consumes events until ctx is done or events is closed. Store
// failures are logged and do not stop the recorder.
func (r *Recorder) Run(ctx context.Context, events <-chan analyser.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := r.Handle(ev); err != nil {
				monitoring.Logf("recorder: %v", err)
			}
		}
	}
}

// Handle records a single event.
func (r *Recorder) Handle(ev analyser.Event) error {
	now := r.clock.Now()
	switch ev.Kind {
	case analyser.EventZero:
		if ev.Zero == nil {
			return nil
		}
		v := *ev.Zero
		r.zero = &v
		return r.store.RecordZero(db.ZeroEvent{RunID: r.runID, SetAt: now, Value: v})

	case analyser.EventProfile:
		if ev.Profile == nil {
			return nil
		}
		if r.recorded && r.clock.Since(r.lastRecorded) < r.interval {
			return nil
		}
		m := db.Measurement{
			RunID:         r.runID,
			CapturedAt:    now,
			Center:        ev.Profile.Center,
			Zero:          r.zero,
			Radius:        ev.Profile.Radius,
			ProfileLength: ev.Profile.Length,
		}
		if err := r.store.RecordMeasurement(m); err != nil {
			return err
		}
		r.lastRecorded = now
		r.recorded = true
	}
	return nil
}
