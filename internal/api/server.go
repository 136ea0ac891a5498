// Package api serves the analyser over HTTP: the current profile and its
// center, zero and smoothing controls, the measurement log, rendered charts
// and a server-sent event stream.
package api

import (
	"net/http"
	"time"

	"github.com/banshee-data/laserscope/internal/analyser"
	"github.com/banshee-data/laserscope/internal/db"
	"github.com/banshee-data/laserscope/internal/serialmux"
	"github.com/banshee-data/laserscope/internal/timeutil"
	"github.com/banshee-data/laserscope/internal/units"
)

// DefaultKeepalive is the SSE comment interval on /events.
const DefaultKeepalive = 15 * time.Second

// Options carries the presentation settings of the server.
type Options struct {
	// Units is the length unit offsets are reported in.
	Units string
	// PixelPitchUM converts pixel offsets to physical units.
	PixelPitchUM float64
	// DisplayHeight is used by /display when no height is given.
	DisplayHeight float64
	// RunID identifies this process in the measurement log.
	RunID string
	// Clock drives the /events keepalive. Defaults to the real clock.
	Clock     timeutil.Clock
	Keepalive time.Duration
}

type Server struct {
	station *analyser.Station
	m       serialmux.SerialMuxInterface
	db      *db.DB
	device  *serialmux.DeviceState
	opts    Options
}

// NewServer builds a Server. m, database and device may be nil; the routes
// that need them then report 503.
func NewServer(station *analyser.Station, m serialmux.SerialMuxInterface, database *db.DB, device *serialmux.DeviceState, opts Options) *Server {
	if !units.IsValid(opts.Units) {
		opts.Units = units.Pixels
	}
	if opts.PixelPitchUM <= 0 {
		opts.PixelPitchUM = 1
	}
	if opts.DisplayHeight <= 0 {
		opts.DisplayHeight = 256
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Keepalive <= 0 {
		opts.Keepalive = DefaultKeepalive
	}
	return &Server{
		station: station,
		m:       m,
		db:      database,
		device:  device,
		opts:    opts,
	}
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/profile", s.handleProfile)
	mux.HandleFunc("/display", s.handleDisplay)
	mux.HandleFunc("/zero", s.handleZero)
	mux.HandleFunc("/smoothing", s.handleSmoothing)
	mux.HandleFunc("/measurements", s.listMeasurements)
	mux.HandleFunc("/zero_events", s.listZeroEvents)
	mux.HandleFunc("/chart", s.showChart)
	mux.HandleFunc("/plot.png", s.showPlot)
	mux.HandleFunc("/events", s.streamEvents)
	mux.HandleFunc("/command", s.sendCommandHandler)
	mux.HandleFunc("/status", s.showStatus)
	return mux
}
