package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/laserscope/internal/chart"
	"github.com/banshee-data/laserscope/internal/db"
	"github.com/banshee-data/laserscope/internal/httputil"
	"github.com/banshee-data/laserscope/internal/units"
)

// MeasurementAPI is a measurement with its offset converted to the
// server's units.
type MeasurementAPI struct {
	db.Measurement
	Offset *float64 `json:"offset"`
	Units  string   `json:"units"`
}

func (s *Server) listMeasurements(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.db == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "measurement log disabled")
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	measurements, err := s.db.Measurements(r.URL.Query().Get("run"), limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve measurements: %v", err))
		return
	}

	out := make([]MeasurementAPI, len(measurements))
	for i, m := range measurements {
		out[i] = MeasurementAPI{Measurement: m, Units: s.opts.Units}
		if px, ok := m.Offset(); ok {
			v := units.ConvertPixels(px, s.opts.PixelPitchUM, s.opts.Units)
			out[i].Offset = &v
		}
	}
	httputil.WriteJSONOK(w, out)
}

func (s *Server) listZeroEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.db == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "measurement log disabled")
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	events, err := s.db.ZeroEvents(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve zero events: %v", err))
		return
	}
	if events == nil {
		events = []db.ZeroEvent{}
	}
	httputil.WriteJSONOK(w, events)
}

func parseLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return db.DefaultListLimit, nil
	}
	limit, err := strconv.Atoi(v)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit %q", v)
	}
	return limit, nil
}

func (s *Server) showChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	snap := s.station.Snapshot()
	subtitle := fmt.Sprintf("radius=%d length=%d", snap.Radius, snap.Length)

	var buf bytes.Buffer
	if err := chart.WriteProfileHTML(&buf, snap, subtitle); err != nil {
		s.writeChartError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) showPlot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	var o chart.PNGOptions
	q := r.URL.Query()
	for name, dst := range map[string]*vg.Length{"w": &o.Width, "h": &o.Height} {
		if v := q.Get(name); v != "" {
			inches, err := strconv.ParseFloat(v, 64)
			if err != nil || inches <= 0 || inches > 40 {
				httputil.BadRequest(w, fmt.Sprintf("invalid %s %q (inches)", name, v))
				return
			}
			*dst = vg.Length(inches) * vg.Inch
		}
	}

	var buf bytes.Buffer
	if err := chart.WriteProfilePNG(&buf, s.station.Snapshot(), o); err != nil {
		s.writeChartError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) writeChartError(w http.ResponseWriter, err error) {
	if errors.Is(err, chart.ErrNoProfile) {
		httputil.NotFound(w, err.Error())
		return
	}
	httputil.InternalServerError(w, err.Error())
}
