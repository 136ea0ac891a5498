package api

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/banshee-data/laserscope/internal/analyser"
	"github.com/banshee-data/laserscope/internal/httputil"
	"github.com/banshee-data/laserscope/internal/profile"
	"github.com/banshee-data/laserscope/internal/units"
)

// ProfileResponse is the JSON view of the analyser state. Offset is center
// minus zero, in pixels and converted to Units.
type ProfileResponse struct {
	Normalized []float64 `json:"normalized"`
	Center     *float64  `json:"center"`
	Zero       *float64  `json:"zero"`
	OffsetPx   *float64  `json:"offset_px"`
	Offset     *float64  `json:"offset"`
	Units      string    `json:"units"`
	Length     int       `json:"length"`
	Radius     int       `json:"radius"`
}

func (s *Server) profileResponse(snap analyser.Snapshot) ProfileResponse {
	resp := ProfileResponse{
		Normalized: snap.Normalized,
		Center:     snap.Center,
		Zero:       snap.Zero,
		Units:      s.opts.Units,
		Length:     snap.Length,
		Radius:     snap.Radius,
	}
	if resp.Normalized == nil {
		resp.Normalized = []float64{}
	}
	if snap.Center != nil && snap.Zero != nil {
		px := *snap.Center - *snap.Zero
		converted := units.ConvertPixels(px, s.opts.PixelPitchUM, s.opts.Units)
		resp.OffsetPx = &px
		resp.Offset = &converted
	}
	return resp
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(w, s.profileResponse(s.station.Snapshot()))

	case http.MethodPost:
		// JSON has no NaN, so invalid readings arrive as null
		var samples []*float64
		if err := httputil.DecodeJSON(r, &samples); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		raw := make([]float64, len(samples))
		for i, v := range samples {
			if v == nil {
				raw[i] = math.NaN()
			} else {
				raw[i] = *v
			}
		}
		if err := s.station.PushProfile(raw); err != nil {
			if errors.Is(err, profile.ErrInsufficientData) {
				httputil.WriteJSONError(w, http.StatusUnprocessableEntity, err.Error())
				return
			}
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, s.profileResponse(s.station.Snapshot()))

	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) handleDisplay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	height := s.opts.DisplayHeight
	if h := r.URL.Query().Get("height"); h != "" {
		v, err := strconv.ParseFloat(h, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			httputil.BadRequest(w, fmt.Sprintf("invalid height %q", h))
			return
		}
		height = v
	}
	httputil.WriteJSONOK(w, s.station.DisplayCoordinates(height))
}

type zeroRequest struct {
	Value   *float64 `json:"value"`
	Current bool     `json:"current"`
}

func (s *Server) handleZero(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(w, map[string]*float64{"zero": s.station.Snapshot().Zero})
		return
	case http.MethodPost:
	default:
		httputil.MethodNotAllowed(w)
		return
	}

	req, err := parseZeroRequest(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	var zero float64
	switch {
	case req.Current:
		zero, err = s.station.ZeroAtCenter()
		if errors.Is(err, analyser.ErrNoCenter) {
			httputil.WriteJSONError(w, http.StatusConflict, err.Error())
			return
		}
	case req.Value != nil:
		zero = *req.Value
		s.station.SetZero(zero)
	default:
		httputil.BadRequest(w, "expected value or current=true")
		return
	}
	httputil.WriteJSONOK(w, map[string]float64{"zero": zero})
}

func parseZeroRequest(r *http.Request) (zeroRequest, error) {
	var req zeroRequest
	if isJSON(r) {
		err := httputil.DecodeJSON(r, &req)
		if err == nil && req.Value != nil && !isFinite(*req.Value) {
			err = fmt.Errorf("zero must be finite")
		}
		return req, err
	}
	if c := r.FormValue("current"); c != "" {
		b, err := strconv.ParseBool(c)
		if err != nil {
			return req, fmt.Errorf("invalid current %q", c)
		}
		req.Current = b
	}
	if v := r.FormValue("value"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || !isFinite(f) {
			return req, fmt.Errorf("invalid value %q", v)
		}
		req.Value = &f
	}
	return req, nil
}

type smoothingResponse struct {
	Radius int `json:"radius"`
	Limit  int `json:"limit"`
}

func (s *Server) handleSmoothing(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		radius, err := parseRadius(r)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		if err := s.station.SetSmoothingRadius(radius); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
	default:
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, smoothingResponse{
		Radius: s.station.SmoothingRadius(),
		Limit:  s.station.RadiusLimit(),
	})
}

func parseRadius(r *http.Request) (int, error) {
	if isJSON(r) {
		var body struct {
			Radius *int `json:"radius"`
		}
		if err := httputil.DecodeJSON(r, &body); err != nil {
			return 0, err
		}
		if body.Radius == nil {
			return 0, fmt.Errorf("missing radius")
		}
		return *body.Radius, nil
	}
	v := r.FormValue("radius")
	radius, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid radius %q", v)
	}
	return radius, nil
}

func isJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
