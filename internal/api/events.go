package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/banshee-data/laserscope/internal/httputil"
	"github.com/banshee-data/laserscope/internal/version"
)

// streamEvents relays Station notifications as server-sent events named by
// their kind ("profile" or "zero").
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.InternalServerError(w, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

	id, events := s.station.Subscribe()
	defer s.station.Unsubscribe(id)

	keepalive := s.opts.Clock.NewTicker(s.opts.Keepalive)
	defer keepalive.Stop()

	io.WriteString(w, ": ping\n\n")
	flusher.Flush()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, payload); err != nil {
				return
			}
			flusher.Flush()
		case <-keepalive.C():
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) sendCommandHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.m == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "sensor not attached")
		return
	}
	command := strings.TrimSpace(r.FormValue("command"))
	if command == "" {
		httputil.BadRequest(w, "missing command")
		return
	}
	if err := s.m.SendCommand(command); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to send command: %v", err))
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"sent": command})
}

type statusResponse struct {
	Version string         `json:"version"`
	RunID   string         `json:"run_id"`
	Units   string         `json:"units"`
	Radius  int            `json:"radius"`
	Device  map[string]any `json:"device"`
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	resp := statusResponse{
		Version: version.String(),
		RunID:   s.opts.RunID,
		Units:   s.opts.Units,
		Radius:  s.station.SmoothingRadius(),
		Device:  map[string]any{},
	}
	if s.device != nil {
		resp.Device = s.device.Values()
	}
	httputil.WriteJSONOK(w, resp)
}
