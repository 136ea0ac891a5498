package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/laserscope/internal/analyser"
	"github.com/banshee-data/laserscope/internal/db"
	"github.com/banshee-data/laserscope/internal/serialmux"
	"github.com/banshee-data/laserscope/internal/units"
)

type testEnv struct {
	server  *Server
	station *analyser.Station
	port    *serialmux.TestableSerialPort
	db      *db.DB
	mux     http.Handler
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	p, err := analyser.New(analyser.WithRadius(1), analyser.WithRadiusLimit(10))
	require.NoError(t, err)
	station := analyser.NewStation(p)
	t.Cleanup(station.Close)

	database, err := db.NewDB(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	port := serialmux.NewTestableSerialPort()
	device := serialmux.NewDeviceState()
	require.NoError(t, device.Merge(`{"exposure_us": 120}`))

	s := NewServer(station, serialmux.NewSerialMux(port), database, device, opts)
	return &testEnv{server: s, station: station, port: port, db: database, mux: s.ServeMux()}
}

func (e *testEnv) do(t *testing.T, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), w.Body.String())
	return v
}

const form = "application/x-www-form-urlencoded"

func TestProfile_PushAndGet(t *testing.T) {
	e := newTestEnv(t, Options{Units: units.Micrometres, PixelPitchUM: 5})

	w := e.do(t, http.MethodGet, "/profile", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	empty := decode[ProfileResponse](t, w)
	assert.Empty(t, empty.Normalized)
	assert.Nil(t, empty.Center)

	e.station.SetZero(2)
	w = e.do(t, http.MethodPost, "/profile", "application/json", `[0,0,0,10,0,0,null]`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[ProfileResponse](t, w)

	assert.Len(t, got.Normalized, 5)
	assert.Equal(t, 7, got.Length)
	assert.Equal(t, 1, got.Radius)
	require.NotNil(t, got.Center)
	assert.InDelta(t, 3.0, *got.Center, 0.05)
	require.NotNil(t, got.OffsetPx)
	assert.InDelta(t, 1.0, *got.OffsetPx, 0.05)
	require.NotNil(t, got.Offset)
	assert.InDelta(t, 5.0, *got.Offset, 0.25)
	assert.Equal(t, "um", got.Units)
}

func TestProfile_InsufficientDataKeepsState(t *testing.T) {
	e := newTestEnv(t, Options{})
	require.NoError(t, e.station.PushProfile([]float64{0, 0, 0, 10, 0, 0, 0}))
	before := e.station.Snapshot()

	w := e.do(t, http.MethodPost, "/profile", "application/json", `[1,2]`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, before, e.station.Snapshot())

	w = e.do(t, http.MethodPost, "/profile", "application/json", `{"not": "an array"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodDelete, "/profile", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestDisplay(t *testing.T) {
	e := newTestEnv(t, Options{DisplayHeight: 120})

	w := e.do(t, http.MethodGet, "/display", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	coords := decode[analyser.DisplayCoordinates](t, w)
	assert.Nil(t, coords.CenterY)

	require.NoError(t, e.station.PushProfile([]float64{0, 0, 0, 10, 0, 0, 0}))
	e.station.SetZero(2)

	w = e.do(t, http.MethodGet, "/display", "", "")
	coords = decode[analyser.DisplayCoordinates](t, w)
	assert.Equal(t, 120.0, coords.Height)
	require.NotNil(t, coords.CenterY)
	assert.InDelta(t, 60.0, *coords.CenterY, 1.0)
	require.NotNil(t, coords.ZeroY)
	assert.InDelta(t, 80.0, *coords.ZeroY, 1e-9)

	w = e.do(t, http.MethodGet, "/display?height=60", "", "")
	coords = decode[analyser.DisplayCoordinates](t, w)
	assert.InDelta(t, 40.0, *coords.ZeroY, 1e-9)

	w = e.do(t, http.MethodGet, "/display?height=tall", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestZero(t *testing.T) {
	e := newTestEnv(t, Options{})

	w := e.do(t, http.MethodPost, "/zero", "application/json", `{"current": true}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = e.do(t, http.MethodPost, "/zero", form, url.Values{"value": {"1.25"}}.Encode())
	require.Equal(t, http.StatusOK, w.Code)
	z := e.station.Snapshot().Zero
	require.NotNil(t, z)
	assert.Equal(t, 1.25, *z)

	require.NoError(t, e.station.PushProfile([]float64{0, 0, 0, 10, 0, 0, 0}))
	w = e.do(t, http.MethodPost, "/zero", form, "current=true")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[map[string]float64](t, w)
	assert.InDelta(t, 3.0, resp["zero"], 0.05)

	w = e.do(t, http.MethodPost, "/zero", "application/json", `{"value": -4}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = e.do(t, http.MethodGet, "/zero", "", "")
	assert.Equal(t, -4.0, *decode[map[string]*float64](t, w)["zero"])

	for _, body := range []string{"", "value=abc", "current=maybe"} {
		w = e.do(t, http.MethodPost, "/zero", form, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestSmoothing(t *testing.T) {
	e := newTestEnv(t, Options{})

	w := e.do(t, http.MethodGet, "/smoothing", "", "")
	assert.Equal(t, smoothingResponse{Radius: 1, Limit: 10}, decode[smoothingResponse](t, w))

	w = e.do(t, http.MethodPost, "/smoothing", "application/json", `{"radius": 3}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, e.station.SmoothingRadius())

	w = e.do(t, http.MethodPost, "/smoothing", form, "radius=11")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = e.do(t, http.MethodPost, "/smoothing", form, "radius=-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = e.do(t, http.MethodPost, "/smoothing", "application/json", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 3, e.station.SmoothingRadius())
}

func TestMeasurementsAndZeroEvents(t *testing.T) {
	e := newTestEnv(t, Options{Units: units.Millimetres, PixelPitchUM: 1000})
	c, z := 5.0, 3.0
	require.NoError(t, e.db.RecordMeasurement(db.Measurement{RunID: "r", CapturedAt: time.Unix(1, 0), Center: &c, Zero: &z, Radius: 1, ProfileLength: 9}))
	require.NoError(t, e.db.RecordMeasurement(db.Measurement{RunID: "r", CapturedAt: time.Unix(2, 0), Radius: 1, ProfileLength: 9}))
	require.NoError(t, e.db.RecordZero(db.ZeroEvent{RunID: "r", SetAt: time.Unix(1, 0), Value: 3}))

	w := e.do(t, http.MethodGet, "/measurements?limit=5", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	ms := decode[[]MeasurementAPI](t, w)
	require.Len(t, ms, 2)
	assert.Nil(t, ms[0].Offset)
	require.NotNil(t, ms[1].Offset)
	assert.InDelta(t, 2.0, *ms[1].Offset, 1e-9)
	assert.Equal(t, "mm", ms[1].Units)

	w = e.do(t, http.MethodGet, "/measurements?limit=0", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodGet, "/zero_events", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]db.ZeroEvent](t, w), 1)
}

func TestMeasurements_NoDatabase(t *testing.T) {
	p, err := analyser.New()
	require.NoError(t, err)
	s := NewServer(analyser.NewStation(p), nil, nil, nil, Options{})

	for _, target := range []string{"/measurements", "/zero_events"} {
		w := httptest.NewRecorder()
		s.ServeMux().ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, target)
	}
	w := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/command", strings.NewReader("command=X")))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestChartAndPlot(t *testing.T) {
	e := newTestEnv(t, Options{})

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/chart", "", "").Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/plot.png", "", "").Code)

	require.NoError(t, e.station.PushProfile([]float64{0, 1, 4, 9, 4, 1, 0}))

	w := e.do(t, http.MethodGet, "/chart", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")

	w = e.do(t, http.MethodGet, "/plot.png?w=4&h=2", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "\x89PNG"))

	w = e.do(t, http.MethodGet, "/plot.png?w=-1", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCommandAndStatus(t *testing.T) {
	e := newTestEnv(t, Options{RunID: "run-1"})

	w := e.do(t, http.MethodPost, "/command", form, "command=EXPOSURE+200")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "EXPOSURE 200\n", e.port.GetWrittenData())

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/command", form, "command=").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, e.do(t, http.MethodGet, "/command", "", "").Code)

	w = e.do(t, http.MethodGet, "/status", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[statusResponse](t, w)
	assert.Equal(t, "run-1", status.RunID)
	assert.Equal(t, "px", status.Units)
	assert.Equal(t, 120.0, status.Device["exposure_us"])
}

func TestEvents_StreamsProfileAndZero(t *testing.T) {
	e := newTestEnv(t, Options{})
	ts := httptest.NewServer(LoggingMiddleware(e.mux))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	// the initial ping is written after the subscription is registered
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": ping\n", line)

	require.NoError(t, e.station.PushProfile([]float64{0, 0, 0, 10, 0, 0, 0}))
	e.station.SetZero(1)

	var events []string
	for len(events) < 2 {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "event: ") {
			events = append(events, strings.TrimSpace(strings.TrimPrefix(line, "event: ")))
		}
	}
	assert.Equal(t, []string{"profile", "zero"}, events)
}

func TestStatusCodeColor(t *testing.T) {
	assert.Contains(t, statusCodeColor(200), "200")
	assert.Contains(t, statusCodeColor(302), colorYellow)
	assert.Contains(t, statusCodeColor(422), colorBoldRed)
	assert.Equal(t, "100", statusCodeColor(100))
}
