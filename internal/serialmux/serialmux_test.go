package serialmux

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerialMux_MonitorFansOutLines(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	_, a := mux.Subscribe()
	_, b := mux.Subscribe()

	port.AddReadData([]byte("0,1,5,1,0\n{\"exposure\":12}\n"))
	require.NoError(t, mux.Monitor(context.Background()))

	for _, ch := range []chan string{a, b} {
		assert.Equal(t, "0,1,5,1,0", <-ch)
		assert.Equal(t, `{"exposure":12}`, <-ch)
	}
}

func TestSerialMux_MonitorReturnsReadError(t *testing.T) {
	port := NewTestableSerialPort()
	port.ReadError = errors.New("device unplugged")
	mux := NewSerialMux(port)

	err := mux.Monitor(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device unplugged")
}

func TestSerialMux_MonitorStopsOnCancel(t *testing.T) {
	port := NewTestableSerialPort()
	port.BlockReads = true
	mux := NewSerialMux(port)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after cancel")
	}
	require.NoError(t, mux.Close())
}

func TestSerialMux_SendCommandAppendsNewline(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	require.NoError(t, mux.SendCommand("STREAM ON"))
	require.NoError(t, mux.SendCommand("STOP\n"))
	assert.Equal(t, "STREAM ON\nSTOP\n", port.GetWrittenData())
}

func TestSerialMux_SendCommandErrors(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	port.WriteError = errors.New("write failed")
	assert.EqualError(t, mux.SendCommand("X"), "write failed")

	port.ShortWrite = true
	assert.ErrorIs(t, mux.SendCommand("X"), ErrWriteFailed)
}

func TestSerialMux_Initialize(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	require.NoError(t, mux.Initialize([]string{"STOP", "", "  ", "STREAM ON"}))
	assert.Equal(t, "STOP\nSTREAM ON\n", port.GetWrittenData())

	port.WriteError = errors.New("boom")
	err := mux.Initialize([]string{"STOP"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"STOP"`)
}

func TestSerialMux_UnsubscribeAndClose(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	id, ch := mux.Subscribe()
	mux.Unsubscribe(id)
	_, ok := <-ch
	assert.False(t, ok)
	mux.Unsubscribe(id) // no-op

	_, ch2 := mux.Subscribe()
	require.NoError(t, mux.Close())
	_, ok = <-ch2
	assert.False(t, ok)
	assert.True(t, port.Closed)
}

func TestSendCommandHandler(t *testing.T) {
	port := NewTestableSerialPort()
	handler := sendCommandHandler(NewSerialMux(port))

	tests := []struct {
		name   string
		method string
		form   url.Values
		want   int
	}{
		{"valid command", http.MethodPost, url.Values{"command": {"EXPOSURE 20"}}, http.StatusOK},
		{"empty command", http.MethodPost, url.Values{"command": {"  "}}, http.StatusBadRequest},
		{"wrong method", http.MethodGet, nil, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/debug/send-command", strings.NewReader(tt.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			w := httptest.NewRecorder()
			handler(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
	assert.Equal(t, "EXPOSURE 20\n", port.GetWrittenData())

	port.WriteError = errors.New("unplugged")
	req := httptest.NewRequest(http.MethodPost, "/debug/send-command", strings.NewReader("command=STOP"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	handler(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
