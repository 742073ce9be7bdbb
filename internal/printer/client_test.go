package printer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shapekiln/kiln/internal/config"
)

func newTestClient(url string) *Client {
	return NewClient(&config.PrinterConfig{
		Address:           url,
		ConnectionTimeout: time.Second,
	})
}

func TestState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/status", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"state": "printing",
			"job":   map[string]any{"filename": "kiln-a.gcode", "progress": 0.42},
		})
	}))
	defer srv.Close()

	state, err := newTestClient(srv.URL).State(context.Background())
	require.NoError(t, err)
	assert.True(t, state.Printing())
	assert.False(t, state.Ready())
	require.NotNil(t, state.Job)
	assert.Equal(t, "kiln-a.gcode", state.Job.Filename)
}

func TestState_ReadyStatuses(t *testing.T) {
	for _, status := range []string{"idle", "operational", "ready"} {
		s := &State{Status: status}
		assert.True(t, s.Ready(), status)
		assert.False(t, s.Printing(), status)
	}
	assert.True(t, (&State{Status: "heating"}).Printing())
	assert.False(t, (&State{Status: "error"}).Ready())
}

func TestState_ControllerDown(t *testing.T) {
	srv := httptest.NewServer(nil)
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url).State(context.Background())
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestState_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).State(context.Background())
	assert.ErrorIs(t, err, ErrControllerRejected)
}

func TestUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/files", r.URL.Path)
		assert.Equal(t, "kiln-a b.gcode", r.URL.Query().Get("name"))
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "G28\n", string(body))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).Upload(context.Background(), "kiln-a b.gcode", []byte("G28\n"))
	require.NoError(t, err)
}

func TestUpload_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "disk full", http.StatusInsufficientStorage)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).Upload(context.Background(), "a.gcode", []byte("G28\n"))
	assert.ErrorIs(t, err, ErrControllerRejected)
	assert.Contains(t, err.Error(), "disk full")
}

func TestStartPrint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/print", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "kiln-a.gcode", req["filename"])
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).StartPrint(context.Background(), "kiln-a.gcode")
	require.NoError(t, err)
}

func TestStartPrint_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such file", http.StatusNotFound)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).StartPrint(context.Background(), "missing.gcode")
	assert.ErrorIs(t, err, ErrControllerRejected)
}
