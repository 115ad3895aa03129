package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/GriffinCanCode/monview/internal/domain/acquire"
	"github.com/GriffinCanCode/monview/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Logging.Level = "error"
	cfg.Logging.Development = true
	cfg.RateLimit.Enabled = false
	return cfg
}

func TestNewServerRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Acquire.Mode = "carrier-pigeon"

	_, err := NewServer(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid acquire mode")
}

func TestNewServerRoutes(t *testing.T) {
	for _, mode := range []string{config.ModeStream, config.ModePoll} {
		t.Run(mode, func(t *testing.T) {
			cfg := testConfig()
			cfg.Acquire.Mode = mode

			srv, err := NewServer(cfg)
			require.NoError(t, err)
			t.Cleanup(func() { _ = srv.Close() })

			assert.Equal(t, mode, srv.sessions.Mode())

			tests := []struct {
				method string
				path   string
				want   int
			}{
				{"GET", "/health", http.StatusOK},
				{"GET", "/api/view", http.StatusOK},
				{"GET", "/api/monitors", http.StatusOK},
				{"GET", "/api/selection", http.StatusOK},
				{"GET", "/api/stats", http.StatusOK},
				{"GET", "/metrics", http.StatusOK},
				{"GET", "/", http.StatusOK},
				{"GET", "/api/screens/0/frame", http.StatusNotFound},
				{"PUT", "/api/selection", http.StatusBadRequest},
			}
			for _, tt := range tests {
				w := httptest.NewRecorder()
				srv.Router().ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
				assert.Equal(t, tt.want, w.Code, "%s %s", tt.method, tt.path)
			}
		})
	}
}

func TestMetricsEndpointExposesViewerMetrics(t *testing.T) {
	srv, err := NewServer(testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	// Record one request first so the HTTP series exist.
	srv.Router().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "monview_")
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestStreamBaseFollowsBackendScheme(t *testing.T) {
	cfg := testConfig()
	cfg.Backend.URL = "http://monitors.local:8080"
	assert.Equal(t, "ws://monitors.local:8080", cfg.StreamBase())

	srv, err := NewServer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	assert.Equal(t, acquire.ModeStream, srv.sessions.Mode())
}

func TestRunAfterCloseReturns(t *testing.T) {
	srv, err := NewServer(testConfig())
	require.NoError(t, err)
	require.NoError(t, srv.Close())

	done := make(chan error, 1)
	go func() { done <- srv.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run kept serving after Close")
	}
	// Closing twice is harmless.
	assert.NoError(t, srv.Close())
}

func TestRunStopsOnClose(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"address":"A1","user":"alice","host":"desk1","screenCount":1}]`))
	}))
	defer backend.Close()

	cfg := testConfig()
	cfg.Server.Port = "0"
	cfg.Backend.URL = backend.URL
	srv, err := NewServer(cfg)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Run(context.Background()) }()

	require.Eventually(t, func() bool { return len(srv.registry.Snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, srv.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}
