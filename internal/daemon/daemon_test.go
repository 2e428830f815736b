package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frugalcloud/sweeper/config"
	"github.com/frugalcloud/sweeper/telemetry"
	"github.com/frugalcloud/sweeper/types"
)

func newTestDaemon(t *testing.T) *Daemon {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()

	d, err := New(context.Background(), cfg, telemetry.NewLogger("test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestHealthReportsScopes(t *testing.T) {
	d := newTestDaemon(t)

	health := d.Health()
	assert.Equal(t, "healthy", health.Status)
	assert.Zero(t, health.Scopes)

	scope := types.Scope{Provider: "azure", AccountUnit: "sub-1", Owner: "team-a"}
	require.NoError(t, d.snapshots.Replace(scope, nil, time.Now()))
	assert.Equal(t, 1, d.Health().Scopes)
}

func TestMetricsServerEndpoints(t *testing.T) {
	d := newTestDaemon(t)
	srv := d.metricsServer()

	for _, path := range []string{"/metrics", "/-/healthy", "/-/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var health HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.MetricsAddr = "127.0.0.1:0"

	d, err := New(context.Background(), cfg, telemetry.NewLogger("test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop after cancel")
	}
}
