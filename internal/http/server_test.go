package http

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DridrM/renewable-energy-forecast/internal/models"
	"github.com/DridrM/renewable-energy-forecast/internal/pipeline"
	"github.com/DridrM/renewable-energy-forecast/internal/ratelimit"
	"github.com/DridrM/renewable-energy-forecast/internal/registry"
	"github.com/DridrM/renewable-energy-forecast/internal/resource"
	"github.com/DridrM/renewable-energy-forecast/internal/storage"
)

func newTestServer(t *testing.T) (*httptest.Server, *Metrics, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.New(dir, 4, zerolog.Nop())
	require.NoError(t, err)
	reg := registry.New(dir, store, zerolog.Nop())

	promReg := prometheus.NewRegistry()
	metrics := NewMetrics(promReg)
	p := pipeline.New(nil, reg, store, ratelimit.New(), zerolog.Nop(), pipeline.WithObserver(metrics))

	server := httptest.NewServer(NewHandler(promReg, p, nil, nil))
	t.Cleanup(server.Close)
	return server, metrics, dir
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestHealth(t *testing.T) {
	server, _, _ := newTestServer(t)
	status, body := get(t, server.URL+"/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", body)
}

func TestStatus(t *testing.T) {
	server, _, _ := newTestServer(t)
	status, body := get(t, server.URL+"/status")
	require.Equal(t, http.StatusOK, status)

	var resp models.StatusResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.False(t, resp.SchedulerRunning)
	assert.Len(t, resp.Resources, 3)
	assert.Equal(t, int64(3600), resp.Resources[resource.Unit.Name()].MinIntervalSecond)
	assert.Zero(t, resp.Registry.Entries)
	assert.False(t, resp.Database.Enabled)
}

func TestStatusDoesNotCreateLedger(t *testing.T) {
	server, _, dir := newTestServer(t)
	status, _ := get(t, server.URL+"/status")
	require.Equal(t, http.StatusOK, status)

	_, err := os.Stat(filepath.Join(dir, registry.LedgerName))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestMetricsExposeObservations(t *testing.T) {
	server, metrics, _ := newTestServer(t)
	metrics.ObserveCacheHit(resource.Unit)
	metrics.ObserveFetch(resource.Mix15Min, true, 2*time.Second, 96)
	metrics.ObserveCooldown(resource.ProductionType)

	status, body := get(t, server.URL+"/metrics")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `reforecast_cache_hits_total{resource="actual_generations_per_unit"} 1`)
	assert.Contains(t, body, `reforecast_records_fetched_total{resource="generation_mix_15min_time_scale"} 96`)
	assert.Contains(t, body, `reforecast_fetches_total{resource="generation_mix_15min_time_scale",status="success"} 1`)
	assert.Contains(t, body, `reforecast_cooldowns_total{resource="actual_generations_per_production_type"} 1`)
}
