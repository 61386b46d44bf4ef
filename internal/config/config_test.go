package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DridrM/renewable-energy-forecast/internal/api/rte"
	"github.com/DridrM/renewable-energy-forecast/internal/resource"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, rte.DefaultBaseURL, cfg.API.BaseURL)
	assert.Equal(t, resource.All(), cfg.Kinds)
	assert.Equal(t, 15*time.Minute, cfg.MinIntervals[resource.ProductionType])
	assert.Equal(t, time.Hour, cfg.MinIntervals[resource.Unit])
	assert.Equal(t, 15*time.Minute, cfg.MinIntervals[resource.Mix15Min])
	assert.Equal(t, 6, cfg.ScheduleHour)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BASE_URL", "http://localhost:9999")
	t.Setenv("CLIENT_SECRET", "c2VjcmV0")
	t.Setenv("DATA_DIR", "/tmp/re")
	t.Setenv("CACHE_SIZE", "3")
	t.Setenv("SCHEDULE_HOUR", "25")
	t.Setenv("KINDS", "1, actual_generations_per_unit")
	t.Setenv("MIN_INTERVAL_2", "0")
	t.Setenv("MIN_INTERVAL_3", "soon")

	cfg := DefaultConfig()
	cfg.LoadFromEnv()

	assert.Equal(t, "http://localhost:9999", cfg.API.BaseURL)
	assert.Equal(t, "c2VjcmV0", cfg.API.ClientSecret)
	assert.Equal(t, "/tmp/re", cfg.DataDir)
	assert.Equal(t, 3, cfg.CacheSize)
	assert.Equal(t, 6, cfg.ScheduleHour)
	assert.Equal(t, []resource.Kind{resource.ProductionType, resource.Unit}, cfg.Kinds)
	assert.Equal(t, time.Duration(0), cfg.MinIntervals[resource.Unit])
	assert.Equal(t, 15*time.Minute, cfg.MinIntervals[resource.Mix15Min])
}

func TestParseKinds(t *testing.T) {
	kinds, err := ParseKinds("3,1")
	require.NoError(t, err)
	assert.Equal(t, []resource.Kind{resource.Mix15Min, resource.ProductionType}, kinds)

	_, err = ParseKinds("4")
	assert.Error(t, err)

	_, err = ParseKinds(" , ")
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("TOKEN_PATH=/custom/token\n"), 0o600))

	t.Setenv("TOKEN_PATH", "")
	require.NoError(t, os.Unsetenv("TOKEN_PATH"))

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "/custom/token", os.Getenv("TOKEN_PATH"))

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}
