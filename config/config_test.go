package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NotNil(t, cfg)
	assert.Equal(t, "XAF", cfg.Trading.Currency)
	assert.Equal(t, StoreSQLite, cfg.Store.Type)
	assert.True(t, cfg.Trading.Start.Equal(time.Date(2026, 2, 7, 7, 0, 0, 0, time.UTC)))
	assert.NoError(t, cfg.Validate())

	d, err := cfg.TickInterval()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, d)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid config", func(*Config) {}, ""},
		{"missing base url", func(c *Config) { c.API.BaseURL = "" }, "api.base_url is required"},
		{"bad base url", func(c *Config) { c.API.BaseURL = "ftp://example.com" }, "api.base_url must be an http(s) URL"},
		{"bad timeout", func(c *Config) { c.API.Timeout = "soon" }, "api.timeout"},
		{"unknown store", func(c *Config) { c.Store.Type = "cookie" }, "store.type must be"},
		{"sqlite without path", func(c *Config) { c.Store.SQLitePath = "" }, "store.sqlite_path required"},
		{"redis without url", func(c *Config) { c.Store.Type = StoreRedis }, "store.redis_url required"},
		{"memory store", func(c *Config) { c.Store.Type = StoreMemory; c.Store.SQLitePath = "" }, ""},
		{"missing currency", func(c *Config) { c.Trading.Currency = "" }, "trading.currency is required"},
		{"missing start", func(c *Config) { c.Trading.Start = time.Time{} }, "trading.start is required"},
		{"missing addr", func(c *Config) { c.Dashboard.Addr = "" }, "dashboard.addr is required"},
		{"zero tick", func(c *Config) { c.Dashboard.Tick = "0s" }, "dashboard.tick must be a positive duration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name string
		ext  string
	}{
		{"json format", ".json"},
		{"yaml format", ".yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.API.BaseURL = "http://localhost:9000"
			cfg.Store.Type = StoreMemory
			path := filepath.Join(tmpDir, "test"+tt.ext)

			require.NoError(t, cfg.SaveToFile(path))

			_, err := os.Stat(path)
			require.NoError(t, err)

			loaded, err := LoadFromFile(path)
			require.NoError(t, err)

			assert.Equal(t, cfg.API.BaseURL, loaded.API.BaseURL)
			assert.Equal(t, cfg.Store.Type, loaded.Store.Type)
			assert.Equal(t, cfg.Trading.Currency, loaded.Trading.Currency)
			assert.True(t, cfg.Trading.Start.Equal(loaded.Trading.Start))
		})
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  base_url: http://127.0.0.1:5000\n"), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:5000", cfg.API.BaseURL)
	assert.Equal(t, "30s", cfg.API.Timeout)
	assert.Equal(t, "XAF", cfg.Trading.Currency)
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path.yaml")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  type: cookie\n"), 0644))
	_, err = LoadFromFile(path)
	assert.ErrorContains(t, err, "invalid config")
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, Default().API.BaseURL, cfg.API.BaseURL)
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	dotenv := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("QUANTUMAI_LOG_LEVEL=debug\n"), 0644))

	t.Setenv(EnvAPIURL, "http://api.local:8000")
	t.Setenv(EnvStore, "REDIS")
	t.Setenv(EnvRedisURL, "redis://localhost:6379/0")
	// godotenv does not override variables that are already set.
	t.Setenv(EnvLogLevel, "")
	os.Unsetenv(EnvLogLevel)

	cfg, err := Load("", dotenv)
	require.NoError(t, err)
	assert.Equal(t, "http://api.local:8000", cfg.API.BaseURL)
	assert.Equal(t, StoreRedis, cfg.Store.Type)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Store.RedisURL)
	assert.Equal(t, "debug", cfg.Log.Level)
}
