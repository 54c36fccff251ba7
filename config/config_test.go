package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.json"))

	cfg, err := LoadConfigFrom(nil)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Upstream.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeoutDuration())
	assert.Equal(t, time.Second, cfg.RetryBaseDelayDuration())
	assert.True(t, cfg.Cache.Enabled)
	assert.False(t, cfg.Server.DebugErrors)
	assert.Greater(t, cfg.GeoCacheTTLDuration(), cfg.CacheTTLDuration())
	assert.Equal(t, "127.0.0.1:6000", cfg.UpstreamAddress())
}

func TestLoadConfigLayering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"server": {"port": 9000},
		"upstream": {"host": "10.0.0.5", "max_retries": 5},
		"cache": {"ttl_seconds": 10}
	}`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("MAX_RETRIES", "4")
	t.Setenv("FETCH_TIMEOUT_MS", "1500")
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("DEBUG_ERRORS", "1")
	t.Setenv("UPSTREAM_PORT", "6001")

	cfg, err := LoadConfigFrom([]string{"-port", "9100"})
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port, "flag overrides file")
	assert.Equal(t, "10.0.0.5", cfg.Upstream.Host, "file overrides default")
	assert.Equal(t, 4, cfg.Upstream.MaxRetries, "env overrides file")
	assert.Equal(t, 1500*time.Millisecond, cfg.FetchTimeoutDuration())
	assert.False(t, cfg.Cache.Enabled)
	assert.True(t, cfg.Server.DebugErrors)
	assert.Equal(t, 10, cfg.Cache.TTL)
	assert.Equal(t, "10.0.0.5:6001", cfg.UpstreamAddress())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "zero_retries",
			mutate:  func(c *Config) { c.Upstream.MaxRetries = 0 },
			wantErr: "max retries",
		},
		{
			name:    "negative_timeout",
			mutate:  func(c *Config) { c.Upstream.TimeoutMs = -1 },
			wantErr: "fetch timeout",
		},
		{
			name:    "bad_port",
			mutate:  func(c *Config) { c.Upstream.Port = 70000 },
			wantErr: "upstream port",
		},
		{
			name:    "zero_ttl",
			mutate:  func(c *Config) { c.Cache.TTL = 0 },
			wantErr: "cache ttl",
		},
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateRaisesGeoTTL(t *testing.T) {
	cfg := Default()
	cfg.Cache.TTL = 600
	cfg.Cache.GeoTTL = 60

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1200, cfg.Cache.GeoTTL)
}

func TestAlertCooldownEnv(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.json"))
	t.Setenv("ALERT_COOLDOWN", "2m")

	cfg, err := LoadConfigFrom(nil)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.AlertCooldownDuration())
}
