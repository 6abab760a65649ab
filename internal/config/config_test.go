package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad mode", func(c *Config) { c.Mode = "hybrid" }, "unknown mode"},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, "unknown log_level"},
		{"empty redis addr", func(c *Config) { c.Redis.Addr = "" }, "redis: addr"},
		{"zero scan interval", func(c *Config) { c.Engine.ScanInterval = duration{} }, "scan_interval"},
		{"confidence out of range", func(c *Config) { c.Engine.MinConfidence = 150 }, "min_confidence"},
		{"empty buckets", func(c *Config) { c.Engine.QBuckets = nil }, "q_buckets"},
		{"negative bucket", func(c *Config) { c.Engine.QBuckets = []float64{100, -1} }, "q_buckets"},
		{"pool min above max", func(c *Config) { c.Postgres.PoolMinConns = 50 }, "pool_min_conns"},
		{"s3 enabled without bucket", func(c *Config) { c.S3.Enabled = true; c.S3.Bucket = "" }, "s3: bucket"},
		{"bad server port", func(c *Config) { c.Server.Port = 0 }, "server: port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "bogus"
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "unknown mode")
	assert.ErrorContains(t, err, "redis: addr")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "engine"

[engine]
scan_interval = "5s"
min_edge_bps = 12.5

[venues.polymarket]
fee_bps = 0
stale_after = "15s"
cache_ttl = "3s"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "engine", cfg.Mode)
	assert.Equal(t, 5*time.Second, cfg.Engine.ScanInterval.Duration)
	assert.Equal(t, 12.5, cfg.Engine.MinEdgeBps)

	// Untouched sections keep their defaults.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 30*time.Second, cfg.Engine.ExpiryWindow.Duration)

	assert.Equal(t, 15*time.Second, cfg.StaleThresholds()["polymarket"])
	assert.Equal(t, 3*time.Second, cfg.CacheTTLs()["polymarket"])
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OPPENGINE_MODE", "server")
	t.Setenv("OPPENGINE_POSTGRES_PASSWORD", "hunter2")
	t.Setenv("OPPENGINE_ENGINE_SCAN_INTERVAL", "45s")
	t.Setenv("OPPENGINE_ENGINE_MIN_EDGE_BPS", "8")
	t.Setenv("OPPENGINE_SERVER_RATE_LIMIT", "100")
	t.Setenv("OPPENGINE_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("OPPENGINE_S3_ENABLED", "true")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, "server", cfg.Mode)
	assert.Equal(t, "hunter2", cfg.Postgres.Password)
	assert.Equal(t, 45*time.Second, cfg.Engine.ScanInterval.Duration)
	assert.Equal(t, 8.0, cfg.Engine.MinEdgeBps)
	assert.Equal(t, 100, cfg.Server.RateLimit)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.True(t, cfg.S3.Enabled)
}

func TestEnvOverridesIgnoreMalformedValues(t *testing.T) {
	t.Setenv("OPPENGINE_ENGINE_SCAN_INTERVAL", "soon")
	t.Setenv("OPPENGINE_POSTGRES_PORT", "not-a-port")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, 2*time.Second, cfg.Engine.ScanInterval.Duration)
	assert.Equal(t, 5432, cfg.Postgres.Port)
}

func TestVenueFeeSchedule(t *testing.T) {
	cfg := Defaults()
	fees := cfg.VenueFees()

	// Only venues with a positive fee appear; fee-free venues fall through to
	// zero on lookup.
	assert.Equal(t, 7.0, fees["kalshi"])
	_, ok := fees["polymarket"]
	assert.False(t, ok)
}

func TestDurationTextRoundTrip(t *testing.T) {
	var d duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration)

	out, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(out))

	require.Error(t, d.UnmarshalText([]byte("forever")))
}
