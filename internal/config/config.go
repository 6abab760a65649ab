// Package config defines the top-level configuration for the opportunity
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by OPPENGINE_* environment
// variables.
type Config struct {
	Postgres PostgresConfig         `toml:"postgres"`
	Redis    RedisConfig            `toml:"redis"`
	S3       S3Config               `toml:"s3"`
	Engine   EngineConfig           `toml:"engine"`
	Archive  ArchiveConfig          `toml:"archive"`
	Server   ServerConfig           `toml:"server"`
	Notify   NotifyConfig           `toml:"notify"`
	Venues   map[string]VenueConfig `toml:"venues"`
	Mode     string                 `toml:"mode"`
	LogLevel string                 `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	DefaultTTL duration `toml:"default_ttl"`
}

// S3Config holds S3-compatible object storage parameters for cold archival.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// EngineConfig holds scan-orchestrator and edge-model parameters.
type EngineConfig struct {
	ScanInterval      duration  `toml:"scan_interval"`
	ExpiryWindow      duration  `toml:"expiry_window"`
	MinConfidence     float64   `toml:"min_confidence"`
	MinEdgeBps        float64   `toml:"min_edge_bps"`
	RiskBufferBps     float64   `toml:"risk_buffer_bps"`
	QBuckets          []float64 `toml:"q_buckets"`
	ScanConcurrency   int       `toml:"scan_concurrency"`
	DefaultStaleAfter duration  `toml:"default_stale_after"`
}

// ArchiveConfig holds cold-storage archival parameters.
type ArchiveConfig struct {
	Interval          duration `toml:"interval"`
	OpportunityMaxAge duration `toml:"opportunity_max_age"`
	SnapshotMaxAge    duration `toml:"snapshot_max_age"`
	BatchSize         int      `toml:"batch_size"`
}

// VenueConfig holds per-venue parameters: fee schedule fallback, staleness
// threshold, and cache TTL.
type VenueConfig struct {
	FeeBps     float64  `toml:"fee_bps"`
	StaleAfter duration `toml:"stale_after"`
	CacheTTL   duration `toml:"cache_ttl"`
}

// ServerConfig holds HTTP gateway parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`

	// RateLimit caps requests per client IP per RateWindow; 0 disables it.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "30s", "5m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "oppengine",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			DefaultTTL: duration{10 * time.Second},
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "oppengine-archive",
			ForcePathStyle: true,
		},
		Engine: EngineConfig{
			ScanInterval:      duration{2 * time.Second},
			ExpiryWindow:      duration{30 * time.Second},
			MinConfidence:     60,
			MinEdgeBps:        5,
			RiskBufferBps:     15,
			QBuckets:          []float64{100, 250, 500, 1000, 2500, 5000},
			ScanConcurrency:   8,
			DefaultStaleAfter: duration{30 * time.Second},
		},
		Archive: ArchiveConfig{
			Interval:          duration{6 * time.Hour},
			OpportunityMaxAge: duration{30 * 24 * time.Hour},
			SnapshotMaxAge:    duration{7 * 24 * time.Hour},
			BatchSize:         500,
		},
		Venues: map[string]VenueConfig{
			"polymarket": {FeeBps: 0, StaleAfter: duration{10 * time.Second}, CacheTTL: duration{5 * time.Second}},
			"kalshi":     {FeeBps: 7, StaleAfter: duration{20 * time.Second}, CacheTTL: duration{10 * time.Second}},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   50,
			RateWindow:  duration{time.Second},
		},
		Notify: NotifyConfig{
			Events: []string{"opportunity_opened", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"engine": true,
	"server": true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: engine, server, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	// Engine
	if c.Engine.ScanInterval.Duration <= 0 {
		errs = append(errs, "engine: scan_interval must be > 0")
	}
	if c.Engine.ExpiryWindow.Duration <= 0 {
		errs = append(errs, "engine: expiry_window must be > 0")
	}
	if c.Engine.MinConfidence < 0 || c.Engine.MinConfidence > 100 {
		errs = append(errs, fmt.Sprintf("engine: min_confidence must be 0-100, got %g", c.Engine.MinConfidence))
	}
	if c.Engine.MinEdgeBps < 0 {
		errs = append(errs, "engine: min_edge_bps must be >= 0")
	}
	if c.Engine.RiskBufferBps < 0 {
		errs = append(errs, "engine: risk_buffer_bps must be >= 0")
	}
	if len(c.Engine.QBuckets) == 0 {
		errs = append(errs, "engine: q_buckets must not be empty")
	}
	for _, q := range c.Engine.QBuckets {
		if q <= 0 {
			errs = append(errs, fmt.Sprintf("engine: q_buckets entries must be > 0, got %g", q))
			break
		}
	}
	if c.Engine.ScanConcurrency < 1 {
		errs = append(errs, "engine: scan_concurrency must be >= 1")
	}
	if c.Engine.DefaultStaleAfter.Duration <= 0 {
		errs = append(errs, "engine: default_stale_after must be > 0")
	}

	// Venues
	for name, v := range c.Venues {
		if v.FeeBps < 0 {
			errs = append(errs, fmt.Sprintf("venues.%s: fee_bps must be >= 0", name))
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// StaleThresholds returns the per-venue staleness thresholds as durations.
func (c *Config) StaleThresholds() map[string]time.Duration {
	out := make(map[string]time.Duration, len(c.Venues))
	for name, v := range c.Venues {
		if v.StaleAfter.Duration > 0 {
			out[name] = v.StaleAfter.Duration
		}
	}
	return out
}

// VenueFees returns the per-venue fallback fee schedule in basis points,
// applied when a curated event-group leg carries no fee of its own.
func (c *Config) VenueFees() map[string]float64 {
	out := make(map[string]float64, len(c.Venues))
	for name, v := range c.Venues {
		if v.FeeBps > 0 {
			out[name] = v.FeeBps
		}
	}
	return out
}

// CacheTTLs returns the per-venue snapshot cache TTLs as durations.
func (c *Config) CacheTTLs() map[string]time.Duration {
	out := make(map[string]time.Duration, len(c.Venues))
	for name, v := range c.Venues {
		if v.CacheTTL.Duration > 0 {
			out[name] = v.CacheTTL.Duration
		}
	}
	return out
}
