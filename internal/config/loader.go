package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies OPPENGINE_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known OPPENGINE_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "OPPENGINE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "OPPENGINE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "OPPENGINE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "OPPENGINE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "OPPENGINE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "OPPENGINE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "OPPENGINE_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "OPPENGINE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "OPPENGINE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "OPPENGINE_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "OPPENGINE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "OPPENGINE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "OPPENGINE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "OPPENGINE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "OPPENGINE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "OPPENGINE_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.DefaultTTL, "OPPENGINE_REDIS_DEFAULT_TTL")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "OPPENGINE_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "OPPENGINE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "OPPENGINE_S3_REGION")
	setStr(&cfg.S3.Bucket, "OPPENGINE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "OPPENGINE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "OPPENGINE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "OPPENGINE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "OPPENGINE_S3_FORCE_PATH_STYLE")

	// ── Engine ──
	setDuration(&cfg.Engine.ScanInterval, "OPPENGINE_ENGINE_SCAN_INTERVAL")
	setDuration(&cfg.Engine.ExpiryWindow, "OPPENGINE_ENGINE_EXPIRY_WINDOW")
	setFloat64(&cfg.Engine.MinConfidence, "OPPENGINE_ENGINE_MIN_CONFIDENCE")
	setFloat64(&cfg.Engine.MinEdgeBps, "OPPENGINE_ENGINE_MIN_EDGE_BPS")
	setFloat64(&cfg.Engine.RiskBufferBps, "OPPENGINE_ENGINE_RISK_BUFFER_BPS")
	setInt(&cfg.Engine.ScanConcurrency, "OPPENGINE_ENGINE_SCAN_CONCURRENCY")
	setDuration(&cfg.Engine.DefaultStaleAfter, "OPPENGINE_ENGINE_DEFAULT_STALE_AFTER")

	// ── Archive ──
	setDuration(&cfg.Archive.Interval, "OPPENGINE_ARCHIVE_INTERVAL")
	setDuration(&cfg.Archive.OpportunityMaxAge, "OPPENGINE_ARCHIVE_OPPORTUNITY_MAX_AGE")
	setDuration(&cfg.Archive.SnapshotMaxAge, "OPPENGINE_ARCHIVE_SNAPSHOT_MAX_AGE")
	setInt(&cfg.Archive.BatchSize, "OPPENGINE_ARCHIVE_BATCH_SIZE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "OPPENGINE_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "OPPENGINE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "OPPENGINE_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "OPPENGINE_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "OPPENGINE_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "OPPENGINE_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "OPPENGINE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "OPPENGINE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "OPPENGINE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "OPPENGINE_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "OPPENGINE_MODE")
	setStr(&cfg.LogLevel, "OPPENGINE_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
