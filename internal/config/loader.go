package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies DOGEBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load. A missing file is not
// an error: defaults plus environment overrides apply.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known DOGEBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Tracker ──
	setStr(&cfg.Tracker.DataDir, "DOGEBOT_TRACKER_DATA_DIR")
	setFloat64(&cfg.Tracker.InitialBalance, "DOGEBOT_TRACKER_INITIAL_BALANCE")
	setStr(&cfg.Tracker.Symbol, "DOGEBOT_TRACKER_SYMBOL")
	setDuration(&cfg.Tracker.TickInterval, "DOGEBOT_TRACKER_TICK_INTERVAL")
	setDuration(&cfg.Tracker.FlushInterval, "DOGEBOT_TRACKER_FLUSH_INTERVAL")
	setBool(&cfg.Tracker.ReverseOnSignal, "DOGEBOT_TRACKER_REVERSE_ON_SIGNAL")

	// ── Binance ──
	setStr(&cfg.Binance.RestHost, "DOGEBOT_BINANCE_REST_HOST")
	setStr(&cfg.Binance.WsHost, "DOGEBOT_BINANCE_WS_HOST")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "DOGEBOT_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "DOGEBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "DOGEBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "DOGEBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "DOGEBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "DOGEBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "DOGEBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "DOGEBOT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "DOGEBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "DOGEBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "DOGEBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "DOGEBOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "DOGEBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "DOGEBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "DOGEBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "DOGEBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "DOGEBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "DOGEBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "DOGEBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "DOGEBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "DOGEBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "DOGEBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "DOGEBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "DOGEBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "DOGEBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "DOGEBOT_S3_FORCE_PATH_STYLE")
	setInt(&cfg.S3.RetentionDays, "DOGEBOT_S3_RETENTION_DAYS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "DOGEBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "DOGEBOT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "DOGEBOT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "DOGEBOT_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "DOGEBOT_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "DOGEBOT_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "DOGEBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "DOGEBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "DOGEBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "DOGEBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "DOGEBOT_MODE")
	setStr(&cfg.LogLevel, "DOGEBOT_LOG_LEVEL")
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
