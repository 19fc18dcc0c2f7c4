// Package config defines the top-level configuration for the dogebot tracker
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by DOGEBOT_* environment
// variables.
type Config struct {
	Tracker    TrackerConfig             `toml:"tracker"`
	Strategies map[string]StrategyConfig `toml:"strategies"`
	Binance    BinanceConfig             `toml:"binance"`
	Postgres   PostgresConfig            `toml:"postgres"`
	Redis      RedisConfig               `toml:"redis"`
	S3         S3Config                  `toml:"s3"`
	Server     ServerConfig              `toml:"server"`
	Notify     NotifyConfig              `toml:"notify"`
	Mode       string                    `toml:"mode"`
	LogLevel   string                    `toml:"log_level"`
}

// TrackerConfig holds the core engine parameters.
type TrackerConfig struct {
	DataDir         string   `toml:"data_dir"`
	InitialBalance  float64  `toml:"initial_balance"`
	Symbol          string   `toml:"symbol"`
	TickInterval    duration `toml:"tick_interval"`
	FlushInterval   duration `toml:"flush_interval"`
	ReverseOnSignal bool     `toml:"reverse_on_signal"`
}

// StrategyConfig is the per-strategy risk configuration. Stop-loss and
// take-profit are whole percents of the entry price; fee_rate is a fraction
// (0.00075 = 0.075%). A zero percentage disables that threshold.
type StrategyConfig struct {
	StopLossPct   float64 `toml:"stop_loss_pct"`
	TakeProfitPct float64 `toml:"take_profit_pct"`
	FeeRate       float64 `toml:"fee_rate"`
	Quantity      float64 `toml:"quantity"`
	Active        bool    `toml:"active"`
}

// BinanceConfig holds the market data endpoints.
type BinanceConfig struct {
	RestHost string `toml:"rest_host"`
	WsHost   string `toml:"ws_host"`
}

// PostgresConfig holds connection parameters for the optional history mirror.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
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
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the history
// archiver.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	RetentionDays  int    `toml:"retention_days"`
}

// ServerConfig holds the HTTP/WebSocket API parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"` // requests per rate_window per client, 0 disables
	RateWindow  duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials and the event filter.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns the built-in configuration used when the TOML file leaves
// fields unset.
func Defaults() Config {
	return Config{
		Tracker: TrackerConfig{
			DataDir:        "data",
			InitialBalance: 1000,
			Symbol:         "DOGEUSDT",
			TickInterval:   duration{30 * time.Second},
			FlushInterval:  duration{5 * time.Second},
		},
		Strategies: map[string]StrategyConfig{
			"conservative": {StopLossPct: 2, TakeProfitPct: 3, FeeRate: 0.00075, Quantity: 100},
			"aggressive":   {StopLossPct: 5, TakeProfitPct: 8, FeeRate: 0.00075, Quantity: 100},
		},
		Binance: BinanceConfig{
			RestHost: "https://api.binance.com",
			WsHost:   "wss://stream.binance.com:9443",
		},
		Postgres: PostgresConfig{
			SSLMode:      "disable",
			PoolMaxConns: 4,
			PoolMinConns: 1,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 8,
		},
		Server: ServerConfig{
			Enabled:    true,
			Port:       8000,
			RateWindow: duration{time.Minute},
		},
		Mode:     "track",
		LogLevel: "info",
	}
}

// Validate checks the configuration for values the process cannot start with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Mode) {
	case "track", "serve", "archive":
	default:
		return fmt.Errorf("config: unsupported mode %q", c.Mode)
	}

	if c.Tracker.InitialBalance < 0 {
		return fmt.Errorf("config: initial_balance must not be negative")
	}
	if c.Tracker.Symbol == "" {
		return fmt.Errorf("config: tracker symbol is required")
	}
	if len(c.Strategies) == 0 {
		return fmt.Errorf("config: at least one strategy must be configured")
	}
	for name, sc := range c.Strategies {
		if sc.FeeRate < 0 || sc.FeeRate >= 1 {
			return fmt.Errorf("config: strategy %q: fee_rate must be a fraction in [0,1)", name)
		}
		if sc.Quantity <= 0 {
			return fmt.Errorf("config: strategy %q: quantity must be positive", name)
		}
		if sc.StopLossPct < 0 || sc.TakeProfitPct < 0 {
			return fmt.Errorf("config: strategy %q: risk percentages must not be negative", name)
		}
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("config: server port %d out of range", c.Server.Port)
	}
	if c.Postgres.Enabled && c.Postgres.DSN == "" && c.Postgres.Host == "" {
		return fmt.Errorf("config: postgres enabled but no dsn or host given")
	}
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			return fmt.Errorf("config: s3 enabled but no bucket given")
		}
		if c.S3.Region == "" {
			return fmt.Errorf("config: s3 enabled but no region given")
		}
	}
	return nil
}

// duration wraps time.Duration so TOML files can use "30s" / "5m" strings.
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}
