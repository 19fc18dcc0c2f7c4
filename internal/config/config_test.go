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
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "DOGEUSDT", cfg.Tracker.Symbol)
	assert.Equal(t, "track", cfg.Mode)
	assert.Contains(t, cfg.Strategies, "conservative")
	assert.Contains(t, cfg.Strategies, "aggressive")
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults().Tracker.Symbol, cfg.Tracker.Symbol)
	assert.Equal(t, Defaults().Server.Port, cfg.Server.Port)
}

func TestLoadTOMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
mode = "serve"
log_level = "debug"

[tracker]
symbol = "SHIBUSDT"
initial_balance = 500.0
tick_interval = "10s"

[strategies.scalper]
stop_loss_pct = 1.0
take_profit_pct = 1.5
fee_rate = 0.001
quantity = 250.0
active = true

[server]
port = 9000
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "serve", cfg.Mode)
	assert.Equal(t, "SHIBUSDT", cfg.Tracker.Symbol)
	assert.InDelta(t, 500.0, cfg.Tracker.InitialBalance, 1e-9)
	assert.Equal(t, 10*time.Second, cfg.Tracker.TickInterval.Duration)
	assert.Equal(t, 9000, cfg.Server.Port)

	sc, ok := cfg.Strategies["scalper"]
	require.True(t, ok)
	assert.InDelta(t, 0.001, sc.FeeRate, 1e-9)
	assert.InDelta(t, 250.0, sc.Quantity, 1e-9)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DOGEBOT_MODE", "serve")
	t.Setenv("DOGEBOT_TRACKER_SYMBOL", "PEPEUSDT")
	t.Setenv("DOGEBOT_SERVER_PORT", "8081")
	t.Setenv("DOGEBOT_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("DOGEBOT_TRACKER_FLUSH_INTERVAL", "2s")
	t.Setenv("DOGEBOT_REDIS_ENABLED", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	assert.Equal(t, "serve", cfg.Mode)
	assert.Equal(t, "PEPEUSDT", cfg.Tracker.Symbol)
	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 2*time.Second, cfg.Tracker.FlushInterval.Duration)
	assert.True(t, cfg.Redis.Enabled)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown mode", func(c *Config) { c.Mode = "yolo" }},
		{"negative balance", func(c *Config) { c.Tracker.InitialBalance = -1 }},
		{"empty symbol", func(c *Config) { c.Tracker.Symbol = "" }},
		{"no strategies", func(c *Config) { c.Strategies = nil }},
		{"fee rate not a fraction", func(c *Config) {
			s := c.Strategies["conservative"]
			s.FeeRate = 1.5
			c.Strategies["conservative"] = s
		}},
		{"zero quantity", func(c *Config) {
			s := c.Strategies["conservative"]
			s.Quantity = 0
			c.Strategies["conservative"] = s
		}},
		{"negative stop loss", func(c *Config) {
			s := c.Strategies["conservative"]
			s.StopLossPct = -2
			c.Strategies["conservative"] = s
		}},
		{"server port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"postgres enabled without target", func(c *Config) { c.Postgres.Enabled = true }},
		{"s3 enabled without bucket", func(c *Config) {
			c.S3.Enabled = true
			c.S3.Region = "us-east-1"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
