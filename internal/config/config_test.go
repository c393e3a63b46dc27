package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trader.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 2.0, cfg.Signal.ZScoreThreshold)
	assert.Equal(t, 5000.0, cfg.Risk.MaxPositionNotional)
	assert.Equal(t, 1000.0, cfg.Execution.TradeNotional)
	assert.Equal(t, 9100, cfg.Telemetry.MetricsPort)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT", "ETHBTC"}, cfg.Ingest.Pairs)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
signal:
  zscore_threshold: 2.5
risk:
  max_position_notional: 2000
telemetry:
  metrics_port: 9200
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 2.5, cfg.Signal.ZScoreThreshold)
	assert.Equal(t, 2000.0, cfg.Risk.MaxPositionNotional)
	assert.Equal(t, 9200, cfg.Telemetry.MetricsPort)
	// Untouched sections keep their defaults
	assert.Equal(t, 1e-5, cfg.Estimator.ProcessNoise)
	assert.Equal(t, "ETHBTC", cfg.Features.CrossPair)
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("TRADER_DB_URL", "postgres://trader:pw@localhost:5432/trader")

	path := writeConfig(t, `
persistence:
  database_url: ${TRADER_DB_URL}
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, Secret("postgres://trader:pw@localhost:5432/trader"), cfg.Persistence.DatabaseURL)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"no pairs", func(c *Config) { c.Ingest.Pairs = nil }, "ingest.pairs"},
		{"zero process noise", func(c *Config) { c.Estimator.ProcessNoise = 0 }, "estimator.process_noise"},
		{"tiny residual window", func(c *Config) { c.Estimator.ResidualWindow = 1 }, "estimator.residual_window"},
		{"missing cross pair", func(c *Config) { c.Features.CrossPair = "" }, "features.cross_pair"},
		{"window below min obs", func(c *Config) { c.Features.PriceWindow = 5 }, "features.price_window"},
		{"negative threshold", func(c *Config) { c.Signal.ZScoreThreshold = -1 }, "signal.zscore_threshold"},
		{"bad approve threshold", func(c *Config) {
			c.Signal.ModelPath = "model.onnx"
			c.Signal.ApproveThreshold = 1.5
		}, "signal.approve_threshold"},
		{"zero notional ceiling", func(c *Config) { c.Risk.MaxPositionNotional = 0 }, "risk.max_position_notional"},
		{"notional above ceiling", func(c *Config) { c.Execution.TradeNotional = 9000 }, "execution.trade_notional"},
		{"bad log level", func(c *Config) { c.System.LogLevel = "TRACE" }, "system.log_level"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.field)
		})
	}
}

func TestStringRedactsDatabaseURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Persistence.DatabaseURL = "postgres://trader:hunter2@db:5432/trader"

	s := cfg.String()
	assert.NotContains(t, s, "hunter2")
	assert.Contains(t, s, "[REDACTED]")
}
