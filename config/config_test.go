package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	t.Parallel()
	assert.NoError(t, Default().Validate())
}

func TestYAMLRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := Default()
	cfg.Stops.TakeProfitPct = 0.03
	cfg.Journal.Type = "sqlite"
	cfg.Journal.DBPath = "runtime/journal.db"
	cfg.Metrics.Listen = ":9090"
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 0.03, loaded.Stops.TakeProfitPct)
	assert.Equal(t, "sqlite", loaded.Journal.Type)
	assert.Equal(t, ":9090", loaded.Metrics.Listen)
}

func TestJSONFallback(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")

	cfg := Default()
	cfg.SafeMode.CritLagS = 7.5
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7.5, loaded.SafeMode.CritLagS)
}

func TestPartialYAMLKeepsDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	partial := []byte("stops:\n  take_profit_pct: 0.05\n  stop_loss_pct: 0.02\n")
	require.NoError(t, os.WriteFile(path, partial, 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 0.05, cfg.Stops.TakeProfitPct)
	assert.Equal(t, "2s", cfg.Ticks.StallThreshold)
	assert.Equal(t, "jsonl", cfg.Journal.Type)
	assert.Equal(t, "runtime/SAFE_MODE", cfg.SafeMode.LockFile)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad stall threshold", func(c *Config) { c.Ticks.StallThreshold = "soon" }},
		{"unknown policy", func(c *Config) { c.Stops.Policy = "martingale" }},
		{"zero take profit", func(c *Config) { c.Stops.TakeProfitPct = 0 }},
		{"zero stop loss", func(c *Config) { c.Stops.StopLossPct = 0 }},
		{"unknown journal type", func(c *Config) { c.Journal.Type = "csv" }},
		{"jsonl without path", func(c *Config) { c.Journal.Path = "" }},
		{"sqlite without db path", func(c *Config) { c.Journal.Type = "sqlite"; c.Journal.DBPath = "" }},
		{"negative crit lag", func(c *Config) { c.SafeMode.CritLagS = -1 }},
		{"bad eval interval", func(c *Config) { c.SafeMode.EvalInterval = "never" }},
		{"no order types", func(c *Config) { c.GuardRails.AllowedOrderTypes = nil }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseDurations(t *testing.T) {
	t.Parallel()

	d, err := TicksConfig{StallThreshold: "1500ms"}.ParseStallThreshold()
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, d)

	d, err = TicksConfig{}.ParseStallThreshold()
	require.NoError(t, err)
	assert.Zero(t, d)

	d, err = SafeModeConfig{EvalInterval: "2s"}.ParseEvalInterval()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)
}
