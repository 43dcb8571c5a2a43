package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"tradeguard/guardrails"
	"tradeguard/pkg/logger"
	"tradeguard/stops"
)

// Config is the complete runtime configuration.
type Config struct {
	Ticks      TicksConfig       `json:"ticks" yaml:"ticks"`
	Stops      stops.Config      `json:"stops" yaml:"stops"`
	GuardRails guardrails.Config `json:"guard_rails" yaml:"guard_rails"`
	SafeMode   SafeModeConfig    `json:"safe_mode" yaml:"safe_mode"`
	Journal    JournalConfig     `json:"journal" yaml:"journal"`
	Logging    logger.Config     `json:"logging" yaml:"logging"`
	Metrics    MetricsConfig     `json:"metrics" yaml:"metrics"`
}

// TicksConfig parametrizes the tick ledger.
type TicksConfig struct {
	StallThreshold string `json:"stall_threshold" yaml:"stall_threshold"` // e.g. "2s"
}

func (c TicksConfig) ParseStallThreshold() (time.Duration, error) {
	if c.StallThreshold == "" {
		return 0, nil
	}
	return time.ParseDuration(c.StallThreshold)
}

// SafeModeConfig parametrizes the safety gate and its sentinels.
type SafeModeConfig struct {
	CritLagS      float64 `json:"crit_lag_s" yaml:"crit_lag_s"`
	LockFile      string  `json:"lock_file" yaml:"lock_file"`
	PanicFile     string  `json:"panic_file" yaml:"panic_file"`
	EvalInterval  string  `json:"eval_interval" yaml:"eval_interval"` // e.g. "1s"
	WatchSentinel bool    `json:"watch_sentinel" yaml:"watch_sentinel"`
}

func (c SafeModeConfig) ParseEvalInterval() (time.Duration, error) {
	if c.EvalInterval == "" {
		return 0, nil
	}
	return time.ParseDuration(c.EvalInterval)
}

// JournalConfig selects the lifecycle journal backend.
type JournalConfig struct {
	Type      string `json:"type" yaml:"type"` // "jsonl" or "sqlite"
	Path      string `json:"path,omitempty" yaml:"path,omitempty"`
	DBPath    string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	StateFile string `json:"state_file,omitempty" yaml:"state_file,omitempty"` // guard-rails attempts
}

type MetricsConfig struct {
	Listen string `json:"listen,omitempty" yaml:"listen,omitempty"` // e.g. ":9090"; empty disables
}

// LoadFromFile loads configuration from a file (YAML first, JSON as a
// fallback) and validates it.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes the configuration (YAML for .yaml/.yml, else JSON).
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if _, err := c.Ticks.ParseStallThreshold(); err != nil {
		return fmt.Errorf("ticks.stall_threshold: %w", err)
	}

	switch c.Stops.Policy {
	case "", "trailing", "ladder":
	default:
		return fmt.Errorf("stops.policy must be 'trailing' or 'ladder', got %q", c.Stops.Policy)
	}
	if c.Stops.TakeProfitPct <= 0 {
		return fmt.Errorf("stops.take_profit_pct must be positive")
	}
	if c.Stops.StopLossPct <= 0 {
		return fmt.Errorf("stops.stop_loss_pct must be positive")
	}

	switch c.Journal.Type {
	case "jsonl":
		if c.Journal.Path == "" {
			return fmt.Errorf("journal.path required for jsonl type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal.db_path required for sqlite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'jsonl' or 'sqlite'")
	}

	if c.SafeMode.CritLagS < 0 {
		return fmt.Errorf("safe_mode.crit_lag_s must not be negative")
	}
	if _, err := c.SafeMode.ParseEvalInterval(); err != nil {
		return fmt.Errorf("safe_mode.eval_interval: %w", err)
	}

	if len(c.GuardRails.AllowedOrderTypes) == 0 {
		return fmt.Errorf("guard_rails.allowed_order_types must not be empty")
	}
	return nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Ticks: TicksConfig{
			StallThreshold: "2s",
		},
		Stops:      stops.DefaultConfig(),
		GuardRails: guardrails.DefaultConfig(),
		SafeMode: SafeModeConfig{
			CritLagS:      5.0,
			LockFile:      "runtime/SAFE_MODE",
			PanicFile:     "runtime/panic.flag",
			EvalInterval:  "1s",
			WatchSentinel: true,
		},
		Journal: JournalConfig{
			Type:      "jsonl",
			Path:      "runtime/trades.jsonl",
			StateFile: "runtime/guard_rails_state.json",
		},
		Logging: logger.Config{
			Level: "info",
		},
	}
}
