package stops

const (
	DefaultVolWindow = 30
	minVolWindow     = 5
	maxVolWindow     = 500
)

// Config holds the stop engine's exit parameters. Percentages are
// fractions (0.02 = 2%).
type Config struct {
	// Policy selects the exit policy: "trailing" (canonical) or
	// "ladder" (fixed TP1/TP2/TP3 progression).
	Policy string `json:"policy" yaml:"policy"`

	TakeProfitPct    float64 `json:"take_profit_pct" yaml:"take_profit_pct"`
	StopLossPct      float64 `json:"stop_loss_pct" yaml:"stop_loss_pct"`
	TrailActivatePct float64 `json:"trail_activate_pct" yaml:"trail_activate_pct"`
	TrailStepPct     float64 `json:"trail_step_pct" yaml:"trail_step_pct"`

	Dynamic DynamicConfig `json:"dynamic" yaml:"dynamic"`
	Ladder  LadderConfig  `json:"ladder" yaml:"ladder"`
}

// DynamicConfig scales the trailing step by realized volatility:
// step = TrailStepPct * clamp(vol/NeutralVolPct, MultMin, MultMax),
// then clamped to [StepMinPct, StepMaxPct].
type DynamicConfig struct {
	Enabled       bool    `json:"enabled" yaml:"enabled"`
	VolWindow     int     `json:"vol_window" yaml:"vol_window"`
	NeutralVolPct float64 `json:"neutral_vol_pct" yaml:"neutral_vol_pct"`
	MultMin       float64 `json:"mult_min" yaml:"mult_min"`
	MultMax       float64 `json:"mult_max" yaml:"mult_max"`
	StepMinPct    float64 `json:"step_min_pct" yaml:"step_min_pct"`
	StepMaxPct    float64 `json:"step_max_pct" yaml:"step_max_pct"`
}

// LadderConfig is the fixed tier progression used by the ladder
// policy. StartSLPct is negative (below entry).
type LadderConfig struct {
	TP1Pct            float64 `json:"tp1_pct" yaml:"tp1_pct"`
	TP2Pct            float64 `json:"tp2_pct" yaml:"tp2_pct"`
	TP3Pct            float64 `json:"tp3_pct" yaml:"tp3_pct"`
	StartSLPct        float64 `json:"start_sl_pct" yaml:"start_sl_pct"`
	Tier2SLAboveEntry float64 `json:"tier2_sl_above_entry" yaml:"tier2_sl_above_entry"`
	TrailDistPct      float64 `json:"trail_dist_pct" yaml:"trail_dist_pct"`
}

func DefaultConfig() Config {
	return Config{
		Policy:           "trailing",
		TakeProfitPct:    0.02,
		StopLossPct:      0.01,
		TrailActivatePct: 0.015,
		TrailStepPct:     0.005,
		Dynamic: DynamicConfig{
			Enabled:       true,
			VolWindow:     DefaultVolWindow,
			NeutralVolPct: 1.0,
			MultMin:       0.5,
			MultMax:       2.0,
			StepMinPct:    0.002,
			StepMaxPct:    0.010,
		},
		Ladder: LadderConfig{
			TP1Pct:            0.015,
			TP2Pct:            0.030,
			TP3Pct:            0.050,
			StartSLPct:        -0.012,
			Tier2SLAboveEntry: 0.003,
			TrailDistPct:      0.008,
		},
	}
}

// volWindow returns the configured window size clamped to sane bounds.
func (c Config) volWindow() int {
	w := c.Dynamic.VolWindow
	if w == 0 {
		w = DefaultVolWindow
	}
	if w < minVolWindow {
		w = minVolWindow
	}
	if w > maxVolWindow {
		w = maxVolWindow
	}
	return w
}
