package stops

import "fmt"

// ExitPolicy decides initial TP/SL levels and reacts to each price.
// A non-empty reason from OnPrice tells the engine to close the
// position. Policies mutate only the position they are handed; the
// engine serializes calls per symbol.
type ExitPolicy interface {
	// Init sets the starting TP/SL for a freshly opened (or recovered)
	// position. Recovered positions always restart at tier 0 / not
	// trailing; in-flight progress is deliberately not journaled.
	Init(p *Position)

	// OnPrice advances the policy with one price and returns a close
	// reason, or "" to hold.
	OnPrice(p *Position, price float64) (reason string)
}

// NewPolicy builds the policy named by cfg.Policy. Unknown names fall
// back to trailing, the canonical variant.
func NewPolicy(cfg Config) ExitPolicy {
	if cfg.Policy == "ladder" {
		return &LadderPolicy{cfg: cfg.Ladder}
	}
	return &TrailingPolicy{cfg: cfg}
}

// TrailingPolicy is the percentage trailing stop with a volatility
// adjusted step. Levels only ever move in the favorable direction.
type TrailingPolicy struct {
	cfg Config
}

func (tp *TrailingPolicy) Init(p *Position) {
	p.TP = p.Entry * (1.0 + tp.cfg.TakeProfitPct)
	p.SL = p.Entry * (1.0 - tp.cfg.StopLossPct)
	p.TrailingActive = false
	p.TrailAnchor = p.Entry
}

func (tp *TrailingPolicy) OnPrice(p *Position, price float64) string {
	if !p.TrailingActive && price >= p.Entry*(1.0+tp.cfg.TrailActivatePct) {
		p.TrailingActive = true
		p.TrailAnchor = price
	}

	if p.TrailingActive && price > p.TrailAnchor {
		p.TrailAnchor = price
		step := tp.stepPct(p)
		if sl := p.TrailAnchor * (1.0 - step); sl > p.SL {
			p.SL = sl
		}
		if t := p.TrailAnchor * (1.0 + step); t > p.TP {
			p.TP = t
		}
	}

	if price <= p.SL {
		return fmt.Sprintf("SL_hit(%.2f%%)", p.PnLPct(price))
	}
	if price >= p.TP {
		return fmt.Sprintf("TP_hit(%.2f%%)", p.PnLPct(price))
	}
	return ""
}

// stepPct returns the effective trailing step as a fraction. With the
// dynamic adjustment off, or too little history for a volatility
// estimate, the step stays at its base value.
func (tp *TrailingPolicy) stepPct(p *Position) float64 {
	base := tp.cfg.TrailStepPct
	dyn := tp.cfg.Dynamic
	if !dyn.Enabled {
		return base
	}

	vol := realizedVolPct(p.window)
	if vol <= 0 || dyn.NeutralVolPct <= 0 {
		return base
	}

	mult := clamp(vol/dyn.NeutralVolPct, dyn.MultMin, dyn.MultMax)
	return clamp(base*mult, dyn.StepMinPct, dyn.StepMaxPct)
}

// LadderPolicy is the fixed TP1/TP2/TP3 progression: each tier hit
// ratchets the stop (break-even, then above entry, then trailing at a
// fixed distance). The ladder only ever closes through its stop.
type LadderPolicy struct {
	cfg LadderConfig
}

func (lp *LadderPolicy) Init(p *Position) {
	p.SL = p.Entry * (1.0 + lp.cfg.StartSLPct)
	p.TP = p.Entry * (1.0 + lp.cfg.TP3Pct)
	p.Tier = 0
	p.TrailingActive = false
	p.TrailAnchor = p.Entry
}

func (lp *LadderPolicy) OnPrice(p *Position, price float64) string {
	if price <= p.SL {
		return fmt.Sprintf("SL_hit(%.2f%%)", p.PnLPct(price))
	}

	// Check tiers highest first so a gap up doesn't skip the upgrade.
	switch {
	case p.Tier < 3 && price >= p.Entry*(1.0+lp.cfg.TP3Pct):
		p.Tier = 3
		if sl := price * (1.0 - lp.cfg.TrailDistPct); sl > p.SL {
			p.SL = sl
		}
	case p.Tier < 2 && price >= p.Entry*(1.0+lp.cfg.TP2Pct):
		p.Tier = 2
		if sl := p.Entry * (1.0 + lp.cfg.Tier2SLAboveEntry); sl > p.SL {
			p.SL = sl
		}
	case p.Tier < 1 && price >= p.Entry*(1.0+lp.cfg.TP1Pct):
		p.Tier = 1
		if p.Entry > p.SL {
			p.SL = p.Entry // break-even
		}
	}

	if p.Tier == 3 {
		if sl := price * (1.0 - lp.cfg.TrailDistPct); sl > p.SL {
			p.SL = sl
		}
	}

	// The tier upgrade may have tightened the stop past the price.
	if price <= p.SL {
		return fmt.Sprintf("SL_hit(%.2f%%)", p.PnLPct(price))
	}
	return ""
}
