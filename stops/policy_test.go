package stops

import (
	"math"
	"testing"
)

func trailingPos(cfg Config, entry float64) (*TrailingPolicy, *Position) {
	tp := &TrailingPolicy{cfg: cfg}
	p := &Position{Symbol: "ADAUSDT", Side: SideLong, Qty: 10, Entry: entry, maxWind: cfg.volWindow()}
	tp.Init(p)
	return tp, p
}

func TestTrailingRatchetsStopUpOnly(t *testing.T) {
	cfg := staticCfg() // step 0.005, activation 0.015, dynamic off
	tp, p := trailingPos(cfg, 100)

	feed := func(price float64) string {
		p.pushPrice(price)
		return tp.OnPrice(p, price)
	}

	if r := feed(101.0); r != "" {
		t.Fatalf("premature close: %q", r)
	}
	if p.TrailingActive {
		t.Fatal("trailing active below activation threshold")
	}

	if r := feed(101.5); r != "" {
		t.Fatalf("unexpected close at activation: %q", r)
	}
	if !p.TrailingActive || p.TrailAnchor != 101.5 {
		t.Fatalf("activation failed: %+v", p)
	}

	feed(102.0)
	wantSL := 102.0 * 0.995
	if math.Abs(p.SL-wantSL) > 1e-9 {
		t.Errorf("sl = %v, want %v", p.SL, wantSL)
	}
	if p.TP < 102.0*1.005 {
		t.Errorf("tp = %v, should extend with the anchor", p.TP)
	}

	// Pullback above the stop: nothing moves down.
	prevSL, prevTP := p.SL, p.TP
	feed(101.7)
	if p.SL != prevSL || p.TP != prevTP {
		t.Errorf("levels moved on pullback: sl %v->%v tp %v->%v", prevSL, p.SL, prevTP, p.TP)
	}

	feed(103.0)
	if p.SL <= prevSL {
		t.Errorf("sl = %v, should ratchet above %v", p.SL, prevSL)
	}

	// Fall through the trailed stop.
	if r := feed(p.SL - 0.01); r == "" {
		t.Fatal("expected SL_hit below the trailed stop")
	}
}

func TestTrailingDynamicStepStaysClamped(t *testing.T) {
	cfg := DefaultConfig() // dynamic on
	tp, p := trailingPos(cfg, 100)

	// A violently oscillating window drives the multiplier to its cap.
	for _, price := range []float64{100, 104, 99, 105, 98, 106, 97, 107} {
		p.pushPrice(price)
	}

	step := tp.stepPct(p)
	if step < cfg.Dynamic.StepMinPct || step > cfg.Dynamic.StepMaxPct {
		t.Errorf("step = %v, want within [%v, %v]", step, cfg.Dynamic.StepMinPct, cfg.Dynamic.StepMaxPct)
	}
	if step <= cfg.TrailStepPct {
		t.Errorf("step = %v, high volatility should widen past base %v", step, cfg.TrailStepPct)
	}
}

func TestTrailingDynamicNeedsEnoughSamples(t *testing.T) {
	cfg := DefaultConfig()
	tp, p := trailingPos(cfg, 100)

	p.pushPrice(100)
	p.pushPrice(104)
	p.pushPrice(98)

	if step := tp.stepPct(p); step != cfg.TrailStepPct {
		t.Errorf("step = %v, want base %v with a short window", step, cfg.TrailStepPct)
	}
}

func TestRealizedVolPct(t *testing.T) {
	if v := realizedVolPct([]float64{100, 101, 102}); v != 0 {
		t.Errorf("short window vol = %v, want 0", v)
	}
	// Identical consecutive returns have zero spread.
	if v := realizedVolPct([]float64{100, 102, 104.04, 106.1208, 108.243216, 110.40808032}); v > 1e-9 {
		t.Errorf("constant-return vol = %v, want ~0", v)
	}
	if v := realizedVolPct([]float64{100, 103, 99, 104, 98, 105}); v <= 0 {
		t.Errorf("oscillating vol = %v, want > 0", v)
	}
}

func ladderPos(cfg LadderConfig, entry float64) (*LadderPolicy, *Position) {
	lp := &LadderPolicy{cfg: cfg}
	p := &Position{Symbol: "ADAUSDT", Side: SideLong, Qty: 10, Entry: entry}
	lp.Init(p)
	return lp, p
}

func TestLadderTierProgression(t *testing.T) {
	cfg := DefaultConfig().Ladder
	lp, p := ladderPos(cfg, 100)

	if math.Abs(p.SL-98.8) > 1e-9 {
		t.Fatalf("start sl = %v, want 98.8", p.SL)
	}

	// Tier 1: break-even.
	if r := lp.OnPrice(p, 101.5); r != "" {
		t.Fatalf("unexpected close at tier 1: %q", r)
	}
	if p.Tier != 1 || p.SL != 100.0 {
		t.Fatalf("tier=%d sl=%v, want tier 1 at break-even", p.Tier, p.SL)
	}

	// Tier 2: entry + 0.3%.
	lp.OnPrice(p, 103.0)
	if p.Tier != 2 || math.Abs(p.SL-100.3) > 1e-9 {
		t.Fatalf("tier=%d sl=%v, want tier 2 at 100.3", p.Tier, p.SL)
	}

	// Tier 3: trailing at 0.8% distance.
	lp.OnPrice(p, 105.0)
	if p.Tier != 3 {
		t.Fatalf("tier = %d, want 3", p.Tier)
	}
	if want := 105.0 * 0.992; math.Abs(p.SL-want) > 1e-9 {
		t.Fatalf("sl = %v, want %v", p.SL, want)
	}

	// Trail follows new highs, never retreats.
	lp.OnPrice(p, 106.0)
	want := 106.0 * 0.992
	if math.Abs(p.SL-want) > 1e-9 {
		t.Fatalf("sl = %v, want %v", p.SL, want)
	}
	lp.OnPrice(p, 105.5)
	if math.Abs(p.SL-want) > 1e-9 {
		t.Fatalf("sl moved on pullback: %v", p.SL)
	}

	// Fall through the trail closes.
	if r := lp.OnPrice(p, 105.0); r == "" {
		t.Fatal("expected SL_hit below the trail")
	}
}

func TestLadderGapUpTakesHighestTier(t *testing.T) {
	cfg := DefaultConfig().Ladder
	lp, p := ladderPos(cfg, 100)

	lp.OnPrice(p, 103.5) // gaps straight past tier 1 into tier 2
	if p.Tier != 2 {
		t.Errorf("tier = %d, want 2 after gap", p.Tier)
	}
	if math.Abs(p.SL-100.3) > 1e-9 {
		t.Errorf("sl = %v, want 100.3", p.SL)
	}
}

func TestLadderTiersNeverDowngrade(t *testing.T) {
	cfg := DefaultConfig().Ladder
	lp, p := ladderPos(cfg, 100)

	lp.OnPrice(p, 103.0)
	lp.OnPrice(p, 101.0) // back under tier 1 but above the stop
	if p.Tier != 2 {
		t.Errorf("tier = %d, want 2 retained", p.Tier)
	}
	if math.Abs(p.SL-100.3) > 1e-9 {
		t.Errorf("sl = %v, want 100.3 retained", p.SL)
	}
}

func TestNewPolicySelection(t *testing.T) {
	cfg := DefaultConfig()
	if _, ok := NewPolicy(cfg).(*TrailingPolicy); !ok {
		t.Error("default policy should be trailing")
	}
	cfg.Policy = "ladder"
	if _, ok := NewPolicy(cfg).(*LadderPolicy); !ok {
		t.Error("ladder policy not selected")
	}
	cfg.Policy = "nonsense"
	if _, ok := NewPolicy(cfg).(*TrailingPolicy); !ok {
		t.Error("unknown policy should fall back to trailing")
	}
}
