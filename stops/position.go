package stops

import "math"

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Position is one open position. The engine owns at most one per
// symbol; everything here is mutated under the engine's lock.
type Position struct {
	Symbol string
	Side   Side
	Qty    float64
	Entry  float64
	TP     float64
	SL     float64

	// Trailing-policy progress.
	TrailingActive bool
	TrailAnchor    float64

	// Ladder-policy progress (0 = none).
	Tier int

	OpenedTS float64
	LastTS   float64

	// Rolling price window for realized-volatility estimation.
	window  []float64
	maxWind int
}

func (p *Position) pushPrice(price float64) {
	if p.maxWind <= 0 {
		p.maxWind = DefaultVolWindow
	}
	p.window = append(p.window, price)
	if over := len(p.window) - p.maxWind; over > 0 {
		p.window = p.window[over:]
	}
}

// PnLPct is the signed move from entry, in percent.
func (p *Position) PnLPct(price float64) float64 {
	if p.Entry == 0 {
		return 0
	}
	return (price/p.Entry - 1.0) * 100.0
}

const minVolSamples = 6

// realizedVolPct is the sample standard deviation (n−1 denominator) of
// consecutive percentage returns over the rolling window, in percent.
// Fewer than minVolSamples prices yields 0, which turns the dynamic
// step adjustment into a no-op.
func realizedVolPct(prices []float64) float64 {
	if len(prices) < minVolSamples {
		return 0
	}

	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			continue
		}
		returns = append(returns, (prices[i]/prices[i-1]-1.0)*100.0)
	}
	if len(returns) < 2 {
		return 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var sum float64
	for _, r := range returns {
		d := r - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(returns)-1))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
