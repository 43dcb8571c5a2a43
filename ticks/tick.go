package ticks

// Tick is a single price update for one symbol. TS is in UNIX seconds,
// already normalized by the ledger.
type Tick struct {
	Symbol string  `json:"symbol"`
	Last   float64 `json:"last"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	TS     float64 `json:"ts"`
}

func (t Tick) Mid() float64 {
	if t.Bid == 0 && t.Ask == 0 {
		return t.Last
	}
	return (t.Bid + t.Ask) / 2
}

func (t Tick) Spread() float64 {
	return t.Ask - t.Bid
}

// PriceSource is the narrow read surface other components depend on.
// The ledger implements it; tests swap in fakes.
type PriceSource interface {
	Last(symbol string) (float64, bool)
}

// PriceListener receives every accepted tick, synchronously, after the
// ledger has released its lock.
type PriceListener interface {
	OnPrice(symbol string, price float64, ts float64)
}
