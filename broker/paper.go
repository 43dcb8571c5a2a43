package broker

import (
	"context"
	"fmt"

	"tradeguard/pkg/id"
	"tradeguard/ticks"
)

// Paper fills market orders instantly at the ledger's last price.
// It backs simulated mode and tests; there is no slippage model.
type Paper struct {
	prices ticks.PriceSource
}

func NewPaper(prices ticks.PriceSource) *Paper {
	return &Paper{prices: prices}
}

func (p *Paper) PlaceMarketOrder(ctx context.Context, symbol string, side Side, qty float64) (Fill, error) {
	if err := ctx.Err(); err != nil {
		return Fill{}, err
	}
	if qty <= 0 {
		return Fill{}, fmt.Errorf("paper order: qty must be positive, got %v", qty)
	}

	price, ok := p.prices.Last(symbol)
	if !ok {
		return Fill{}, fmt.Errorf("paper order: no price for %q", symbol)
	}

	return Fill{
		Price:   price,
		Qty:     qty,
		Status:  "FILLED",
		OrderID: id.New(),
	}, nil
}
