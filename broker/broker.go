// Package broker defines the execution boundary. The stop engine and
// the CLI depend on nothing of an exchange beyond Executor; real
// routing lives in external collaborators behind this interface.
package broker

import "context"

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Fill is a normalized view of a placed market order.
type Fill struct {
	Price   float64
	Qty     float64
	Status  string
	OrderID string
}

type Executor interface {
	PlaceMarketOrder(ctx context.Context, symbol string, side Side, qty float64) (Fill, error)
}
