// Package journal persists position lifecycle events.
//
// The journal is append-only: events are never rewritten in place, and
// crash recovery is a replay that looks for the last OPEN per symbol
// with no later CLOSE. Two backends exist: newline-delimited JSON (the
// canonical on-disk format) and SQLite.
package journal

// Type enumerates lifecycle event kinds.
type Type string

const (
	TypeOpen      Type = "OPEN"
	TypeClose     Type = "CLOSE"
	TypeCloseFail Type = "CLOSE_FAIL"
)

// Event is one journal record. TS is in UNIX seconds; optional fields
// are zero/empty when they don't apply to the event type.
type Event struct {
	Type   Type    `json:"type"`
	Symbol string  `json:"symbol"`
	TS     float64 `json:"ts"`

	// OPEN fields
	Side  string  `json:"side,omitempty"`
	Qty   float64 `json:"qty,omitempty"`
	Entry float64 `json:"entry,omitempty"`
	TP    float64 `json:"tp,omitempty"`
	SL    float64 `json:"sl,omitempty"`

	// CLOSE / CLOSE_FAIL fields
	Reason    string  `json:"reason,omitempty"`
	FillPrice float64 `json:"fill_price,omitempty"`
}

type Journal interface {
	Append(Event) error
	Replay() ([]Event, error)
	Close() error
}

// OpenPositions scans a replayed event stream and returns, per symbol,
// the latest OPEN that is not followed by a CLOSE for that symbol.
//
// A CLOSE_FAIL does not count as a closure: the close order did not
// fill, so the exchange-side position may still exist and the safest
// recovery is to re-adopt it.
func OpenPositions(events []Event) map[string]Event {
	open := make(map[string]Event)
	for _, ev := range events {
		if ev.Symbol == "" {
			continue
		}
		switch ev.Type {
		case TypeOpen:
			open[ev.Symbol] = ev
		case TypeClose:
			delete(open, ev.Symbol)
		}
	}
	return open
}
