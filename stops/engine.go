// Package stops runs the tiered trailing stop engine: it consumes
// ticks, maintains open positions keyed by symbol, journals every
// lifecycle event, and recovers position state from the journal after
// a restart. Nothing in here may take tick processing down: journal
// and execution failures are logged and absorbed.
package stops

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"tradeguard/broker"
	"tradeguard/journal"
	"tradeguard/notify"
)

// Engine owns the open positions. One position per symbol; a second
// Open for the same symbol replaces the first.
type Engine struct {
	mu     sync.Mutex
	cfg    Config
	policy ExitPolicy
	pos    map[string]*Position

	journal  journal.Journal
	exec     broker.Executor
	notifier notify.Notifier
	log      *logrus.Entry
	now      func() time.Time
}

type EngineOption func(*Engine)

func WithNotifier(n notify.Notifier) EngineOption {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

func WithEngineLogger(log *logrus.Entry) EngineOption {
	return func(e *Engine) { e.log = log }
}

func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithPolicy overrides the policy chosen by cfg.Policy.
func WithPolicy(p ExitPolicy) EngineOption {
	return func(e *Engine) {
		if p != nil {
			e.policy = p
		}
	}
}

func NewEngine(cfg Config, j journal.Journal, exec broker.Executor, opts ...EngineOption) *Engine {
	e := &Engine{
		cfg:      cfg,
		policy:   NewPolicy(cfg),
		pos:      make(map[string]*Position),
		journal:  j,
		exec:     exec,
		notifier: notify.Noop{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Open creates a long position and journals it. TP/SL come from the
// configured policy.
func (e *Engine) Open(symbol string, entry, qty float64) {
	if symbol == "" || entry <= 0 || qty <= 0 {
		e.logWarn(logrus.Fields{"symbol": symbol, "entry": entry, "qty": qty},
			"rejecting open with invalid inputs")
		return
	}

	nowTS := e.unixNow()
	p := &Position{
		Symbol:   symbol,
		Side:     SideLong,
		Qty:      qty,
		Entry:    entry,
		OpenedTS: nowTS,
		LastTS:   nowTS,
		maxWind:  e.cfg.volWindow(),
	}
	e.policy.Init(p)

	e.mu.Lock()
	if _, exists := e.pos[symbol]; exists {
		e.logWarn(logrus.Fields{"symbol": symbol}, "replacing existing open position")
	}
	e.pos[symbol] = p
	e.mu.Unlock()

	e.appendEvent(journal.Event{
		Type:   journal.TypeOpen,
		Symbol: symbol,
		TS:     nowTS,
		Side:   string(p.Side),
		Qty:    qty,
		Entry:  entry,
		TP:     p.TP,
		SL:     p.SL,
	})
}

// OnPrice advances the position for symbol with one tick. It is the
// ticks.PriceListener hook; the ledger calls it synchronously after
// releasing its own lock. A close decision is executed after this
// engine's lock is released too.
func (e *Engine) OnPrice(symbol string, price float64, ts float64) {
	if price <= 0 {
		return
	}

	var reason string

	e.mu.Lock()
	p, ok := e.pos[symbol]
	if ok {
		p.LastTS = ts
		p.pushPrice(price)
		reason = e.policy.OnPrice(p, price)
	}
	e.mu.Unlock()

	if reason != "" {
		e.Close(symbol, reason)
	}
}

// Close pops the position and submits an opposite-side market order.
// The position stays removed even if the order fails; the failure is
// journaled as CLOSE_FAIL and there is no automatic retry.
func (e *Engine) Close(symbol string, reason string) {
	e.mu.Lock()
	p, ok := e.pos[symbol]
	if ok {
		delete(e.pos, symbol)
	}
	e.mu.Unlock()

	if !ok {
		return
	}

	side := broker.SideSell
	if p.Side == SideShort {
		side = broker.SideBuy
	}

	nowTS := e.unixNow()
	fill, err := e.exec.PlaceMarketOrder(context.Background(), symbol, side, p.Qty)
	if err != nil {
		e.logWarn(logrus.Fields{"symbol": symbol, "reason": reason, "err": err.Error()},
			"close order failed")
		e.appendEvent(journal.Event{
			Type:   journal.TypeCloseFail,
			Symbol: symbol,
			TS:     nowTS,
			Reason: reason + ":" + err.Error(),
		})
		e.notifier.Emit("ERROR", "stops", "close order failed",
			map[string]any{"symbol": symbol, "reason": reason})
		return
	}

	e.appendEvent(journal.Event{
		Type:      journal.TypeClose,
		Symbol:    symbol,
		TS:        nowTS,
		Qty:       fill.Qty,
		Reason:    reason,
		FillPrice: fill.Price,
	})
	e.notifier.Emit("INFO", "stops", "position closed",
		map[string]any{"symbol": symbol, "reason": reason, "fill_price": fill.Price})
}

// RecoverFromJournal replays the journal and re-adopts the latest OPEN
// per symbol with no later CLOSE. TP/SL are derived fresh from the
// current config; trailing/tier progress always restarts at zero.
func (e *Engine) RecoverFromJournal() error {
	events, err := e.journal.Replay()
	if err != nil {
		return err
	}

	recovered := 0
	e.mu.Lock()
	for symbol, ev := range journal.OpenPositions(events) {
		if ev.Entry <= 0 || ev.Qty <= 0 {
			continue
		}
		p := &Position{
			Symbol:   symbol,
			Side:     SideLong,
			Qty:      ev.Qty,
			Entry:    ev.Entry,
			OpenedTS: ev.TS,
			LastTS:   e.unixNow(),
			maxWind:  e.cfg.volWindow(),
		}
		e.policy.Init(p)
		e.pos[symbol] = p
		recovered++
	}
	e.mu.Unlock()

	if recovered > 0 {
		e.logInfo(logrus.Fields{"positions": recovered}, "recovered open positions from journal")
	}
	return nil
}

// Position returns a copy of the open position for symbol.
func (e *Engine) Position(symbol string) (Position, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.pos[symbol]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Positions returns copies of all open positions.
func (e *Engine) Positions() []Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Position, 0, len(e.pos))
	for _, p := range e.pos {
		out = append(out, *p)
	}
	return out
}

// appendEvent journals best-effort: a write failure must never block
// tick processing.
func (e *Engine) appendEvent(ev journal.Event) {
	if e.journal == nil {
		return
	}
	if err := e.journal.Append(ev); err != nil {
		e.logWarn(logrus.Fields{"type": ev.Type, "symbol": ev.Symbol, "err": err.Error()},
			"journal append failed")
	}
}

func (e *Engine) unixNow() float64 {
	return float64(e.now().UnixNano()) / 1e9
}

func (e *Engine) logWarn(fields logrus.Fields, msg string) {
	if e.log != nil {
		e.log.WithFields(fields).Warn(msg)
	}
}

func (e *Engine) logInfo(fields logrus.Fields, msg string) {
	if e.log != nil {
		e.log.WithFields(fields).Info(msg)
	}
}
