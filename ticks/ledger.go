// Package ticks owns the in-memory tick ledger: last/bid/ask/timestamp
// per symbol, a global version counter, and time-integrity diagnostics
// (backward jumps, feed lag, stall). The ledger is volatile by design;
// durable state lives in the journal.
package ticks

import (
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// Timestamps at or above this are taken to be milliseconds.
	msThreshold = 1e12

	// Backward jumps within this tolerance are ignored.
	backToleranceS = 0.250

	// DefaultStallThreshold is how much feed silence counts as a stall.
	DefaultStallThreshold = 2 * time.Second
)

// TimeBackwards reports backward-jump diagnostics. Count only ever
// grows; Flag reflects the most recent upsert; DeltaS is the size of
// the last observed jump.
type TimeBackwards struct {
	Flag   bool    `json:"flag"`
	DeltaS float64 `json:"delta_s"`
	Count  int64   `json:"count"`
}

// Snapshot is a read-only view of the ledger.
type Snapshot struct {
	Version       int64           `json:"version"`
	Ticks         map[string]Tick `json:"ticks"`
	LagS          float64         `json:"lag_s"`
	Stall         bool            `json:"stall"`
	TimeBackwards TimeBackwards   `json:"time_backwards"`
}

// Ledger stores the latest tick per symbol, last-write-wins.
type Ledger struct {
	mu       sync.Mutex
	ticks    map[string]Tick
	version  int64
	prevTS   float64 // last accepted tick time, process-wide
	back     TimeBackwards
	listener PriceListener

	stallThreshold time.Duration
	now            func() time.Time
	log            *logrus.Entry
}

type Option func(*Ledger)

func WithStallThreshold(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.stallThreshold = d
		}
	}
}

func WithLogger(log *logrus.Entry) Option {
	return func(l *Ledger) { l.log = log }
}

// WithClock overrides the wall clock; tests use this to make lag and
// fallback timestamps deterministic.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(opts ...Option) *Ledger {
	l := &Ledger{
		ticks:          make(map[string]Tick),
		stallThreshold: DefaultStallThreshold,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetListener attaches the downstream consumer (the stop engine).
// Must be called during wiring, before ticks flow.
func (l *Ledger) SetListener(pl PriceListener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listener = pl
}

// Upsert records a tick and returns the new global version.
//
// The version advances by exactly one per call no matter what the
// inputs look like: malformed prices and timestamps are degraded to
// safe defaults, never rejected with an error. A timestamp more than
// 250 ms behind the previous one increments the backward counter but
// the tick is still stored. The listener is notified outside the lock.
func (l *Ledger) Upsert(symbol string, last, bid, ask, ts float64) int64 {
	nowTS := float64(l.now().UnixNano()) / 1e9
	ts = normalizeTS(ts, nowTS)

	priceOK := isFinitePositive(last)
	if !isFinitePositive(bid) {
		bid = last
	}
	if !isFinitePositive(ask) {
		ask = last
	}

	var (
		version  int64
		listener PriceListener
		notify   bool
	)

	l.mu.Lock()
	l.version++
	version = l.version

	if symbol != "" {
		if delta := l.prevTS - ts; delta > backToleranceS {
			l.back.Count++
			l.back.DeltaS = delta
			l.back.Flag = true
			if l.log != nil {
				l.log.WithFields(logrus.Fields{
					"symbol": symbol, "delta_s": delta, "count": l.back.Count,
				}).Warn("tick time went backwards")
			}
		} else {
			l.back.Flag = false
		}

		if !priceOK {
			// Keep the previous price if we have one; a tick with no
			// usable price still advances time.
			if prev, ok := l.ticks[symbol]; ok {
				last, bid, ask = prev.Last, prev.Bid, prev.Ask
				priceOK = true
			}
		}
		if priceOK {
			l.ticks[symbol] = Tick{Symbol: symbol, Last: last, Bid: bid, Ask: ask, TS: ts}
			notify = true
		}
		if ts > l.prevTS {
			l.prevTS = ts
		}
	}

	listener = l.listener
	l.mu.Unlock()

	// Outside the lock: the stop engine may call back into Last().
	if notify && listener != nil {
		listener.OnPrice(symbol, last, ts)
	}

	return version
}

// Last implements PriceSource.
func (l *Ledger) Last(symbol string) (float64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.ticks[symbol]
	if !ok {
		return 0, false
	}
	return t.Last, true
}

// Snapshot returns a consistent read-only view. Side-effect free.
func (l *Ledger) Snapshot() Snapshot {
	nowTS := float64(l.now().UnixNano()) / 1e9

	l.mu.Lock()
	defer l.mu.Unlock()

	out := Snapshot{
		Version:       l.version,
		Ticks:         make(map[string]Tick, len(l.ticks)),
		TimeBackwards: l.back,
	}
	for sym, t := range l.ticks {
		out.Ticks[sym] = t
	}
	if l.prevTS > 0 {
		out.LagS = nowTS - l.prevTS
		if out.LagS < 0 {
			out.LagS = 0
		}
		out.Stall = out.LagS >= l.stallThreshold.Seconds()
	}
	return out
}

// normalizeTS maps raw timestamps to UNIX seconds. Values that look
// like milliseconds are scaled down; non-positive or non-finite values
// fall back to the wall clock.
func normalizeTS(ts, nowTS float64) float64 {
	if math.IsNaN(ts) || math.IsInf(ts, 0) || ts <= 0 {
		return nowTS
	}
	if ts >= msThreshold {
		return ts / 1000.0
	}
	return ts
}

func isFinitePositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
