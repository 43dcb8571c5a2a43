package ticks

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestUpsertVersionAdvancesPerCall(t *testing.T) {
	t.Parallel()

	l := NewLedger()

	v1 := l.Upsert("ADAUSDT", 1.04, 1.039, 1.041, 1000)
	v2 := l.Upsert("ADAUSDT", 1.05, 0, 0, 999) // backward, still counted
	v3 := l.Upsert("BTCUSDT", 0, 0, 0, 0)      // malformed, still counted
	v4 := l.Upsert("ADAUSDT", -5, 0, 0, 1001)  // malformed price, still counted

	assert.Equal(t, int64(1), v1)
	assert.Equal(t, int64(2), v2)
	assert.Equal(t, int64(3), v3)
	assert.Equal(t, int64(4), v4)
	assert.Equal(t, int64(4), l.Snapshot().Version)
}

func TestUpsertNormalizesMillisecondTimestamps(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	l.Upsert("ADAUSDT", 1.04, 0, 0, 1.7e12) // milliseconds

	snap := l.Snapshot()
	assert.InDelta(t, 1.7e9, snap.Ticks["ADAUSDT"].TS, 1.0)
}

func TestUpsertFallsBackToWallClockOnBadTimestamp(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewLedger(WithClock(fixedClock(now)))

	l.Upsert("ADAUSDT", 1.04, 0, 0, -1)

	snap := l.Snapshot()
	assert.InDelta(t, float64(now.Unix()), snap.Ticks["ADAUSDT"].TS, 0.001)
}

func TestBackwardJumpIncrementsCounterMonotonically(t *testing.T) {
	t.Parallel()

	l := NewLedger()

	l.Upsert("ADAUSDT", 1.04, 0, 0, 1000.0)
	l.Upsert("ADAUSDT", 1.05, 0, 0, 999.9) // -100ms: within tolerance
	assert.Equal(t, int64(0), l.Snapshot().TimeBackwards.Count)

	l.Upsert("ADAUSDT", 1.06, 0, 0, 999.0) // -1s: beyond 250ms tolerance
	snap := l.Snapshot()
	assert.Equal(t, int64(1), snap.TimeBackwards.Count)
	assert.True(t, snap.TimeBackwards.Flag)
	assert.InDelta(t, 1.0, snap.TimeBackwards.DeltaS, 0.01)

	// The tick itself is not rejected.
	last, ok := l.Last("ADAUSDT")
	assert.True(t, ok)
	assert.Equal(t, 1.06, last)

	l.Upsert("ADAUSDT", 1.07, 0, 0, 998.0)
	assert.Equal(t, int64(2), l.Snapshot().TimeBackwards.Count)

	// A forward tick clears the flag but never the counter.
	l.Upsert("ADAUSDT", 1.08, 0, 0, 1002.0)
	snap = l.Snapshot()
	assert.Equal(t, int64(2), snap.TimeBackwards.Count)
	assert.False(t, snap.TimeBackwards.Flag)
}

func TestMalformedPriceKeepsPreviousTick(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	l.Upsert("ADAUSDT", 1.04, 1.039, 1.041, 1000)
	l.Upsert("ADAUSDT", -1, 0, 0, 1001)

	last, ok := l.Last("ADAUSDT")
	assert.True(t, ok)
	assert.Equal(t, 1.04, last)
}

func TestBidAskFallBackToLast(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	l.Upsert("ADAUSDT", 1.04, 0, 0, 1000)

	tick := l.Snapshot().Ticks["ADAUSDT"]
	assert.Equal(t, 1.04, tick.Bid)
	assert.Equal(t, 1.04, tick.Ask)
}

func TestStallDetection(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := base
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}

	l := NewLedger(WithStallThreshold(2*time.Second), WithClock(clock))
	l.Upsert("ADAUSDT", 1.04, 0, 0, float64(base.Unix()))

	snap := l.Snapshot()
	assert.False(t, snap.Stall)

	mu.Lock()
	current = base.Add(3 * time.Second)
	mu.Unlock()

	snap = l.Snapshot()
	assert.True(t, snap.Stall)
	assert.InDelta(t, 3.0, snap.LagS, 0.01)
}

// reentrantListener calls back into the ledger, which would deadlock
// if notification happened under the lock.
type reentrantListener struct {
	ledger *Ledger
	calls  []string
	prices []float64
}

func (rl *reentrantListener) OnPrice(symbol string, price float64, ts float64) {
	if _, ok := rl.ledger.Last(symbol); !ok {
		panic("listener ran before tick was stored")
	}
	rl.calls = append(rl.calls, symbol)
	rl.prices = append(rl.prices, price)
}

func TestListenerNotifiedOutsideLock(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	rl := &reentrantListener{ledger: l}
	l.SetListener(rl)

	l.Upsert("ADAUSDT", 1.04, 0, 0, 1000)
	l.Upsert("ETHUSDT", 2400.5, 0, 0, 1001)
	l.Upsert("BTCUSDT", 0, 0, 0, 1002) // malformed: no notification

	assert.Equal(t, []string{"ADAUSDT", "ETHUSDT"}, rl.calls)
	assert.Equal(t, []float64{1.04, 2400.5}, rl.prices)
}

func TestSnapshotIsReadOnly(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	l.Upsert("ADAUSDT", 1.04, 0, 0, 1000)

	snap := l.Snapshot()
	snap.Ticks["ADAUSDT"] = Tick{Symbol: "ADAUSDT", Last: 99}
	delete(snap.Ticks, "ADAUSDT")

	last, ok := l.Last("ADAUSDT")
	assert.True(t, ok)
	assert.Equal(t, 1.04, last)
	assert.Equal(t, int64(1), l.Snapshot().Version)
}
