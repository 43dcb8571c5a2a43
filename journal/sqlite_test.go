package journal

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	j, err := NewSQLite(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestSQLiteAppendReplay(t *testing.T) {
	t.Parallel()

	j := newTestSQLite(t)

	open := sampleOpen("ADAUSDT", 1000)
	fail := Event{Type: TypeCloseFail, Symbol: "ADAUSDT", TS: 1010,
		Reason: "SL_hit(-1.10%):exchange down"}

	require.NoError(t, j.Append(open))
	require.NoError(t, j.Append(fail))

	events, err := j.Replay()
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, open, events[0])
	assert.Equal(t, fail, events[1])
}

func TestSQLitePreservesInsertionOrder(t *testing.T) {
	t.Parallel()

	j := newTestSQLite(t)
	for i := 0; i < 10; i++ {
		require.NoError(t, j.Append(sampleOpen("ADAUSDT", float64(1000+i))))
	}

	events, err := j.Replay()
	require.NoError(t, err)
	require.Len(t, events, 10)
	for i, ev := range events {
		assert.Equal(t, float64(1000+i), ev.TS)
	}
}

func TestSQLiteRecoverySemanticsMatchJSONL(t *testing.T) {
	t.Parallel()

	j := newTestSQLite(t)
	require.NoError(t, j.Append(sampleOpen("ADAUSDT", 100)))
	require.NoError(t, j.Append(sampleOpen("ETHUSDT", 101)))
	require.NoError(t, j.Append(Event{Type: TypeClose, Symbol: "ADAUSDT", TS: 102, Reason: "manual"}))

	events, err := j.Replay()
	require.NoError(t, err)

	open := OpenPositions(events)
	require.Len(t, open, 1)
	assert.Equal(t, "ETHUSDT", open["ETHUSDT"].Symbol)
}
