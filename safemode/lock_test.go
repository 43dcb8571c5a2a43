package safemode

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHardLockLifecycle(t *testing.T) {
	t.Parallel()

	lock := NewHardLock(filepath.Join(t.TempDir(), "runtime", "SAFE_MODE"))
	assert.False(t, lock.On())

	require.NoError(t, lock.Engage("maintenance"))
	assert.True(t, lock.On())

	data, err := os.ReadFile(lock.Path())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "reason=maintenance\n"))

	// Engaging again just rewrites the sentinel.
	require.NoError(t, lock.Engage("again"))
	assert.True(t, lock.On())

	require.NoError(t, lock.Release())
	assert.False(t, lock.On())

	// Releasing an absent sentinel is fine.
	require.NoError(t, lock.Release())
}

func TestHardLockNilAndEmptyPath(t *testing.T) {
	t.Parallel()

	var lock *HardLock
	assert.False(t, lock.On())
	assert.False(t, NewHardLock("").On())
}

func TestPanicActivateEngagesLockAndFlag(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	lock := NewHardLock(filepath.Join(dir, "SAFE_MODE"))
	p := NewPanic(filepath.Join(dir, "panic.flag"), lock, nil)

	assert.False(t, p.Active())

	p.Activate("feed poisoned")

	assert.True(t, p.Active())
	assert.True(t, lock.On())

	data, err := os.ReadFile(filepath.Join(dir, "panic.flag"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "reason=feed poisoned")
}

func TestPanicResetLeavesLockEngaged(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	lock := NewHardLock(filepath.Join(dir, "SAFE_MODE"))
	p := NewPanic(filepath.Join(dir, "panic.flag"), lock, nil)
	p.Activate("")

	require.NoError(t, p.Reset())
	assert.False(t, p.Active())

	// The hard lock is released separately and deliberately.
	assert.True(t, lock.On())
}

func TestSentinelDrivesGateEndToEnd(t *testing.T) {
	t.Parallel()

	lock := NewHardLock(filepath.Join(t.TempDir(), "SAFE_MODE"))
	m, _ := newTestManager()

	m.Evaluate(Signals{LockOn: lock.On()})
	assert.True(t, m.Allows(ActionRealAnyOrder))

	require.NoError(t, lock.Engage("operator"))
	m.Evaluate(Signals{LockOn: lock.On()})
	assert.False(t, m.Allows(ActionRealAnyOrder))
	assert.False(t, m.Allows(ActionRealBuy))

	require.NoError(t, lock.Release())
	m.Evaluate(Signals{LockOn: lock.On()})
	assert.True(t, m.Allows(ActionRealAnyOrder))
	assert.False(t, m.Active())
}
