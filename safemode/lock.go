package safemode

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// HardLock is the cross-process safety flag: the presence of the
// sentinel file means HARD_LOCKED, its content is informational only.
// There is no distributed locking; this is valid only under the
// single-trading-process assumption.
type HardLock struct {
	path string
}

func NewHardLock(path string) *HardLock {
	return &HardLock{path: path}
}

func (h *HardLock) Path() string { return h.path }

// On reports whether the sentinel exists. Never fails: an unreadable
// sentinel directory reads as unlocked.
func (h *HardLock) On() bool {
	if h == nil || h.path == "" {
		return false
	}
	_, err := os.Stat(h.path)
	return err == nil
}

// Engage creates the sentinel. Idempotent.
func (h *HardLock) Engage(reason string) error {
	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}
	content := fmt.Sprintf("reason=%s\nts=%d\n", reason, time.Now().Unix())
	if err := os.WriteFile(h.path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("engage hard lock: %w", err)
	}
	return nil
}

// Release removes the sentinel. Removing an absent sentinel is a no-op.
func (h *HardLock) Release() error {
	if err := os.Remove(h.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release hard lock: %w", err)
	}
	return nil
}

// Panic is the stronger, independent trigger: activating it engages
// the hard lock unconditionally and drops a separate flag that keeps
// any autoloop from resuming trading until the flag is removed.
type Panic struct {
	flagPath string
	lock     *HardLock
	log      *logrus.Entry
}

func NewPanic(flagPath string, lock *HardLock, log *logrus.Entry) *Panic {
	return &Panic{flagPath: flagPath, lock: lock, log: log}
}

// Activate is best-effort and never fails loudly: a panic that cannot
// be recorded must still not break the caller.
func (p *Panic) Activate(reason string) {
	if p == nil {
		return
	}
	if reason == "" {
		reason = "panic"
	}

	if p.lock != nil {
		if err := p.lock.Engage(reason); err != nil && p.log != nil {
			p.log.WithField("err", err.Error()).Error("panic: hard lock engage failed")
		}
	}

	if p.flagPath != "" {
		if err := os.MkdirAll(filepath.Dir(p.flagPath), 0o755); err == nil {
			content := fmt.Sprintf("reason=%s\nts=%d\n", reason, time.Now().Unix())
			if err := os.WriteFile(p.flagPath, []byte(content), 0o644); err != nil && p.log != nil {
				p.log.WithField("err", err.Error()).Error("panic: flag write failed")
			}
		}
	}
}

// Active is a plain flag check; Evaluate consumes it as a signal.
func (p *Panic) Active() bool {
	if p == nil || p.flagPath == "" {
		return false
	}
	_, err := os.Stat(p.flagPath)
	return err == nil
}

// Reset removes the panic flag (the hard lock is released separately
// and deliberately).
func (p *Panic) Reset() error {
	if err := os.Remove(p.flagPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reset panic flag: %w", err)
	}
	return nil
}

// WatchSentinels watches the directories holding the lock and panic
// files and invokes onChange when either appears, changes, or goes
// away, so a lock engaged by another process is noticed without
// waiting for the next poll cycle. Blocks until ctx is done.
func WatchSentinels(ctx context.Context, lockPath, panicPath string, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("sentinel watcher: %w", err)
	}
	defer w.Close()

	dirs := map[string]struct{}{}
	for _, p := range []string{lockPath, panicPath} {
		if p != "" {
			dirs[filepath.Dir(p)] = struct{}{}
		}
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Name == lockPath || ev.Name == panicPath {
				onChange()
			}
		case _, ok := <-w.Errors:
			if !ok {
				return nil
			}
			// Watch errors degrade to polling; nothing to do here.
		}
	}
}
