package guardrails

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	schemaName    = "runtime.guard_rails_state"
	schemaVersion = 1
)

// Attempt is one recorded order attempt.
type Attempt struct {
	TSms   int64  `json:"ts_ms"`
	Symbol string `json:"symbol"`
}

// State is the persisted attempt history Evaluate reads. It is a plain
// value with no locking: the caller owns concurrency (evaluation runs
// over a snapshot, mutation is an explicit separate step).
type State struct {
	Attempts     []Attempt        `json:"attempts"`
	LastBySymbol map[string]int64 `json:"last_by_symbol"`
}

func NewState() *State {
	return &State{LastBySymbol: make(map[string]int64)}
}

// RecordAttempt appends the attempt. Callers do this only after an
// ALLOW decision that they act on.
func (s *State) RecordAttempt(tsMS int64, symbol string) {
	s.Attempts = append(s.Attempts, Attempt{TSms: tsMS, Symbol: symbol})
	if s.LastBySymbol == nil {
		s.LastBySymbol = make(map[string]int64)
	}
	s.LastBySymbol[symbol] = tsMS
}

// Trim drops attempts older than maxAge relative to now.
func (s *State) Trim(maxAge time.Duration, now time.Time) {
	cutoff := now.UnixMilli() - maxAge.Milliseconds()
	kept := s.Attempts[:0]
	for _, a := range s.Attempts {
		if a.TSms >= cutoff {
			kept = append(kept, a)
		}
	}
	s.Attempts = kept
}

func (s *State) countWindow(nowMS, windowS int64) int {
	if windowS <= 0 {
		return 0
	}
	cutoff := nowMS - windowS*1000
	c := 0
	for _, a := range s.Attempts {
		if a.TSms >= cutoff {
			c++
		}
	}
	return c
}

type schemaTag struct {
	Name    string `json:"name"`
	Version int    `json:"version"`
}

type stateFile struct {
	Schema       schemaTag        `json:"_schema"`
	Attempts     []Attempt        `json:"attempts"`
	LastBySymbol map[string]int64 `json:"last_by_symbol"`
}

// LoadState reads the persisted state; a missing file yields an empty
// state, not an error.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return nil, fmt.Errorf("read guard rails state: %w", err)
	}

	var f stateFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse guard rails state: %w", err)
	}

	st := &State{Attempts: f.Attempts, LastBySymbol: f.LastBySymbol}
	if st.LastBySymbol == nil {
		st.LastBySymbol = make(map[string]int64)
	}
	return st, nil
}

// SaveState writes atomically: temp file in the same directory, then
// rename over the target.
func SaveState(path string, s *State) error {
	payload := stateFile{
		Schema:       schemaTag{Name: schemaName, Version: schemaVersion},
		Attempts:     s.Attempts,
		LastBySymbol: s.LastBySymbol,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal guard rails state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write guard rails state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace guard rails state: %w", err)
	}
	return nil
}
