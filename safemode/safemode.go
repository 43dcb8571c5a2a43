// Package safemode derives the safety-gate policy from health signals
// and the hard-lock sentinel. Heuristic signals (lag, stall, backward
// time) are diagnostics: they drive severity and show up as reasons,
// but only the explicit hard lock denies real-order actions.
package safemode

import (
	"sync"
	"time"

	"tradeguard/notify"
)

// Reason codes.
const (
	ReasonHardLock      = "HARD_LOCK"
	ReasonTimeBackwards = "TIME_BACKWARDS"
	ReasonCritLag       = "CRIT_LAG"
	ReasonCoreStall     = "CORE_STALL"
)

// Severities.
const (
	SeverityOK   = "OK"
	SeverityWarn = "WARN"
	SeverityCrit = "CRIT"
)

// Gated actions.
const (
	ActionRealBuy      = "REAL_BUY"
	ActionRealClose    = "REAL_CLOSE"
	ActionRealAnyOrder = "REAL_ANY_ORDER"
	ActionSimAll       = "SIM_ALL"
	ActionUIView       = "UI_VIEW"
	ActionUIRefresh    = "UI_REFRESH"
)

const DefaultCritLagS = 5.0

// Signals are the health inputs to one evaluation cycle.
type Signals struct {
	LockOn        bool
	PanicOn       bool
	TimeBackwards bool
	Stall         bool
	LagS          float64
}

// Policy is the explicit allow/deny verdict consumers apply. They must
// not interpret reasons themselves.
type Policy struct {
	DenyActions  []string `json:"deny_actions"`
	AllowActions []string `json:"allow_actions"`
	ModeHint     string   `json:"mode_hint"` // "NORMAL" | "SAFE"
}

// Snapshot is the stable externally-facing state.
type Snapshot struct {
	Active   bool     `json:"active"`
	Severity string   `json:"severity"`
	SinceTS  float64  `json:"since_ts"`
	Reason   string   `json:"reason"`
	Reasons  []string `json:"reasons"`
	Policy   Policy   `json:"policy"`
	Meta     Meta     `json:"meta"`
}

type Meta struct {
	CritLagS   float64 `json:"crit_lag_s"`
	LastEvalTS float64 `json:"last_eval_ts"`
}

// Manager holds the gate state machine: OK ⇄ HARD_LOCKED, driven
// purely by hard-lock presence. Transitions are edge-notified once.
type Manager struct {
	mu         sync.Mutex
	critLagS   float64
	notifier   notify.Notifier
	now        func() time.Time
	active     bool
	sinceTS    float64
	severity   string
	reason     string
	reasons    []string
	lastEvalTS float64
}

type Option func(*Manager)

func WithCritLag(s float64) Option {
	return func(m *Manager) {
		if s > 0 {
			m.critLagS = s
		}
	}
}

func WithNotifier(n notify.Notifier) Option {
	return func(m *Manager) {
		if n != nil {
			m.notifier = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		critLagS: DefaultCritLagS,
		notifier: notify.Noop{},
		now:      time.Now,
		severity: SeverityOK,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Evaluate consumes one cycle of signals. Call it once per cycle: the
// OFF→ON and ON→OFF notifications are edge-triggered here.
func (m *Manager) Evaluate(sig Signals) {
	nowTS := m.unixNow()

	var reasons []string
	hardLock := sig.LockOn || sig.PanicOn
	if hardLock {
		reasons = append(reasons, ReasonHardLock)
	}
	if sig.TimeBackwards {
		reasons = append(reasons, ReasonTimeBackwards)
	}
	if sig.Stall {
		reasons = append(reasons, ReasonCoreStall)
	}
	if sig.LagS >= m.critLagS {
		reasons = append(reasons, ReasonCritLag)
	}

	severity := severityFor(reasons)

	m.mu.Lock()
	m.lastEvalTS = nowTS

	var entered, exited bool
	if hardLock && !m.active {
		m.active = true
		m.sinceTS = nowTS
		entered = true
	} else if !hardLock && m.active {
		m.active = false
		m.sinceTS = 0
		exited = true
	}

	m.severity = severity
	m.reasons = reasons
	m.reason = primaryReason(reasons)
	m.mu.Unlock()

	if entered {
		m.notifier.Emit("ERROR", "safe", "SAFE HARD_LOCK entered",
			map[string]any{"severity": severity, "reasons": reasons})
	}
	if exited {
		m.notifier.Emit("INFO", "safe", "SAFE HARD_LOCK cleared",
			map[string]any{"reason": "HARD_LOCK_OFF"})
	}
}

// Clear force-resets to OK. Observationally idempotent: clearing an
// already-clear gate emits nothing.
func (m *Manager) Clear(reason string) {
	if reason == "" {
		reason = "MANUAL_CLEAR"
	}

	m.mu.Lock()
	wasDirty := m.active || len(m.reasons) > 0 || m.severity != SeverityOK
	m.active = false
	m.sinceTS = 0
	m.severity = SeverityOK
	m.reasons = nil
	m.reason = reason
	m.lastEvalTS = m.unixNow()
	m.mu.Unlock()

	if wasDirty {
		m.notifier.Emit("INFO", "safe", "SAFE MODE cleared",
			map[string]any{"reason": reason})
	}
}

// Active reports whether the gate denies real orders.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// PublicSnapshot exports the gate state for UI/CLI consumers.
func (m *Manager) PublicSnapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		Active:   m.active,
		Severity: m.severity,
		SinceTS:  m.sinceTS,
		Reason:   m.reason,
		Reasons:  append([]string(nil), m.reasons...),
		Policy:   buildPolicy(m.active),
		Meta: Meta{
			CritLagS:   m.critLagS,
			LastEvalTS: m.lastEvalTS,
		},
	}
}

// Allows reports whether the current policy permits an action.
func (m *Manager) Allows(action string) bool {
	pol := m.PublicSnapshot().Policy
	for _, a := range pol.DenyActions {
		if a == action || a == ActionRealAnyOrder && isRealOrder(action) {
			return false
		}
	}
	return true
}

func isRealOrder(action string) bool {
	switch action {
	case ActionRealBuy, ActionRealClose, ActionRealAnyOrder:
		return true
	}
	return false
}

func buildPolicy(active bool) Policy {
	pol := Policy{
		AllowActions: []string{ActionSimAll, ActionUIView, ActionUIRefresh},
		ModeHint:     "NORMAL",
	}
	if active {
		pol.DenyActions = []string{ActionRealBuy, ActionRealClose, ActionRealAnyOrder}
		pol.ModeHint = "SAFE"
	} else {
		pol.DenyActions = []string{}
	}
	return pol
}

func severityFor(reasons []string) string {
	if len(reasons) == 0 {
		return SeverityOK
	}
	for _, r := range reasons {
		switch r {
		case ReasonHardLock, ReasonTimeBackwards, ReasonCritLag:
			return SeverityCrit
		}
	}
	return SeverityWarn
}

// primaryReason picks the most critical reason for display.
func primaryReason(reasons []string) string {
	if len(reasons) == 0 {
		return ""
	}
	for _, want := range []string{ReasonHardLock, ReasonTimeBackwards, ReasonCritLag, ReasonCoreStall} {
		for _, r := range reasons {
			if r == want {
				return r
			}
		}
	}
	return reasons[len(reasons)-1]
}

func (m *Manager) unixNow() float64 {
	return float64(m.now().UnixNano()) / 1e9
}
