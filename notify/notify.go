// Package notify is a best-effort notification bus.
//
// Events here are observability only: they must never imply trading
// actions, and emitting one must never fail or block the caller. A
// failing sink is isolated from the others.
package notify

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Event is a transport-agnostic notification.
type Event struct {
	TS      time.Time
	Level   string // "INFO" | "WARNING" | "ERROR"
	Topic   string // e.g. "safe" | "panic" | "stops" | "system"
	Message string
	Meta    map[string]any
}

// Sink consumes events. Implementations must be best-effort and must
// not panic; the center recovers if they do anyway.
type Sink interface {
	Handle(Event)
}

// Notifier is the narrow surface components depend on.
type Notifier interface {
	Emit(level, topic, message string, meta map[string]any)
}

// Center fans events out to registered sinks.
type Center struct {
	mu    sync.RWMutex
	sinks []Sink
}

func NewCenter() *Center {
	return &Center{}
}

func (c *Center) RegisterSink(s Sink) {
	if c == nil || s == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinks = append(c.sinks, s)
}

// Emit delivers the event to every sink. Never fails.
func (c *Center) Emit(level, topic, message string, meta map[string]any) {
	if c == nil {
		return
	}
	ev := Event{
		TS:      time.Now(),
		Level:   normLevel(level),
		Topic:   topic,
		Message: message,
		Meta:    meta,
	}

	c.mu.RLock()
	sinks := make([]Sink, len(c.sinks))
	copy(sinks, c.sinks)
	c.mu.RUnlock()

	for _, s := range sinks {
		deliver(s, ev)
	}
}

func deliver(s Sink, ev Event) {
	defer func() { _ = recover() }()
	s.Handle(ev)
}

func normLevel(level string) string {
	switch level {
	case "INFO", "WARNING", "ERROR":
		return level
	case "":
		return "INFO"
	default:
		return level
	}
}

// LogSink writes events to a logrus entry.
type LogSink struct {
	Log *logrus.Entry
}

func (s *LogSink) Handle(ev Event) {
	if s == nil || s.Log == nil {
		return
	}
	entry := s.Log.WithFields(logrus.Fields{"topic": ev.Topic, "meta": ev.Meta})
	switch ev.Level {
	case "ERROR":
		entry.Error(ev.Message)
	case "WARNING":
		entry.Warn(ev.Message)
	default:
		entry.Info(ev.Message)
	}
}

// Noop discards everything. Handy default so components can hold a
// Notifier unconditionally.
type Noop struct{}

func (Noop) Emit(level, topic, message string, meta map[string]any) {}
