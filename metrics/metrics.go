// Package metrics exposes the Prometheus collectors the run loop and
// the notification pipeline update. Collectors are registered in
// init() and served at /metrics by the run command.
//
//   - guard_ticks_total               – ticks ingested
//   - guard_tick_version              – current ledger version (gauge)
//   - guard_time_backwards_total      – backward timestamp jumps
//   - guard_feed_stall                – 1 while the feed is stalled
//   - guard_vetoes_total{reason}      – guard-rails vetoes by reason code
//   - guard_positions_open            – open positions (gauge)
//   - guard_closes_total{kind}        – closes by kind (tp|sl|manual|fail)
//   - guard_safe_mode_active          – 1 while hard-locked
package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "guard_ticks_total",
		Help: "Ticks ingested into the ledger",
	})

	TickVersion = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "guard_tick_version",
		Help: "Current global tick ledger version",
	})

	TimeBackwardsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "guard_time_backwards_total",
		Help: "Backward timestamp jumps beyond tolerance",
	})

	FeedStall = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "guard_feed_stall",
		Help: "1 while no tick has arrived within the stall threshold",
	})

	VetoesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "guard_vetoes_total",
		Help: "Guard-rails vetoes by reason code",
	}, []string{"reason"})

	PositionsOpen = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "guard_positions_open",
		Help: "Open positions tracked by the stop engine",
	})

	ClosesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "guard_closes_total",
		Help: "Position closes by kind",
	}, []string{"kind"})

	SafeModeActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "guard_safe_mode_active",
		Help: "1 while the hard lock is engaged",
	})
)

func init() {
	prometheus.MustRegister(
		TicksTotal,
		TickVersion,
		TimeBackwardsTotal,
		FeedStall,
		VetoesTotal,
		PositionsOpen,
		ClosesTotal,
		SafeModeActive,
	)
}

// Handler serves the Prometheus text exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// CloseKind buckets a close reason string into a metric label.
func CloseKind(reason string) string {
	switch {
	case strings.HasPrefix(reason, "TP_hit"):
		return "tp"
	case strings.HasPrefix(reason, "SL_hit"):
		return "sl"
	default:
		return "manual"
	}
}
