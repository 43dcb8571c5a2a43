package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"tradeguard/broker"
	"tradeguard/config"
	"tradeguard/journal"
	"tradeguard/metrics"
	"tradeguard/notify"
	"tradeguard/pkg/logger"
	"tradeguard/safemode"
	"tradeguard/stops"
	"tradeguard/ticks"
)

// feedTick is the JSONL line format accepted on stdin. Raw timestamps
// may be seconds or milliseconds; the ledger normalizes.
type feedTick struct {
	Symbol string  `json:"symbol"`
	Last   float64 `json:"last"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	TS     float64 `json:"ts"`
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the risk core: ticks in on stdin (JSONL), positions managed until EOF or signal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			return runCore(cmd.Context(), cfg)
		},
	}
	return cmd
}

func runCore(parent context.Context, cfg *config.Config) error {
	log, err := logger.New(cfg.Logging)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jnl, err := openJournal(cfg.Journal)
	if err != nil {
		return err
	}
	defer jnl.Close()

	center := notify.NewCenter()
	center.RegisterSink(&notify.LogSink{Log: logger.Component(log, "notify")})
	center.RegisterSink(metrics.Sink{})

	stallThreshold, _ := cfg.Ticks.ParseStallThreshold()
	ledger := ticks.NewLedger(
		ticks.WithStallThreshold(stallThreshold),
		ticks.WithLogger(logger.Component(log, "ticks")),
	)

	exec := broker.NewPaper(ledger)
	engine := stops.NewEngine(cfg.Stops, jnl, exec,
		stops.WithNotifier(center),
		stops.WithEngineLogger(logger.Component(log, "stops")),
	)
	if err := engine.RecoverFromJournal(); err != nil {
		return fmt.Errorf("journal recovery: %w", err)
	}
	ledger.SetListener(engine)

	lock := safemode.NewHardLock(cfg.SafeMode.LockFile)
	panicFlag := safemode.NewPanic(cfg.SafeMode.PanicFile, lock, logger.Component(log, "panic"))
	gate := safemode.NewManager(
		safemode.WithCritLag(cfg.SafeMode.CritLagS),
		safemode.WithNotifier(center),
	)

	// Called from the ticker goroutine and the sentinel watcher.
	var evalMu sync.Mutex
	var lastBackCount int64
	evalGate := func() {
		evalMu.Lock()
		defer evalMu.Unlock()

		snap := ledger.Snapshot()
		gate.Evaluate(safemode.Signals{
			LockOn:        lock.On(),
			PanicOn:       panicFlag.Active(),
			TimeBackwards: snap.TimeBackwards.Flag,
			Stall:         snap.Stall,
			LagS:          snap.LagS,
		})

		if d := snap.TimeBackwards.Count - lastBackCount; d > 0 {
			metrics.TimeBackwardsTotal.Add(float64(d))
			lastBackCount = snap.TimeBackwards.Count
		}
		metrics.TickVersion.Set(float64(snap.Version))
		metrics.FeedStall.Set(boolGauge(snap.Stall))
		metrics.SafeModeActive.Set(boolGauge(gate.Active()))
		metrics.PositionsOpen.Set(float64(len(engine.Positions())))
	}
	evalGate()

	interval, _ := cfg.SafeMode.ParseEvalInterval()
	if interval <= 0 {
		interval = time.Second
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				evalGate()
			}
		}
	}()

	if cfg.SafeMode.WatchSentinel {
		go func() {
			err := safemode.WatchSentinels(ctx, cfg.SafeMode.LockFile, cfg.SafeMode.PanicFile, evalGate)
			if err != nil && ctx.Err() == nil {
				log.WithField("err", err.Error()).Warn("sentinel watcher stopped; falling back to polling")
			}
		}()
	}

	if cfg.Metrics.Listen != "" {
		go serveMetrics(ctx, log, cfg.Metrics.Listen)
	}

	log.WithFields(logrus.Fields{
		"journal": cfg.Journal.Type,
		"policy":  cfg.Stops.Policy,
	}).Info("core started; reading ticks from stdin")

	return feedLoop(ctx, log, ledger)
}

// feedLoop pumps stdin JSONL ticks into the ledger until EOF or
// cancellation. Malformed lines are counted and skipped.
func feedLoop(ctx context.Context, log *logrus.Logger, ledger *ticks.Ledger) error {
	lines := make(chan []byte)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			line := make([]byte, len(sc.Bytes()))
			copy(line, sc.Bytes())
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()

	var malformed int64
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				log.Info("tick feed closed")
				return nil
			}
			if len(line) == 0 {
				continue
			}
			var ft feedTick
			if err := json.Unmarshal(line, &ft); err != nil {
				malformed++
				if malformed%100 == 1 {
					log.WithField("count", malformed).Warn("malformed tick lines on stdin")
				}
				continue
			}
			ledger.Upsert(ft.Symbol, ft.Last, ft.Bid, ft.Ask, ft.TS)
			metrics.TicksTotal.Inc()
		}
	}
}

func serveMetrics(ctx context.Context, log *logrus.Logger, listen string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: listen, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithField("err", err.Error()).Warn("metrics listener stopped")
	}
}

func openJournal(cfg config.JournalConfig) (journal.Journal, error) {
	switch cfg.Type {
	case "sqlite":
		return journal.NewSQLite(cfg.DBPath)
	default:
		return journal.NewJSONL(cfg.Path)
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
