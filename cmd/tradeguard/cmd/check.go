package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"tradeguard/guardrails"
	"tradeguard/metrics"
	"tradeguard/safemode"
)

// newCheckCmd evaluates a hypothetical order against guard rails and
// the safety gate, printing the decision as JSON. With --record, an
// allowed attempt is persisted to the state file, exactly as the
// trading path would do after placing the order.
func newCheckCmd(opts *rootOptions) *cobra.Command {
	var (
		symbol    string
		orderType string
		qty       float64
		price     float64
		priceHint float64
		record    bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate an order against guard rails and the safety gate",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if symbol == "" {
				return fmt.Errorf("--symbol is required")
			}

			state, err := guardrails.LoadState(cfg.Journal.StateFile)
			if err != nil {
				return err
			}

			req := guardrails.Request{Symbol: symbol, Type: orderType, Qty: qty}
			if price > 0 {
				req.Price = &price
			}
			if priceHint > 0 {
				req.PriceHint = &priceHint
			}

			nowMS := time.Now().UnixMilli()
			decision := guardrails.Evaluate(cfg.GuardRails, state, req, nowMS)
			if decision.Decision == "VETO" {
				metrics.VetoesTotal.WithLabelValues(decision.ReasonCode).Inc()
			}

			lock := safemode.NewHardLock(cfg.SafeMode.LockFile)
			gate := safemode.NewManager(safemode.WithCritLag(cfg.SafeMode.CritLagS))
			gate.Evaluate(safemode.Signals{LockOn: lock.On()})

			out := struct {
				GuardRails guardrails.Decision `json:"guard_rails"`
				SafeMode   safemode.Snapshot   `json:"safe_mode"`
			}{decision, gate.PublicSnapshot()}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return err
			}

			if record && decision.Decision == "ALLOW" {
				state.RecordAttempt(nowMS, symbol)
				if err := guardrails.SaveState(cfg.Journal.StateFile, state); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "", "Order symbol (required)")
	cmd.Flags().StringVar(&orderType, "type", "MARKET", "Order type: MARKET|LIMIT")
	cmd.Flags().Float64Var(&qty, "qty", 0, "Order quantity")
	cmd.Flags().Float64Var(&price, "price", 0, "Limit price")
	cmd.Flags().Float64Var(&priceHint, "price-hint", 0, "Estimated fill price for MARKET notional checks")
	cmd.Flags().BoolVar(&record, "record", false, "Persist the attempt when allowed")

	return cmd
}
