// Package guardrails is the pre-trade admission control layer:
// allow/deny lists, size and notional caps, per-symbol cooldowns, and
// sliding-window rate limits. Evaluate is a pure function over a state
// snapshot; recording the attempt and persisting it are separate,
// explicit steps so callers control exactly when state mutates.
package guardrails

// Veto reason codes. These are the machine-readable contract with
// consumers; no prose is produced here.
const (
	ReasonOK       = "OK"
	ReasonDisabled = "DISABLED"

	ReasonOrderTypeNotAllowed      = "ORDER_TYPE_NOT_ALLOWED"
	ReasonSymbolNotAllowed         = "SYMBOL_NOT_ALLOWED"
	ReasonInvalidNumeric           = "INVALID_NUMERIC"
	ReasonMaxQtyExceeded           = "MAX_QTY_EXCEEDED"
	ReasonPriceRequiredForNotional = "PRICE_REQUIRED_FOR_NOTIONAL"
	ReasonMaxNotionalExceeded      = "MAX_NOTIONAL_EXCEEDED"
	ReasonSymbolCooldownActive     = "SYMBOL_COOLDOWN_ACTIVE"
	ReasonRateLimitExceeded        = "RATE_LIMIT_EXCEEDED"
)

// Config holds the admission limits. Nil pointers disable the
// corresponding check; an explicit zero is enforced (e.g. a zero rate
// limit vetoes every order).
type Config struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	AllowedOrderTypes []string `json:"allowed_order_types" yaml:"allowed_order_types"`

	SymbolAllow []string `json:"symbol_allow" yaml:"symbol_allow"`
	SymbolDeny  []string `json:"symbol_deny" yaml:"symbol_deny"`

	MaxQty      *float64 `json:"max_qty" yaml:"max_qty"`
	MaxNotional *float64 `json:"max_notional" yaml:"max_notional"`

	MaxOrders60s *int `json:"max_orders_60s" yaml:"max_orders_60s"`
	MaxOrders10m *int `json:"max_orders_10m" yaml:"max_orders_10m"`
	MaxOrders24h *int `json:"max_orders_24h" yaml:"max_orders_24h"`

	SymbolCooldownS *int `json:"symbol_cooldown_s" yaml:"symbol_cooldown_s"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:           false,
		AllowedOrderTypes: []string{"MARKET", "LIMIT"},
	}
}

// Request describes the order asking for admission. Price is the limit
// price (LIMIT orders); PriceHint is the caller's estimate of the fill
// price for MARKET orders, required when a notional cap is configured.
type Request struct {
	Symbol    string
	Type      string // "MARKET" | "LIMIT"
	Qty       float64
	Price     *float64
	PriceHint *float64
}

// Decision is the structured verdict. Details carry the numbers a
// consumer needs to render an explanation.
type Decision struct {
	Decision   string         `json:"decision"` // "ALLOW" | "VETO"
	ReasonCode string         `json:"reason_code"`
	Details    map[string]any `json:"details"`
}

func allow(code string, details map[string]any) Decision {
	return Decision{Decision: "ALLOW", ReasonCode: code, Details: details}
}

func veto(code string, details map[string]any) Decision {
	return Decision{Decision: "VETO", ReasonCode: code, Details: details}
}

// Evaluate runs every check in order; the first failure wins. It never
// mutates cfg or state: callers that go on to place the order must
// RecordAttempt and persist separately.
func Evaluate(cfg Config, state *State, req Request, nowMS int64) Decision {
	if !cfg.Enabled {
		return allow(ReasonDisabled, map[string]any{"enabled": false})
	}

	if !contains(cfg.AllowedOrderTypes, req.Type) {
		return veto(ReasonOrderTypeNotAllowed, map[string]any{
			"type": req.Type, "allowed": cfg.AllowedOrderTypes,
		})
	}

	if len(cfg.SymbolAllow) > 0 && !contains(cfg.SymbolAllow, req.Symbol) {
		return veto(ReasonSymbolNotAllowed, map[string]any{
			"symbol": req.Symbol, "allow": cfg.SymbolAllow, "deny": cfg.SymbolDeny,
		})
	}

	if contains(cfg.SymbolDeny, req.Symbol) {
		return veto(ReasonSymbolNotAllowed, map[string]any{
			"symbol": req.Symbol, "allow": cfg.SymbolAllow, "deny": cfg.SymbolDeny,
		})
	}

	if req.Qty <= 0 {
		return veto(ReasonInvalidNumeric, map[string]any{"qty": req.Qty})
	}

	if cfg.MaxQty != nil && req.Qty > *cfg.MaxQty {
		return veto(ReasonMaxQtyExceeded, map[string]any{
			"qty": req.Qty, "max_qty": *cfg.MaxQty,
		})
	}

	if cfg.MaxNotional != nil {
		var notional float64
		var src string
		if req.Type == "MARKET" {
			// Actual fill price is unknown in advance; a hint is
			// mandatory so the cap cannot be bypassed.
			if req.PriceHint == nil {
				return veto(ReasonPriceRequiredForNotional, map[string]any{
					"max_notional": *cfg.MaxNotional,
				})
			}
			notional = *req.PriceHint * req.Qty
			src = "PRICE_HINT"
		} else {
			if req.Price == nil || *req.Price <= 0 {
				return veto(ReasonInvalidNumeric, map[string]any{"price": req.Price})
			}
			notional = *req.Price * req.Qty
			src = "LIMIT_PRICE"
		}
		if notional > *cfg.MaxNotional {
			return veto(ReasonMaxNotionalExceeded, map[string]any{
				"notional": notional, "max_notional": *cfg.MaxNotional, "price_source": src,
			})
		}
	}

	if cfg.SymbolCooldownS != nil && *cfg.SymbolCooldownS > 0 {
		if lastMS, ok := state.LastBySymbol[req.Symbol]; ok {
			cooldownMS := int64(*cfg.SymbolCooldownS) * 1000
			if nowMS-lastMS < cooldownMS {
				return veto(ReasonSymbolCooldownActive, map[string]any{
					"symbol": req.Symbol, "cooldown_s": *cfg.SymbolCooldownS,
					"since_ms": lastMS, "now_ms": nowMS,
				})
			}
		}
	}

	// Rate windows count prior in-window attempts plus the current one.
	windows := []struct {
		max     *int
		windowS int64
	}{
		{cfg.MaxOrders60s, 60},
		{cfg.MaxOrders10m, 600},
		{cfg.MaxOrders24h, 86400},
	}
	for _, w := range windows {
		if w.max == nil || *w.max < 0 {
			continue
		}
		count := state.countWindow(nowMS, w.windowS) + 1
		if count > *w.max {
			return veto(ReasonRateLimitExceeded, map[string]any{
				"window_s": w.windowS, "count": count, "max": *w.max,
			})
		}
	}

	return allow(ReasonOK, map[string]any{"enabled": true})
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
