package metrics

import "tradeguard/notify"

// Sink turns stop-engine notifications into counters so closes are
// counted without the engine depending on this package.
type Sink struct{}

func (Sink) Handle(ev notify.Event) {
	if ev.Topic != "stops" {
		return
	}
	switch ev.Message {
	case "position closed":
		reason, _ := ev.Meta["reason"].(string)
		ClosesTotal.WithLabelValues(CloseKind(reason)).Inc()
	case "close order failed":
		ClosesTotal.WithLabelValues("fail").Inc()
	}
}
