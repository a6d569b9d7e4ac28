package observability

import (
	"math/big"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"creditguild/core/types"
)

type eventMetrics struct {
	emitted *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking committed protocol events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "creditguild",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of committed events segmented by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.emitted)
	})
	return eventRegistry
}

// Record counts the event and mirrors state-bearing events into the protocol
// gauges.
func (m *eventMetrics) Record(evt *types.Event) {
	if m == nil || evt == nil {
		return
	}
	normalized := strings.TrimSpace(strings.ToLower(evt.Type))
	if normalized == "" {
		normalized = "unknown"
	}
	m.emitted.WithLabelValues(normalized).Inc()

	protocol := Protocol()
	switch normalized {
	case "profit.multiplier_updated":
		if v, ok := parseAmount(evt.Attr("current")); ok {
			protocol.SetMultiplier(v)
		}
	case "profit.surplus_buffer_updated":
		if v, ok := parseAmount(evt.Attr("level")); ok {
			protocol.SetSurplusBuffer(evt.Attr("market"), v)
		}
	}
}

func parseAmount(raw string) (*big.Int, bool) {
	if strings.TrimSpace(raw) == "" {
		return nil, false
	}
	return new(big.Int).SetString(strings.TrimSpace(raw), 10)
}
