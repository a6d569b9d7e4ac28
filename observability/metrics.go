package observability

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type gatewayMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

// ProtocolMetrics tracks entry point outcomes and the protocol's headline
// state: multiplier, surplus buffers, open auctions and issuance headroom.
type ProtocolMetrics struct {
	operations     *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	multiplier     prometheus.Gauge
	surplusBuffers *prometheus.GaugeVec
	auctions       prometheus.Gauge
	rateLimits     *prometheus.GaugeVec
}

var (
	gatewayMetricsOnce sync.Once
	gatewayRegistry    *gatewayMetrics

	protocolMetricsOnce sync.Once
	protocolRegistry    *ProtocolMetrics
)

// Gateway returns the lazily-initialised registry for HTTP handlers.
func Gateway() *gatewayMetrics {
	gatewayMetricsOnce.Do(func() {
		gatewayRegistry = &gatewayMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "creditguild",
				Subsystem: "gateway",
				Name:      "requests_total",
				Help:      "Total HTTP requests segmented by route group, route and outcome.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "creditguild",
				Subsystem: "gateway",
				Name:      "errors_total",
				Help:      "Total HTTP errors segmented by route group, route and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "creditguild",
				Subsystem: "gateway",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for HTTP handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "creditguild",
				Subsystem: "gateway",
				Name:      "throttles_total",
				Help:      "Count of requests rejected by the per-client limiter.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			gatewayRegistry.requests,
			gatewayRegistry.errors,
			gatewayRegistry.latency,
			gatewayRegistry.throttles,
		)
	})
	return gatewayRegistry
}

// Observe records the outcome of a request. The status code should be the
// HTTP status that was ultimately written to the response writer.
func (m *gatewayMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason.
func (m *gatewayMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// Protocol returns the lazily-initialised protocol registry.
func Protocol() *ProtocolMetrics {
	protocolMetricsOnce.Do(func() {
		protocolRegistry = &ProtocolMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "creditguild",
				Subsystem: "protocol",
				Name:      "operations_total",
				Help:      "Entry point invocations segmented by operation and error class.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "creditguild",
				Subsystem: "protocol",
				Name:      "operation_duration_seconds",
				Help:      "Time spent inside the state transaction of an entry point.",
				Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
			}, []string{"operation"}),
			multiplier: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "creditguild",
				Subsystem: "profit",
				Name:      "credit_multiplier",
				Help:      "Current credit multiplier as a decimal (1.0 = par).",
			}),
			surplusBuffers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "creditguild",
				Subsystem: "profit",
				Name:      "surplus_buffer",
				Help:      "Surplus buffer level in credit units, global or per market.",
			}, []string{"market"}),
			auctions: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "creditguild",
				Subsystem: "auction",
				Name:      "in_progress",
				Help:      "Number of auctions currently open.",
			}),
			rateLimits: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "creditguild",
				Subsystem: "ratelimit",
				Name:      "buffer_level",
				Help:      "Issuance buffer level after the last operation touching the authority.",
			}, []string{"authority"}),
		}
		prometheus.MustRegister(
			protocolRegistry.operations,
			protocolRegistry.latency,
			protocolRegistry.multiplier,
			protocolRegistry.surplusBuffers,
			protocolRegistry.auctions,
			protocolRegistry.rateLimits,
		)
	})
	return protocolRegistry
}

// ObserveOperation records one entry point call. Outcome is "ok" or the error
// class label.
func (m *ProtocolMetrics) ObserveOperation(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	operation = strings.TrimSpace(operation)
	if operation == "" {
		operation = "unknown"
	}
	if outcome == "" {
		outcome = "ok"
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetMultiplier publishes a WAD scaled multiplier.
func (m *ProtocolMetrics) SetMultiplier(value *big.Int) {
	if m == nil {
		return
	}
	m.multiplier.Set(wadToFloat(value))
}

// SetSurplusBuffer publishes a WAD scaled buffer level.
func (m *ProtocolMetrics) SetSurplusBuffer(market string, level *big.Int) {
	if m == nil {
		return
	}
	m.surplusBuffers.WithLabelValues(labelMarket(market)).Set(wadToFloat(level))
}

// SetAuctionsInProgress publishes the number of open auctions.
func (m *ProtocolMetrics) SetAuctionsInProgress(count int) {
	if m == nil {
		return
	}
	m.auctions.Set(float64(count))
}

// SetRateLimitLevel publishes the buffer level of an issuing authority.
func (m *ProtocolMetrics) SetRateLimitLevel(authority string, level *big.Int) {
	if m == nil {
		return
	}
	m.rateLimits.WithLabelValues(labelMarket(authority)).Set(wadToFloat(level))
}

func labelMarket(market string) string {
	normalized := strings.ToLower(strings.TrimSpace(market))
	if normalized == "" {
		return "global"
	}
	return normalized
}

var wadFloat = new(big.Float).SetFloat64(1e18)

func wadToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	scaled := new(big.Float).Quo(new(big.Float).SetInt(value), wadFloat)
	return bigToFloat(scaled)
}

func bigToFloat(value *big.Float) float64 {
	floatVal, acc := value.Float64()
	if acc != big.Exact {
		if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			return 0
		}
	}
	return floatVal
}
