// Package metrics exposes prometheus collectors for the tools endpoint.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"exchange-rate-mcp/pkg/protocol"
)

// Fetch outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeFallback = "fallback"
	OutcomeCached   = "cached"
	OutcomeError    = "error"
)

// Metrics owns a private registry so several servers can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	fetches       *prometheus.CounterVec
	fetchDuration prometheus.Histogram
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "exchange_rate_mcp",
			Name:      "tool_requests_total",
			Help:      "JSON-RPC requests handled, by method and error code (0 for success).",
		}, []string{"method", "code"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "exchange_rate_mcp",
			Name:      "rate_fetches_total",
			Help:      "Rate lookups by outcome.",
		}, []string{"outcome"}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "exchange_rate_mcp",
			Name:      "rate_fetch_duration_seconds",
			Help:      "Latency of upstream rate lookups.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.fetches,
		m.fetchDuration,
	)
	return m
}

// ObserveRequest counts a handled envelope. Unknown methods are folded into
// "other" to bound label cardinality.
func (m *Metrics) ObserveRequest(method, code string) {
	if m == nil {
		return
	}
	switch method {
	case protocol.MethodListTools, protocol.MethodCallTool:
	default:
		method = "other"
	}
	m.requests.WithLabelValues(method, code).Inc()
}

// ObserveFetch records one rate lookup.
func (m *Metrics) ObserveFetch(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(outcome).Inc()
	if outcome != OutcomeCached {
		m.fetchDuration.Observe(took.Seconds())
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
