// Package metrics records gateway request outcomes in a private Prometheus
// registry and exposes them for scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for the requests counter.
const (
	OutcomeOK                  = "ok"
	OutcomePreflight           = "preflight"
	OutcomeForbidden           = "forbidden"
	OutcomeNotFound            = "not_found"
	OutcomeUpstreamError       = "upstream_error"
	OutcomeUpstreamUnavailable = "upstream_unavailable"
	OutcomeFailed              = "failed"
)

// Collector owns the gateway metrics.
type Collector struct {
	registry *prometheus.Registry

	requests         *prometheus.CounterVec
	upstreamDuration prometheus.Histogram
}

// NewCollector registers the gateway metrics on a fresh registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cipherbob",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Requests handled by the gateway, by outcome.",
		}, []string{"outcome"}),
		upstreamDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cipherbob",
			Subsystem: "gateway",
			Name:      "upstream_duration_seconds",
			Help:      "Latency of calls to the upstream Messages API.",
			// LLM latencies, 100ms to 30s
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
	}

	registry.MustRegister(c.requests, c.upstreamDuration)

	return c
}

// ObserveRequest counts one handled request.
func (c *Collector) ObserveRequest(outcome string) {
	c.requests.WithLabelValues(outcome).Inc()
}

// ObserveUpstream records the duration of one upstream call.
func (c *Collector) ObserveUpstream(d time.Duration) {
	c.upstreamDuration.Observe(d.Seconds())
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}
