// Package metrics owns the Prometheus registry exposed on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpmetrics "github.com/slok/go-http-metrics/metrics/prometheus"
	httpmiddleware "github.com/slok/go-http-metrics/middleware"
	"github.com/slok/go-http-metrics/middleware/std"
)

const (
	upstreamRequestsMetricName = "healthchat_upstream_requests_total"
	upstreamDurationMetricName = "healthchat_upstream_duration_seconds"
	rateLimitedMetricName      = "healthchat_rate_limited_total"
)

// Upstream call outcomes.
const (
	OutcomeSuccess    = "success"
	OutcomeEmpty      = "empty"
	OutcomeConfig     = "config_error"
	OutcomeUpstream   = "upstream_error"
	OutcomeUnexpected = "unexpected_error"
)

// Metrics bundles the collectors for one server instance. Each instance has
// its own registry so tests can build routers repeatedly.
type Metrics struct {
	registry         *prometheus.Registry
	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	rateLimited      prometheus.Counter
	http             httpmiddleware.Middleware
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: upstreamRequestsMetricName,
			Help: "Completion requests forwarded to the upstream provider, by outcome.",
		}, []string{"provider", "outcome"}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    upstreamDurationMetricName,
			Help:    "Latency of upstream completion calls.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		}, []string{"provider"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: rateLimitedMetricName,
			Help: "Requests rejected by the per-client rate limiter.",
		}),
	}
	reg.MustRegister(m.upstreamRequests, m.upstreamDuration, m.rateLimited)

	m.http = httpmiddleware.New(httpmiddleware.Config{
		Recorder: httpmetrics.NewRecorder(httpmetrics.Config{Registry: reg}),
	})
	return m
}

// ObserveUpstream records the outcome and latency of one upstream call.
func (m *Metrics) ObserveUpstream(provider, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.upstreamRequests.WithLabelValues(provider, outcome).Inc()
	m.upstreamDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// RateLimited counts a rejected request.
func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

// Middleware instruments a route group under the given handler id.
func (m *Metrics) Middleware(handlerID string) func(http.Handler) http.Handler {
	return std.HandlerProvider(handlerID, m.http)
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
