package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors served on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	requestsInFlight prometheus.Gauge
	requestDuration  *prometheus.HistogramVec
	auditsTotal      *prometheus.CounterVec
	upstreamErrors   prometheus.Counter
}

// NewMetrics registers collectors on a fresh registry, so tests can build
// as many as they like.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "x402guard",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		requestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "x402guard",
			Name:      "http_requests_in_flight",
			Help:      "HTTP requests currently being served.",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "x402guard",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		auditsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "x402guard",
			Name:      "audit_proxy_total",
			Help:      "Proxied audit calls by tier and backend status.",
		}, []string{"tier", "status"}),
		upstreamErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "x402guard",
			Name:      "audit_upstream_errors_total",
			Help:      "Audit calls that failed to reach the backend.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestsTotal,
		m.requestsInFlight,
		m.requestDuration,
		m.auditsTotal,
		m.upstreamErrors,
	)
	return m
}

// ObserveAudit counts a proxied audit by tier and backend status.
func (m *Metrics) ObserveAudit(tier string, status int) {
	m.auditsTotal.WithLabelValues(tier, strconv.Itoa(status)).Inc()
}

func (m *Metrics) ObserveUpstreamError() {
	m.upstreamErrors.Inc()
}

// Middleware tracks request metrics
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.requestsInFlight.Inc()
		defer m.requestsInFlight.Dec()

		wrapped := wrapWriter(w)
		next.ServeHTTP(wrapped, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		m.requestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(wrapped.statusCode)).Inc()
		m.requestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
