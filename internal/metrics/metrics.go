package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the portal's Prometheus collectors.
type Metrics struct {
	registry   *prometheus.Registry
	traversals *prometheus.CounterVec
	authoring  *prometheus.CounterVec
	cache      *prometheus.CounterVec
	requests   *prometheus.HistogramVec
}

// New creates and registers the portal collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		traversals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_flow_traversals_total",
				Help: "Guided flow traversal calls by outcome",
			},
			[]string{"outcome"},
		),
		authoring: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_flow_authoring_total",
				Help: "Flow authoring operations by operation and result",
			},
			[]string{"op", "result"},
		),
		cache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_step_cache_lookups_total",
				Help: "Step cache lookups by result",
			},
			[]string{"result"},
		),
		requests: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portal_http_request_duration_seconds",
				Help:    "HTTP request latency by route pattern",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}
	m.registry.MustRegister(m.traversals, m.authoring, m.cache, m.requests)
	return m
}

// ObserveTraversal counts one traversal outcome.
func (m *Metrics) ObserveTraversal(outcome string) {
	m.traversals.WithLabelValues(outcome).Inc()
}

// ObserveAuthoring counts one authoring operation.
func (m *Metrics) ObserveAuthoring(op, result string) {
	m.authoring.WithLabelValues(op, result).Inc()
}

// ObserveCache counts one cache lookup ("hit", "miss" or "error").
func (m *Metrics) ObserveCache(result string) {
	m.cache.WithLabelValues(result).Inc()
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request latency labelled by chi route pattern, so
// /flow/next/1/yes and /flow/next/2/no share one series.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
