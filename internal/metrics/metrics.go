// Package metrics exposes Prometheus collectors for the covenant service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for generation and upvote counters.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds every collector on its own registry. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsActive  prometheus.Gauge

	rateLimitRejections prometheus.Counter
	generations         *prometheus.CounterVec
	persistFailures     prometheus.Counter
	narratives          *prometheus.CounterVec
	suggestions         *prometheus.CounterVec
	upvotes             *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"endpoint", "method", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"endpoint", "method"},
		),
		httpRequestsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_active",
			Help: "Number of in-flight HTTP requests",
		}),
		rateLimitRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "covenant_rate_limit_rejections_total",
			Help: "Generation requests rejected by the rate limiter",
		}),
		generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "covenant_generations_total",
				Help: "Covenant generation streams by outcome",
			},
			[]string{"outcome"},
		),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "covenant_persist_failures_total",
			Help: "Generated covenants that could not be stored",
		}),
		narratives: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "covenant_insight_narratives_total",
				Help: "Insight narrative lookups by source",
			},
			[]string{"source"},
		),
		suggestions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "covenant_suggestions_total",
				Help: "Suggestion requests by outcome",
			},
			[]string{"outcome"},
		),
		upvotes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "covenant_upvotes_total",
				Help: "Upvote requests by outcome",
			},
			[]string{"outcome"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpRequestDuration,
		m.httpRequestsActive,
		m.rateLimitRejections,
		m.generations,
		m.persistFailures,
		m.narratives,
		m.suggestions,
		m.upvotes,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request count, latency and in-flight requests, labelled
// by the matched chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.httpRequestsActive.Inc()
		defer m.httpRequestsActive.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				endpoint = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.httpRequests.WithLabelValues(endpoint, r.Method, strconv.Itoa(status)).Inc()
		m.httpRequestDuration.WithLabelValues(endpoint, r.Method).Observe(time.Since(start).Seconds())
	})
}

// RateLimited counts a request rejected by the limiter.
func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimitRejections.Inc()
}

// Generation counts a finished generation stream.
func (m *Metrics) Generation(outcome string) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(outcome).Inc()
}

// PersistFailed counts a covenant that was generated but not stored.
func (m *Metrics) PersistFailed() {
	if m == nil {
		return
	}
	m.persistFailures.Inc()
}

// Narrative counts an insights narrative lookup. source is "cache",
// "generated" or "failed".
func (m *Metrics) Narrative(source string) {
	if m == nil {
		return
	}
	m.narratives.WithLabelValues(source).Inc()
}

// Suggestion counts a suggestion request.
func (m *Metrics) Suggestion(outcome string) {
	if m == nil {
		return
	}
	m.suggestions.WithLabelValues(outcome).Inc()
}

// Upvote counts an upvote request.
func (m *Metrics) Upvote(outcome string) {
	if m == nil {
		return
	}
	m.upvotes.WithLabelValues(outcome).Inc()
}
