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

// Metrics exposes application metrics that are safe to scrape via Prometheus.
// All methods are no-ops on a nil receiver.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	feedFetches         *prometheus.CounterVec
	embeddingRetries    prometheus.Counter
	chatRequests        *prometheus.CounterVec
	exports             *prometheus.CounterVec
	viewers             prometheus.Gauge
}

// New creates a fresh Metrics registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cleanroom",
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests processed",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cleanroom",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		feedFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cleanroom",
			Name:      "feed_fetches_total",
			Help:      "Upstream RSS/Atom fetches by category and outcome",
		}, []string{"category", "outcome"}),
		embeddingRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cleanroom",
			Name:      "embedding_retries_total",
			Help:      "Embedding requests retried after rate limiting",
		}),
		chatRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cleanroom",
			Name:      "chat_requests_total",
			Help:      "Chat completions by outcome",
		}, []string{"outcome"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cleanroom",
			Name:      "diagram_exports_total",
			Help:      "Diagram renders by output format",
		}, []string{"format"}),
		viewers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cleanroom",
			Name:      "diagram_viewers",
			Help:      "Open interactive viewer sessions",
		}),
	}

	registry.MustRegister(
		m.httpRequests,
		m.httpRequestDuration,
		m.feedFetches,
		m.embeddingRetries,
		m.chatRequests,
		m.exports,
		m.viewers,
	)
	return m
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// IncFeedFetch counts one upstream feed fetch. outcome is "ok" or "error".
func (m *Metrics) IncFeedFetch(category, outcome string) {
	if m == nil {
		return
	}
	m.feedFetches.WithLabelValues(category, outcome).Inc()
}

// IncEmbeddingRetry counts one rate-limited embedding retry.
func (m *Metrics) IncEmbeddingRetry() {
	if m == nil {
		return
	}
	m.embeddingRetries.Inc()
}

// IncChat counts one chat completion by outcome.
func (m *Metrics) IncChat(outcome string) {
	if m == nil {
		return
	}
	m.chatRequests.WithLabelValues(outcome).Inc()
}

// IncExport counts one diagram render in the given format.
func (m *Metrics) IncExport(format string) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(format).Inc()
}

// SetViewers records the number of open viewer sessions.
func (m *Metrics) SetViewers(n int) {
	if m == nil {
		return
	}
	m.viewers.Set(float64(n))
}

// Middleware records every request under its chi route pattern, so path
// parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				path = p
			}
		}
		m.ObserveHTTPRequest(r.Method, path, ww.Status(), time.Since(start))
	})
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
