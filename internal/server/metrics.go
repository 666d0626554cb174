package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "forumrag"

	// labelHandler partitions HTTP metrics by route pattern rather than raw path.
	labelHandler = "handler"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// Tests inject a fresh prometheus.Registry through Config.MetricsRegistry.
type serverMetrics struct {
	// askRequestsTotal counts completed /api/ask requests by outcome:
	// "ok", "timeout" or "error".
	askRequestsTotal *prometheus.CounterVec

	// askDurationSeconds records /api/ask wall-clock time to stream completion.
	askDurationSeconds *prometheus.HistogramVec

	// askActiveStreams is the number of /api/ask SSE streams currently open.
	askActiveStreams prometheus.Gauge

	// searchRequestsTotal counts /api/search retrievals by outcome.
	searchRequestsTotal *prometheus.CounterVec

	// rateLimitedTotal counts requests rejected by the per-client limiter.
	rateLimitedTotal *prometheus.CounterVec

	httpRequestsTotal   *prometheus.CounterVec
	httpDurationSeconds *prometheus.HistogramVec
}

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		askRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ask",
			Name:      "requests_total",
			Help:      "Total number of /api/ask requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		askDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ask",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of /api/ask requests from receipt to stream completion.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}, []string{"outcome"}),

		askActiveStreams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ask",
			Name:      "active_streams",
			Help:      "Number of /api/ask SSE streams currently open.",
		}),

		searchRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total number of /api/search retrievals, partitioned by outcome.",
		}, []string{"outcome"}),

		rateLimitedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected with 429 by the per-client rate limiter.",
		}, []string{labelHandler}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}

func (m *serverMetrics) observeAsk(outcome string, d time.Duration) {
	m.askRequestsTotal.WithLabelValues(outcome).Inc()
	m.askDurationSeconds.WithLabelValues(outcome).Observe(d.Seconds())
}

// instrument records request count and latency for every request served by
// mux. The handler label is the matched route pattern, set on r by the mux.
func (m *serverMetrics) instrument(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw, ok := w.(*responseWriter)
		if !ok {
			rw = &responseWriter{ResponseWriter: w, status: http.StatusOK}
		}
		start := time.Now()
		mux.ServeHTTP(rw, r)

		handler := r.Pattern
		if handler == "" {
			handler = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(r.Method, handler, strconv.Itoa(rw.status)).Inc()
		m.httpDurationSeconds.WithLabelValues(r.Method, handler).Observe(time.Since(start).Seconds())
	})
}
