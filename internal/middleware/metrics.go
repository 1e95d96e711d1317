package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus metrics, registered in the default registry and exposed on
// /metrics.
var (
	// Labels: method, path (chi route pattern), status
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Labels: status (success, invalid_state, no_code, auth_failed, access_denied)
	authAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Total number of Google sign-in attempts",
		},
		[]string{"status"},
	)

	// Labels: path (text, image), outcome (ok, cached, or a failure kind)
	chatRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_requests_total",
			Help: "Total number of chat requests by path and outcome",
		},
		[]string{"path", "outcome"},
	)

	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "response_cache_lookups_total",
			Help: "Response cache lookups by result",
		},
		[]string{"result"},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_sessions_active",
			Help: "Number of live chat sessions",
		},
	)

	// Upstream calls take seconds, so the buckets reach past the 30s image timeout.
	upstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "LiteLLM gateway round-trip time in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 15, 30, 60},
		},
		[]string{"path"},
	)

	rateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_rejections_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"endpoint"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		authAttemptsTotal,
		chatRequestsTotal,
		cacheLookupsTotal,
		activeSessions,
		upstreamDuration,
		rateLimitedTotal,
	)
}

// Metrics records request count and duration for every request.
//
// The path label is the matched chi route pattern, so
// /api/chat-history/{session_id} is one series instead of one per session.
// Unmatched requests are labelled "unmatched".
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			path := routePattern(r)
			httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(ww.Status())).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// MetricsHandler returns the Prometheus metrics HTTP handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// IncrementAuthAttempts counts a sign-in attempt by status.
func IncrementAuthAttempts(status string) {
	authAttemptsTotal.WithLabelValues(status).Inc()
}

// RecordChat counts a finished chat request.
func RecordChat(path, outcome string) {
	chatRequestsTotal.WithLabelValues(path, outcome).Inc()
}

// RecordCacheLookup counts a response cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// SetActiveSessions sets the live chat session gauge. cmd/server updates it
// after each janitor sweep.
func SetActiveSessions(count int) {
	activeSessions.Set(float64(count))
}

// ObserveUpstream records a gateway round trip. It matches the
// litellm.Observer signature.
func ObserveUpstream(path string, elapsed time.Duration) {
	upstreamDuration.WithLabelValues(path).Observe(elapsed.Seconds())
}
