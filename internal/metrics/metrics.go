package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wrapops",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by method, path, and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wrapops",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	GatewayRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wrapops",
		Name:      "gateway_requests_total",
		Help:      "Total gateway route requests by action and outcome.",
	}, []string{"action", "outcome"})

	ActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wrapops",
		Name:      "actions_total",
		Help:      "Total proposed actions by type and initial status.",
	}, []string{"type", "status"})

	ApprovalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wrapops",
		Name:      "approvals_total",
		Help:      "Total approval decisions by outcome (approved, rejected, conflict).",
	}, []string{"outcome"})

	ExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wrapops",
		Name:      "executions_total",
		Help:      "Total action executions by action type and result.",
	}, []string{"type", "result"})

	DispatchStepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wrapops",
		Name:      "dispatch_steps_total",
		Help:      "Total notification dispatcher steps by step name and outcome.",
	}, []string{"step", "outcome"})

	AlertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wrapops",
		Name:      "alerts_total",
		Help:      "Total dispatched alerts by alert type.",
	}, []string{"alert_type"})

	ActiveSSEConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "wrapops",
		Name:      "active_sse_connections",
		Help:      "Number of active SSE change-feed connections.",
	})
)

// Handler returns an http.Handler that serves the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware wraps an http.Handler to record request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		duration := time.Since(start).Seconds()

		path := normalizePath(r.URL.Path)
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.statusCode)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath buckets URL paths to avoid high cardinality.
// For API paths like /v1/actions/act_123/approve it keeps /v1/actions.
func normalizePath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	switch p {
	case "/healthz", "/readyz", "/metrics":
		return p
	}
	segments := 0
	for i := 1; i < len(p); i++ {
		if p[i] == '/' {
			segments++
			if segments >= 2 {
				return p[:i]
			}
		}
	}
	return p
}
