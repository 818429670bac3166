// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wownote",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route pattern, method and status code.",
	}, []string{"route", "method", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wownote",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	FileOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wownote",
		Name:      "file_operations_total",
		Help:      "Storage section file operations by kind and outcome.",
	}, []string{"op", "outcome"})

	UploadedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wownote",
		Name:      "uploaded_bytes_total",
		Help:      "Bytes written by uploads.",
	})

	AuthEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wownote",
		Name:      "auth_events_total",
		Help:      "Account events by kind and outcome.",
	}, []string{"event", "outcome"})
)

// ObserveFileOp counts a file operation.
func ObserveFileOp(op string, err error) {
	FileOperations.WithLabelValues(op, outcome(err)).Inc()
}

// ObserveAuth counts an account event.
func ObserveAuth(event string, err error) {
	AuthEvents.WithLabelValues(event, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Middleware records request counts and latency keyed by the chi route
// pattern, so ids in paths do not explode label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
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
		HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		HTTPDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
