package internal

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for HTTP requests, status transitions
// and store operations on a private registry.
type Metrics struct {
	reqTotal    *prometheus.CounterVec
	reqLatency  *prometheus.HistogramVec
	transitions *prometheus.CounterVec
	storeOps    *prometheus.CounterVec
	storeTime   *prometheus.HistogramVec
	registry    *prometheus.Registry
}

// NewMetrics creates a new Metrics instance with a private Prometheus registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	reqTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	reqLatency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	transitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "procurement_status_transitions_total",
			Help: "Status transitions applied to vendors, tenders and purchase orders",
		},
		[]string{"entity", "from", "to"},
	)

	storeOps := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "procurement_store_operations_total",
			Help: "Store operations by backend, operation and result",
		},
		[]string{"backend", "op", "result"},
	)

	storeTime := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "procurement_store_operation_duration_seconds",
			Help:    "Store operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "op"},
	)

	registry.MustRegister(reqTotal, reqLatency, transitions, storeOps, storeTime)

	return &Metrics{
		reqTotal:    reqTotal,
		reqLatency:  reqLatency,
		transitions: transitions,
		storeOps:    storeOps,
		storeTime:   storeTime,
		registry:    registry,
	}
}

// ObserveTransition counts one status change. It matches service.TransitionObserver.
func (m *Metrics) ObserveTransition(entity, from, to string) {
	m.transitions.WithLabelValues(entity, from, to).Inc()
}

// ObserveStore records one store operation. It matches store.Observer.
func (m *Metrics) ObserveStore(backend, op string, err error, elapsed time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.storeOps.WithLabelValues(backend, op, result).Inc()
	m.storeTime.WithLabelValues(backend, op).Observe(elapsed.Seconds())
}

// Middleware returns a Chi middleware that collects metrics
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(rw, r)

			// Use the route pattern so ids do not explode label cardinality
			path := r.URL.Path
			if chiCtx := chi.RouteContext(r.Context()); chiCtx != nil {
				if pattern := chiCtx.RoutePattern(); pattern != "" {
					path = pattern
				}
			}

			status := http.StatusText(rw.code)
			m.reqTotal.WithLabelValues(r.Method, path, status).Inc()
			m.reqLatency.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler returns an http.Handler that serves Prometheus metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// statusRecorder captures the HTTP status code for metrics
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.code = code
	sr.ResponseWriter.WriteHeader(code)
}
