// Package observability exposes Prometheus collectors for the billing engine.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry with HTTP, reconciliation and cache collectors.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	payments        *prometheus.CounterVec
	retries         *prometheus.CounterVec
	conflicts       *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
}

// NewMetrics initialises the registry and its collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bizbilling_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bizbilling_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bizbilling_payments_recorded_total",
		Help: "Payments committed to the ledger by method.",
	}, []string{"method"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bizbilling_reconcile_retries_total",
		Help: "Ledger transactions retried after a lock or serialization conflict.",
	}, []string{"operation"})
	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bizbilling_reconcile_conflicts_total",
		Help: "Ledger operations that exhausted their retries.",
	}, []string{"operation"})
	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bizbilling_metrics_cache_lookups_total",
		Help: "Dashboard cache lookups by view and result.",
	}, []string{"view", "result"})
	registry.MustRegister(requests, duration, payments, retries, conflicts, lookups)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		payments:        payments,
		retries:         retries,
		conflicts:       conflicts,
		cacheLookups:    lookups,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for additional collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// PaymentRecorded implements invoicing.Recorder.
func (m *Metrics) PaymentRecorded(method string) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(method).Inc()
}

// ReconcileRetry implements invoicing.Recorder.
func (m *Metrics) ReconcileRetry(op string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(op).Inc()
}

// ReconcileConflict implements invoicing.Recorder.
func (m *Metrics) ReconcileConflict(op string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(op).Inc()
}

// CacheHit implements metrics.CacheObserver.
func (m *Metrics) CacheHit(view string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(view, "hit").Inc()
}

// CacheMiss implements metrics.CacheObserver.
func (m *Metrics) CacheMiss(view string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(view, "miss").Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
