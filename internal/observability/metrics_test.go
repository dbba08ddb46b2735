package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/bizbilling/internal/invoicing"
	"github.com/odyssey-erp/bizbilling/internal/metrics"
)

var (
	_ invoicing.Recorder    = (*Metrics)(nil)
	_ metrics.CacheObserver = (*Metrics)(nil)
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestReconciliationCounters(t *testing.T) {
	m := NewMetrics()
	m.PaymentRecorded("card")
	m.PaymentRecorded("card")
	m.ReconcileRetry("record_payment")
	m.ReconcileConflict("record_payment")
	m.CacheHit("dashboard")
	m.CacheMiss("dashboard")

	body := scrape(t, m)
	for _, want := range []string{
		`bizbilling_payments_recorded_total{method="card"} 2`,
		`bizbilling_reconcile_retries_total{operation="record_payment"} 1`,
		`bizbilling_reconcile_conflicts_total{operation="record_payment"} 1`,
		`bizbilling_metrics_cache_lookups_total{result="hit",view="dashboard"} 1`,
		`bizbilling_metrics_cache_lookups_total{result="miss",view="dashboard"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in scrape, got: %s", want, body)
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.PaymentRecorded("cash")
	m.CacheMiss("dashboard")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	m := NewMetrics()

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/jobs/health")

	req := httptest.NewRequest(http.MethodGet, "/jobs/health", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	body := scrape(t, m)
	if !strings.Contains(body, `bizbilling_http_requests_total{code="418",route="/jobs/health"} 1`) {
		t.Fatalf("expected metrics to record request, got: %s", body)
	}
	if !strings.Contains(body, `bizbilling_http_request_duration_seconds_bucket{route="/jobs/health"`) {
		t.Fatalf("expected duration histogram to be present, got: %s", body)
	}
}
