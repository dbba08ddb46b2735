package perf

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizbilling/internal/app"
	"github.com/odyssey-erp/bizbilling/internal/invoicing"
	"github.com/odyssey-erp/bizbilling/internal/metrics"
	"github.com/odyssey-erp/bizbilling/internal/money"
	"github.com/odyssey-erp/bizbilling/internal/observability"
)

func TestOpsRouterLatencyTarget(t *testing.T) {
	router := app.NewRouter(app.RouterParams{Config: &app.Config{AppEnv: "test"}, Metrics: observability.NewMetrics()})

	samples := make([]time.Duration, 0, 50)
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rr := httptest.NewRecorder()
		start := time.Now()
		router.ServeHTTP(rr, req)
		samples = append(samples, time.Since(start))
		if rr.Code != http.StatusOK {
			t.Fatalf("healthz returned %d", rr.Code)
		}
	}
	if p95 := percentile95(samples); p95 > 50*time.Millisecond {
		t.Fatalf("ops router latency regression: p95=%s", p95)
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

func BenchmarkEffectiveStatus(b *testing.B) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	in := invoicing.StatusInput{
		Amount:     money.MustParse("100.00", "USD"),
		PaidAmount: money.MustParse("40.00", "USD"),
		DueDate:    now.AddDate(0, 0, -3),
		Stored:     invoicing.StatusSent,
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = invoicing.Details(in, now)
	}
}

func BenchmarkTrendPercentage(b *testing.B) {
	current := decimal.RequireFromString("15500")
	previous := decimal.RequireFromString("12345.67")
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = metrics.NewTrend(current, previous)
	}
}
