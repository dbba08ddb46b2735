package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/bizbilling/internal/app"
	"github.com/odyssey-erp/bizbilling/internal/fx"
	"github.com/odyssey-erp/bizbilling/internal/invoicing"
	"github.com/odyssey-erp/bizbilling/internal/metrics"
	"github.com/odyssey-erp/bizbilling/internal/money"
)

type fakeInvoices struct {
	details  invoicing.StatusDetails
	resynced []uuid.UUID
	err      error
}

func (f *fakeInvoices) GetStatusDetails(_ context.Context, id uuid.UUID) (invoicing.StatusDetails, error) {
	return f.details, f.err
}

func (f *fakeInvoices) ResyncPaidAmount(_ context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.resynced = append(f.resynced, id)
	return &invoicing.Invoice{
		ID:         id,
		Number:     "INV-000042",
		PaidAmount: money.MustParse("1250", "NGN"),
		Status:     invoicing.StatusPartiallyPaid,
	}, nil
}

type fakeDashboards struct {
	refreshed bool
	dashboard metrics.Dashboard
}

func (f *fakeDashboards) Dashboard(context.Context, uuid.UUID) (metrics.Dashboard, error) {
	return f.dashboard, nil
}

func (f *fakeDashboards) Refresh(ctx context.Context, id uuid.UUID) (metrics.Dashboard, error) {
	f.refreshed = true
	return f.dashboard, nil
}

type fakeJobs struct {
	name     string
	lookback time.Duration
	closed   bool
}

func (f *fakeJobs) Trigger(_ context.Context, name string, lookback time.Duration) (*asynq.TaskInfo, error) {
	f.name, f.lookback = name, lookback
	return &asynq.TaskInfo{ID: "task-1", Type: name, Queue: "default"}, nil
}

func (f *fakeJobs) InspectQueues(context.Context) ([]QueueStats, error) {
	return []QueueStats{{Queue: "notifications", Pending: 3}, {Queue: "default"}}, nil
}

func (f *fakeJobs) Close() error {
	f.closed = true
	return nil
}

type harness struct {
	invoices   *fakeInvoices
	dashboards *fakeDashboards
	jobs       *fakeJobs
	closed     bool
	stdout     bytes.Buffer
	stderr     bytes.Buffer
}

func newHarness() *harness {
	return &harness{
		invoices:   &fakeInvoices{},
		dashboards: &fakeDashboards{},
		jobs:       &fakeJobs{},
	}
}

func (h *harness) run(t *testing.T, args ...string) error {
	t.Helper()
	h.stdout.Reset()
	root := NewRootCmd(Options{
		Backend: func(context.Context, *app.Config, *slog.Logger) (*Backend, error) {
			return &Backend{Invoices: h.invoices, Dashboards: h.dashboards, Close: func() { h.closed = true }}, nil
		},
		Jobs: func(*app.Config) (JobsRunner, error) { return h.jobs, nil },
		Converter: func(*app.Config, *slog.Logger) fx.Converter {
			return fx.NewRateConverter(fx.StaticRates{fx.PairKey("USD", "NGN"): decimal.RequireFromString("1500")})
		},
		Stdout: &h.stdout,
		Stderr: &h.stderr,
	})
	root.SetArgs(append([]string{"--env-file="}, args...))
	return root.ExecuteContext(context.Background())
}

func TestStatusCommand(t *testing.T) {
	h := newHarness()
	h.invoices.details = invoicing.StatusDetails{
		Status:          invoicing.StatusOverdue,
		PaidAmount:      money.Zero("NGN"),
		RemainingAmount: money.MustParse("500", "NGN"),
		IsOverdue:       true,
		DaysOverdue:     3,
		Label:           "Overdue",
		Description:     "3 days overdue",
	}
	require.NoError(t, h.run(t, "status", uuid.NewString()))

	out := h.stdout.String()
	assert.Contains(t, out, "status:    Overdue (3 days overdue)")
	assert.Contains(t, out, "remaining: ₦500.00")
	assert.Contains(t, out, "overdue:   3 days")
	assert.True(t, h.closed)
}

func TestStatusCommandJSON(t *testing.T) {
	h := newHarness()
	h.invoices.details = invoicing.StatusDetails{
		Status:          invoicing.StatusPaid,
		PaidAmount:      money.MustParse("299.99", "USD"),
		RemainingAmount: money.Zero("USD"),
		Label:           "Paid",
	}
	require.NoError(t, h.run(t, "--json", "status", uuid.NewString()))

	var body map[string]any
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &body))
	assert.Equal(t, "paid", body["status"])
	assert.Equal(t, "Paid", body["label"])
}

func TestStatusCommandRejectsBadID(t *testing.T) {
	h := newHarness()
	err := h.run(t, "status", "not-a-uuid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid invoice id")
	assert.False(t, h.closed)
}

func TestResyncCommand(t *testing.T) {
	h := newHarness()
	a, b := uuid.New(), uuid.New()
	require.NoError(t, h.run(t, "resync", a.String(), b.String()))

	assert.Equal(t, []uuid.UUID{a, b}, h.invoices.resynced)
	assert.Contains(t, h.stdout.String(), "INV-000042 paid=₦1,250.00 status=partially_paid")
}

func TestResyncCommandPropagatesErrors(t *testing.T) {
	h := newHarness()
	h.invoices.err = invoicing.ErrNotFound
	err := h.run(t, "resync", uuid.NewString())
	assert.ErrorIs(t, err, invoicing.ErrNotFound)
}

func TestDashboardCommand(t *testing.T) {
	h := newHarness()
	h.dashboards.dashboard = metrics.Dashboard{
		Currency:           "NGN",
		Revenue:            metrics.Figure{Value: decimal.RequireFromString("15500"), Currency: "NGN", Partial: true, Excluded: 2},
		RevenueTrend:       metrics.NewTrend(decimal.RequireFromString("15500"), decimal.RequireFromString("10000")),
		TotalCustomers:     4,
		CustomersThisMonth: 1,
		CustomerTrend:      metrics.CountTrend(1, 2),
		RevenueData: []metrics.SeriesPoint{
			{Label: "Mar 2024", Value: decimal.RequireFromString("15500")},
		},
		Degraded: []string{"recent_activities"},
	}

	require.NoError(t, h.run(t, "dashboard", uuid.NewString()))
	out := h.stdout.String()
	assert.Contains(t, out, "revenue this month:   ₦15,500.00 (partial, 2 excluded) up 55%")
	assert.Contains(t, out, "customers this month: 1 down 50%")
	assert.Contains(t, out, "Mar 2024  ₦15,500.00")
	assert.Contains(t, out, "degraded: recent_activities")
	assert.False(t, h.dashboards.refreshed)

	require.NoError(t, h.run(t, "dashboard", "--refresh", uuid.NewString()))
	assert.True(t, h.dashboards.refreshed)
}

func TestJobsCommands(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.run(t, "jobs", "trigger", "metrics:warmup", "--lookback", "2h"))
	assert.Equal(t, "metrics:warmup", h.jobs.name)
	assert.Equal(t, 2*time.Hour, h.jobs.lookback)
	assert.True(t, h.jobs.closed)
	assert.Contains(t, h.stdout.String(), "enqueued metrics:warmup id=task-1 queue=default")
	assert.False(t, h.closed, "jobs commands never connect the engine")

	require.NoError(t, h.run(t, "jobs", "stats"))
	assert.Contains(t, h.stdout.String(), "notifications  pending=3")
}

func TestFXConvertCommand(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.run(t, "fx", "convert", "10.50", "USD", "NGN"))
	assert.Equal(t, "$10.50 = ₦15,750.00\n", h.stdout.String())

	err := h.run(t, "fx", "convert", "10", "USD", "GBP")
	assert.ErrorIs(t, err, fx.ErrRateUnavailable)
}

func TestEnvFileIsLoaded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("REPORTING_CURRENCY=USD\nCURRENCY_SYMBOLS=USD:US$\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("REPORTING_CURRENCY")
		os.Unsetenv("CURRENCY_SYMBOLS")
	})

	h := newHarness()
	root := NewRootCmd(Options{
		Converter: func(*app.Config, *slog.Logger) fx.Converter {
			return fx.NewRateConverter(fx.StaticRates{})
		},
		Stdout: &h.stdout,
		Stderr: &h.stderr,
	})
	root.SetArgs([]string{"--env-file", path, "fx", "convert", "5", "USD", "usd"})
	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Equal(t, "US$5.00 = US$5.00\n", h.stdout.String())
}

func TestMissingEnvFileIsIgnored(t *testing.T) {
	h := newHarness()
	root := NewRootCmd(Options{Stdout: &h.stdout, Stderr: &h.stderr,
		Converter: func(*app.Config, *slog.Logger) fx.Converter { return fx.NewRateConverter(fx.StaticRates{}) }})
	root.SetArgs([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env"), "fx", "convert", "1", "EUR", "EUR"})
	err := root.ExecuteContext(context.Background())
	require.False(t, errors.Is(err, os.ErrNotExist))
	require.NoError(t, err)
}
