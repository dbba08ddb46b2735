package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/bizbilling/internal/fx"
	"github.com/odyssey-erp/bizbilling/internal/invoicing"
	"github.com/odyssey-erp/bizbilling/internal/money"
	"github.com/odyssey-erp/bizbilling/internal/shared"
)

const (
	// DefaultReportingCurrency applies when a business has no base currency.
	DefaultReportingCurrency = "NGN"
	// DefaultSeriesMonths is the length of the revenue chart.
	DefaultSeriesMonths = 6

	defaultActivityPerPage    = 10
	defaultTransactionPerPage = 20
	maxPerPage                = 100

	seriesLabelLayout = "Jan 2006"
)

// ErrInvalidActivityType is returned for an unknown activity filter.
var ErrInvalidActivityType = errors.New("metrics: invalid activity type")

// Config carries the service collaborators. Every field is optional.
type Config struct {
	Converter         fx.Converter
	Cache             *Cache
	Logger            *slog.Logger
	Clock             func() time.Time
	ReportingCurrency string
}

// Service computes dashboard figures. It only reads and never locks.
type Service struct {
	repo              Repository
	converter         fx.Converter
	cache             *Cache
	logger            *slog.Logger
	clock             func() time.Time
	reportingCurrency string
	flight            singleflight.Group
}

// NewService wires the repository with its collaborators. Without a converter
// only amounts already in the reporting currency are counted.
func NewService(repo Repository, cfg Config) *Service {
	s := &Service{
		repo:              repo,
		converter:         cfg.Converter,
		cache:             cfg.Cache,
		logger:            cfg.Logger,
		clock:             cfg.Clock,
		reportingCurrency: cfg.ReportingCurrency,
	}
	if s.converter == nil {
		s.converter = fx.NewRateConverter(fx.StaticRates{})
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.reportingCurrency == "" {
		s.reportingCurrency = DefaultReportingCurrency
	}
	return s
}

func (s *Service) now() time.Time {
	return s.clock().UTC()
}

// ReportingCurrency resolves the currency the business reports in.
func (s *Service) ReportingCurrency(ctx context.Context, businessID uuid.UUID) (string, error) {
	code, err := s.repo.BusinessCurrency(ctx, businessID)
	if err != nil {
		return "", err
	}
	if code == "" {
		return s.reportingCurrency, nil
	}
	return money.NormalizeCurrency(code)
}

// MonthlyRevenue sums the payments dated within the calendar month of month.
func (s *Service) MonthlyRevenue(ctx context.Context, businessID uuid.UUID, month time.Time) (Figure, error) {
	currency, err := s.ReportingCurrency(ctx, businessID)
	if err != nil {
		return Figure{}, err
	}
	return s.revenueIn(ctx, businessID, MonthWindow(month), currency)
}

func (s *Service) revenueIn(ctx context.Context, businessID uuid.UUID, w Window, currency string) (Figure, error) {
	totals, err := s.repo.PaymentTotals(ctx, businessID, w)
	if err != nil {
		return Figure{}, err
	}
	return s.convertTotals(ctx, totals, currency), nil
}

// convertTotals converts each currency total. Totals that cannot be converted
// are left out and counted in Excluded.
func (s *Service) convertTotals(ctx context.Context, totals []CurrencyTotal, currency string) Figure {
	fig := Figure{Value: decimal.Zero, Currency: currency}
	sum := money.Zero(currency)
	for _, t := range totals {
		converted, err := s.convert(ctx, t, currency)
		if err == nil {
			sum, err = sum.Add(converted)
		}
		if err != nil {
			fig.Partial = true
			fig.Excluded += t.Count
			s.logger.WarnContext(ctx, "metrics: excluding unconvertible amount",
				slog.String("currency", t.Currency),
				slog.String("target", currency),
				slog.Int("payments", t.Count),
				slog.Any("error", err))
			continue
		}
	}
	fig.Value = sum.Amount()
	return fig
}

func (s *Service) convert(ctx context.Context, t CurrencyTotal, currency string) (money.Money, error) {
	m, err := money.New(t.Amount, t.Currency)
	if err != nil {
		return money.Money{}, err
	}
	return s.converter.Convert(ctx, m, currency)
}

// CustomerCount counts every customer of the business.
func (s *Service) CustomerCount(ctx context.Context, businessID uuid.UUID) (int, error) {
	return s.repo.CountCustomers(ctx, businessID, nil)
}

// CustomersThisMonth counts customers created in the current calendar month.
func (s *Service) CustomersThisMonth(ctx context.Context, businessID uuid.UUID) (int, error) {
	w := MonthWindow(s.now())
	return s.repo.CountCustomers(ctx, businessID, &w)
}

// LastMonthCustomers counts customers created in the previous calendar month.
func (s *Service) LastMonthCustomers(ctx context.Context, businessID uuid.UUID) (int, error) {
	w := MonthWindow(MonthWindow(s.now()).From.AddDate(0, -1, 0))
	return s.repo.CountCustomers(ctx, businessID, &w)
}

// RevenueSeries returns monthly revenue for the trailing monthsBack months
// including the current one, oldest first.
func (s *Service) RevenueSeries(ctx context.Context, businessID uuid.UUID, monthsBack int) ([]SeriesPoint, error) {
	currency, err := s.ReportingCurrency(ctx, businessID)
	if err != nil {
		return nil, err
	}
	return s.revenueSeries(ctx, businessID, monthsBack, currency)
}

func (s *Service) revenueSeries(ctx context.Context, businessID uuid.UUID, monthsBack int, currency string) ([]SeriesPoint, error) {
	if monthsBack <= 0 {
		monthsBack = DefaultSeriesMonths
	}
	current := MonthWindow(s.now())
	w := Window{From: current.From.AddDate(0, -(monthsBack - 1), 0), To: current.To}

	totals, err := s.repo.PaymentTotals(ctx, businessID, w)
	if err != nil {
		return nil, err
	}
	byMonth := make(map[time.Time][]CurrencyTotal, monthsBack)
	for _, t := range totals {
		key := MonthWindow(t.Month).From
		byMonth[key] = append(byMonth[key], t)
	}

	points := make([]SeriesPoint, 0, monthsBack)
	for i := 0; i < monthsBack; i++ {
		month := w.From.AddDate(0, i, 0)
		fig := s.convertTotals(ctx, byMonth[month], currency)
		points = append(points, SeriesPoint{
			Label:   month.Format(seriesLabelLayout),
			Month:   month,
			Value:   fig.Value,
			Partial: fig.Partial,
		})
	}
	return points, nil
}

// RecentActivities merges the newest customers, invoices and payments into one
// feed, newest first.
func (s *Service) RecentActivities(ctx context.Context, businessID uuid.UUID, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	merged, err := s.loadActivities(ctx, ActivityFilter{BusinessID: businessID, Limit: limit}, "")
	if err != nil {
		return nil, err
	}
	return pageActivities(merged, 0, limit), nil
}

func (s *Service) loadActivities(ctx context.Context, f ActivityFilter, only ActivityType) ([]Activity, error) {
	var customers, invoices, payments []Activity
	g, gctx := errgroup.WithContext(ctx)
	if only == "" || only == ActivityCustomerAdded {
		g.Go(func() error {
			rows, err := s.repo.RecentCustomers(gctx, f)
			customers = customerActivities(rows)
			return err
		})
	}
	if only == "" || only == ActivityInvoiceCreated {
		g.Go(func() error {
			rows, err := s.repo.RecentInvoices(gctx, f)
			invoices = invoiceActivities(rows)
			return err
		})
	}
	if only == "" || only == ActivityPaymentReceived {
		g.Go(func() error {
			rows, err := s.repo.RecentPayments(gctx, f)
			payments = paymentActivities(rows)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return mergeActivities(customers, invoices, payments), nil
}

// ActivityFeed returns one page of the filtered activity feed. From and To
// are inclusive calendar days.
func (s *Service) ActivityFeed(ctx context.Context, q ActivityQuery) (ActivityPage, error) {
	if q.Type != "" && !q.Type.Valid() {
		return ActivityPage{}, fmt.Errorf("%w: %q", ErrInvalidActivityType, q.Type)
	}
	page, perPage := shared.NormalizePage(q.Page, q.PerPage, defaultActivityPerPage, maxPerPage)
	from, to := dayRange(q.From, q.To)
	f := ActivityFilter{
		BusinessID: q.BusinessID,
		Search:     q.Search,
		From:       from,
		To:         to,
		Limit:      page * perPage,
	}

	counts, err := s.repo.CountActivities(ctx, f)
	if err != nil {
		return ActivityPage{}, err
	}
	merged, err := s.loadActivities(ctx, f, q.Type)
	if err != nil {
		return ActivityPage{}, err
	}

	total := counts.Customers + counts.Invoices + counts.Payments
	switch q.Type {
	case ActivityCustomerAdded:
		total = counts.Customers
	case ActivityInvoiceCreated:
		total = counts.Invoices
	case ActivityPaymentReceived:
		total = counts.Payments
	}
	pagination := shared.NewPagination(page, perPage, total)
	out := ActivityPage{
		Activities: pageActivities(merged, pagination.Offset(), perPage),
		Pagination: pagination,
	}
	if pagination.HasNext() {
		next := page + 1
		out.NextPage = &next
	}
	return out, nil
}

// Transactions lists payments newest first.
func (s *Service) Transactions(ctx context.Context, q TransactionQuery) (TransactionPage, error) {
	page, perPage := shared.NormalizePage(q.Page, q.PerPage, defaultTransactionPerPage, maxPerPage)
	q.From, q.To = dayRange(q.From, q.To)

	total, err := s.repo.CountTransactions(ctx, q)
	if err != nil {
		return TransactionPage{}, err
	}
	pagination := shared.NewPagination(page, perPage, total)
	rows, err := s.repo.ListTransactions(ctx, q, perPage, pagination.Offset())
	if err != nil {
		return TransactionPage{}, err
	}
	return TransactionPage{Transactions: rows, Pagination: pagination}, nil
}

// dayRange turns inclusive calendar days into a half-open time range.
func dayRange(from, to *time.Time) (*time.Time, *time.Time) {
	var f, t *time.Time
	if from != nil {
		d := invoicing.DateOnly(*from)
		f = &d
	}
	if to != nil {
		d := invoicing.DateOnly(*to).AddDate(0, 0, 1)
		t = &d
	}
	return f, t
}

// Dashboard returns the business overview, served from cache when fresh.
// Concurrent callers for the same business share one computation.
func (s *Service) Dashboard(ctx context.Context, businessID uuid.UUID) (Dashboard, error) {
	if s.cache == nil {
		return s.buildDashboard(ctx, businessID)
	}
	key, err := s.dashboardKey(ctx, businessID)
	if err != nil {
		s.logger.WarnContext(ctx, "metrics: dashboard cache unavailable", slog.Any("error", err))
		return s.buildDashboard(ctx, businessID)
	}

	resultChan := s.flight.DoChan(key, func() (any, error) {
		var d Dashboard
		err := s.cache.FetchJSON(ctx, "dashboard", key, &d, func(ctx context.Context) (any, error) {
			return s.buildDashboard(ctx, businessID)
		})
		return d, err
	})
	select {
	case <-ctx.Done():
		return Dashboard{}, ctx.Err()
	case res := <-resultChan:
		if res.Err == nil {
			return res.Val.(Dashboard), nil
		}
		if errors.Is(res.Err, ErrNotFound) || ctx.Err() != nil {
			return Dashboard{}, res.Err
		}
		s.logger.WarnContext(ctx, "metrics: dashboard cache failed", slog.Any("error", res.Err))
		return s.buildDashboard(ctx, businessID)
	}
}

// Refresh recomputes the dashboard and stores it in the cache unless a
// figure came back degraded.
func (s *Service) Refresh(ctx context.Context, businessID uuid.UUID) (Dashboard, error) {
	d, err := s.buildDashboard(ctx, businessID)
	if err != nil || s.cache == nil || !d.Cacheable() {
		return d, err
	}
	key, err := s.dashboardKey(ctx, businessID)
	if err != nil {
		return d, err
	}
	return d, s.cache.Set(ctx, key, d)
}

// Invalidate drops every cached view of the business.
func (s *Service) Invalidate(ctx context.Context, businessID uuid.UUID) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Bump(ctx, businessID)
}

func (s *Service) dashboardKey(ctx context.Context, businessID uuid.UUID) (string, error) {
	return s.cache.BuildKey(ctx, businessID, "dashboard", s.now().Format("2006-01-02"))
}

func (s *Service) buildDashboard(ctx context.Context, businessID uuid.UUID) (Dashboard, error) {
	now := s.now()
	currency, err := s.ReportingCurrency(ctx, businessID)
	if err != nil {
		return Dashboard{}, err
	}
	thisMonth := MonthWindow(now)
	lastMonth := MonthWindow(thisMonth.From.AddDate(0, -1, 0))

	d := Dashboard{
		BusinessID:       businessID,
		Currency:         currency,
		Revenue:          Figure{Value: decimal.Zero, Currency: currency},
		RevenueData:      []SeriesPoint{},
		RecentActivities: []Activity{},
		GeneratedAt:      now,
	}
	var (
		mu            sync.Mutex
		lastCustomers int
	)
	degraded := map[string]bool{}
	previousRevenue := decimal.Zero

	g, gctx := errgroup.WithContext(ctx)
	run := func(figure string, fn func(context.Context) error) {
		g.Go(func() error {
			if err := fn(gctx); err != nil {
				mu.Lock()
				degraded[figure] = true
				mu.Unlock()
				s.logger.WarnContext(ctx, "metrics: dashboard figure degraded",
					slog.String("business_id", businessID.String()),
					slog.String("figure", figure),
					slog.Any("error", err))
			}
			return nil
		})
	}

	run("revenue", func(ctx context.Context) error {
		fig, err := s.revenueIn(ctx, businessID, thisMonth, currency)
		if err == nil {
			d.Revenue = fig
		}
		return err
	})
	run("revenue_last_month", func(ctx context.Context) error {
		fig, err := s.revenueIn(ctx, businessID, lastMonth, currency)
		if err == nil {
			previousRevenue = fig.Value
		}
		return err
	})
	run("total_customers", func(ctx context.Context) error {
		n, err := s.repo.CountCustomers(ctx, businessID, nil)
		d.TotalCustomers = n
		return err
	})
	run("customers_this_month", func(ctx context.Context) error {
		n, err := s.repo.CountCustomers(ctx, businessID, &thisMonth)
		d.CustomersThisMonth = n
		return err
	})
	run("customers_last_month", func(ctx context.Context) error {
		n, err := s.repo.CountCustomers(ctx, businessID, &lastMonth)
		lastCustomers = n
		return err
	})
	run("revenue_data", func(ctx context.Context) error {
		points, err := s.revenueSeries(ctx, businessID, DefaultSeriesMonths, currency)
		if err == nil {
			d.RevenueData = points
		}
		return err
	})
	run("recent_activities", func(ctx context.Context) error {
		merged, err := s.loadActivities(ctx, ActivityFilter{BusinessID: businessID, Limit: DefaultActivityLimit}, "")
		if err == nil {
			d.RecentActivities = pageActivities(merged, 0, DefaultActivityLimit)
		}
		return err
	})
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return Dashboard{}, err
	}

	d.RevenueTrend = NewTrend(d.Revenue.Value, previousRevenue)
	if degraded["revenue"] || degraded["revenue_last_month"] {
		degraded["revenue_trend"] = true
	}
	d.CustomerTrend = CountTrend(d.CustomersThisMonth, lastCustomers)
	if degraded["customers_this_month"] || degraded["customers_last_month"] {
		degraded["customer_trend"] = true
	}
	for figure := range degraded {
		d.Degraded = append(d.Degraded, figure)
	}
	sort.Strings(d.Degraded)
	return d, nil
}
