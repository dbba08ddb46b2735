// Package metrics builds read-only business dashboards from the invoice ledger.
package metrics

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizbilling/internal/money"
	"github.com/odyssey-erp/bizbilling/internal/shared"
)

// Figure is a monetary rollup in the reporting currency. Partial is set when
// some source amounts could not be converted and were left out.
type Figure struct {
	Value    decimal.Decimal `json:"value"`
	Currency string          `json:"currency"`
	Partial  bool            `json:"partial"`
	Excluded int             `json:"excluded"`
}

// Window is a half-open time range [From, To).
type Window struct {
	From time.Time
	To   time.Time
}

// MonthWindow returns the calendar month containing t, in UTC.
func MonthWindow(t time.Time) Window {
	t = t.UTC()
	from := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Window{From: from, To: from.AddDate(0, 1, 0)}
}

// CurrencyTotal is the sum of payments in one currency within a window.
type CurrencyTotal struct {
	Month    time.Time
	Currency string
	Amount   decimal.Decimal
	Count    int
}

// SeriesPoint is one month of the revenue chart.
type SeriesPoint struct {
	Label   string          `json:"name"`
	Month   time.Time       `json:"month"`
	Value   decimal.Decimal `json:"value"`
	Partial bool            `json:"partial,omitempty"`
}

// ActivityType names a feed entry kind.
type ActivityType string

const (
	ActivityCustomerAdded   ActivityType = "customer_added"
	ActivityInvoiceCreated  ActivityType = "invoice_created"
	ActivityPaymentReceived ActivityType = "payment_received"
)

// Valid reports whether t is a known activity type.
func (t ActivityType) Valid() bool {
	switch t {
	case ActivityCustomerAdded, ActivityInvoiceCreated, ActivityPaymentReceived:
		return true
	}
	return false
}

// Activity is one entry of the recent activity feed.
type Activity struct {
	Type     ActivityType     `json:"type"`
	Title    string           `json:"title"`
	Time     time.Time        `json:"time"`
	Amount   *decimal.Decimal `json:"amount"`
	Currency *string          `json:"currency"`
}

// CustomerRow is a customer creation record.
type CustomerRow struct {
	Name      string
	CreatedAt time.Time
}

// InvoiceRow is an invoice creation record joined with its customer.
type InvoiceRow struct {
	Number       string
	CustomerName string
	Amount       money.Money
	CreatedAt    time.Time
}

// PaymentRow is a payment record joined with its invoice and customer.
type PaymentRow struct {
	InvoiceNumber string
	CustomerName  string
	Amount        money.Money
	CreatedAt     time.Time
}

// ActivityFilter narrows the activity sources. Zero fields do not filter.
type ActivityFilter struct {
	BusinessID uuid.UUID
	Search     string
	From       *time.Time
	To         *time.Time
	Limit      int
}

// ActivityCounts holds per-source totals for a filter.
type ActivityCounts struct {
	Customers int
	Invoices  int
	Payments  int
}

// ActivityQuery requests one page of the filtered activity feed.
type ActivityQuery struct {
	BusinessID uuid.UUID
	Type       ActivityType
	Search     string
	From       *time.Time
	To         *time.Time
	Page       int
	PerPage    int
}

// ActivityPage is one page of the feed.
type ActivityPage struct {
	Activities []Activity        `json:"activities"`
	Pagination shared.Pagination `json:"pagination"`
	NextPage   *int              `json:"next_page"`
}

// Transaction is a payment listing row.
type Transaction struct {
	ID            uuid.UUID   `json:"id"`
	InvoiceID     uuid.UUID   `json:"invoice_id"`
	InvoiceNumber string      `json:"invoice_number"`
	CustomerID    uuid.UUID   `json:"customer_id"`
	CustomerName  string      `json:"customer_name"`
	Amount        money.Money `json:"amount"`
	Method        string      `json:"payment_method"`
	PaymentDate   time.Time   `json:"payment_date"`
	Notes         string      `json:"notes,omitempty"`
}

// TransactionQuery filters the payment listing.
type TransactionQuery struct {
	BusinessID uuid.UUID
	CustomerID *uuid.UUID
	Search     string
	From       *time.Time
	To         *time.Time
	Page       int
	PerPage    int
}

// TransactionPage is one page of payments ordered by payment date, newest first.
type TransactionPage struct {
	Transactions []Transaction     `json:"transactions"`
	Pagination   shared.Pagination `json:"pagination"`
}

// Dashboard is the business overview. Degraded names the figures that could
// not be computed; their values are zero.
type Dashboard struct {
	BusinessID         uuid.UUID     `json:"business_id"`
	Currency           string        `json:"currency"`
	Revenue            Figure        `json:"revenue"`
	RevenueTrend       Trend         `json:"revenue_trend"`
	TotalCustomers     int           `json:"total_customers"`
	CustomersThisMonth int           `json:"customers_this_month"`
	CustomerTrend      Trend         `json:"customer_trend"`
	RevenueData        []SeriesPoint `json:"revenueData"`
	RecentActivities   []Activity    `json:"recent_activities"`
	Degraded           []string      `json:"degraded,omitempty"`
	GeneratedAt        time.Time     `json:"generated_at"`
}

// Cacheable reports whether every figure was computed in full. Degraded or
// partially converted dashboards are served once and never stored.
func (d Dashboard) Cacheable() bool {
	if len(d.Degraded) > 0 || d.Revenue.Partial {
		return false
	}
	for _, p := range d.RevenueData {
		if p.Partial {
			return false
		}
	}
	return true
}
