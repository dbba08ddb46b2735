package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when the business does not exist.
var ErrNotFound = errors.New("metrics: not found")

// Repository exposes the read queries behind the dashboard. Every figure is
// one query over the whole business.
type Repository interface {
	BusinessCurrency(ctx context.Context, businessID uuid.UUID) (string, error)
	// PaymentTotals sums payments dated within w, grouped by month and currency.
	PaymentTotals(ctx context.Context, businessID uuid.UUID, w Window) ([]CurrencyTotal, error)
	// CountCustomers counts customers created within w, or all when w is nil.
	CountCustomers(ctx context.Context, businessID uuid.UUID, w *Window) (int, error)
	RecentCustomers(ctx context.Context, f ActivityFilter) ([]CustomerRow, error)
	RecentInvoices(ctx context.Context, f ActivityFilter) ([]InvoiceRow, error)
	RecentPayments(ctx context.Context, f ActivityFilter) ([]PaymentRow, error)
	CountActivities(ctx context.Context, f ActivityFilter) (ActivityCounts, error)
	CountTransactions(ctx context.Context, q TransactionQuery) (int, error)
	ListTransactions(ctx context.Context, q TransactionQuery, limit, offset int) ([]Transaction, error)
	// ActiveBusinesses lists businesses with ledger changes since the given time.
	ActiveBusinesses(ctx context.Context, since time.Time) ([]uuid.UUID, error)
}
