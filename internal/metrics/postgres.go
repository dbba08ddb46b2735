package metrics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizbilling/internal/money"
)

// Querier is the read surface of a pgx pool.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository implements Repository on the billing tables.
type PostgresRepository struct {
	q Querier
}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(q Querier) *PostgresRepository {
	return &PostgresRepository{q: q}
}

func (r *PostgresRepository) BusinessCurrency(ctx context.Context, businessID uuid.UUID) (string, error) {
	var code string
	err := r.q.QueryRow(ctx, `SELECT COALESCE(base_currency, '') FROM business_profiles WHERE id = $1`, businessID).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("metrics: business currency: %w", err)
	}
	return code, nil
}

func (r *PostgresRepository) PaymentTotals(ctx context.Context, businessID uuid.UUID, w Window) ([]CurrencyTotal, error) {
	query := `
		SELECT date_trunc('month', p.payment_date AT TIME ZONE 'UTC'), p.currency, SUM(p.amount)::text, COUNT(*)
		FROM business_invoice_payments p
		JOIN business_invoices i ON i.id = p.invoice_id
		WHERE i.business_id = $1 AND p.payment_date >= $2 AND p.payment_date < $3
		GROUP BY 1, 2
		ORDER BY 1, 2`

	rows, err := r.q.Query(ctx, query, businessID, w.From, w.To)
	if err != nil {
		return nil, fmt.Errorf("metrics: payment totals: %w", err)
	}
	defer rows.Close()

	var out []CurrencyTotal
	for rows.Next() {
		var (
			t      CurrencyTotal
			amount string
		)
		if err := rows.Scan(&t.Month, &t.Currency, &amount, &t.Count); err != nil {
			return nil, err
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("metrics: scan total: %w", err)
		}
		t.Month = t.Month.UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) CountCustomers(ctx context.Context, businessID uuid.UUID, w *Window) (int, error) {
	query := `SELECT COUNT(*) FROM business_customers WHERE business_id = $1`
	args := []any{businessID}
	if w != nil {
		query += ` AND created_at >= $2 AND created_at < $3`
		args = append(args, w.From, w.To)
	}
	var n int
	if err := r.q.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("metrics: count customers: %w", err)
	}
	return n, nil
}

// activityBinds holds the positional parameters shared by every activity
// source so one argument list serves all of them.
type activityBinds struct {
	args   []any
	from   string
	to     string
	search string
}

func bindActivityFilter(f ActivityFilter) activityBinds {
	b := activityBinds{args: []any{f.BusinessID}}
	if f.From != nil {
		b.args = append(b.args, *f.From)
		b.from = fmt.Sprintf("$%d", len(b.args))
	}
	if f.To != nil {
		b.args = append(b.args, *f.To)
		b.to = fmt.Sprintf("$%d", len(b.args))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		b.args = append(b.args, "%"+s+"%")
		b.search = fmt.Sprintf("$%d", len(b.args))
	}
	return b
}

// where renders the predicate for one source; $1 is always the business id.
func (b activityBinds) where(businessCol, timeCol string, searchCols ...string) string {
	parts := []string{businessCol + " = $1"}
	if b.from != "" {
		parts = append(parts, timeCol+" >= "+b.from)
	}
	if b.to != "" {
		parts = append(parts, timeCol+" < "+b.to)
	}
	if b.search != "" && len(searchCols) > 0 {
		ors := make([]string, len(searchCols))
		for i, col := range searchCols {
			ors[i] = col + " ILIKE " + b.search
		}
		parts = append(parts, "("+strings.Join(ors, " OR ")+")")
	}
	return "WHERE " + strings.Join(parts, " AND ")
}

// limit appends the row limit and returns its placeholder.
func (b activityBinds) limit(n int) ([]any, string) {
	args := append(append([]any{}, b.args...), n)
	return args, fmt.Sprintf("$%d", len(args))
}

const (
	customerSource = `FROM business_customers c`
	invoiceSource  = `FROM business_invoices i JOIN business_customers c ON c.id = i.customer_id`
	paymentSource  = `FROM business_invoice_payments p
		JOIN business_invoices i ON i.id = p.invoice_id
		JOIN business_customers c ON c.id = i.customer_id`
)

func (r *PostgresRepository) RecentCustomers(ctx context.Context, f ActivityFilter) ([]CustomerRow, error) {
	b := bindActivityFilter(f)
	args, lim := b.limit(f.Limit)
	query := fmt.Sprintf(`SELECT c.name, c.created_at %s %s ORDER BY c.created_at DESC, c.id DESC LIMIT %s`,
		customerSource, b.where("c.business_id", "c.created_at", "c.name"), lim)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("metrics: recent customers: %w", err)
	}
	defer rows.Close()

	var out []CustomerRow
	for rows.Next() {
		var c CustomerRow
		if err := rows.Scan(&c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) RecentInvoices(ctx context.Context, f ActivityFilter) ([]InvoiceRow, error) {
	b := bindActivityFilter(f)
	args, lim := b.limit(f.Limit)
	query := fmt.Sprintf(`SELECT i.invoice_number, c.name, i.amount::text, i.currency, i.created_at %s %s
		ORDER BY i.created_at DESC, i.id DESC LIMIT %s`,
		invoiceSource, b.where("i.business_id", "i.created_at", "i.invoice_number", "c.name"), lim)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("metrics: recent invoices: %w", err)
	}
	defer rows.Close()

	var out []InvoiceRow
	for rows.Next() {
		var (
			row          InvoiceRow
			amount, code string
		)
		if err := rows.Scan(&row.Number, &row.CustomerName, &amount, &code, &row.CreatedAt); err != nil {
			return nil, err
		}
		if row.Amount, err = money.Parse(amount, code); err != nil {
			return nil, fmt.Errorf("metrics: scan invoice amount: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) RecentPayments(ctx context.Context, f ActivityFilter) ([]PaymentRow, error) {
	b := bindActivityFilter(f)
	args, lim := b.limit(f.Limit)
	query := fmt.Sprintf(`SELECT i.invoice_number, c.name, p.amount::text, p.currency, p.created_at %s %s
		ORDER BY p.created_at DESC, p.id DESC LIMIT %s`,
		paymentSource, b.where("i.business_id", "p.created_at", "i.invoice_number", "c.name"), lim)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("metrics: recent payments: %w", err)
	}
	defer rows.Close()

	var out []PaymentRow
	for rows.Next() {
		var (
			row          PaymentRow
			amount, code string
		)
		if err := rows.Scan(&row.InvoiceNumber, &row.CustomerName, &amount, &code, &row.CreatedAt); err != nil {
			return nil, err
		}
		if row.Amount, err = money.Parse(amount, code); err != nil {
			return nil, fmt.Errorf("metrics: scan payment amount: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) CountActivities(ctx context.Context, f ActivityFilter) (ActivityCounts, error) {
	b := bindActivityFilter(f)
	query := fmt.Sprintf(`SELECT
		(SELECT COUNT(*) %s %s),
		(SELECT COUNT(*) %s %s),
		(SELECT COUNT(*) %s %s)`,
		customerSource, b.where("c.business_id", "c.created_at", "c.name"),
		invoiceSource, b.where("i.business_id", "i.created_at", "i.invoice_number", "c.name"),
		paymentSource, b.where("i.business_id", "p.created_at", "i.invoice_number", "c.name"))

	var c ActivityCounts
	if err := r.q.QueryRow(ctx, query, b.args...).Scan(&c.Customers, &c.Invoices, &c.Payments); err != nil {
		return ActivityCounts{}, fmt.Errorf("metrics: count activities: %w", err)
	}
	return c, nil
}

func transactionWhere(q TransactionQuery) (string, []any) {
	b := bindActivityFilter(ActivityFilter{BusinessID: q.BusinessID, Search: q.Search, From: q.From, To: q.To})
	where := b.where("i.business_id", "p.payment_date", "i.invoice_number", "c.name", "p.notes")
	args := b.args
	if q.CustomerID != nil {
		args = append(args, *q.CustomerID)
		where += fmt.Sprintf(" AND i.customer_id = $%d", len(args))
	}
	return where, args
}

func (r *PostgresRepository) CountTransactions(ctx context.Context, q TransactionQuery) (int, error) {
	where, args := transactionWhere(q)
	var n int
	if err := r.q.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) %s %s`, paymentSource, where), args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("metrics: count transactions: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) ListTransactions(ctx context.Context, q TransactionQuery, limit, offset int) ([]Transaction, error) {
	where, args := transactionWhere(q)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT p.id, p.invoice_id, i.invoice_number, c.id, c.name, p.amount::text, p.currency,
			p.payment_method, p.payment_date, COALESCE(p.notes, '')
		%s %s
		ORDER BY p.payment_date DESC, p.created_at DESC
		LIMIT $%d OFFSET $%d`, paymentSource, where, len(args)-1, len(args))

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("metrics: list transactions: %w", err)
	}
	defer rows.Close()

	out := []Transaction{}
	for rows.Next() {
		var (
			t            Transaction
			amount, code string
		)
		if err := rows.Scan(&t.ID, &t.InvoiceID, &t.InvoiceNumber, &t.CustomerID, &t.CustomerName,
			&amount, &code, &t.Method, &t.PaymentDate, &t.Notes); err != nil {
			return nil, err
		}
		if t.Amount, err = money.Parse(amount, code); err != nil {
			return nil, fmt.Errorf("metrics: scan transaction amount: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) ActiveBusinesses(ctx context.Context, since time.Time) ([]uuid.UUID, error) {
	query := `
		SELECT business_id FROM business_invoices WHERE updated_at >= $1
		UNION
		SELECT business_id FROM business_customers WHERE created_at >= $1`

	rows, err := r.q.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("metrics: active businesses: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
