package invoicing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizbilling/internal/money"
	"github.com/odyssey-erp/bizbilling/internal/platform/db"
)

const invoiceNumberConstraint = "business_invoices_business_number_key"

// DBTX is the query surface shared by pools and transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool is a DBTX that can open transactions.
type Pool interface {
	DBTX
	db.Beginner
}

// Repository provides PostgreSQL backed persistence for invoices.
type Repository struct {
	pool Pool
}

// NewRepository constructs a repository.
func NewRepository(pool Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside a read-committed transaction. Transient lock and
// serialization failures surface as ErrConcurrencyConflict.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	err := db.WithTx(ctx, r.pool, db.ReadCommitted, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SET LOCAL lock_timeout = '5s'"); err != nil {
			return err
		}
		return fn(ctx, &txRepository{q: tx})
	})
	return mapError(err)
}

// GetInvoice loads an invoice with its items and payments.
func (r *Repository) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx, selectInvoiceSQL+" WHERE id = $1", id))
	if err != nil {
		return nil, mapError(err)
	}
	items, err := listItems(ctx, r.pool, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	payments, err := listPayments(ctx, r.pool, id)
	if err != nil {
		return nil, err
	}
	inv.Items = items[id]
	inv.Payments = payments
	return inv, nil
}

// ListCustomerInvoices returns the customer's invoices, newest first, with items loaded in one batch.
func (r *Repository) ListCustomerInvoices(ctx context.Context, businessID, customerID uuid.UUID) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, selectInvoiceSQL+`
		WHERE business_id = $1 AND customer_id = $2
		ORDER BY created_at DESC`, businessID, customerID)
	if err != nil {
		return nil, fmt.Errorf("invoicing: list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []Invoice
	var ids []uuid.UUID
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
		ids = append(ids, inv.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return invoices, nil
	}

	items, err := listItems(ctx, r.pool, ids)
	if err != nil {
		return nil, err
	}
	for i := range invoices {
		invoices[i].Items = items[invoices[i].ID]
	}
	return invoices, nil
}

// GetCustomer returns a customer owned by the business.
func (r *Repository) GetCustomer(ctx context.Context, businessID, customerID uuid.UUID) (*Customer, error) {
	query := `
		SELECT id, business_id, name, email, COALESCE(phone, ''), COALESCE(address, ''), currency, created_at
		FROM business_customers
		WHERE business_id = $1 AND id = $2`

	var c Customer
	err := r.pool.QueryRow(ctx, query, businessID, customerID).Scan(
		&c.ID, &c.BusinessID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.Currency, &c.CreatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return &c, nil
}

// GetBusiness returns a business profile.
func (r *Repository) GetBusiness(ctx context.Context, id uuid.UUID) (*Business, error) {
	query := `
		SELECT id, name, email, COALESCE(phone, ''), COALESCE(address, ''), base_currency
		FROM business_profiles
		WHERE id = $1`

	var b Business
	err := r.pool.QueryRow(ctx, query, id).Scan(&b.ID, &b.Name, &b.Email, &b.Phone, &b.Address, &b.BaseCurrency)
	if err != nil {
		return nil, mapError(err)
	}
	return &b, nil
}

type txRepository struct {
	q DBTX
}

func (t *txRepository) InsertInvoice(ctx context.Context, inv *Invoice) error {
	query := `
		INSERT INTO business_invoices (
			id, business_id, customer_id, invoice_number, amount, currency, paid_amount,
			due_date, status, theme_color, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := t.q.Exec(ctx, query,
		inv.ID,
		inv.BusinessID,
		inv.CustomerID,
		inv.Number,
		inv.Amount.StringFixed(),
		inv.Currency,
		inv.PaidAmount.StringFixed(),
		inv.DueDate,
		string(inv.Status),
		nullableText(inv.ThemeColor),
		nullableText(inv.Notes),
		inv.CreatedAt,
		inv.UpdatedAt,
	)
	return mapError(err)
}

func (t *txRepository) InsertItems(ctx context.Context, items []Item) error {
	query := `
		INSERT INTO business_invoice_items (id, invoice_id, description, quantity, unit_price, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for _, it := range items {
		if _, err := t.q.Exec(ctx, query, it.ID, it.InvoiceID, it.Description, it.Quantity.String(),
			it.UnitPrice.StringFixed(), it.Amount.StringFixed(), it.CreatedAt); err != nil {
			return fmt.Errorf("invoicing: insert item: %w", mapError(err))
		}
	}
	return nil
}

func (t *txRepository) LockInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := scanInvoice(t.q.QueryRow(ctx, selectInvoiceSQL+" WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		return nil, mapError(err)
	}
	return inv, nil
}

func (t *txRepository) FindPaymentByIdempotencyKey(ctx context.Context, invoiceID uuid.UUID, key string) (*Payment, error) {
	row := t.q.QueryRow(ctx, selectPaymentSQL+" WHERE invoice_id = $1 AND idempotency_key = $2", invoiceID, key)
	p, err := scanPayment(row)
	if err != nil {
		return nil, mapError(err)
	}
	return p, nil
}

func (t *txRepository) InsertPayment(ctx context.Context, p *Payment) error {
	query := `
		INSERT INTO business_invoice_payments (
			id, invoice_id, amount, currency, payment_method, payment_date, notes, idempotency_key, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := t.q.Exec(ctx, query,
		p.ID,
		p.InvoiceID,
		p.Amount.StringFixed(),
		p.Amount.Currency(),
		string(p.Method),
		p.PaymentDate,
		nullableText(p.Notes),
		nullableText(p.IdempotencyKey),
		p.CreatedAt,
	)
	return mapError(err)
}

func (t *txRepository) SumPayments(ctx context.Context, invoiceID uuid.UUID, currency string) (money.Money, error) {
	var total string
	err := t.q.QueryRow(ctx,
		"SELECT COALESCE(SUM(amount), 0)::text FROM business_invoice_payments WHERE invoice_id = $1",
		invoiceID,
	).Scan(&total)
	if err != nil {
		return money.Money{}, mapError(err)
	}
	return money.Parse(total, currency)
}

func (t *txRepository) UpdateInvoiceState(ctx context.Context, s InvoiceState) error {
	query := `
		UPDATE business_invoices
		SET paid_amount = $2, status = $3, sent_at = $4, updated_at = $5
		WHERE id = $1`

	var sentAt pgtype.Timestamptz
	if s.SentAt != nil {
		sentAt = pgtype.Timestamptz{Time: *s.SentAt, Valid: true}
	}
	tag, err := t.q.Exec(ctx, query, s.ID, s.PaidAmount.StringFixed(), string(s.Status), sentAt, s.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const selectInvoiceSQL = `
		SELECT id, business_id, customer_id, invoice_number, amount::text, currency, paid_amount::text,
			due_date, status, sent_at, payment_reminder_sent, COALESCE(theme_color, ''), COALESCE(notes, ''),
			created_at, updated_at
		FROM business_invoices`

const selectPaymentSQL = `
		SELECT id, invoice_id, amount::text, currency, payment_method, payment_date,
			COALESCE(notes, ''), COALESCE(idempotency_key, ''), created_at
		FROM business_invoice_payments`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var (
		inv          Invoice
		amount, paid string
		status       string
		sentAt       pgtype.Timestamptz
	)
	err := row.Scan(
		&inv.ID, &inv.BusinessID, &inv.CustomerID, &inv.Number, &amount, &inv.Currency, &paid,
		&inv.DueDate, &status, &sentAt, &inv.PaymentReminderSent, &inv.ThemeColor, &inv.Notes,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if inv.Amount, err = money.Parse(amount, inv.Currency); err != nil {
		return nil, fmt.Errorf("invoicing: scan amount: %w", err)
	}
	if inv.PaidAmount, err = money.Parse(paid, inv.Currency); err != nil {
		return nil, fmt.Errorf("invoicing: scan paid amount: %w", err)
	}
	inv.Status = Status(status)
	inv.DueDate = DateOnly(inv.DueDate)
	if sentAt.Valid {
		t := sentAt.Time
		inv.SentAt = &t
	}
	return &inv, nil
}

func scanPayment(row pgx.Row) (*Payment, error) {
	var (
		p        Payment
		amount   string
		currency string
		method   string
	)
	err := row.Scan(&p.ID, &p.InvoiceID, &amount, &currency, &method, &p.PaymentDate,
		&p.Notes, &p.IdempotencyKey, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	if p.Amount, err = money.Parse(amount, currency); err != nil {
		return nil, fmt.Errorf("invoicing: scan payment amount: %w", err)
	}
	p.Method = PaymentMethod(method)
	return &p, nil
}

func listItems(ctx context.Context, q DBTX, invoiceIDs []uuid.UUID) (map[uuid.UUID][]Item, error) {
	query := `
		SELECT i.id, i.invoice_id, i.description, i.quantity::text, i.unit_price::text, i.amount::text,
			inv.currency, i.created_at
		FROM business_invoice_items i
		JOIN business_invoices inv ON inv.id = i.invoice_id
		WHERE i.invoice_id = ANY($1)
		ORDER BY i.created_at, i.id`

	rows, err := q.Query(ctx, query, invoiceIDs)
	if err != nil {
		return nil, fmt.Errorf("invoicing: list items: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]Item, len(invoiceIDs))
	for rows.Next() {
		var (
			it                      Item
			qty, unit, amount, code string
		)
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.Description, &qty, &unit, &amount, &code, &it.CreatedAt); err != nil {
			return nil, err
		}
		if it.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("invoicing: scan quantity: %w", err)
		}
		if it.UnitPrice, err = money.Parse(unit, code); err != nil {
			return nil, err
		}
		if it.Amount, err = money.Parse(amount, code); err != nil {
			return nil, err
		}
		out[it.InvoiceID] = append(out[it.InvoiceID], it)
	}
	return out, rows.Err()
}

func listPayments(ctx context.Context, q DBTX, invoiceID uuid.UUID) ([]Payment, error) {
	rows, err := q.Query(ctx, selectPaymentSQL+" WHERE invoice_id = $1 ORDER BY payment_date, created_at", invoiceID)
	if err != nil {
		return nil, fmt.Errorf("invoicing: list payments: %w", err)
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

func nullableText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNotFound
	case db.IsUniqueViolation(err, invoiceNumberConstraint):
		return fmt.Errorf("%w: %v", ErrDuplicateInvoiceNumber, err)
	case db.IsTransient(err):
		return fmt.Errorf("%w: %v", ErrConcurrencyConflict, err)
	}
	return err
}
