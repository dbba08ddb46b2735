package invoicing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/bizbilling/internal/money"
)

// RepositoryPort defines data access for invoices and their collaborators.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error)
	ListCustomerInvoices(ctx context.Context, businessID, customerID uuid.UUID) ([]Invoice, error)
	GetCustomer(ctx context.Context, businessID, customerID uuid.UUID) (*Customer, error)
	GetBusiness(ctx context.Context, id uuid.UUID) (*Business, error)
}

// TxRepository is the transactional subset used by mutating operations.
type TxRepository interface {
	InsertInvoice(ctx context.Context, inv *Invoice) error
	InsertItems(ctx context.Context, items []Item) error
	// LockInvoice returns the invoice header and holds its row lock until the transaction ends.
	LockInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error)
	FindPaymentByIdempotencyKey(ctx context.Context, invoiceID uuid.UUID, key string) (*Payment, error)
	InsertPayment(ctx context.Context, payment *Payment) error
	SumPayments(ctx context.Context, invoiceID uuid.UUID, currency string) (money.Money, error)
	UpdateInvoiceState(ctx context.Context, state InvoiceState) error
}

// InvoiceState is the mutable part of an invoice header.
type InvoiceState struct {
	ID         uuid.UUID
	PaidAmount money.Money
	Status     Status
	SentAt     *time.Time
	UpdatedAt  time.Time
}

// State extracts the mutable header fields of inv.
func (inv *Invoice) State() InvoiceState {
	return InvoiceState{
		ID:         inv.ID,
		PaidAmount: inv.PaidAmount,
		Status:     inv.Status,
		SentAt:     inv.SentAt,
		UpdatedAt:  inv.UpdatedAt,
	}
}
