package invoicing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizbilling/internal/money"
)

// Status enumerates invoice statuses, both stored intent and effective.
type Status string

const (
	StatusDraft         Status = "draft"
	StatusSent          Status = "sent"
	StatusPaid          Status = "paid"
	StatusPartiallyPaid Status = "partially_paid"
	StatusOverdue       Status = "overdue"
	StatusCancelled     Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusPaid, StatusPartiallyPaid, StatusOverdue, StatusCancelled:
		return true
	}
	return false
}

// PaymentMethod enumerates accepted payment channels.
type PaymentMethod string

const (
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCard         PaymentMethod = "card"
	MethodCash         PaymentMethod = "cash"
	MethodOther        PaymentMethod = "other"
)

// Valid reports whether m is an accepted method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodBankTransfer, MethodCard, MethodCash, MethodOther:
		return true
	}
	return false
}

// Item is an immutable invoice line.
type Item struct {
	ID          uuid.UUID       `json:"id"`
	InvoiceID   uuid.UUID       `json:"invoice_id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   money.Money     `json:"unit_price"`
	Amount      money.Money     `json:"amount"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Payment is an immutable ledger entry against an invoice.
type Payment struct {
	ID             uuid.UUID     `json:"id"`
	InvoiceID      uuid.UUID     `json:"invoice_id"`
	Amount         money.Money   `json:"amount"`
	Method         PaymentMethod `json:"payment_method"`
	PaymentDate    time.Time     `json:"payment_date"`
	Notes          string        `json:"notes,omitempty"`
	IdempotencyKey string        `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Invoice is the aggregate root. PaidAmount and a paid/partially_paid Status
// are caches written by reconciliation; read the effective status via Details.
type Invoice struct {
	ID                  uuid.UUID   `json:"id"`
	BusinessID          uuid.UUID   `json:"business_id"`
	CustomerID          uuid.UUID   `json:"customer_id"`
	Number              string      `json:"invoice_number"`
	Amount              money.Money `json:"amount"`
	Currency            string      `json:"currency"`
	PaidAmount          money.Money `json:"paid_amount"`
	DueDate             time.Time   `json:"due_date"`
	Status              Status      `json:"status"`
	SentAt              *time.Time  `json:"sent_at,omitempty"`
	PaymentReminderSent bool        `json:"payment_reminder_sent"`
	ThemeColor          string      `json:"theme_color,omitempty"`
	Notes               string      `json:"notes,omitempty"`
	Items               []Item      `json:"items,omitempty"`
	Payments            []Payment   `json:"payments,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// Customer is a read-only collaborator owned by a business.
type Customer struct {
	ID         uuid.UUID `json:"id"`
	BusinessID uuid.UUID `json:"business_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone,omitempty"`
	Address    string    `json:"address,omitempty"`
	Currency   string    `json:"currency"`
	CreatedAt  time.Time `json:"created_at"`
}

// Business is the issuing party.
type Business struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	Address      string    `json:"address,omitempty"`
	BaseCurrency string    `json:"base_currency"`
}

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
