package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/bizbilling/internal/invoicing"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueNotifications carries customer facing mail.
	QueueNotifications = "notifications"

	// TaskInvoiceSendEmail delivers a sent invoice to its customer.
	TaskInvoiceSendEmail = "invoice:send_email"
	// TaskPaymentSendReceipt delivers a payment receipt.
	TaskPaymentSendReceipt = "payment:send_receipt"
	// TaskMetricsWarmup recomputes dashboards for recently active businesses.
	TaskMetricsWarmup = "metrics:warmup"

	notificationMaxRetry = 5
)

// InvoiceEmailPayload is the committed invoice to deliver.
type InvoiceEmailPayload struct {
	BusinessID uuid.UUID          `json:"business_id"`
	InvoiceID  uuid.UUID          `json:"invoice_id"`
	Snapshot   invoicing.Snapshot `json:"snapshot"`
	OccurredAt time.Time          `json:"occurred_at"`
}

// PaymentReceiptPayload is a committed payment and the invoice state after it.
type PaymentReceiptPayload struct {
	BusinessID uuid.UUID          `json:"business_id"`
	InvoiceID  uuid.UUID          `json:"invoice_id"`
	Payment    invoicing.Payment  `json:"payment"`
	Snapshot   invoicing.Snapshot `json:"snapshot"`
	OccurredAt time.Time          `json:"occurred_at"`
}

// MetricsWarmupPayload bounds which businesses are warmed.
type MetricsWarmupPayload struct {
	// LookbackMinutes selects businesses with ledger changes in that window.
	LookbackMinutes int `json:"lookback_minutes"`
}

// NewInvoiceEmailTask constructs an Asynq task.
func NewInvoiceEmailTask(payload InvoiceEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInvoiceSendEmail, data), nil
}

// NewPaymentReceiptTask constructs an Asynq task.
func NewPaymentReceiptTask(payload PaymentReceiptPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentSendReceipt, data), nil
}

// NewMetricsWarmupTask constructs an Asynq task.
func NewMetricsWarmupTask(payload MetricsWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMetricsWarmup, data), nil
}
