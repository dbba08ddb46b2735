package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/bizbilling/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Mailer delivers customer notifications. Templating and transport live behind it.
type Mailer interface {
	SendInvoice(ctx context.Context, payload InvoiceEmailPayload) error
	SendReceipt(ctx context.Context, payload PaymentReceiptPayload) error
}

// LogMailer records notifications instead of sending them.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

func (m LogMailer) SendInvoice(ctx context.Context, p InvoiceEmailPayload) error {
	m.logger().InfoContext(ctx, "invoice email",
		slog.String("invoice_number", p.Snapshot.Invoice.Number),
		slog.String("to", p.Snapshot.Customer.Email),
		slog.String("amount", p.Snapshot.Invoice.Amount.Format(nil)),
		slog.String("status", string(p.Snapshot.Status.Status)))
	return nil
}

func (m LogMailer) SendReceipt(ctx context.Context, p PaymentReceiptPayload) error {
	m.logger().InfoContext(ctx, "payment receipt",
		slog.String("invoice_number", p.Snapshot.Invoice.Number),
		slog.String("to", p.Snapshot.Customer.Email),
		slog.String("amount", p.Payment.Amount.Format(nil)),
		slog.String("remaining", p.Snapshot.Status.RemainingAmount.Format(nil)))
	return nil
}

// NotificationJob hands decoded notification tasks to a Mailer.
type NotificationJob struct {
	Mailer  Mailer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewNotificationJob wires dependencies for the notification handlers.
func NewNotificationJob(mailer Mailer, logger *slog.Logger, metrics *jobmetrics.Metrics) *NotificationJob {
	return &NotificationJob{Mailer: mailer, Logger: logger, Metrics: metrics}
}

// HandleInvoiceEmail processes TaskInvoiceSendEmail tasks.
func (j *NotificationJob) HandleInvoiceEmail(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Mailer == nil {
		return errors.New("notifications: mailer not configured")
	}
	var payload InvoiceEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		j.logger().Warn("discarding undecodable task", slog.String("type", t.Type()), slog.Any("error", err))
		return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	tracker := j.metrics().Track(TaskInvoiceSendEmail)
	defer func() { err = tracker.End(err) }()

	return j.Mailer.SendInvoice(ctx, payload)
}

// HandlePaymentReceipt processes TaskPaymentSendReceipt tasks.
func (j *NotificationJob) HandlePaymentReceipt(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Mailer == nil {
		return errors.New("notifications: mailer not configured")
	}
	var payload PaymentReceiptPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		j.logger().Warn("discarding undecodable task", slog.String("type", t.Type()), slog.Any("error", err))
		return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	tracker := j.metrics().Track(TaskPaymentSendReceipt)
	defer func() { err = tracker.End(err) }()

	return j.Mailer.SendReceipt(ctx, payload)
}

func (j *NotificationJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", "notifications"))
	}
	return slog.Default().With(slog.String("job", "notifications"))
}

func (j *NotificationJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
