package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/bizbilling/internal/invoicing"
)

// Enqueuer submits tasks. asynq.Client satisfies it.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Publisher turns ledger events into notification tasks.
type Publisher struct {
	queue  Enqueuer
	logger *slog.Logger
}

// NewPublisher wires a Publisher on top of queue.
func NewPublisher(queue Enqueuer, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{queue: queue, logger: logger}
}

// Publish implements invoicing.Publisher. Events without a notification are ignored.
func (p *Publisher) Publish(ctx context.Context, event invoicing.Event) error {
	var (
		task   *asynq.Task
		taskID string
		err    error
	)
	switch event.Type {
	case invoicing.EventInvoiceSent:
		if event.Snapshot == nil {
			return fmt.Errorf("jobs: %s event without snapshot", event.Type)
		}
		task, err = NewInvoiceEmailTask(InvoiceEmailPayload{
			BusinessID: event.BusinessID,
			InvoiceID:  event.InvoiceID,
			Snapshot:   *event.Snapshot,
			OccurredAt: event.OccurredAt,
		})
		taskID = TaskInvoiceSendEmail + ":" + event.InvoiceID.String()
	case invoicing.EventPaymentReceived:
		if event.Snapshot == nil || event.Payment == nil {
			return fmt.Errorf("jobs: %s event without payment or snapshot", event.Type)
		}
		task, err = NewPaymentReceiptTask(PaymentReceiptPayload{
			BusinessID: event.BusinessID,
			InvoiceID:  event.InvoiceID,
			Payment:    *event.Payment,
			Snapshot:   *event.Snapshot,
			OccurredAt: event.OccurredAt,
		})
		taskID = TaskPaymentSendReceipt + ":" + event.Payment.ID.String()
	default:
		return nil
	}
	if err != nil {
		return err
	}

	info, err := p.queue.EnqueueContext(ctx, task,
		asynq.Queue(QueueNotifications),
		asynq.MaxRetry(notificationMaxRetry),
		asynq.TaskID(taskID),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		p.logger.Debug("notification already queued", slog.String("task_id", taskID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("jobs: enqueue %s: %w", task.Type(), err)
	}
	p.logger.Info("notification queued",
		slog.String("type", task.Type()),
		slog.String("task_id", info.ID),
		slog.String("invoice_id", event.InvoiceID.String()))
	return nil
}

var _ invoicing.Publisher = (*Publisher)(nil)
