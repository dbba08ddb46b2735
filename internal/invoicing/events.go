package invoicing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// EventType names an outbound notification.
type EventType string

const (
	EventInvoiceCreated  EventType = "invoice.created"
	EventInvoiceSent     EventType = "invoice.sent"
	EventPaymentReceived EventType = "payment.received"
)

// Event is emitted after the change it describes has committed.
type Event struct {
	Type       EventType `json:"type"`
	BusinessID uuid.UUID `json:"business_id"`
	InvoiceID  uuid.UUID `json:"invoice_id"`
	Payment    *Payment  `json:"payment,omitempty"`
	Snapshot   *Snapshot `json:"snapshot,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher hands events to an external dispatcher. Implementations must not block on delivery.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, event Event) error

func (f PublisherFunc) Publish(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// MultiPublisher fans an event out to every publisher and joins their errors.
type MultiPublisher []Publisher

// NewMultiPublisher drops nil entries.
func NewMultiPublisher(publishers ...Publisher) MultiPublisher {
	out := make(MultiPublisher, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (m MultiPublisher) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }
