package invoicing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/odyssey-erp/bizbilling/internal/money"
)

const (
	// DefaultMaxAttempts bounds reconciliation retries on lock or serialization conflicts.
	DefaultMaxAttempts = 4
	maxNumberAttempts  = 5
)

// Recorder receives reconciliation telemetry.
type Recorder interface {
	PaymentRecorded(method string)
	ReconcileRetry(op string)
	ReconcileConflict(op string)
}

type nopRecorder struct{}

func (nopRecorder) PaymentRecorded(string)   {}
func (nopRecorder) ReconcileRetry(string)    {}
func (nopRecorder) ReconcileConflict(string) {}

// ServiceConfig carries the service collaborators. Every field is optional.
type ServiceConfig struct {
	Publisher   Publisher
	Numbers     NumberGenerator
	Logger      *slog.Logger
	Recorder    Recorder
	MaxAttempts int
	// Backoff builds the retry schedule for one operation.
	Backoff func() backoff.BackOff
	Clock   func() time.Time
}

// Service implements the invoice lifecycle and payment reconciliation.
type Service struct {
	repo        RepositoryPort
	publisher   Publisher
	numbers     NumberGenerator
	logger      *slog.Logger
	recorder    Recorder
	maxAttempts int
	backoff     func() backoff.BackOff
	clock       func() time.Time
}

// NewService builds a Service.
func NewService(repo RepositoryPort, cfg ServiceConfig) *Service {
	s := &Service{
		repo:        repo,
		publisher:   cfg.Publisher,
		numbers:     cfg.Numbers,
		logger:      cfg.Logger,
		recorder:    cfg.Recorder,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		clock:       cfg.Clock,
	}
	if s.publisher == nil {
		s.publisher = nopPublisher{}
	}
	if s.numbers == nil {
		s.numbers = RandomNumberGenerator{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = DefaultMaxAttempts
	}
	if s.backoff == nil {
		s.backoff = defaultBackoff
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	return s
}

func defaultBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = 5 * time.Second
	b.Reset()
	return b
}

// CreateInvoice validates req and stores a new draft invoice with its items.
func (s *Service) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*Invoice, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	customer, err := s.repo.GetCustomer(ctx, req.BusinessID, req.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("invoicing: customer %s: %w", req.CustomerID, err)
	}
	if req.Currency == "" {
		req.Currency = customer.Currency
	}

	inv, err := NewInvoice(req, s.clock().UTC())
	if err != nil {
		return nil, err
	}

	explicit := inv.Number != ""
	for attempt := 1; ; attempt++ {
		if !explicit {
			if inv.Number, err = s.numbers.Next(); err != nil {
				return nil, err
			}
		}
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			if err := tx.InsertInvoice(ctx, inv); err != nil {
				return err
			}
			return tx.InsertItems(ctx, inv.Items)
		})
		if err == nil {
			break
		}
		if !errors.Is(err, ErrDuplicateInvoiceNumber) || explicit {
			return nil, err
		}
		if attempt >= maxNumberAttempts {
			return nil, fmt.Errorf("%w after %d attempts", ErrInvoiceNumberExhausted, attempt)
		}
		s.logger.Debug("invoice number collision", slog.String("number", inv.Number), slog.Int("attempt", attempt))
	}

	s.logger.Info("invoice created",
		slog.String("invoice_id", inv.ID.String()),
		slog.String("number", inv.Number),
		slog.String("amount", inv.Amount.String()),
	)
	s.publish(ctx, Event{Type: EventInvoiceCreated, BusinessID: inv.BusinessID, InvoiceID: inv.ID})
	return inv, nil
}

// SendInvoice moves a draft invoice to sent and emits invoice.sent with the rendering snapshot.
func (s *Service) SendInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.UpdateStatus(ctx, id, StatusSent)
}

// UpdateStatus applies an explicit stored status change under the invoice row lock.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, target Status) (*Invoice, error) {
	err := s.withRetry(ctx, "update_status", func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			inv, err := tx.LockInvoice(ctx, id)
			if err != nil {
				return err
			}
			if err := inv.UpdateStoredStatus(target, s.clock().UTC()); err != nil {
				return err
			}
			return tx.UpdateInvoiceState(ctx, inv.State())
		})
	})
	if err != nil {
		return nil, err
	}

	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("invoice status updated",
		slog.String("invoice_id", id.String()),
		slog.String("status", string(inv.Status)),
	)
	if target == StatusSent {
		event := Event{Type: EventInvoiceSent, BusinessID: inv.BusinessID, InvoiceID: inv.ID}
		if snap, err := s.snapshotOf(ctx, inv); err != nil {
			s.logger.Warn("build invoice snapshot", slog.String("invoice_id", id.String()), slog.Any("error", err))
		} else {
			event.Snapshot = &snap
		}
		s.publish(ctx, event)
	}
	return inv, nil
}

// RecordPaymentInput describes one incoming payment.
type RecordPaymentInput struct {
	InvoiceID uuid.UUID
	Amount    money.Money
	Method    PaymentMethod
	Notes     string
	// PaidAt defaults to now.
	PaidAt *time.Time
	// IdempotencyKey, when set, makes repeated calls return the first payment.
	IdempotencyKey string
}

// RecordPayment appends a payment and recomputes the invoice's paid amount and
// status in one transaction while holding the invoice row lock.
func (s *Service) RecordPayment(ctx context.Context, in RecordPaymentInput) (*Payment, *Invoice, error) {
	if !in.Method.Valid() {
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, in.Method)
	}
	if !in.Amount.IsPositive() {
		return nil, nil, fmt.Errorf("%w: %s", ErrInvalidAmount, in.Amount)
	}

	var (
		payment  *Payment
		replayed bool
	)
	err := s.withRetry(ctx, "record_payment", func() error {
		replayed = false
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			inv, err := tx.LockInvoice(ctx, in.InvoiceID)
			if err != nil {
				return err
			}
			if inv.Status == StatusCancelled {
				return fmt.Errorf("%w: %s", ErrInvoiceCancelled, inv.Number)
			}
			if in.Amount.Currency() != inv.Currency {
				return fmt.Errorf("invoicing: payment currency: %w",
					&money.MismatchError{Left: inv.Currency, Right: in.Amount.Currency()})
			}

			if in.IdempotencyKey != "" {
				existing, err := tx.FindPaymentByIdempotencyKey(ctx, inv.ID, in.IdempotencyKey)
				switch {
				case err == nil:
					payment, replayed = existing, true
					return nil
				case !errors.Is(err, ErrNotFound):
					return err
				}
			}

			now := s.clock().UTC()
			paidAt := now
			if in.PaidAt != nil {
				paidAt = in.PaidAt.UTC()
			}
			p := &Payment{
				ID:             uuid.New(),
				InvoiceID:      inv.ID,
				Amount:         in.Amount,
				Method:         in.Method,
				PaymentDate:    paidAt,
				Notes:          in.Notes,
				IdempotencyKey: in.IdempotencyKey,
				CreatedAt:      now,
			}
			if err := tx.InsertPayment(ctx, p); err != nil {
				return err
			}
			if err := s.reconcile(ctx, tx, inv, now); err != nil {
				return err
			}
			payment = p
			return nil
		})
	})
	if err != nil {
		return nil, nil, err
	}

	inv, err := s.repo.GetInvoice(ctx, in.InvoiceID)
	if err != nil {
		return nil, nil, err
	}
	if replayed {
		s.logger.Info("payment replayed",
			slog.String("invoice_id", inv.ID.String()),
			slog.String("payment_id", payment.ID.String()),
		)
		return payment, inv, nil
	}

	s.recorder.PaymentRecorded(string(payment.Method))
	s.logger.Info("payment recorded",
		slog.String("invoice_id", inv.ID.String()),
		slog.String("payment_id", payment.ID.String()),
		slog.String("amount", payment.Amount.String()),
		slog.String("paid_amount", inv.PaidAmount.String()),
		slog.String("status", string(inv.Status)),
	)
	event := Event{Type: EventPaymentReceived, BusinessID: inv.BusinessID, InvoiceID: inv.ID, Payment: payment}
	if snap, err := s.snapshotOf(ctx, inv); err != nil {
		s.logger.Warn("build invoice snapshot", slog.String("invoice_id", inv.ID.String()), slog.Any("error", err))
	} else {
		event.Snapshot = &snap
	}
	s.publish(ctx, event)
	return payment, inv, nil
}

// ResyncPaidAmount recomputes the cached paid amount and status from the
// payment ledger. Running it repeatedly yields the same state.
func (s *Service) ResyncPaidAmount(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	err := s.withRetry(ctx, "resync", func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			inv, err := tx.LockInvoice(ctx, id)
			if err != nil {
				return err
			}
			return s.reconcile(ctx, tx, inv, s.clock().UTC())
		})
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetInvoice(ctx, id)
}

// reconcile recomputes paid_amount from the ledger and writes back the status snapshot.
func (s *Service) reconcile(ctx context.Context, tx TxRepository, inv *Invoice, now time.Time) error {
	paid, err := tx.SumPayments(ctx, inv.ID, inv.Currency)
	if err != nil {
		return err
	}
	inv.PaidAmount = paid
	inv.Status = SnapshotStatus(inv.StatusInput(), now)
	inv.UpdatedAt = now
	return tx.UpdateInvoiceState(ctx, inv.State())
}

// GetInvoice returns an invoice with its items and payments.
func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

// GetStatusDetails returns the effective status view of an invoice.
func (s *Service) GetStatusDetails(ctx context.Context, id uuid.UUID) (StatusDetails, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return StatusDetails{}, err
	}
	return inv.Details(s.clock().UTC()), nil
}

// Snapshot returns the committed rendering snapshot of an invoice.
func (s *Service) Snapshot(ctx context.Context, id uuid.UUID) (Snapshot, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	return s.snapshotOf(ctx, inv)
}

// ListCustomerInvoices returns the invoices a business issued to one customer.
func (s *Service) ListCustomerInvoices(ctx context.Context, businessID, customerID uuid.UUID) ([]Invoice, error) {
	return s.repo.ListCustomerInvoices(ctx, businessID, customerID)
}

func (s *Service) snapshotOf(ctx context.Context, inv *Invoice) (Snapshot, error) {
	business, err := s.repo.GetBusiness(ctx, inv.BusinessID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("invoicing: business %s: %w", inv.BusinessID, err)
	}
	customer, err := s.repo.GetCustomer(ctx, inv.BusinessID, inv.CustomerID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("invoicing: customer %s: %w", inv.CustomerID, err)
	}
	return BuildSnapshot(inv, *business, *customer, s.clock().UTC()), nil
}

func (s *Service) publish(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.clock().UTC()
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("publish event",
			slog.String("type", string(event.Type)),
			slog.String("invoice_id", event.InvoiceID.String()),
			slog.Any("error", err),
		)
	}
}

// withRetry reruns fn while it fails with ErrConcurrencyConflict, up to maxAttempts.
func (s *Service) withRetry(ctx context.Context, op string, fn func() error) error {
	attempts := 0
	policy := backoff.WithContext(backoff.WithMaxRetries(s.backoff(), uint64(s.maxAttempts-1)), ctx)
	err := backoff.RetryNotify(func() error {
		attempts++
		err := fn()
		if err == nil || errors.Is(err, ErrConcurrencyConflict) {
			return err
		}
		return backoff.Permanent(err)
	}, policy, func(err error, wait time.Duration) {
		s.recorder.ReconcileRetry(op)
		s.logger.Warn("retrying after conflict",
			slog.String("op", op),
			slog.Int("attempt", attempts),
			slog.Duration("wait", wait),
			slog.Any("error", err),
		)
	})
	if errors.Is(err, ErrConcurrencyConflict) {
		s.recorder.ReconcileConflict(op)
		return fmt.Errorf("%w: %s gave up after %d attempts", ErrConcurrencyConflict, op, attempts)
	}
	return err
}
