package invoicing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odyssey-erp/bizbilling/internal/money"
)

var (
	// ErrNotFound indicates an unknown invoice, customer or business.
	ErrNotFound = errors.New("invoicing: not found")
	// ErrValidation marks request-shape failures; the concrete fields are in ValidationErrors.
	ErrValidation = errors.New("invoicing: validation failed")
	// ErrInvalidAmount indicates a non-positive or malformed amount.
	ErrInvalidAmount = errors.New("invoicing: invalid amount")
	// ErrNoItems indicates an invoice without lines.
	ErrNoItems = errors.New("invoicing: invoice requires at least one item")
	// ErrItemAmountMismatch indicates a line amount that differs from quantity x unit price.
	ErrItemAmountMismatch = errors.New("invoicing: item amount mismatch")
	// ErrInvoiceTotalMismatch indicates a client total that differs from the item sum.
	ErrInvoiceTotalMismatch = errors.New("invoicing: invoice total mismatch")
	// ErrInvalidTransition indicates a stored status change that is not permitted.
	ErrInvalidTransition = errors.New("invoicing: invalid status transition")
	// ErrInvoiceAlreadyPaid indicates a status change against a fully paid invoice.
	ErrInvoiceAlreadyPaid = errors.New("invoicing: invoice already paid")
	// ErrInvoiceCancelled indicates a payment against a cancelled invoice.
	ErrInvoiceCancelled = errors.New("invoicing: invoice cancelled")
	// ErrInvalidPaymentMethod indicates a method outside the accepted set.
	ErrInvalidPaymentMethod = errors.New("invoicing: invalid payment method")
	// ErrDuplicateInvoiceNumber indicates an invoice number already used by the business.
	ErrDuplicateInvoiceNumber = errors.New("invoicing: duplicate invoice number")
	// ErrInvoiceNumberExhausted indicates generated numbers kept colliding.
	ErrInvoiceNumberExhausted = errors.New("invoicing: could not allocate invoice number")
	// ErrConcurrencyConflict indicates lock or serialization retries were exhausted.
	ErrConcurrencyConflict = errors.New("invoicing: concurrency conflict")

	ErrCurrencyMismatch = money.ErrCurrencyMismatch
	ErrInvalidCurrency  = money.ErrInvalidCurrency
)

// IsRetryable reports whether the caller may retry the whole operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

// FieldError ties a failure to a request field such as items[2].amount.
type FieldError struct {
	Field  string
	Err    error
	Detail string
}

func (e *FieldError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %v (%s)", e.Field, e.Err, e.Detail)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// ValidationErrors collects every field failure of one request.
type ValidationErrors []*FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fe.Error())
	}
	return "invoicing: validation failed: " + strings.Join(parts, "; ")
}

func (v ValidationErrors) Unwrap() []error {
	errs := make([]error, 0, len(v))
	for _, fe := range v {
		errs = append(errs, fe)
	}
	return errs
}

// Is matches ErrValidation.
func (v ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// Field returns the first error for name, or nil.
func (v ValidationErrors) Field(name string) *FieldError {
	for _, fe := range v {
		if fe.Field == name {
			return fe
		}
	}
	return nil
}

func (v ValidationErrors) orNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}
