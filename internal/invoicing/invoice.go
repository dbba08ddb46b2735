package invoicing

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizbilling/internal/money"
)

var itemTolerance = decimal.New(1, -money.Scale)

// ItemRequest describes one line of a new invoice. Amount is optional; when
// present it must equal quantity x unit price within one cent.
type ItemRequest struct {
	Description string           `json:"description" validate:"required,max=255"`
	Quantity    decimal.Decimal  `json:"quantity"`
	UnitPrice   decimal.Decimal  `json:"unit_price"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
}

// CreateInvoiceRequest is the input for a new draft invoice. Currency defaults
// to the customer's currency and Total, when given, must equal the item sum.
type CreateInvoiceRequest struct {
	BusinessID    uuid.UUID        `json:"business_id" validate:"required"`
	CustomerID    uuid.UUID        `json:"customer_id" validate:"required"`
	InvoiceNumber string           `json:"invoice_number" validate:"omitempty,max=50"`
	Currency      string           `json:"currency" validate:"omitempty,len=3,alpha"`
	DueDate       time.Time        `json:"due_date" validate:"required"`
	Items         []ItemRequest    `json:"items" validate:"required,min=1,dive"`
	Total         *decimal.Decimal `json:"total,omitempty"`
	Notes         string           `json:"notes" validate:"omitempty,max=2000"`
	ThemeColor    string           `json:"theme_color" validate:"omitempty,hexcolor"`
}

var requestValidator = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the request shape and returns ValidationErrors on failure.
func (r CreateInvoiceRequest) Validate() error {
	err := requestValidator.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invoicing: validate request: %w", err)
	}
	out := make(ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		out = append(out, &FieldError{Field: field, Err: ErrValidation, Detail: fe.Tag()})
	}
	return out
}

// NewInvoice builds a draft invoice from req. The total is always derived from
// the items. req.Currency must already be resolved.
func NewInvoice(req CreateInvoiceRequest, now time.Time) (*Invoice, error) {
	currency, err := money.NormalizeCurrency(req.Currency)
	if err != nil {
		return nil, ValidationErrors{{Field: "currency", Err: err}}
	}
	if len(req.Items) == 0 {
		return nil, ValidationErrors{{Field: "items", Err: ErrNoItems}}
	}

	id := uuid.New()
	var errs ValidationErrors
	items := make([]Item, 0, len(req.Items))
	total := money.Zero(currency)
	for i, in := range req.Items {
		field := fmt.Sprintf("items[%d]", i)
		if in.Quantity.LessThan(decimal.NewFromInt(1)) {
			errs = append(errs, &FieldError{Field: field + ".quantity", Err: ErrInvalidAmount, Detail: "quantity must be at least 1"})
			continue
		}
		if in.UnitPrice.IsNegative() {
			errs = append(errs, &FieldError{Field: field + ".unit_price", Err: ErrInvalidAmount, Detail: "unit price must not be negative"})
			continue
		}
		unit, err := money.New(in.UnitPrice, currency)
		if err != nil {
			errs = append(errs, &FieldError{Field: field + ".unit_price", Err: err})
			continue
		}
		expected := unit.Multiply(in.Quantity)
		amount := expected
		if in.Amount != nil {
			given, err := money.New(*in.Amount, currency)
			if err != nil {
				errs = append(errs, &FieldError{Field: field + ".amount", Err: err})
				continue
			}
			if given.Amount().Sub(expected.Amount()).Abs().GreaterThan(itemTolerance) {
				errs = append(errs, &FieldError{
					Field:  field + ".amount",
					Err:    ErrItemAmountMismatch,
					Detail: fmt.Sprintf("expected %s, got %s", expected.StringFixed(), given.StringFixed()),
				})
				continue
			}
			amount = given
		}
		total, _ = total.Add(amount)
		items = append(items, Item{
			ID:          uuid.New(),
			InvoiceID:   id,
			Description: strings.TrimSpace(in.Description),
			Quantity:    in.Quantity,
			UnitPrice:   unit,
			Amount:      amount,
			CreatedAt:   now,
		})
	}
	if len(errs) > 0 {
		return nil, errs
	}

	if req.Total != nil {
		given, err := money.New(*req.Total, currency)
		if err != nil {
			return nil, ValidationErrors{{Field: "total", Err: err}}
		}
		if !given.Equal(total) {
			return nil, ValidationErrors{{
				Field:  "total",
				Err:    ErrInvoiceTotalMismatch,
				Detail: fmt.Sprintf("items sum to %s, got %s", total.StringFixed(), given.StringFixed()),
			}}
		}
	}

	return &Invoice{
		ID:         id,
		BusinessID: req.BusinessID,
		CustomerID: req.CustomerID,
		Number:     strings.TrimSpace(req.InvoiceNumber),
		Amount:     total,
		Currency:   currency,
		PaidAmount: money.Zero(currency),
		DueDate:    DateOnly(req.DueDate),
		Status:     StatusDraft,
		ThemeColor: req.ThemeColor,
		Notes:      req.Notes,
		Items:      items,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Send moves a draft invoice to sent and stamps sent_at.
func (inv *Invoice) Send(now time.Time) error {
	if inv.Status != StatusDraft {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, inv.Status, StatusSent)
	}
	sentAt := now
	inv.Status = StatusSent
	inv.SentAt = &sentAt
	inv.UpdatedAt = now
	return nil
}

// UpdateStoredStatus applies an explicit intent change. Only draft->sent and
// draft|sent->cancelled are allowed, and nothing is allowed once paid.
func (inv *Invoice) UpdateStoredStatus(target Status, now time.Time) error {
	if inv.EffectiveStatus(now) == StatusPaid {
		return fmt.Errorf("%w: %s", ErrInvoiceAlreadyPaid, inv.Number)
	}
	switch {
	case target == StatusSent:
		return inv.Send(now)
	case target == StatusCancelled && (inv.Status == StatusDraft || inv.Status == StatusSent):
		inv.Status = StatusCancelled
		inv.UpdatedAt = now
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, inv.Status, target)
}
