// Package money provides a fixed-point monetary amount bound to an ISO-4217 currency.
package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Scale is the number of fraction digits every amount is rounded to.
const Scale = 2

var (
	// ErrCurrencyMismatch indicates an operation across two different currencies.
	ErrCurrencyMismatch = errors.New("money: currency mismatch")
	// ErrInvalidCurrency indicates a code that is not a known ISO-4217 currency.
	ErrInvalidCurrency = errors.New("money: invalid currency")
	// ErrInvalidAmount indicates an amount that cannot be parsed.
	ErrInvalidAmount = errors.New("money: invalid amount")
)

// MismatchError names both sides of a mixed-currency operation.
type MismatchError struct {
	Left  string
	Right string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("money: currency mismatch %s vs %s", e.Left, e.Right)
}

// Unwrap lets errors.Is match ErrCurrencyMismatch.
func (e *MismatchError) Unwrap() error {
	return ErrCurrencyMismatch
}

// Money is an amount rounded half-up to two fraction digits in a single currency.
// The zero value has no currency and is only useful as a placeholder.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// New builds a Money value, rounding the amount and validating the currency code.
func New(amount decimal.Decimal, code string) (Money, error) {
	normalized, err := NormalizeCurrency(code)
	if err != nil {
		return Money{}, err
	}
	return Money{amount: amount.Round(Scale), currency: normalized}, nil
}

// Parse builds a Money value from a decimal string such as "299.99".
func Parse(amount, code string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	return New(d, code)
}

// MustParse is Parse for fixtures and constants; it panics on invalid input.
func MustParse(amount, code string) Money {
	m, err := Parse(amount, code)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero amount in the given currency. The code is upper-cased but not validated.
func Zero(code string) Money {
	return Money{amount: decimal.Zero, currency: strings.ToUpper(strings.TrimSpace(code))}
}

// NormalizeCurrency upper-cases and validates an ISO-4217 code.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	if _, err := currency.ParseISO(code); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	return code, nil
}

// Amount returns the rounded decimal amount.
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the ISO code.
func (m Money) Currency() string {
	return m.currency
}

// Add returns m + o.
func (m Money) Add(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount.Add(o.amount).Round(Scale), currency: m.currency}, nil
}

// Subtract returns m - o. The result may be negative.
func (m Money) Subtract(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount.Sub(o.amount).Round(Scale), currency: m.currency}, nil
}

// Multiply scales the amount and rounds half-up to two digits.
func (m Money) Multiply(scalar decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(scalar).Round(Scale), currency: m.currency}
}

// Compare returns -1, 0 or 1.
func (m Money) Compare(o Money) (int, error) {
	if err := m.sameCurrency(o); err != nil {
		return 0, err
	}
	return m.amount.Cmp(o.amount), nil
}

// MustCompare is Compare for callers that already guarantee matching currencies.
// A mismatch there is a programming error and panics.
func (m Money) MustCompare(o Money) int {
	c, err := m.Compare(o)
	if err != nil {
		panic(err)
	}
	return c
}

// Equal reports whether both currency and amount match.
func (m Money) Equal(o Money) bool {
	return m.currency == o.currency && m.amount.Equal(o.amount)
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsPositive reports whether the amount is greater than zero.
func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

// StringFixed renders the amount with exactly two fraction digits.
func (m Money) StringFixed() string {
	return m.amount.StringFixed(Scale)
}

func (m Money) String() string {
	return m.StringFixed() + " " + m.currency
}

// Sum adds all values, which must share code. An empty list yields zero in code.
func Sum(code string, values ...Money) (Money, error) {
	total := Zero(code)
	for _, v := range values {
		next, err := total.Add(v)
		if err != nil {
			return Money{}, err
		}
		total = next
	}
	return total, nil
}

func (m Money) sameCurrency(o Money) error {
	if m.currency != o.currency {
		return &MismatchError{Left: m.currency, Right: o.currency}
	}
	return nil
}

type moneyJSON struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// MarshalJSON encodes as {"amount":"12.30","currency":"USD"}.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.StringFixed(), Currency: m.currency})
}

// UnmarshalJSON decodes the MarshalJSON form. A zero amount without a
// currency decodes to the zero Money, matching what MarshalJSON writes for it.
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw moneyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if strings.TrimSpace(raw.Currency) == "" {
		d, err := decimal.NewFromString(strings.TrimSpace(raw.Amount))
		if raw.Amount == "" || (err == nil && d.IsZero()) {
			*m = Money{}
			return nil
		}
	}
	parsed, err := Parse(raw.Amount, raw.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
