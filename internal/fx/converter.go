// Package fx converts money between currencies for reporting.
package fx

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizbilling/internal/money"
)

// ErrRateUnavailable signals that no trustworthy rate could be obtained. Callers
// must treat the amount as unconvertible; there is no fallback rate.
var ErrRateUnavailable = errors.New("fx: rate unavailable")

// Converter turns an amount into the target currency.
type Converter interface {
	Convert(ctx context.Context, amount money.Money, to string) (money.Money, error)
}

// RateSource returns how many units of to one unit of from buys.
type RateSource interface {
	Rate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// RateConverter applies rates from a RateSource.
type RateConverter struct {
	source RateSource
}

// NewRateConverter constructs a converter over source.
func NewRateConverter(source RateSource) *RateConverter {
	return &RateConverter{source: source}
}

// Convert returns amount unchanged when the currencies already match.
func (c *RateConverter) Convert(ctx context.Context, amount money.Money, to string) (money.Money, error) {
	target, err := money.NormalizeCurrency(to)
	if err != nil {
		return money.Money{}, err
	}
	if amount.Currency() == target {
		return amount, nil
	}
	rate, err := c.source.Rate(ctx, amount.Currency(), target)
	if err != nil {
		if errors.Is(err, ErrRateUnavailable) {
			return money.Money{}, err
		}
		return money.Money{}, fmt.Errorf("%w: %s->%s: %v", ErrRateUnavailable, amount.Currency(), target, err)
	}
	if !rate.IsPositive() {
		return money.Money{}, fmt.Errorf("%w: %s->%s: non-positive rate %s", ErrRateUnavailable, amount.Currency(), target, rate)
	}
	return money.New(amount.Amount().Mul(rate), target)
}

// PairKey renders a currency pair as FROM:TO.
func PairKey(from, to string) string {
	return strings.ToUpper(from) + ":" + strings.ToUpper(to)
}

// StaticRates is a fixed rate table keyed by PairKey. Missing pairs are unavailable.
type StaticRates map[string]decimal.Decimal

func (s StaticRates) Rate(_ context.Context, from, to string) (decimal.Decimal, error) {
	rate, ok := s[PairKey(from, to)]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no static rate for %s", ErrRateUnavailable, PairKey(from, to))
	}
	return rate, nil
}
