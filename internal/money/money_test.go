package money

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoundsHalfUp(t *testing.T) {
	m, err := Parse("1.005", "usd")
	require.NoError(t, err)
	assert.Equal(t, "1.01", m.StringFixed())
	assert.Equal(t, "USD", m.Currency())

	m, err = Parse("2.344", "USD")
	require.NoError(t, err)
	assert.Equal(t, "2.34", m.StringFixed())
}

func TestNewRejectsUnknownCurrency(t *testing.T) {
	_, err := Parse("10", "ZZZ")
	require.ErrorIs(t, err, ErrInvalidCurrency)

	_, err = Parse("10", "US")
	require.ErrorIs(t, err, ErrInvalidCurrency)

	_, err = Parse("ten", "USD")
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestArithmetic(t *testing.T) {
	a := MustParse("100.00", "USD")
	b := MustParse("49.995", "USD")

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, "150.00", sum.StringFixed())

	diff, err := a.Subtract(MustParse("150", "USD"))
	require.NoError(t, err)
	assert.True(t, diff.IsNegative())
	assert.Equal(t, "-50.00", diff.StringFixed())

	line := MustParse("19.99", "USD").Multiply(decimal.NewFromFloat(3.5))
	assert.Equal(t, "69.97", line.StringFixed())

	cmp, err := a.Compare(b)
	require.NoError(t, err)
	assert.Equal(t, 1, cmp)
	assert.True(t, Zero("USD").IsZero())
}

func TestMixedCurrencyFailsFast(t *testing.T) {
	usd := MustParse("1", "USD")
	ngn := MustParse("1", "NGN")

	_, err := usd.Add(ngn)
	require.ErrorIs(t, err, ErrCurrencyMismatch)
	var mismatch *MismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "USD", mismatch.Left)
	assert.Equal(t, "NGN", mismatch.Right)

	_, err = usd.Compare(ngn)
	require.ErrorIs(t, err, ErrCurrencyMismatch)
	assert.Panics(t, func() { usd.MustCompare(ngn) })
	assert.False(t, usd.Equal(ngn))
}

func TestSum(t *testing.T) {
	total, err := Sum("NGN", MustParse("10.10", "NGN"), MustParse("0.20", "NGN"))
	require.NoError(t, err)
	assert.Equal(t, "10.30 NGN", total.String())

	empty, err := Sum("NGN")
	require.NoError(t, err)
	assert.True(t, empty.IsZero())

	_, err = Sum("NGN", MustParse("1", "USD"))
	require.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "₦1,234.50", MustParse("1234.5", "NGN").Format(nil))
	assert.Equal(t, "$299.99", MustParse("299.99", "USD").Format(DefaultSymbols()))
	assert.Equal(t, "£1,000,000.00", MustParse("1000000", "GBP").Format(nil))
	assert.Equal(t, "JPY 12.00", MustParse("12", "JPY").Format(nil))
	assert.Equal(t, "-$50.00", MustParse("-50", "USD").Format(nil))
}

func TestJSONRoundTrip(t *testing.T) {
	raw, err := json.Marshal(MustParse("12.3", "EUR"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"12.30","currency":"EUR"}`, string(raw))

	var decoded Money
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.True(t, decoded.Equal(MustParse("12.30", "EUR")))
}

func TestZeroValueJSONRoundTrip(t *testing.T) {
	raw, err := json.Marshal(Money{})
	require.NoError(t, err)

	decoded := MustParse("5", "USD")
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, Money{}, decoded)

	err = json.Unmarshal([]byte(`{"amount":"3.00","currency":""}`), &decoded)
	require.ErrorIs(t, err, ErrInvalidCurrency)
}
