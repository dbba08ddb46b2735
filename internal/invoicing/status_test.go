package invoicing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/bizbilling/internal/money"
)

func statusInput(amount, paid string, due time.Time, stored Status) StatusInput {
	return StatusInput{
		Amount:     money.MustParse(amount, "USD"),
		PaidAmount: money.MustParse(paid, "USD"),
		DueDate:    due,
		Stored:     stored,
	}
}

func TestEffectiveStatusPriority(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	yesterday := now.AddDate(0, 0, -1)
	nextWeek := now.AddDate(0, 0, 7)

	cases := []struct {
		name string
		in   StatusInput
		want Status
	}{
		{"overpaid past due is paid", statusInput("100.00", "150.00", yesterday, StatusSent), StatusPaid},
		{"exactly paid", statusInput("100.00", "100.00", nextWeek, StatusDraft), StatusPaid},
		{"partial before due", statusInput("100.00", "40.00", nextWeek, StatusSent), StatusPartiallyPaid},
		{"partial past due stays partial", statusInput("100.00", "40.00", yesterday, StatusSent), StatusPartiallyPaid},
		{"unpaid past due", statusInput("100.00", "0", yesterday, StatusSent), StatusOverdue},
		{"draft past due", statusInput("100.00", "0", yesterday, StatusDraft), StatusOverdue},
		{"cancelled past due", statusInput("100.00", "0", yesterday, StatusCancelled), StatusCancelled},
		{"sent before due", statusInput("100.00", "0", nextWeek, StatusSent), StatusSent},
		{"draft before due", statusInput("100.00", "0", nextWeek, StatusDraft), StatusDraft},
		{"stale snapshot falls through", statusInput("100.00", "0", nextWeek, Status("pending")), Status("pending")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, EffectiveStatus(tc.in, now))
			// pure: same inputs, same output
			assert.Equal(t, EffectiveStatus(tc.in, now), EffectiveStatus(tc.in, now))
		})
	}
}

func TestDueTodayBecomesOverdueAfterMidnight(t *testing.T) {
	due := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	in := statusInput("10.00", "0", due, StatusSent)

	assert.Equal(t, StatusSent, EffectiveStatus(in, due))
	assert.Equal(t, StatusOverdue, EffectiveStatus(in, due.Add(time.Minute)))
	assert.Equal(t, 0, Details(in, due.Add(time.Minute)).DaysOverdue)
}

func TestDetailsLabels(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	future := now.AddDate(0, 1, 0)

	cases := []struct {
		in          StatusInput
		label       string
		color       string
		description string
	}{
		{statusInput("10", "10", future, StatusSent), "Paid", "success", "Payment completed"},
		{statusInput("10", "5", future, StatusSent), "Partially Paid", "info", "Partial payment received"},
		{statusInput("10", "0", now.AddDate(0, 0, -2), StatusSent), "Overdue", "destructive", "2 days overdue"},
		{statusInput("10", "0", future, StatusSent), "Sent", "info", "Invoice sent to customer"},
		{statusInput("10", "0", future, StatusDraft), "Draft", "muted", "Invoice not sent yet"},
		{statusInput("10", "0", future, StatusCancelled), "Cancelled", "muted", "Invoice cancelled"},
		{statusInput("10", "0", future, Status("pending")), "Pending", "warning", "Payment pending"},
	}
	for _, tc := range cases {
		d := Details(tc.in, now)
		assert.Equal(t, tc.label, d.Label)
		assert.Equal(t, tc.color, d.Color)
		assert.Equal(t, tc.description, d.Description)
	}
}

func TestDetailsPaidAfterDueDate(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	in := StatusInput{
		Amount:     money.MustParse("299.99", "USD"),
		PaidAmount: money.MustParse("299.99", "USD"),
		DueDate:    time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		Stored:     StatusSent,
	}

	d := Details(in, now)
	assert.Equal(t, StatusPaid, d.Status)
	assert.False(t, d.IsOverdue)
	assert.Equal(t, 0, d.DaysOverdue)
	assert.True(t, d.RemainingAmount.IsZero())
}

func TestDetailsOverdueByThreeDays(t *testing.T) {
	now := time.Date(2024, 6, 20, 9, 30, 0, 0, time.UTC)
	in := StatusInput{
		Amount:     money.MustParse("500.00", "NGN"),
		PaidAmount: money.Zero("NGN"),
		DueDate:    DateOnly(now).AddDate(0, 0, -3),
		Stored:     StatusSent,
	}

	d := Details(in, now)
	assert.Equal(t, StatusOverdue, d.Status)
	assert.True(t, d.IsOverdue)
	assert.Equal(t, 3, d.DaysOverdue)
	assert.Equal(t, "500.00", d.RemainingAmount.StringFixed())
	assert.Equal(t, "3 days overdue", d.Description)
}

func TestDetailsOverpaymentLeavesNegativeRemaining(t *testing.T) {
	now := time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC)
	d := Details(statusInput("100.00", "120.00", now.AddDate(0, 0, -10), StatusSent), now)

	assert.Equal(t, StatusPaid, d.Status)
	assert.Equal(t, "-20.00", d.RemainingAmount.StringFixed())
	assert.Equal(t, 0, d.DaysOverdue)
}

func TestMixedCurrencyInputPanics(t *testing.T) {
	in := StatusInput{
		Amount:     money.MustParse("1", "USD"),
		PaidAmount: money.MustParse("1", "EUR"),
		DueDate:    time.Now(),
		Stored:     StatusSent,
	}
	require.Panics(t, func() { EffectiveStatus(in, time.Now()) })
}

func TestSnapshotStatus(t *testing.T) {
	now := time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC)
	past := now.AddDate(0, 0, -5)

	assert.Equal(t, StatusPaid, SnapshotStatus(statusInput("10", "10", past, StatusSent), now))
	assert.Equal(t, StatusPartiallyPaid, SnapshotStatus(statusInput("10", "5", past, StatusDraft), now))
	assert.Equal(t, StatusSent, SnapshotStatus(statusInput("10", "0", past, StatusSent), now))
	assert.Equal(t, StatusDraft, SnapshotStatus(statusInput("10", "0", past, StatusDraft), now))
	assert.Equal(t, StatusSent, SnapshotStatus(statusInput("10", "0", past, StatusPartiallyPaid), now))
}
