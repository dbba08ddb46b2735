package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/bizbilling/internal/money"
)

func TestMergeActivitiesNewestFirstWithStableTies(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	same := t0.Add(time.Hour)

	merged := mergeActivities(
		customerActivities([]CustomerRow{{Name: "Ada", CreatedAt: same}, {Name: "Bola", CreatedAt: t0}}),
		invoiceActivities([]InvoiceRow{{Number: "INV-000001", CustomerName: "Ada", Amount: money.MustParse("10", "USD"), CreatedAt: same}}),
		paymentActivities([]PaymentRow{{InvoiceNumber: "INV-000001", CustomerName: "Ada", Amount: money.MustParse("4", "USD"), CreatedAt: same}}),
	)
	require.Len(t, merged, 4)

	assert.Equal(t, ActivityCustomerAdded, merged[0].Type)
	assert.Equal(t, "New customer added: Ada", merged[0].Title)
	assert.Nil(t, merged[0].Amount)
	assert.Nil(t, merged[0].Currency)

	assert.Equal(t, ActivityInvoiceCreated, merged[1].Type)
	assert.Equal(t, "Invoice #INV-000001 created for Ada", merged[1].Title)
	require.NotNil(t, merged[1].Amount)
	assert.Equal(t, "10", merged[1].Amount.String())
	assert.Equal(t, "USD", *merged[1].Currency)

	assert.Equal(t, ActivityPaymentReceived, merged[2].Type)
	assert.Equal(t, "Payment received for Invoice #INV-000001 from Ada", merged[2].Title)

	assert.Equal(t, "New customer added: Bola", merged[3].Title)
}

func TestPageActivities(t *testing.T) {
	all := customerActivities([]CustomerRow{{Name: "a"}, {Name: "b"}, {Name: "c"}})
	assert.Len(t, pageActivities(all, 0, 2), 2)
	assert.Len(t, pageActivities(all, 2, 2), 1)
	assert.Empty(t, pageActivities(all, 3, 2))
	assert.NotNil(t, pageActivities(nil, 0, 5))
}

func TestMonthWindow(t *testing.T) {
	w := MonthWindow(time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), w.From)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), w.To)
}
