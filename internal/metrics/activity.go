package metrics

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/odyssey-erp/bizbilling/internal/money"
)

// DefaultActivityLimit is the size of the dashboard feed.
const DefaultActivityLimit = 20

func customerActivities(rows []CustomerRow) []Activity {
	return lo.Map(rows, func(r CustomerRow, _ int) Activity {
		return Activity{
			Type:  ActivityCustomerAdded,
			Title: fmt.Sprintf("New customer added: %s", r.Name),
			Time:  r.CreatedAt,
		}
	})
}

func invoiceActivities(rows []InvoiceRow) []Activity {
	return lo.Map(rows, func(r InvoiceRow, _ int) Activity {
		a := Activity{
			Type:  ActivityInvoiceCreated,
			Title: fmt.Sprintf("Invoice #%s created for %s", r.Number, r.CustomerName),
			Time:  r.CreatedAt,
		}
		withAmount(&a, r.Amount)
		return a
	})
}

func paymentActivities(rows []PaymentRow) []Activity {
	return lo.Map(rows, func(r PaymentRow, _ int) Activity {
		a := Activity{
			Type:  ActivityPaymentReceived,
			Title: fmt.Sprintf("Payment received for Invoice #%s from %s", r.InvoiceNumber, r.CustomerName),
			Time:  r.CreatedAt,
		}
		withAmount(&a, r.Amount)
		return a
	})
}

func withAmount(a *Activity, m money.Money) {
	amount := m.Amount()
	currency := m.Currency()
	a.Amount = &amount
	a.Currency = &currency
}

// mergeActivities concatenates the sources in customer, invoice, payment order
// and sorts newest first. Equal timestamps keep source order.
func mergeActivities(sources ...[]Activity) []Activity {
	merged := lo.Flatten(sources)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Time.After(merged[j].Time)
	})
	return merged
}

// pageActivities returns up to limit entries starting at offset.
func pageActivities(merged []Activity, offset, limit int) []Activity {
	if offset >= len(merged) {
		return []Activity{}
	}
	return lo.Subset(merged, offset, uint(limit))
}
