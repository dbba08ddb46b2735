package invoicing

import "time"

// Snapshot is the read-only document view consumed by email and PDF renderers.
// It is only built from committed state.
type Snapshot struct {
	Invoice  Invoice       `json:"invoice"`
	Items    []Item        `json:"items"`
	Payments []Payment     `json:"payments"`
	Business Business      `json:"business"`
	Customer Customer      `json:"customer"`
	Status   StatusDetails `json:"status_details"`
}

// BuildSnapshot assembles a snapshot; the invoice header is copied without its collections.
func BuildSnapshot(inv *Invoice, business Business, customer Customer, now time.Time) Snapshot {
	header := *inv
	header.Items = nil
	header.Payments = nil

	items := append([]Item(nil), inv.Items...)
	payments := append([]Payment(nil), inv.Payments...)
	if items == nil {
		items = []Item{}
	}
	if payments == nil {
		payments = []Payment{}
	}

	return Snapshot{
		Invoice:  header,
		Items:    items,
		Payments: payments,
		Business: business,
		Customer: customer,
		Status:   inv.Details(now),
	}
}
