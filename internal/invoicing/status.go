package invoicing

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/bizbilling/internal/money"
)

// StatusInput is everything the status engine looks at.
// Amount and PaidAmount must share a currency.
type StatusInput struct {
	Amount     money.Money
	PaidAmount money.Money
	DueDate    time.Time
	Stored     Status
}

// StatusDetails is the presentation view of an invoice's effective status.
type StatusDetails struct {
	Status          Status      `json:"status"`
	PaidAmount      money.Money `json:"paid_amount"`
	RemainingAmount money.Money `json:"remaining_amount"`
	IsOverdue       bool        `json:"is_overdue"`
	DaysOverdue     int         `json:"days_overdue"`
	Label           string      `json:"label"`
	Color           string      `json:"color"`
	Description     string      `json:"description"`
}

type statusLabel struct {
	label       string
	color       string
	description string
}

var statusLabels = map[Status]statusLabel{
	StatusPaid:          {label: "Paid", color: "success", description: "Payment completed"},
	StatusPartiallyPaid: {label: "Partially Paid", color: "info", description: "Partial payment received"},
	StatusOverdue:       {label: "Overdue", color: "destructive", description: "%d days overdue"},
	StatusSent:          {label: "Sent", color: "info", description: "Invoice sent to customer"},
	StatusDraft:         {label: "Draft", color: "muted", description: "Invoice not sent yet"},
	StatusCancelled:     {label: "Cancelled", color: "muted", description: "Invoice cancelled"},
}

var pendingLabel = statusLabel{label: "Pending", color: "warning", description: "Payment pending"}

// EffectiveStatus derives the status shown to customers and reports.
// Precedence: paid, partially paid, cancelled, overdue, then the stored
// status. A stored cancellation is checked before the overdue rule so a
// cancelled unpaid invoice never reports overdue; keep that order.
func EffectiveStatus(in StatusInput, now time.Time) Status {
	cmp := in.PaidAmount.MustCompare(in.Amount)
	switch {
	case cmp >= 0:
		return StatusPaid
	case in.PaidAmount.IsPositive():
		return StatusPartiallyPaid
	case in.Stored == StatusCancelled:
		return StatusCancelled
	case pastDue(in.DueDate, now):
		return StatusOverdue
	}
	return in.Stored
}

// Details computes the full status view.
func Details(in StatusInput, now time.Time) StatusDetails {
	status := EffectiveStatus(in, now)
	remaining, err := in.Amount.Subtract(in.PaidAmount)
	if err != nil {
		panic(err)
	}

	days := 0
	if remaining.IsPositive() && pastDue(in.DueDate, now) {
		days = int(now.Sub(DateOnly(in.DueDate)) / (24 * time.Hour))
	}

	lbl, ok := statusLabels[status]
	if !ok {
		lbl = pendingLabel
	}
	description := lbl.description
	if status == StatusOverdue {
		description = fmt.Sprintf(lbl.description, days)
	}

	return StatusDetails{
		Status:          status,
		PaidAmount:      in.PaidAmount,
		RemainingAmount: remaining,
		IsOverdue:       status == StatusOverdue && remaining.IsPositive(),
		DaysOverdue:     days,
		Label:           lbl.label,
		Color:           lbl.color,
		Description:     description,
	}
}

// SnapshotStatus is the stored status written back after reconciliation.
// Payment-derived statuses are cached; otherwise the stored intent is kept.
func SnapshotStatus(in StatusInput, now time.Time) Status {
	switch eff := EffectiveStatus(in, now); eff {
	case StatusPaid, StatusPartiallyPaid:
		return eff
	}
	switch in.Stored {
	case StatusDraft, StatusSent, StatusCancelled:
		return in.Stored
	}
	return StatusSent
}

// StatusInput returns the engine input for inv.
func (inv *Invoice) StatusInput() StatusInput {
	return StatusInput{
		Amount:     inv.Amount,
		PaidAmount: inv.PaidAmount,
		DueDate:    inv.DueDate,
		Stored:     inv.Status,
	}
}

// EffectiveStatus is shorthand for EffectiveStatus(inv.StatusInput(), now).
func (inv *Invoice) EffectiveStatus(now time.Time) Status {
	return EffectiveStatus(inv.StatusInput(), now)
}

// Details is shorthand for Details(inv.StatusInput(), now).
func (inv *Invoice) Details(now time.Time) StatusDetails {
	return Details(inv.StatusInput(), now)
}

func pastDue(due, now time.Time) bool {
	return DateOnly(due).Before(now)
}
