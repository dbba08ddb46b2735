package cli

import (
	"github.com/spf13/cobra"
)

func newStatusCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "status <invoice-id>",
		Short: "Show the effective status of an invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("invoice", args[0])
			if err != nil {
				return err
			}
			b, err := rt.connect(cmd.Context())
			if err != nil {
				return err
			}
			d, err := b.Invoices.GetStatusDetails(cmd.Context(), id)
			if err != nil {
				return err
			}
			if rt.json {
				return rt.printJSON(d)
			}
			rt.printf("status:    %s (%s)\n", d.Label, d.Description)
			rt.printf("paid:      %s\n", d.PaidAmount.Format(rt.settings.Symbols))
			rt.printf("remaining: %s\n", d.RemainingAmount.Format(rt.settings.Symbols))
			if d.IsOverdue {
				rt.printf("overdue:   %d days\n", d.DaysOverdue)
			}
			return nil
		},
	}
}

func newResyncCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "resync <invoice-id>...",
		Short: "Recompute cached paid amounts and statuses from the payment ledger",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := rt.connect(cmd.Context())
			if err != nil {
				return err
			}
			for _, arg := range args {
				id, err := parseID("invoice", arg)
				if err != nil {
					return err
				}
				inv, err := b.Invoices.ResyncPaidAmount(cmd.Context(), id)
				if err != nil {
					return err
				}
				rt.printf("%s paid=%s status=%s\n", inv.Number, inv.PaidAmount.Format(rt.settings.Symbols), inv.Status)
			}
			return nil
		},
	}
}
