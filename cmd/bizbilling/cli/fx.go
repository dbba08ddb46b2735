package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/bizbilling/internal/money"
)

func newFXCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fx",
		Short: "Exchange rate helpers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:     "convert <amount> <from> <to>",
		Short:   "Convert an amount with the configured rate source",
		Example: "  bizbilling fx convert 250.00 USD NGN",
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := money.Parse(args[0], args[1])
			if err != nil {
				return fmt.Errorf("invalid amount: %w", err)
			}
			converted, err := rt.opts.Converter(rt.cfg, rt.logger).Convert(cmd.Context(), amount, args[2])
			if err != nil {
				return err
			}
			if rt.json {
				return rt.printJSON(map[string]money.Money{"from": amount, "to": converted})
			}
			rt.printf("%s = %s\n", amount.Format(rt.settings.Symbols), converted.Format(rt.settings.Symbols))
			return nil
		},
	})
	return cmd
}
