package cli

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/bizbilling/internal/metrics"
	"github.com/odyssey-erp/bizbilling/internal/money"
)

func newDashboardCmd(rt *runtime) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "dashboard <business-id>",
		Short: "Print the business dashboard figures",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("business", args[0])
			if err != nil {
				return err
			}
			b, err := rt.connect(cmd.Context())
			if err != nil {
				return err
			}
			load := b.Dashboards.Dashboard
			if refresh {
				load = b.Dashboards.Refresh
			}
			d, err := load(cmd.Context(), id)
			if err != nil {
				return err
			}
			if rt.json {
				return rt.printJSON(d)
			}
			rt.printDashboard(d)
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "recompute and overwrite the cached dashboard")
	return cmd
}

func (rt *runtime) printDashboard(d metrics.Dashboard) {
	revenue := rt.amount(d.Revenue.Value, d.Currency)
	if d.Revenue.Partial {
		revenue += fmt.Sprintf(" (partial, %d excluded)", d.Revenue.Excluded)
	}
	rt.printf("revenue this month:   %s %s %s%%\n", revenue, d.RevenueTrend.Direction, d.RevenueTrend.Percentage.String())
	rt.printf("customers:            %d\n", d.TotalCustomers)
	rt.printf("customers this month: %d %s %s%%\n", d.CustomersThisMonth, d.CustomerTrend.Direction, d.CustomerTrend.Percentage.String())
	for _, p := range d.RevenueData {
		rt.printf("  %-9s %s\n", p.Label, rt.amount(p.Value, d.Currency))
	}
	for _, a := range d.RecentActivities {
		rt.printf("  %s  %s\n", a.Time.Format("2006-01-02 15:04"), a.Title)
	}
	if len(d.Degraded) > 0 {
		rt.printf("degraded: %s\n", strings.Join(d.Degraded, ", "))
	}
}

func (rt *runtime) amount(v decimal.Decimal, currency string) string {
	m, err := money.New(v, currency)
	if err != nil {
		return v.StringFixed(2) + " " + currency
	}
	return m.Format(rt.settings.Symbols)
}
