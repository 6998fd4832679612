package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	units "github.com/docker/go-units"

	"github.com/dmitrijs2005/linkvault/internal/common"
)

// money renders minor units, e.g. 10000 INR as "100.00 INR".
func money(amount int64, currency string) string {
	s := fmt.Sprintf("%d.%02d", amount/100, amount%100)
	if currency == "" {
		return s
	}
	return s + " " + currency
}

func (a *App) Quota(ctx context.Context) error {
	q, err := a.api.GetQuota(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Used %s of %s (%s free)\n", q.UsedHuman, q.LimitHuman, units.BytesSize(float64(q.RemainingBytes)))
	return nil
}

func (a *App) Plans(ctx context.Context) error {
	plans, err := a.api.ListPlans(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PLAN\tSTORAGE\tPRICE")
	for _, p := range plans {
		fmt.Fprintf(tw, "%s\t+%s\t%s\n", p.Code, p.StorageHuman, money(p.Amount, ""))
	}
	return tw.Flush()
}

// Buy opens an order for a plan and settles it when the server's gateway
// supports in-band checkout; otherwise it prints the order for the hosted
// checkout page.
func (a *App) Buy(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: buy <plan>", errUsage)
	}

	order, err := a.api.OpenOrder(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Order %s for %s opened\n", order.OrderID, money(order.Amount, order.Currency))

	paid, err := a.api.SettleOrder(ctx, order.OrderID)
	if errors.Is(err, common.ErrorValidation) {
		fmt.Fprintf(a.out, "Complete the payment at checkout (key %s, order %s)\n", order.KeyID, order.OrderID)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Payment %s: %s, +%s\n", paid.PaymentID, paid.Status, units.BytesSize(float64(paid.StorageIncrease)))
	return nil
}

func (a *App) Payments(ctx context.Context) error {
	list, err := a.api.ListPayments(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No payments")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tSTATUS\tAMOUNT\tSTORAGE\tDATE")
	for _, p := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t+%s\t%s\n", p.OrderID, p.Status, money(p.Amount, p.Currency),
			units.BytesSize(float64(p.StorageIncrease)), p.CreatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}
