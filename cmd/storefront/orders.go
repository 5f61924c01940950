package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/campusmarket/storefront/internal/domain"
)

func newCheckoutCmd(get func() *app) *cobra.Command {
	var addr domain.ShippingAddress
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for the cart contents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			o, err := a.orders.PlaceOrder(cmd.Context(), addr)
			if err != nil {
				return userError(err)
			}
			a.printf("Order %s placed, total %s\n", o.ID, money(o.TotalAmount))
			a.printf("Pay with: storefront pay mpesa %s --phone 2547XXXXXXXX\n", o.ID)
			a.printf("      or: storefront pay card %s\n", o.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr.Street, "street", "", "street address")
	cmd.Flags().StringVar(&addr.City, "city", "", "city")
	cmd.Flags().StringVar(&addr.State, "state", "", "state or county")
	cmd.Flags().StringVar(&addr.ZipCode, "zip", "", "postal code")
	return cmd
}

func newOrdersCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List and track your orders",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List your orders, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			orders, err := a.orders.MyOrders(cmd.Context())
			if err != nil {
				return userError(err)
			}
			if len(orders) == 0 {
				a.printf("No orders yet\n")
				return nil
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ORDER\tPLACED\tITEMS\tTOTAL\tSTATUS\tPAYMENT")
			for _, o := range orders {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n", o.ID, o.CreatedAt.Format("2006-01-02 15:04"),
					len(o.Items), money(o.TotalAmount), o.OrderStatus, o.PaymentStatus)
			}
			return tw.Flush()
		},
	}

	track := &cobra.Command{
		Use:   "track ORDER_ID",
		Short: "Show the status timeline of an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			tr, err := a.orders.Tracking(cmd.Context(), args[0])
			if err != nil {
				return userError(err)
			}
			a.printf("Order %s is %s\n", tr.OrderID, tr.OrderStatus)
			for _, ev := range tr.Timeline {
				a.printf("  %s  %-10s %s\n", ev.Timestamp.Local().Format("2006-01-02 15:04"), ev.Status, ev.Note)
			}
			return nil
		},
	}

	cmd.AddCommand(list, track)
	return cmd
}

// findOrder looks up one of the caller's orders for payment.
func findOrder(cmd *cobra.Command, a *app, orderID string) (domain.Order, error) {
	orders, err := a.orders.MyOrders(cmd.Context())
	if err != nil {
		return domain.Order{}, userError(err)
	}
	for _, o := range orders {
		if o.ID == orderID {
			return o, nil
		}
	}
	return domain.Order{}, fmt.Errorf("order %s not found", orderID)
}
