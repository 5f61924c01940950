package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCartCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show and change the cart",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "List cart lines and the total",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			printCart(get())
		},
	}

	add := &cobra.Command{
		Use:   "add PRODUCT_ID",
		Short: "Add one unit of a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			p, err := a.client.Product(cmd.Context(), args[0])
			if err != nil {
				return userError(err)
			}
			if err := a.cart.AddToCart(cmd.Context(), p); err != nil {
				return userError(err)
			}
			a.printf("Added %s (%s)\n", p.Name, money(p.Price))
			printCart(a)
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "remove PRODUCT_ID",
		Short: "Remove a product from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			if err := a.cart.RemoveFromCart(cmd.Context(), args[0]); err != nil {
				return userError(err)
			}
			printCart(a)
			return nil
		},
	}

	qty := &cobra.Command{
		Use:   "qty PRODUCT_ID QUANTITY",
		Short: "Set the quantity of a cart line",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("quantity must be a number: %w", err)
			}
			if n < 1 {
				a.printf("Quantity below 1 ignored; use `storefront cart remove %s`\n", args[0])
				return nil
			}
			if err := a.cart.UpdateQuantity(cmd.Context(), args[0], n); err != nil {
				return userError(err)
			}
			printCart(a)
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			if err := a.cart.ClearCart(cmd.Context()); err != nil {
				return userError(err)
			}
			a.printf("Cart cleared\n")
			return nil
		},
	}

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the cart with your account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			if err := a.cart.Sync(cmd.Context()); err != nil {
				return userError(err)
			}
			a.printf("Cart synced\n")
			printCart(a)
			return nil
		},
	}

	cmd.AddCommand(show, add, remove, qty, clearCmd, syncCmd)
	return cmd
}

func printCart(a *app) {
	lines := a.cart.Items()
	if len(lines) == 0 {
		a.printf("Your cart is empty\n")
		return
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tNAME\tQTY\tPRICE\tSUBTOTAL")
	for _, l := range lines {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", l.ProductID, l.Name, l.Quantity, money(l.PriceAtAdd), money(l.Subtotal()))
	}
	_ = tw.Flush()
	state := "local only"
	if a.cart.Synced() {
		state = "synced"
	}
	a.printf("%d item(s), total %s (%s)\n", a.cart.Count(), money(a.cart.Total()), state)
}
