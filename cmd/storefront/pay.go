package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/campusmarket/storefront/internal/domain"
	"github.com/campusmarket/storefront/internal/order"
	"github.com/campusmarket/storefront/internal/payment"
)

func newPayCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Pay for an order",
	}

	var phone string
	mpesa := &cobra.Command{
		Use:   "mpesa ORDER_ID",
		Short: "Pay with an M-Pesa push prompt and wait for confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			flow, err := newFlow(cmd, a, args[0])
			if err != nil {
				return err
			}
			defer flow.Close()

			if err := flow.ChooseMpesa(); err != nil {
				return err
			}
			if err := flow.SubmitPhone(cmd.Context(), phone); err != nil {
				return userError(err)
			}
			a.printf("Check your phone and enter your M-Pesa PIN. Waiting for confirmation...\n")

			out, err := flow.Wait(cmd.Context())
			if err != nil {
				return errors.New("stopped waiting; the payment may still complete, check `storefront orders list`")
			}
			switch out.State {
			case payment.StateMpesaCompleted:
				return nil
			case payment.StateMpesaTimeout:
				return out.Err
			default:
				return userError(out.Err)
			}
		},
	}
	mpesa.Flags().StringVar(&phone, "phone", "", "M-Pesa number, e.g. 254712345678")
	_ = mpesa.MarkFlagRequired("phone")

	card := &cobra.Command{
		Use:   "card ORDER_ID",
		Short: "Open a hosted card payment page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			flow, err := newFlow(cmd, a, args[0])
			if err != nil {
				return err
			}
			defer flow.Close()
			if err := flow.ChooseCard(cmd.Context()); err != nil {
				return userError(err)
			}
			tx := flow.Snapshot().Attempt.TransactionID
			a.printf("After paying, confirm with:\n  storefront payment verify 'status=successful&tx_ref=%s'\n", tx)
			return nil
		},
	}

	cmd.AddCommand(mpesa, card)
	return cmd
}

func newFlow(cmd *cobra.Command, a *app, orderID string) (*payment.Flow, error) {
	o, err := findOrder(cmd, a, orderID)
	if err != nil {
		return nil, err
	}
	if o.PaymentStatus == domain.PaymentStatusPaid {
		return nil, fmt.Errorf("order %s is already paid", o.ID)
	}
	return a.payments.NewFlow(o.ID, o.TotalAmount)
}

func newPaymentCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payment",
		Short: "Handle hosted payment returns",
	}

	verify := &cobra.Command{
		Use:   "verify RETURN_QUERY",
		Short: "Interpret the query string of a hosted payment return",
		Long: "Takes the query string (or full URL) the payment provider redirected to, " +
			"for example 'status=successful&tx_ref=tx-123', and verifies it with the backend.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			raw := args[0]
			if _, query, ok := strings.Cut(raw, "?"); ok {
				raw = query
			}
			q, err := url.ParseQuery(raw)
			if err != nil {
				return fmt.Errorf("unreadable return query: %w", err)
			}
			if strings.EqualFold(q.Get("status"), "failed") {
				return errors.New(payment.FailureMessage(q))
			}

			res, err := a.payments.VerifyReturn(cmd.Context(), payment.ParseReturn(q))
			switch res {
			case payment.ReturnCancelled:
				a.printf("Payment cancelled. Your cart is unchanged.\n")
				return nil
			case payment.ReturnPending:
				if err != nil {
					return userError(err)
				}
				a.printf("Payment not confirmed yet. Try again shortly.\n")
				return nil
			}

			a.printf("Payment successful\n")
			a.printLatestPaid(cmd.Context())
			return nil
		},
	}

	cmd.AddCommand(verify)
	return cmd
}

func (a *app) printLatestPaid(ctx context.Context) {
	latest, err := a.orders.LatestPaid(ctx)
	switch {
	case errors.Is(err, order.ErrNoPaidOrder):
	case err != nil:
		a.log.Debug("latest paid order lookup failed", zap.Error(err))
	default:
		a.printf("  order: %s\n  total: %s\n", latest.ID, money(latest.TotalAmount))
	}
}
