package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/campusmarket/storefront/internal/domain"
)

// InitiateMpesa requests an STK push and returns the checkout request id.
func (c *Client) InitiateMpesa(ctx context.Context, orderID string, amt decimal.Decimal, phone, idempotencyKey string) (string, error) {
	const op = "initiate mpesa"
	var resp mpesaInitiateResponse
	err := c.do(ctx, request{
		method:         http.MethodPost,
		path:           "/payment/mpesa/initiate",
		body:           mpesaInitiateRequest{OrderID: orderID, Amount: newAmount(amt), PhoneNumber: phone},
		idempotencyKey: idempotencyKey,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := c.check(op, resp); err != nil {
		return "", err
	}
	return resp.CheckoutRequestID, nil
}

func (c *Client) MpesaStatus(ctx context.Context, checkoutRequestID string) (MpesaStatus, error) {
	const op = "mpesa status"
	var resp mpesaStatusResponse
	path := "/payment/mpesa/status/" + escape(checkoutRequestID)
	if err := c.do(ctx, request{method: http.MethodGet, path: path}, &resp); err != nil {
		return MpesaStatus{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := c.check(op, resp); err != nil {
		return MpesaStatus{}, err
	}
	return MpesaStatus{
		Status:        domain.ProviderStatus(resp.Status),
		ReceiptNumber: resp.MpesaReceiptNumber,
		FailureReason: resp.FailureReason,
	}, nil
}

// InitializeHosted opens a hosted card/bank payment session.
func (c *Client) InitializeHosted(ctx context.Context, orderID string, amt decimal.Decimal) (HostedSession, error) {
	const op = "initialize payment"
	var resp hostedInitResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/payment/initialize",
		body:   hostedInitRequest{OrderID: orderID, Amount: newAmount(amt)},
	}, &resp)
	if err != nil {
		return HostedSession{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := c.check(op, resp); err != nil {
		return HostedSession{}, err
	}
	return HostedSession{PaymentURL: resp.PaymentURL, TransactionID: resp.TransactionID}, nil
}

// VerifyHosted returns the provider status of a hosted transaction.
func (c *Client) VerifyHosted(ctx context.Context, txRef string) (string, error) {
	const op = "verify payment"
	var resp verifyResponse
	if err := c.do(ctx, request{method: http.MethodGet, path: "/payment/verify/" + escape(txRef)}, &resp); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := c.check(op, resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}
