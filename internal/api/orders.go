package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/campusmarket/storefront/internal/domain"
)

// NewOrder is the checkout submission.
type NewOrder struct {
	Items           []domain.OrderItem
	TotalAmount     decimal.Decimal
	ShippingAddress domain.ShippingAddress
	// IdempotencyKey is sent as the Idempotency-Key header when set.
	IdempotencyKey string
}

func (c *Client) CreateOrder(ctx context.Context, in NewOrder) (domain.Order, error) {
	const op = "create order"
	body := createOrderRequest{
		Items:           make([]orderItemWire, 0, len(in.Items)),
		TotalAmount:     newAmount(in.TotalAmount),
		ShippingAddress: in.ShippingAddress,
	}
	for _, it := range in.Items {
		body.Items = append(body.Items, orderItemWire{
			ProductID:       it.ProductID,
			Quantity:        it.Quantity,
			PriceAtPurchase: newAmount(it.PriceAtPurchase),
		})
	}

	var resp orderWire
	err := c.do(ctx, request{
		method:         http.MethodPost,
		path:           "/orders",
		body:           body,
		idempotencyKey: in.IdempotencyKey,
	}, &resp)
	if err != nil {
		return domain.Order{}, fmt.Errorf("%s: %w", op, err)
	}
	return c.toOrder(op, resp)
}

// ListMyOrders returns the caller's orders in backend order (oldest first).
func (c *Client) ListMyOrders(ctx context.Context) ([]domain.Order, error) {
	const op = "list my orders"
	var resp []orderWire
	if err := c.do(ctx, request{method: http.MethodGet, path: "/orders/my-orders"}, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	orders := make([]domain.Order, 0, len(resp))
	for _, w := range resp {
		o, err := c.toOrder(op, w)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (c *Client) Tracking(ctx context.Context, orderID string) (domain.OrderTracking, error) {
	const op = "order tracking"
	var resp trackingWire
	path := "/orders/" + escape(orderID) + "/tracking"
	if err := c.do(ctx, request{method: http.MethodGet, path: path}, &resp); err != nil {
		return domain.OrderTracking{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := c.check(op, resp); err != nil {
		return domain.OrderTracking{}, err
	}
	tracking, err := resp.toDomain()
	if err != nil {
		return domain.OrderTracking{}, fmt.Errorf("%w: %s: %v", ErrInvalidResponse, op, err)
	}
	return tracking, nil
}

func (c *Client) toOrder(op string, w orderWire) (domain.Order, error) {
	if err := c.check(op, w); err != nil {
		return domain.Order{}, err
	}
	o, err := w.toDomain()
	if err != nil {
		return domain.Order{}, fmt.Errorf("%w: %s: %v", ErrInvalidResponse, op, err)
	}
	return o, nil
}
