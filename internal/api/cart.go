package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/campusmarket/storefront/internal/domain"
)

func (c *Client) GetCart(ctx context.Context) ([]domain.CartLine, error) {
	return c.cartCall(ctx, "get cart", request{method: http.MethodGet, path: "/cart"})
}

// MergeCart sends the anonymous cart and returns the server's merged cart.
func (c *Client) MergeCart(ctx context.Context, local []domain.CartLine) ([]domain.CartLine, error) {
	return c.cartCall(ctx, "merge cart", request{
		method: http.MethodPost,
		path:   "/cart/merge",
		body:   mergeRequest{LocalCart: encodeLines(local)},
	})
}

// SaveCart replaces the server cart with lines.
func (c *Client) SaveCart(ctx context.Context, lines []domain.CartLine) error {
	const op = "save cart"
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/cart/save",
		body:   saveRequest{Cart: encodeLines(lines)},
	}, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c *Client) ClearCart(ctx context.Context) error {
	if err := c.do(ctx, request{method: http.MethodDelete, path: "/cart"}, nil); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (c *Client) cartCall(ctx context.Context, op string, req request) ([]domain.CartLine, error) {
	var resp cartResponse
	if err := c.do(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := c.check(op, resp); err != nil {
		return nil, err
	}
	lines, err := resp.toDomain()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidResponse, op, err)
	}
	return lines, nil
}
