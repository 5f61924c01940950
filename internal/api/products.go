package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/campusmarket/storefront/internal/domain"
)

// Product fetches one catalog entry, the input to cart.AddToCart.
func (c *Client) Product(ctx context.Context, id string) (domain.Product, error) {
	const op = "get product"
	var resp productResponse
	if err := c.do(ctx, request{method: http.MethodGet, path: "/products/" + escape(id)}, &resp); err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := c.check(op, resp); err != nil {
		return domain.Product{}, err
	}
	p := resp.Product
	if p.Price.IsNegative() {
		return domain.Product{}, fmt.Errorf("%w: %s: negative price", ErrInvalidResponse, op)
	}
	return domain.Product{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price.Decimal,
		Images:   p.Images,
		SellerID: p.SellerID,
		Stock:    p.Stock,
	}, nil
}
