package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartTotalsFollowLines(t *testing.T) {
	lines := []CartLine{
		{ProductID: "a", Quantity: 2, PriceAtAdd: decimal.RequireFromString("150.50")},
		{ProductID: "b", Quantity: 3, PriceAtAdd: decimal.NewFromInt(20)},
	}

	assert.True(t, decimal.RequireFromString("361").Equal(CartTotal(lines)))
	assert.Equal(t, 5, CartCount(lines))
	assert.True(t, CartTotal(nil).IsZero())
	assert.Equal(t, 0, CartCount(nil))
}

func TestNewCartLine(t *testing.T) {
	line := NewCartLine(Product{
		ID:     "p1",
		Name:   "Desk lamp",
		Price:  decimal.NewFromInt(500),
		Images: []string{"lamp.jpg", "lamp2.jpg"},
	})

	assert.Equal(t, "p1", line.ProductID)
	assert.Equal(t, 1, line.Quantity)
	assert.Equal(t, "lamp.jpg", line.Image)
	assert.True(t, decimal.NewFromInt(500).Equal(line.PriceAtAdd))
}

func TestNormalizeLines(t *testing.T) {
	in := []CartLine{
		{ProductID: "a", Quantity: 1, PriceAtAdd: decimal.NewFromInt(10)},
		{ProductID: "", Quantity: 4},
		{ProductID: "b", Quantity: 0},
		{ProductID: "a", Quantity: 2, PriceAtAdd: decimal.NewFromInt(99)},
	}

	out := NormalizeLines(in)
	require.Len(t, out, 1)
	assert.Equal(t, 3, out[0].Quantity)
	assert.True(t, decimal.NewFromInt(10).Equal(out[0].PriceAtAdd))
}

func TestOrderStatusTransitions(t *testing.T) {
	assert.True(t, OrderStatusPending.CanTransitionTo(OrderStatusProcessing))
	assert.True(t, OrderStatusShipped.CanTransitionTo(OrderStatusCancelled))
	assert.False(t, OrderStatusPending.CanTransitionTo(OrderStatusDelivered))
	assert.False(t, OrderStatusDelivered.CanTransitionTo(OrderStatusCancelled))
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.False(t, OrderStatus("lost").Valid())
}

func TestErrorTaxonomy(t *testing.T) {
	wrapped := fmt.Errorf("checkout: %w", ErrEmptyCart)
	assert.ErrorIs(t, wrapped, ErrEmptyCart)
	assert.NotErrorIs(t, wrapped, ErrInvalidPhone)

	var v *ValidationError
	require.ErrorAs(t, wrapped, &v)
	assert.Equal(t, "cart", v.Field)

	netErr := fmt.Errorf("save: %w", &NetworkError{Op: "POST /cart/save", Err: errors.New("connection refused")})
	assert.True(t, IsNetwork(netErr))
	assert.False(t, IsNetwork(ErrPaymentTimeout))

	assert.Equal(t, "Payment failed: insufficient balance", (&ProviderError{Reason: "insufficient balance"}).Error())
	assert.Equal(t, genericProviderFailure, (&ProviderError{}).Error())
}
