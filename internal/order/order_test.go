package order

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusmarket/storefront/internal/api"
	"github.com/campusmarket/storefront/internal/domain"
)

type stubCart []domain.CartLine

func (c stubCart) Items() []domain.CartLine { return domain.CloneLines(c) }

type stubSession bool

func (s stubSession) IsAuthenticated() bool { return bool(s) }

type stubAPI struct {
	mu       sync.Mutex
	calls    int
	last     api.NewOrder
	err      error
	orders   []domain.Order
	tracking domain.OrderTracking

	entered chan struct{}
	release chan struct{}
}

func (a *stubAPI) CreateOrder(_ context.Context, in api.NewOrder) (domain.Order, error) {
	if a.entered != nil {
		a.entered <- struct{}{}
		<-a.release
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.last = in
	if a.err != nil {
		return domain.Order{}, a.err
	}
	return domain.Order{
		ID:            "o1",
		TotalAmount:   in.TotalAmount,
		OrderStatus:   domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
	}, nil
}

func (a *stubAPI) ListMyOrders(context.Context) ([]domain.Order, error) {
	return a.orders, a.err
}

func (a *stubAPI) Tracking(context.Context, string) (domain.OrderTracking, error) {
	return a.tracking, a.err
}

var address = domain.ShippingAddress{Street: "1 Uni Way", City: "Nairobi", State: "Nairobi", ZipCode: "00100"}

func sampleCart() stubCart {
	return stubCart{
		{ProductID: "P1", Quantity: 1, PriceAtAdd: decimal.NewFromInt(500)},
		{ProductID: "P2", Quantity: 3, PriceAtAdd: decimal.RequireFromString("19.99")},
	}
}

func TestPlaceOrder_SnapshotsCart(t *testing.T) {
	backend := &stubAPI{}
	svc := New(sampleCart(), stubSession(true), backend, WithKeyFunc(func() string { return "key-1" }))

	created, err := svc.PlaceOrder(context.Background(), address)
	require.NoError(t, err)
	assert.Equal(t, "o1", created.ID)

	require.Equal(t, 1, backend.calls)
	assert.Equal(t, "key-1", backend.last.IdempotencyKey)
	assert.True(t, backend.last.TotalAmount.Equal(decimal.RequireFromString("559.97")))
	require.Len(t, backend.last.Items, 2)
	assert.Equal(t, "P2", backend.last.Items[1].ProductID)
	assert.Equal(t, 3, backend.last.Items[1].Quantity)
	assert.True(t, backend.last.Items[1].PriceAtPurchase.Equal(decimal.RequireFromString("19.99")))
}

func TestPlaceOrder_EmptyCartRejectedBeforeNetwork(t *testing.T) {
	backend := &stubAPI{}
	svc := New(stubCart{}, stubSession(true), backend)

	_, err := svc.PlaceOrder(context.Background(), address)
	assert.ErrorIs(t, err, domain.ErrEmptyCart)
	assert.Zero(t, backend.calls)
}

func TestPlaceOrder_RequiresSession(t *testing.T) {
	backend := &stubAPI{}
	svc := New(sampleCart(), stubSession(false), backend)

	_, err := svc.PlaceOrder(context.Background(), address)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Zero(t, backend.calls)
}

func TestPlaceOrder_AddressFieldsRequired(t *testing.T) {
	backend := &stubAPI{}
	svc := New(sampleCart(), stubSession(true), backend)

	addr := address
	addr.ZipCode = "   "
	_, err := svc.PlaceOrder(context.Background(), addr)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "shippingAddress.zipCode", verr.Field)
	assert.Zero(t, backend.calls)
}

func TestPlaceOrder_BackendFailure(t *testing.T) {
	backend := &stubAPI{err: &api.Error{StatusCode: 400, Message: "Product P2 is out of stock"}}
	svc := New(sampleCart(), stubSession(true), backend)

	_, err := svc.PlaceOrder(context.Background(), address)
	var oerr *OrderCreationError
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, "Product P2 is out of stock", oerr.Message())

	backend.err = &domain.NetworkError{Op: "POST /orders", Err: errors.New("connection reset")}
	_, err = svc.PlaceOrder(context.Background(), address)
	require.ErrorAs(t, err, &oerr)
	assert.True(t, domain.IsNetwork(err))
	assert.Equal(t, createFailedMessage, oerr.Message())

	backend.err = nil
	_, err = svc.PlaceOrder(context.Background(), address)
	assert.NoError(t, err, "a failed submission can be retried")
}

func TestPlaceOrder_SingleSubmissionInFlight(t *testing.T) {
	backend := &stubAPI{entered: make(chan struct{}), release: make(chan struct{})}
	svc := New(sampleCart(), stubSession(true), backend)

	done := make(chan error, 1)
	go func() {
		_, err := svc.PlaceOrder(context.Background(), address)
		done <- err
	}()
	<-backend.entered

	_, err := svc.PlaceOrder(context.Background(), address)
	assert.ErrorIs(t, err, ErrSubmissionInFlight)

	close(backend.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, backend.calls)
}

func TestLatestPaid(t *testing.T) {
	backend := &stubAPI{orders: []domain.Order{
		{ID: "o1", PaymentStatus: domain.PaymentStatusPaid},
		{ID: "o2", PaymentStatus: domain.PaymentStatusPaid},
	}}
	svc := New(nil, stubSession(true), backend)

	got, err := svc.LatestPaid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "o2", got.ID)

	backend.orders = append(backend.orders, domain.Order{ID: "o3", PaymentStatus: domain.PaymentStatusPending})
	_, err = svc.LatestPaid(context.Background())
	assert.ErrorIs(t, err, ErrNoPaidOrder)

	backend.orders = nil
	_, err = svc.LatestPaid(context.Background())
	assert.ErrorIs(t, err, ErrNoPaidOrder)
}

func TestTracking_RejectsImpossibleTimeline(t *testing.T) {
	backend := &stubAPI{tracking: domain.OrderTracking{
		OrderID:     "o1",
		OrderStatus: domain.OrderStatusDelivered,
		Timeline: []domain.TrackingEvent{
			{Status: domain.OrderStatusPending},
			{Status: domain.OrderStatusProcessing},
			{Status: domain.OrderStatusShipped},
			{Status: domain.OrderStatusDelivered},
		},
	}}
	svc := New(nil, stubSession(true), backend)

	tr, err := svc.Tracking(context.Background(), "o1")
	require.NoError(t, err)
	assert.Len(t, tr.Timeline, 4)

	backend.tracking.Timeline = []domain.TrackingEvent{
		{Status: domain.OrderStatusDelivered},
		{Status: domain.OrderStatusPending},
	}
	_, err = svc.Tracking(context.Background(), "o1")
	assert.ErrorIs(t, err, ErrInvalidTimeline)

	_, err = svc.Tracking(context.Background(), " ")
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}
