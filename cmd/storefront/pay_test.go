package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/campusmarket/storefront/internal/api"
	"github.com/campusmarket/storefront/internal/domain"
	"github.com/campusmarket/storefront/internal/order"
)

type signedIn struct{}

func (signedIn) IsAuthenticated() bool { return true }

type ordersDown struct{ err error }

func (o ordersDown) CreateOrder(context.Context, api.NewOrder) (domain.Order, error) {
	return domain.Order{}, o.err
}

func (o ordersDown) ListMyOrders(context.Context) ([]domain.Order, error) { return nil, o.err }

func (o ordersDown) Tracking(context.Context, string) (domain.OrderTracking, error) {
	return domain.OrderTracking{}, o.err
}

func TestPrintLatestPaid_LogsLookupFailure(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	var out bytes.Buffer
	a := &app{
		log:    zap.New(core),
		out:    &out,
		orders: order.New(nil, signedIn{}, ordersDown{err: errors.New("orders unavailable")}),
	}

	a.printLatestPaid(context.Background())

	assert.Empty(t, out.String())
	entries := logs.FilterMessage("latest paid order lookup failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "orders unavailable", entries[0].ContextMap()["error"])
}
