package order

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusmarket/storefront/internal/api"
	"github.com/campusmarket/storefront/internal/domain"
	"github.com/campusmarket/storefront/internal/logger"
)

var (
	ErrNotAuthenticated   = errors.New("order: sign in to check out")
	ErrSubmissionInFlight = errors.New("order: a checkout submission is already in progress")
	ErrNoPaidOrder        = errors.New("order: no paid order found")
	ErrInvalidTimeline    = errors.New("order: tracking timeline has an impossible status change")
)

const createFailedMessage = "Failed to create order. Please try again."

// OrderCreationError is a checkout submission the backend did not accept.
// Nothing local was changed and the submission may be retried.
type OrderCreationError struct {
	Err error
}

func (e *OrderCreationError) Error() string {
	return fmt.Sprintf("order: create failed: %v", e.Err)
}

func (e *OrderCreationError) Unwrap() error { return e.Err }

// Message is the text shown to the shopper.
func (e *OrderCreationError) Message() string {
	if domain.IsNetwork(e.Err) {
		return createFailedMessage
	}
	return api.Message(e.Err, createFailedMessage)
}

type Cart interface {
	Items() []domain.CartLine
}

type Session interface {
	IsAuthenticated() bool
}

type API interface {
	CreateOrder(ctx context.Context, in api.NewOrder) (domain.Order, error)
	ListMyOrders(ctx context.Context) ([]domain.Order, error)
	Tracking(ctx context.Context, orderID string) (domain.OrderTracking, error)
}

type Service struct {
	cart     Cart
	session  Session
	api      API
	log      *zap.Logger
	newKey   func() string
	validate *validator.Validate

	inFlight atomic.Bool
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = logger.OrNop(l) }
}

// WithKeyFunc replaces the idempotency key generator.
func WithKeyFunc(fn func() string) Option {
	return func(s *Service) { s.newKey = fn }
}

func New(cart Cart, session Session, backend API, opts ...Option) *Service {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	s := &Service{
		cart:     cart,
		session:  session,
		api:      backend,
		log:      zap.NewNop(),
		newKey:   uuid.NewString,
		validate: v,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceOrder snapshots the cart and submits it as an order. The cart is not
// cleared here; it is cleared once payment is confirmed.
func (s *Service) PlaceOrder(ctx context.Context, addr domain.ShippingAddress) (domain.Order, error) {
	if !s.session.IsAuthenticated() {
		return domain.Order{}, ErrNotAuthenticated
	}
	lines := s.cart.Items()
	if len(lines) == 0 {
		return domain.Order{}, domain.ErrEmptyCart
	}
	addr = trimAddress(addr)
	if err := s.validate.Struct(addr); err != nil {
		return domain.Order{}, addressError(err)
	}

	if !s.inFlight.CompareAndSwap(false, true) {
		return domain.Order{}, ErrSubmissionInFlight
	}
	defer s.inFlight.Store(false)

	in := api.NewOrder{
		Items:           snapshot(lines),
		TotalAmount:     domain.CartTotal(lines),
		ShippingAddress: addr,
		IdempotencyKey:  s.newKey(),
	}
	log := logger.WithTrace(ctx, s.log).With(
		zap.Int("items", len(in.Items)),
		zap.String("total", in.TotalAmount.String()),
		zap.String("idempotency_key", in.IdempotencyKey))

	created, err := s.api.CreateOrder(ctx, in)
	if err != nil {
		log.Warn("order creation failed", zap.Error(err))
		return domain.Order{}, &OrderCreationError{Err: err}
	}
	log.Info("order created", zap.String("order_id", created.ID))
	return created, nil
}

// snapshot freezes each line's price as the price at purchase.
func snapshot(lines []domain.CartLine) []domain.OrderItem {
	items := make([]domain.OrderItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, domain.OrderItem{
			ProductID:       l.ProductID,
			Quantity:        l.Quantity,
			PriceAtPurchase: l.PriceAtAdd,
		})
	}
	return items
}

func (s *Service) MyOrders(ctx context.Context) ([]domain.Order, error) {
	if !s.session.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	return s.api.ListMyOrders(ctx)
}

// LatestPaid returns the most recent order when it has been paid.
func (s *Service) LatestPaid(ctx context.Context) (domain.Order, error) {
	orders, err := s.MyOrders(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	if len(orders) == 0 {
		return domain.Order{}, ErrNoPaidOrder
	}
	latest := orders[len(orders)-1]
	if latest.PaymentStatus != domain.PaymentStatusPaid {
		return domain.Order{}, ErrNoPaidOrder
	}
	return latest, nil
}

// Tracking returns the status timeline of an order. Timelines that skip or
// reverse lifecycle steps are rejected.
func (s *Service) Tracking(ctx context.Context, orderID string) (domain.OrderTracking, error) {
	if strings.TrimSpace(orderID) == "" {
		return domain.OrderTracking{}, &domain.ValidationError{Field: "orderId", Message: "order id is required"}
	}
	if !s.session.IsAuthenticated() {
		return domain.OrderTracking{}, ErrNotAuthenticated
	}
	tr, err := s.api.Tracking(ctx, orderID)
	if err != nil {
		return domain.OrderTracking{}, err
	}
	for i := 1; i < len(tr.Timeline); i++ {
		prev, next := tr.Timeline[i-1].Status, tr.Timeline[i].Status
		if prev == next {
			continue
		}
		if !prev.CanTransitionTo(next) {
			return domain.OrderTracking{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTimeline, prev, next)
		}
	}
	return tr, nil
}

func trimAddress(a domain.ShippingAddress) domain.ShippingAddress {
	return domain.ShippingAddress{
		Street:  strings.TrimSpace(a.Street),
		City:    strings.TrimSpace(a.City),
		State:   strings.TrimSpace(a.State),
		ZipCode: strings.TrimSpace(a.ZipCode),
	}
}

func addressError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &domain.ValidationError{
			Field:   "shippingAddress." + verrs[0].Field(),
			Message: "is required",
		}
	}
	return &domain.ValidationError{Field: "shippingAddress", Message: err.Error()}
}
