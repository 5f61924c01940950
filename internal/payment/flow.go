package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/campusmarket/storefront/internal/api"
	"github.com/campusmarket/storefront/internal/domain"
	"github.com/campusmarket/storefront/internal/logger"
)

var (
	ErrInvalidTransition = errors.New("payment: action not allowed in current state")
	ErrSubmitInFlight    = errors.New("payment: a payment request is already in progress")
	ErrFlowClosed        = errors.New("payment: flow closed")
)

// API is the payment part of the backend.
type API interface {
	InitiateMpesa(ctx context.Context, orderID string, amount decimal.Decimal, phone, idempotencyKey string) (string, error)
	MpesaStatus(ctx context.Context, checkoutRequestID string) (api.MpesaStatus, error)
	InitializeHosted(ctx context.Context, orderID string, amount decimal.Decimal) (api.HostedSession, error)
	VerifyHosted(ctx context.Context, txRef string) (string, error)
}

// Navigator moves the shopper to another view.
type Navigator interface {
	ShowSuccess(orderID string, amount decimal.Decimal, receipt string)
	Redirect(url string)
}

// CartClearer empties the cart once a payment is confirmed.
type CartClearer interface {
	ClearCart(ctx context.Context) error
}

type Config struct {
	CountryCode  string
	PollInterval time.Duration
	PollAttempts int
	SuccessDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		CountryCode:  DefaultCountryCode,
		PollInterval: 6 * time.Second,
		PollAttempts: 20,
		SuccessDelay: 2 * time.Second,
	}
}

// Outcome is a snapshot of a flow.
type Outcome struct {
	State   State
	Attempt domain.PaymentAttempt
	// Err is the reason the last attempt did not succeed, if any.
	Err error
	// Submitting is true while a request or poll loop is active and the
	// submit control must stay disabled.
	Submitting bool
}

// Service creates payment flows and interprets hosted payment returns.
type Service struct {
	cfg    Config
	api    API
	nav    Navigator
	cart   CartClearer
	log    *zap.Logger
	newKey func() string
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = logger.OrNop(l) }
}

func WithKeyFunc(fn func() string) Option {
	return func(s *Service) { s.newKey = fn }
}

func NewService(cfg Config, backend API, nav Navigator, cart CartClearer, opts ...Option) *Service {
	def := DefaultConfig()
	if cfg.CountryCode == "" {
		cfg.CountryCode = def.CountryCode
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.PollAttempts < 1 {
		cfg.PollAttempts = def.PollAttempts
	}
	if cfg.SuccessDelay < 0 {
		cfg.SuccessDelay = 0
	}
	s := &Service{
		cfg:    cfg,
		api:    backend,
		nav:    nav,
		cart:   cart,
		log:    zap.NewNop(),
		newKey: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Flow drives one order from method selection to a terminal state.
type Flow struct {
	svc     *Service
	orderID string
	amount  decimal.Decimal
	log     *zap.Logger

	mu         sync.Mutex
	state      State
	attempt    domain.PaymentAttempt
	err        error
	submitting bool
	closed     bool
	cancel     context.CancelFunc
	done       chan struct{}
}

func (s *Service) NewFlow(orderID string, amount decimal.Decimal) (*Flow, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, &domain.ValidationError{Field: "orderId", Message: "order id is required"}
	}
	if !amount.IsPositive() {
		return nil, &domain.ValidationError{Field: "amount", Message: "amount must be positive"}
	}
	return &Flow{
		svc:     s,
		orderID: orderID,
		amount:  amount,
		log:     s.log.With(zap.String("order_id", orderID)),
		state:   StateSelectingMethod,
	}, nil
}

func (f *Flow) Snapshot() Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

func (f *Flow) snapshotLocked() Outcome {
	return Outcome{State: f.state, Attempt: f.attempt, Err: f.err, Submitting: f.submitting}
}

func (f *Flow) ChooseMpesa() error {
	return f.move(StateMpesaAwaitingPhone)
}

// Retry returns to method selection after a failed or timed out attempt, or
// backs out of the phone form.
func (f *Flow) Retry() error {
	return f.move(StateSelectingMethod)
}

func (f *Flow) move(next State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrFlowClosed
	}
	if f.submitting || !f.state.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, f.state, next)
	}
	f.state = next
	f.err = nil
	return nil
}

// SubmitPhone validates the number, requests the push payment and starts
// polling its status in the background. The submit guard is taken before
// any network call, so a second submission fails with ErrSubmitInFlight.
func (f *Flow) SubmitPhone(ctx context.Context, raw string) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrFlowClosed
	}
	if f.submitting {
		f.mu.Unlock()
		return ErrSubmitInFlight
	}
	if !f.state.CanTransitionTo(StateMpesaInitiated) {
		state := f.state
		f.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, state, StateMpesaInitiated)
	}
	phone, err := ValidatePhone(raw, f.svc.cfg.CountryCode)
	if err != nil {
		f.mu.Unlock()
		return err
	}
	f.submitting = true
	f.err = nil
	f.mu.Unlock()

	checkoutID, err := f.svc.api.InitiateMpesa(ctx, f.orderID, f.amount, phone, f.svc.newKey())

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.submitting = false
		f.err = err
		logger.WithTrace(ctx, f.log).Warn("mpesa initiation failed", zap.Error(err))
		return err
	}
	if f.closed {
		f.submitting = false
		return ErrFlowClosed
	}

	f.attempt = domain.PaymentAttempt{
		OrderID:           f.orderID,
		Amount:            f.amount,
		Method:            domain.PaymentMethodMpesa,
		CheckoutRequestID: checkoutID,
		Status:            domain.AttemptStatusInitiated,
	}
	f.state = StateMpesaInitiated

	pollCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	f.cancel = cancel
	f.done = make(chan struct{})
	go f.poll(pollCtx, checkoutID, f.done)

	logger.WithTrace(ctx, f.log).Info("mpesa payment initiated", zap.String("checkout_request_id", checkoutID))
	return nil
}

// ChooseCard opens a hosted payment session and redirects to it.
func (f *Flow) ChooseCard(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrFlowClosed
	}
	if f.submitting {
		f.mu.Unlock()
		return ErrSubmitInFlight
	}
	if !f.state.CanTransitionTo(StateCardRedirecting) {
		state := f.state
		f.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, state, StateCardRedirecting)
	}
	f.submitting = true
	f.err = nil
	f.mu.Unlock()

	hosted, err := f.svc.api.InitializeHosted(ctx, f.orderID, f.amount)

	f.mu.Lock()
	if err != nil {
		f.submitting = false
		f.err = err
		f.mu.Unlock()
		logger.WithTrace(ctx, f.log).Warn("hosted payment initialization failed", zap.Error(err))
		return err
	}
	if f.closed {
		f.submitting = false
		f.mu.Unlock()
		return ErrFlowClosed
	}
	f.attempt = domain.PaymentAttempt{
		OrderID:       f.orderID,
		Amount:        f.amount,
		Method:        domain.PaymentMethodCard,
		TransactionID: hosted.TransactionID,
		Status:        domain.AttemptStatusInitiated,
	}
	f.state = StateCardRedirecting
	f.mu.Unlock()

	logger.WithTrace(ctx, f.log).Info("redirecting to hosted payment", zap.String("transaction_id", hosted.TransactionID))
	f.svc.nav.Redirect(hosted.PaymentURL)
	return nil
}

// Wait blocks until the running poll loop, if any, has finished and returns
// the resulting snapshot.
func (f *Flow) Wait(ctx context.Context) (Outcome, error) {
	f.mu.Lock()
	done := f.done
	f.mu.Unlock()
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return f.Snapshot(), ctx.Err()
		}
	}
	return f.Snapshot(), nil
}

// Close cancels polling and waits for the loop to stop. No status check is
// issued after Close returns.
func (f *Flow) Close() {
	f.mu.Lock()
	f.closed = true
	cancel, done := f.cancel, f.done
	f.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}
