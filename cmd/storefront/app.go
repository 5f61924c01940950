package main

import (
	"context"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/campusmarket/storefront/internal/api"
	"github.com/campusmarket/storefront/internal/cart"
	"github.com/campusmarket/storefront/internal/config"
	"github.com/campusmarket/storefront/internal/logger"
	"github.com/campusmarket/storefront/internal/order"
	"github.com/campusmarket/storefront/internal/payment"
	"github.com/campusmarket/storefront/internal/session"
	"github.com/campusmarket/storefront/internal/storage"
)

// app is the wired storefront for one command invocation.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	out      io.Writer
	store    storage.Store
	client   *api.Client
	session  *session.Service
	cart     *cart.State
	orders   *order.Service
	payments *payment.Service

	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config, out io.Writer) (*app, error) {
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	a := &app{cfg: cfg, log: log, out: out}

	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	a.store = store
	if closeStore != nil {
		a.closers = append(a.closers, closeStore)
	}

	a.client, err = api.New(cfg.API.BaseURL,
		api.WithLogger(log),
		api.WithRequestTimeout(cfg.API.RequestTimeout),
		api.WithBreaker(api.BreakerSettings{
			MaxFailures: cfg.Breaker.MaxFailures,
			OpenTimeout: cfg.Breaker.OpenTimeout,
		}),
	)
	if err != nil {
		return nil, err
	}

	a.session = session.New(store, a.client, session.WithLogger(log))
	a.client.SetTokenSource(api.TokenFunc(a.session.Token))

	a.cart = cart.New(store, a.client, cart.WithLogger(log))
	a.cart.Init(ctx)
	a.session.Subscribe(a.cart)
	a.session.Init(ctx)

	a.orders = order.New(a.cart, a.session, a.client, order.WithLogger(log))
	a.payments = payment.NewService(payment.Config{
		CountryCode:  cfg.Payment.CountryCode,
		PollInterval: cfg.Payment.PollInterval,
		PollAttempts: cfg.Payment.PollAttempts,
		SuccessDelay: cfg.Payment.SuccessDelay,
	}, a.client, terminalNav{out: out}, a.cart, payment.WithLogger(log))
	return a, nil
}

func openStore(ctx context.Context, cfg config.StoreConfig) (storage.Store, func() error, error) {
	switch cfg.Backend {
	case config.StoreBackendRedis:
		rs, err := storage.NewRedisStoreWithConfig(ctx, storage.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return rs, rs.Close, nil
	case config.StoreBackendMemory:
		return storage.NewMemoryStore(), nil, nil
	default:
		fs, err := storage.NewFileStore(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return fs, nil, nil
	}
}

// close pushes pending cart saves to the server before the process exits.
func (a *app) close(ctx context.Context) {
	if a.cart != nil {
		if err := a.cart.Close(ctx); err != nil {
			a.log.Warn("pending cart saves not flushed", zap.Error(err))
		}
	}
	for _, c := range a.closers {
		_ = c()
	}
	_ = a.log.Sync()
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// terminalNav prints where a browser would navigate.
type terminalNav struct {
	out io.Writer
}

func (n terminalNav) ShowSuccess(orderID string, amount decimal.Decimal, receipt string) {
	fmt.Fprintf(n.out, "Payment successful\n  order:   %s\n  amount:  %s\n  receipt: %s\n", orderID, money(amount), receipt)
}

func (n terminalNav) Redirect(url string) {
	fmt.Fprintf(n.out, "Complete your payment at:\n  %s\n", url)
}

func money(d decimal.Decimal) string {
	return "KES " + d.StringFixed(2)
}
