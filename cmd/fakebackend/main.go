package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/campusmarket/storefront/internal/config"
	"github.com/campusmarket/storefront/internal/fakebackend"
	"github.com/campusmarket/storefront/internal/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	srv := fakebackend.New(
		fakebackend.WithLogger(log),
		fakebackend.WithPublicURL("http://localhost:"+cfg.FakeBackendPort),
		fakebackend.WithCountryCode(cfg.Payment.CountryCode),
		fakebackend.WithStatusSource(fakebackend.RandomStatus{SettleAfter: 2}),
	)
	if err := srv.SeedDemo(); err != nil {
		log.Fatal("seed demo data", zap.Error(err))
	}

	httpSrv := &http.Server{
		Addr:         ":" + cfg.FakeBackendPort,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("fake backend starting", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}
	log.Info("server exited")
}
