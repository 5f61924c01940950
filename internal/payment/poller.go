package payment

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/campusmarket/storefront/internal/domain"
	"github.com/campusmarket/storefront/internal/logger"
)

// poll checks the push payment status every PollInterval, at most
// PollAttempts times. Each check starts only after the previous one has
// returned. Failed checks are logged and count toward the budget.
func (f *Flow) poll(ctx context.Context, checkoutID string, done chan struct{}) {
	defer close(done)
	cfg := f.svc.cfg
	log := logger.WithTrace(ctx, f.log).With(zap.String("checkout_request_id", checkoutID))

	for attempt := 1; attempt <= cfg.PollAttempts; attempt++ {
		if !sleep(ctx, cfg.PollInterval) {
			log.Debug("payment polling cancelled", zap.Int("attempt", attempt))
			return
		}

		st, err := f.svc.api.MpesaStatus(ctx, checkoutID)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Warn("payment status check failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		switch st.Status {
		case domain.ProviderStatusCompleted:
			log.Info("payment completed", zap.Int("attempt", attempt), zap.String("receipt", st.ReceiptNumber))
			f.complete(ctx, st.ReceiptNumber)
			return
		case domain.ProviderStatusFailed:
			log.Info("payment failed", zap.Int("attempt", attempt), zap.String("reason", st.FailureReason))
			f.finish(StateMpesaFailed, domain.AttemptStatusFailed, &domain.ProviderError{Reason: st.FailureReason}, st.FailureReason)
			return
		}
	}

	log.Warn("payment status unknown after poll budget", zap.Int("attempts", cfg.PollAttempts))
	f.finish(StateMpesaTimeout, domain.AttemptStatusTimeout, domain.ErrPaymentTimeout, "")
}

func (f *Flow) finish(state State, status domain.AttemptStatus, err error, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = state
	f.attempt.Status = status
	f.attempt.FailureReason = reason
	f.err = err
	f.submitting = false
}

// complete records the confirmed payment, clears the cart and, after the
// success display delay, navigates to the success view.
func (f *Flow) complete(ctx context.Context, receipt string) {
	f.mu.Lock()
	f.state = StateMpesaCompleted
	f.attempt.Status = domain.AttemptStatusCompleted
	f.attempt.ReceiptNumber = receipt
	f.err = nil
	f.submitting = false
	f.mu.Unlock()

	if f.svc.cart != nil {
		if err := f.svc.cart.ClearCart(ctx); err != nil {
			logger.WithTrace(ctx, f.log).Warn("cart not cleared after payment", zap.Error(err))
		}
	}

	if !sleep(ctx, f.svc.cfg.SuccessDelay) {
		return
	}
	f.svc.nav.ShowSuccess(f.orderID, f.amount, receipt)
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return ctx.Err() == nil
	case <-ctx.Done():
		return false
	}
}
