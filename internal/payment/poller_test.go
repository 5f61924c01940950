package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gotest.tools/v3/assert"

	"github.com/campusmarket/storefront/internal/api"
	"github.com/campusmarket/storefront/internal/domain"
)

func submit(t *testing.T, f *Flow) {
	t.Helper()
	require.NoError(t, f.ChooseMpesa())
	require.NoError(t, f.SubmitPhone(context.Background(), "254700000000"))
	assert.Equal(t, f.Snapshot().State, StateMpesaInitiated)
}

func TestPoll_CompletesOnLastAllowedCheck(t *testing.T) {
	backend := &fakeAPI{statuses: append(pending(19), api.MpesaStatus{
		Status: domain.ProviderStatusCompleted, ReceiptNumber: "QKJ4X1",
	})}
	f, nav, cart := newFlow(t, backend, fastConfig())
	submit(t, f)

	out := wait(t, f)
	assert.Equal(t, out.State, StateMpesaCompleted)
	assert.Equal(t, out.Attempt.Status, domain.AttemptStatusCompleted)
	assert.Equal(t, out.Attempt.ReceiptNumber, "QKJ4X1")
	assert.Equal(t, backend.checkCount(), 20)
	assert.Equal(t, cart.clearCount(), 1)

	assert.Equal(t, len(nav.successes), 1)
	assert.Equal(t, nav.successes[0].orderID, "o1")
	assert.Equal(t, nav.successes[0].receipt, "QKJ4X1")
	assert.Assert(t, nav.successes[0].amount.Equal(decimal.NewFromInt(500)))
}

func TestPoll_TimesOutAfterBudget(t *testing.T) {
	backend := &fakeAPI{statuses: pending(1)}
	f, nav, cart := newFlow(t, backend, fastConfig())
	submit(t, f)

	out := wait(t, f)
	assert.Equal(t, out.State, StateMpesaTimeout)
	assert.Equal(t, out.Attempt.Status, domain.AttemptStatusTimeout)
	assert.ErrorIs(t, out.Err, domain.ErrPaymentTimeout)
	assert.Assert(t, !out.Submitting, "submit control is re-enabled")
	assert.Equal(t, backend.checkCount(), 20)
	assert.Equal(t, len(nav.successes), 0)
	assert.Equal(t, cart.clearCount(), 0)

	var provider *domain.ProviderError
	assert.Assert(t, !errors.As(out.Err, &provider), "timeout is not a provider failure")

	// a fresh attempt can be submitted straight away
	require.NoError(t, f.SubmitPhone(context.Background(), "254700000000"))
	assert.Equal(t, f.Snapshot().State, StateMpesaInitiated)
}

func TestPoll_ProviderFailure(t *testing.T) {
	backend := &fakeAPI{statuses: append(pending(2), api.MpesaStatus{
		Status: domain.ProviderStatusFailed, FailureReason: "Request cancelled by user",
	})}
	f, _, cart := newFlow(t, backend, fastConfig())
	submit(t, f)

	out := wait(t, f)
	assert.Equal(t, out.State, StateMpesaFailed)
	assert.Equal(t, out.Attempt.FailureReason, "Request cancelled by user")
	assert.Error(t, out.Err, "Payment failed: Request cancelled by user")
	assert.Assert(t, !out.Submitting)
	assert.Equal(t, backend.checkCount(), 3)
	assert.Equal(t, cart.clearCount(), 0)

	require.NoError(t, f.Retry())
	assert.Equal(t, f.Snapshot().State, StateSelectingMethod)
}

func TestPoll_ProviderFailureWithoutReason(t *testing.T) {
	backend := &fakeAPI{statuses: []api.MpesaStatus{{Status: domain.ProviderStatusFailed}}}
	f, _, _ := newFlow(t, backend, fastConfig())
	submit(t, f)

	out := wait(t, f)
	assert.Error(t, out.Err, "Payment failed. Please try again.")
}

func TestPoll_NetworkErrorsAreTransient(t *testing.T) {
	netErr := &domain.NetworkError{Op: "GET /payment/mpesa/status/x", Err: errors.New("timeout")}
	backend := &fakeAPI{
		statusErrs: []error{netErr, netErr, netErr},
		statuses: append(pending(3), api.MpesaStatus{
			Status: domain.ProviderStatusCompleted, ReceiptNumber: "R9",
		}),
	}
	f, _, _ := newFlow(t, backend, fastConfig())
	submit(t, f)

	out := wait(t, f)
	assert.Equal(t, out.State, StateMpesaCompleted)
	assert.Equal(t, backend.checkCount(), 4)
}

func TestPoll_NetworkErrorsCountTowardBudget(t *testing.T) {
	netErr := errors.New("unreachable")
	errs := make([]error, 20)
	for i := range errs {
		errs[i] = netErr
	}
	backend := &fakeAPI{statusErrs: errs}
	f, _, _ := newFlow(t, backend, fastConfig())
	submit(t, f)

	out := wait(t, f)
	assert.Equal(t, out.State, StateMpesaTimeout)
	assert.Equal(t, backend.checkCount(), 20)
}

func TestPoll_CloseStopsChecks(t *testing.T) {
	cfg := fastConfig()
	cfg.PollInterval = 20 * time.Millisecond
	backend := &fakeAPI{statuses: pending(1)}
	f, nav, _ := newFlow(t, backend, cfg)
	submit(t, f)

	time.Sleep(70 * time.Millisecond)
	f.Close()
	checks := backend.checkCount()
	assert.Assert(t, checks < 20)

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, backend.checkCount(), checks, "no check after Close")
	assert.Equal(t, f.Snapshot().State, StateMpesaInitiated)
	assert.Equal(t, len(nav.successes), 0)
	assert.ErrorIs(t, f.SubmitPhone(context.Background(), "254700000000"), ErrFlowClosed)
}

func TestPoll_CloseDuringSuccessDelaySkipsNavigation(t *testing.T) {
	cfg := fastConfig()
	cfg.SuccessDelay = time.Hour
	backend := &fakeAPI{statuses: []api.MpesaStatus{{Status: domain.ProviderStatusCompleted, ReceiptNumber: "R1"}}}
	f, nav, cart := newFlow(t, backend, cfg)
	submit(t, f)

	deadline := time.Now().Add(2 * time.Second)
	for f.Snapshot().State != StateMpesaCompleted && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	f.Close()

	assert.Equal(t, f.Snapshot().State, StateMpesaCompleted)
	assert.Equal(t, cart.clearCount(), 1)
	assert.Equal(t, len(nav.successes), 0)
}
