package fakebackend

import (
	"math/rand"
	"strings"

	"github.com/google/uuid"

	"github.com/campusmarket/storefront/internal/domain"
)

// ProviderReply is what the mobile-money provider reports for one status
// check.
type ProviderReply struct {
	Status        domain.ProviderStatus
	Receipt       string
	FailureReason string
}

// StatusSource decides the provider's answer to the check-th status query
// (1-based) of a push payment.
type StatusSource interface {
	Status(checkoutRequestID string, check int) ProviderReply
}

// CompleteOnCheck reports pending until check n, then completed.
type CompleteOnCheck int

func (n CompleteOnCheck) Status(_ string, check int) ProviderReply {
	if check < int(n) {
		return ProviderReply{Status: domain.ProviderStatusPending}
	}
	return ProviderReply{Status: domain.ProviderStatusCompleted}
}

// ScriptedStatus replies in order; the last reply repeats.
type ScriptedStatus []ProviderReply

func (s ScriptedStatus) Status(_ string, check int) ProviderReply {
	if len(s) == 0 {
		return ProviderReply{Status: domain.ProviderStatusPending}
	}
	i := min(max(check-1, 0), len(s)-1)
	return s[i]
}

// RandomStatus stays pending for SettleAfter-1 checks and then settles,
// completing 95% of payments.
type RandomStatus struct {
	SettleAfter int
}

func (r RandomStatus) Status(_ string, check int) ProviderReply {
	if check < r.SettleAfter {
		return ProviderReply{Status: domain.ProviderStatusPending}
	}
	return calcStatus(rand.Intn(101))
}

var refusals = []string{
	"Request cancelled by user",
	"Insufficient balance",
	"DS timeout user cannot be reached",
	"Invalid PIN",
	"Transaction expired",
}

func calcStatus(randomInt int) ProviderReply {
	if randomInt < 95 {
		return ProviderReply{Status: domain.ProviderStatusCompleted}
	}
	other := randomInt - 95
	if other == 0 || other > len(refusals) {
		return ProviderReply{Status: domain.ProviderStatusFailed, FailureReason: "unknown reason"}
	}
	return ProviderReply{Status: domain.ProviderStatusFailed, FailureReason: refusals[other-1]}
}

func newReceipt() string {
	return "Q" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:9])
}
