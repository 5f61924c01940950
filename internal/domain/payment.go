package domain

import "github.com/shopspring/decimal"

type PaymentMethod string

const (
	PaymentMethodMpesa PaymentMethod = "mpesa"
	PaymentMethodCard  PaymentMethod = "card"
)

type AttemptStatus string

const (
	AttemptStatusInitiated AttemptStatus = "initiated"
	AttemptStatusCompleted AttemptStatus = "completed"
	AttemptStatusFailed    AttemptStatus = "failed"
	AttemptStatusTimeout   AttemptStatus = "timeout"
)

func (s AttemptStatus) IsTerminal() bool {
	return s == AttemptStatusCompleted || s == AttemptStatusFailed || s == AttemptStatusTimeout
}

// String representation (for logging)
func (s AttemptStatus) String() string {
	return string(s)
}

// PaymentAttempt lives only for the duration of one payment flow run.
type PaymentAttempt struct {
	OrderID           string
	Amount            decimal.Decimal
	Method            PaymentMethod
	CheckoutRequestID string
	TransactionID     string
	Status            AttemptStatus
	ReceiptNumber     string
	FailureReason     string
}

// ProviderStatus is what the mobile-money status endpoint reports for a
// checkout request.
type ProviderStatus string

const (
	ProviderStatusPending   ProviderStatus = "pending"
	ProviderStatusCompleted ProviderStatus = "completed"
	ProviderStatusFailed    ProviderStatus = "failed"
)
