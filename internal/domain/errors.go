package domain

import (
	"errors"
	"fmt"
)

// ValidationError is raised before any network call when caller input is
// unusable. It is surfaced inline and never retried by the system.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// Is lets errors.Is match sentinel validation errors by field and message.
func (e *ValidationError) Is(target error) bool {
	var t *ValidationError
	if !errors.As(target, &t) {
		return false
	}
	return e.Field == t.Field && e.Message == t.Message
}

var (
	ErrEmptyCart    = &ValidationError{Field: "cart", Message: "cart is empty, nothing to checkout"}
	ErrInvalidPhone = &ValidationError{Field: "phoneNumber", Message: "phone number must be the country code followed by 9 digits"}
)

// NetworkError marks a request that never produced a usable backend answer:
// transport failure, 5xx, or an open circuit breaker.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func IsNetwork(err error) bool {
	var n *NetworkError
	return errors.As(err, &n)
}

const genericProviderFailure = "Payment failed. Please try again."

// ProviderError is an explicit failure reported by a payment provider. It is
// terminal for the current attempt.
type ProviderError struct {
	Reason string
}

func (e *ProviderError) Error() string {
	if e.Reason == "" {
		return genericProviderFailure
	}
	return "Payment failed: " + e.Reason
}

// ErrPaymentTimeout is not a failure: the provider never reported an outcome
// within the poll budget, so money may already have moved.
var ErrPaymentTimeout = errors.New("payment status unknown: we did not receive a confirmation in time; " +
	"your account may have been charged, please verify on your phone before retrying")
