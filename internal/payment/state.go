package payment

// State is the step a payment flow is in.
type State string

const (
	StateSelectingMethod    State = "SELECTING_METHOD"
	StateMpesaAwaitingPhone State = "MPESA_AWAITING_PHONE"
	StateMpesaInitiated     State = "MPESA_INITIATED"
	StateMpesaCompleted     State = "MPESA_COMPLETED"
	StateMpesaFailed        State = "MPESA_FAILED"
	StateMpesaTimeout       State = "MPESA_TIMEOUT"
	StateCardRedirecting    State = "CARD_REDIRECTING"
)

var transitions = map[State][]State{
	StateSelectingMethod:    {StateMpesaAwaitingPhone, StateCardRedirecting},
	StateMpesaAwaitingPhone: {StateMpesaInitiated, StateSelectingMethod},
	StateMpesaInitiated:     {StateMpesaCompleted, StateMpesaFailed, StateMpesaTimeout},
	StateMpesaFailed:        {StateMpesaInitiated, StateSelectingMethod},
	StateMpesaTimeout:       {StateMpesaInitiated, StateSelectingMethod},
}

// CanTransitionTo reports whether a flow in s may move to next.
func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the flow has nothing left to do in s. Failed
// and timed out attempts are terminal for the attempt but the flow accepts
// a retry.
func (s State) IsTerminal() bool {
	switch s {
	case StateMpesaCompleted, StateMpesaFailed, StateMpesaTimeout, StateCardRedirecting:
		return true
	}
	return false
}

// Retryable reports whether a new attempt may be started from s.
func (s State) Retryable() bool {
	return s == StateMpesaFailed || s == StateMpesaTimeout
}

func (s State) String() string {
	return string(s)
}
