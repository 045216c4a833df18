package model

import "errors"

// Error taxonomy for the payout subsystem. Adapters never swallow provider
// errors; everything is surfaced wrapped in one of these sentinels so the
// caller can decide whether to refund, re-queue or retry.
var (
	// ErrAuthenticationFailed means provider token acquisition failed.
	// Fatal for the call; the token cache is left unchanged.
	ErrAuthenticationFailed = errors.New("provider authentication failed")

	// ErrUnsupportedMethod is a caller error, never retried
	ErrUnsupportedMethod = errors.New("unsupported payout method")

	// ErrInvalidInstrument means a builder rejected malformed instrument
	// fields. Caller error.
	ErrInvalidInstrument = errors.New("invalid instrument details")

	// ErrPayoutFailed means the provider explicitly rejected or errored
	// the transfer/charge. Not retried automatically; retrying a payout
	// risks duplicating a financial transfer.
	ErrPayoutFailed = errors.New("payout failed")

	// ErrVerificationFailed means a status query failed. Transient:
	// callers should treat it as "unknown, retry later", not as a failed
	// payout.
	ErrVerificationFailed = errors.New("payout verification failed")
)

// ProviderError wraps one of the taxonomy sentinels with the context the
// caller needs to log and act on the failure.
type ProviderError struct {
	kind     error
	Provider string
	Method   Method
	Message  string
}

// NewProviderError builds a ProviderError around a taxonomy sentinel
func NewProviderError(kind error, provider string, method Method, message string) *ProviderError {
	return &ProviderError{kind: kind, Provider: provider, Method: method, Message: message}
}

func (e *ProviderError) Error() string {
	msg := e.kind.Error()
	if e.Provider != "" {
		msg += " [" + e.Provider
		if e.Method != "" {
			msg += "/" + string(e.Method)
		}
		msg += "]"
	} else if e.Method != "" {
		msg += " [" + string(e.Method) + "]"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.kind
}
