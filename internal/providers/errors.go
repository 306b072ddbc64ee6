package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrMissingCredential is returned by adapter constructors when no API key
// was supplied. It never reaches the network.
var ErrMissingCredential = errors.New("missing provider credential")

// ErrorKind is the uniform failure taxonomy every adapter maps its backend
// errors into.
type ErrorKind string

const (
	// KindTransport covers network failures, non-success statuses and
	// timeouts.
	KindTransport ErrorKind = "transport"
	// KindProvider covers errors the backend reported about the request
	// itself (bad model, content refusal, quota).
	KindProvider ErrorKind = "provider"
)

// Error is a classified provider failure.
type Error struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewTransportError classifies err as a transport failure for provider.
func NewTransportError(provider string, err error) *Error {
	return &Error{Provider: provider, Kind: KindTransport, Err: err}
}

// NewProviderError classifies err as a backend-reported failure for provider.
func NewProviderError(provider string, err error) *Error {
	return &Error{Provider: provider, Kind: KindProvider, Err: err}
}

// Classify wraps an arbitrary adapter error into the taxonomy. Context
// cancellation and deadline expiry are transport failures: a provider that
// cannot answer inside the budget is treated like one that is down.
func Classify(provider string, err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewTransportError(provider, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return NewTransportError(provider, err)
	}
	return NewProviderError(provider, err)
}

// KindOf extracts the failure kind, defaulting to transport for unclassified
// errors so unknown failures still trigger fallback.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindTransport
}
