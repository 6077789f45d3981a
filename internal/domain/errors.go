package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderNotFound is returned when a provider id is not registered.
	ErrProviderNotFound = errors.New("provider not found")

	// ErrUnsupported is returned when a provider lacks an optional operation.
	ErrUnsupported = errors.New("operation not supported by provider")
)

// AuthError reports that a session could not be established.
type AuthError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: authentication failed: %s: %v", e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: authentication failed: %s", e.Provider, e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// TransportError reports a network, timeout or unexpected status failure.
// StatusCode is zero when no response was received.
type TransportError struct {
	Provider   string
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s: %s returned status %d: %v", e.Provider, e.URL, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: %s returned status %d", e.Provider, e.URL, e.StatusCode)
	default:
		return fmt.Sprintf("%s: request %s: %v", e.Provider, e.URL, e.Err)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }
