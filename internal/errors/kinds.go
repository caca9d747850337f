package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ServiceUnavailable is the user-facing message for transport failures.
const ServiceUnavailable = "service unavailable"

// ConfigurationError reports required settings that are missing or invalid.
type ConfigurationError struct {
	Missing []string // Setting names that are absent
	Invalid []string // Setting names that are present but unusable
}

func (e *ConfigurationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid "+strings.Join(e.Invalid, ", "))
	}
	if len(parts) == 0 {
		return "configuration error"
	}
	return "configuration error: " + strings.Join(parts, "; ")
}

// AuthenticationError means the caller has no usable session.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	if e.Reason == "" {
		return "authentication required"
	}
	return "authentication required: " + e.Reason
}

// RefreshError means the access token could not be renewed. The session is
// marked with a terminal error and the user must sign in again.
type RefreshError struct {
	Cause error
}

func (e *RefreshError) Error() string {
	if e.Cause == nil {
		return "token refresh failed"
	}
	return "token refresh failed: " + e.Cause.Error()
}

func (e *RefreshError) Unwrap() error {
	return e.Cause
}

// TransportError wraps a network failure talking to the identity provider or the backend.
type TransportError struct {
	Op       string // e.g. "GET /dashboard/summary"
	Err      error
	Timeout  bool
	Canceled bool
}

func (e *TransportError) Error() string {
	reason := "unreachable"
	switch {
	case e.Canceled:
		reason = "canceled"
	case e.Timeout:
		reason = "timeout"
	}
	return fmt.Sprintf("%s: %s %s", ServiceUnavailable, e.Op, reason)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// UpstreamError carries a non-2xx backend response through to the caller.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error %d: %s", e.Status, e.Message)
}

// ProviderError is a rejection from the identity provider token endpoint.
type ProviderError struct {
	Status      int
	Code        string // OAuth2 "error" field
	Description string // OAuth2 "error_description" field
}

func (e *ProviderError) Error() string {
	msg := e.Description
	if msg == "" {
		msg = e.Code
	}
	if msg == "" {
		msg = "error refreshing token"
	}
	return fmt.Sprintf("provider error %d: %s", e.Status, msg)
}

// NewTransportError classifies err as a timeout, a cancellation, or an unreachable service.
func NewTransportError(op string, err error) *TransportError {
	te := &TransportError{Op: op, Err: err}
	if errors.Is(err, context.Canceled) {
		te.Canceled = true
		return te
	}
	if errors.Is(err, context.DeadlineExceeded) {
		te.Timeout = true
		return te
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		te.Timeout = true
	}
	return te
}

// IsCanceled reports whether err stems from the caller abandoning the request.
func IsCanceled(err error) bool {
	var te *TransportError
	if errors.As(err, &te) && te.Canceled {
		return true
	}
	return errors.Is(err, context.Canceled)
}
