package errors

import (
	"errors"
	"fmt"
)

// Common error values for the dashboard
var (
	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidSession  = errors.New("invalid session")

	// Token errors
	ErrNoRefreshToken = errors.New("no refresh token available")

	// Authorization flow errors
	ErrInvalidState   = errors.New("invalid state parameter")
	ErrInvalidNonce   = errors.New("invalid nonce")
	ErrMissingIDToken = errors.New("no id_token in token response")

	// Request validation errors
	ErrSearchTermTooShort = errors.New("search term too short")
	ErrMissingAccountID   = errors.New("account id is required")
	ErrInvalidRequest     = errors.New("invalid request body")

	// General errors
	ErrInternal = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// New is errors.New, re-exported so callers only import this package
func New(text string) error {
	return errors.New(text)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
