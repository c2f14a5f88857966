package tokenexchange

import (
	"errors"
	"fmt"
)

// ErrorKind classifies token exchange failures.
type ErrorKind string

const (
	// Unreachable covers transport failures, timeouts and cancellation.
	Unreachable ErrorKind = "unreachable"
	// Denied covers non-2xx replies and unusable token responses.
	Denied ErrorKind = "denied"
)

// AuthError is returned by GetToken when no usable token can be obtained.
type AuthError struct {
	Kind       ErrorKind
	StatusCode int // set for Denied replies with an HTTP status
	Err        error
}

func (e *AuthError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("token exchange %s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("token exchange %s (status %d)", e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("token exchange %s: %v", e.Kind, e.Err)
	default:
		return "token exchange " + string(e.Kind)
	}
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsUnreachable reports whether err carries an Unreachable AuthError.
func IsUnreachable(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.Kind == Unreachable
}

// IsDenied reports whether err carries a Denied AuthError.
func IsDenied(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.Kind == Denied
}

func unreachable(err error) *AuthError {
	return &AuthError{Kind: Unreachable, Err: err}
}

func denied(status int, err error) *AuthError {
	return &AuthError{Kind: Denied, StatusCode: status, Err: err}
}
