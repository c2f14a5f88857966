package downstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies downstream failures.
type Kind string

const (
	Timeout      Kind = "timeout"
	NotFound     Kind = "not_found"
	ServerError  Kind = "server_error"
	Unauthorized Kind = "unauthorized"
)

// Error is a normalized downstream failure.
type Error struct {
	Kind       Kind
	Service    string
	Operation  string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Service, e.Operation, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind carried by err, or "" if err is not a downstream
// Error.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsNotFound reports whether err is a NotFound downstream error.
func IsNotFound(err error) bool { return KindOf(err) == NotFound }

// IsTimeout reports whether err is a Timeout downstream error.
func IsTimeout(err error) bool { return KindOf(err) == Timeout }

// kindForStatus maps a non-2xx status to a Kind.
func kindForStatus(status int) Kind {
	switch status {
	case http.StatusNotFound:
		return NotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return Unauthorized
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return Timeout
	default:
		return ServerError
	}
}

// isTimeout reports whether a transport error is a deadline or network
// timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
