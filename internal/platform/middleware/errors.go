package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/bcgov/healthgateway-sub024/internal/platform/downstream"
	"github.com/bcgov/healthgateway-sub024/internal/platform/tokenexchange"
)

// StatusClientClosedRequest is recorded when the caller goes away before the
// response is written.
const StatusClientClosedRequest = 499

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// StatusFor maps an error from any pipeline layer to the HTTP status the
// caller receives.
func StatusFor(err error) int {
	status, _ := classify(err)
	return status
}

func classify(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprint(he.Message)
	}

	var ae *tokenexchange.AuthError
	if errors.As(err, &ae) {
		if ae.Kind == tokenexchange.Unreachable {
			return http.StatusServiceUnavailable, "token service unavailable"
		}
		return http.StatusBadGateway, "token service denied the gateway credentials"
	}

	var de *downstream.Error
	if errors.As(err, &de) {
		switch de.Kind {
		case downstream.Timeout:
			return http.StatusGatewayTimeout, de.Service + " did not respond in time"
		case downstream.NotFound:
			return http.StatusNotFound, "resource not found"
		default:
			return http.StatusBadGateway, de.Service + " request failed"
		}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "request timed out"
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, "client closed request"
	}
	return http.StatusInternalServerError, "internal server error"
}

func errorCode(status int) string {
	if status == StatusClientClosedRequest {
		return "client_closed_request"
	}
	text := http.StatusText(status)
	if text == "" {
		return "error"
	}
	return strings.ReplaceAll(strings.ToLower(text), " ", "_")
}

// ErrorHandler renders errors as ErrorBody and logs server-side failures.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, message := classify(err)
		rid := RequestIDFrom(c)
		if status >= 500 {
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Int("status", status).
				Msg("request failed")
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, ErrorBody{Error: errorCode(status), Message: message, RequestID: rid})
		}
		if werr != nil {
			logger.Error().Err(werr).Str("request_id", rid).Msg("failed to write error response")
		}
	}
}

// RenderErrors writes a handler error through the echo error handler as
// soon as it is returned, so the stages outside it see the final status on
// the response.
func RenderErrors() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := next(c); err != nil {
				c.Error(err)
			}
			return nil
		}
	}
}
