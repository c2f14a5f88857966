package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Recovery converts a panic into a 500 error for the error handler. It runs
// outermost, so the audit stage has already recorded the request and
// re-raised by the time a panic arrives here.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}

				cause, ok := r.(error)
				if !ok {
					cause = fmt.Errorf("panic: %v", r)
				}
				logger.Error().
					Err(cause).
					Str("request_id", RequestIDFrom(c)).
					Str("method", c.Request().Method).
					Str("route", c.Path()).
					Str("stack", string(debug.Stack())).
					Msg("panic recovered")

				he := echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
				he.Internal = cause
				err = he
			}()
			return next(c)
		}
	}
}
