package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Logger writes one access line per request. Server errors log at error
// level, other failures at warn.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			latency := time.Since(start)

			res := c.Response()
			status := res.Status
			if err != nil && !res.Committed {
				status = StatusFor(err)
			}

			req := c.Request()
			accessLevel(logger, status, err).
				Str("request_id", RequestIDFrom(c)).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Str("route", c.Path()).
				Int("status", status).
				Int64("bytes_out", res.Size).
				Dur("latency", latency).
				Str("remote_ip", c.RealIP()).
				Msg("request")

			return err
		}
	}
}

func accessLevel(logger zerolog.Logger, status int, err error) *zerolog.Event {
	switch {
	case status >= 500:
		return logger.Error().Err(err)
	case status >= 400 || err != nil:
		return logger.Warn().Err(err)
	default:
		return logger.Info()
	}
}
