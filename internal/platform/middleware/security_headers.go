package middleware

import (
	"github.com/labstack/echo/v4"
)

// HeaderPolicy selects the response headers SecurityHeaders sets.
type HeaderPolicy struct {
	// HSTS enables Strict-Transport-Security. Leave it off when the gateway
	// is served over plain HTTP behind a terminating proxy that sets it.
	HSTS bool
	// NoStore marks responses uncacheable unless skip reports true for the
	// request.
	NoStore bool
	Skip    func(echo.Context) bool
}

// SecurityHeaders sets the JSON API hardening headers on every response.
// Patient records are never cached by intermediaries when NoStore is set.
func SecurityHeaders(p HeaderPolicy) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Referrer-Policy", "no-referrer")
			if p.HSTS {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			if p.NoStore && (p.Skip == nil || !p.Skip(c)) {
				h.Set("Cache-Control", "no-store")
			}
			return next(c)
		}
	}
}
