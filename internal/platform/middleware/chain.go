// Package middleware holds the inbound request pipeline stages.
package middleware

import "github.com/labstack/echo/v4"

// Chain composes stages into one middleware. stages[0] is outermost: it
// sees the request first and the result last.
func Chain(stages ...echo.MiddlewareFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		h := next
		for i := len(stages) - 1; i >= 0; i-- {
			if stages[i] != nil {
				h = stages[i](h)
			}
		}
		return h
	}
}
