package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// DelegateScope lets a caller read another subject's records.
const DelegateScope = "patient/*.read"

// RequireRole returns middleware that checks if the user has at least one of
// the specified roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFrom(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, ErrMissingToken.Error())
			}
			for _, required := range roles {
				if p.HasRole(required) {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// RequireSubjectAccess allows the request when the HDID it concerns belongs
// to the caller, or the caller is an admin or holds DelegateScope. hdidFrom
// extracts the requested HDID; an empty HDID is left to the handler.
func RequireSubjectAccess(hdidFrom func(echo.Context) string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFrom(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, ErrMissingToken.Error())
			}
			hdid := hdidFrom(c)
			if hdid == "" || hdid == p.HDID || p.HasRole(RoleAdmin) || p.HasScope(DelegateScope) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusForbidden, "access to subject denied")
		}
	}
}

// HDIDFromRequest reads the hdid path parameter, then the hdid query
// parameter.
func HDIDFromRequest(c echo.Context) string {
	if v := c.Param("hdid"); v != "" {
		return v
	}
	return c.QueryParam("hdid")
}

// matchScope checks if a granted scope covers the required scope.
// Supports wildcards: "user/*.*" matches everything, "patient/*.read" matches
// any read.
func matchScope(granted, required string) bool {
	if granted == required {
		return true
	}

	gRes, gOp, ok := strings.Cut(granted, ".")
	if !ok {
		return false
	}
	rRes, rOp, ok := strings.Cut(required, ".")
	if !ok {
		return false
	}

	resMatch := gRes == rRes || gRes == "user/*" || gRes == "patient/*"
	opMatch := gOp == rOp || gOp == "*"

	return resMatch && opMatch
}
