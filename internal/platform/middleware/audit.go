package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/mssola/useragent"
	"go.opentelemetry.io/otel/trace"

	"github.com/bcgov/healthgateway-sub024/internal/platform/audit"
	"github.com/bcgov/healthgateway-sub024/internal/platform/auth"
)

// Audit opens an audit entry for each request and finalizes it exactly once
// when the rest of the chain returns, fails or panics. A panic is recorded
// as a 500 failure and re-raised for Recovery.
func Audit(rec *audit.Recorder, skipper func(echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			if skipper != nil && skipper(c) {
				return next(c)
			}

			ctx := c.Request().Context()
			entry := rec.Start(eventFor(c))

			defer func() {
				r := recover()
				status, cause := finalStatus(ctx, c, err, r)
				entry.Complete(ctx, status, cause)
				if r != nil {
					panic(r)
				}
			}()

			return next(c)
		}
	}
}

func finalStatus(ctx context.Context, c echo.Context, err error, panicked any) (int, error) {
	switch {
	case panicked != nil:
		return http.StatusInternalServerError, fmt.Errorf("panic: %v", panicked)
	case err != nil && !c.Response().Committed:
		return StatusFor(err), err
	case err == nil && !c.Response().Committed && ctx.Err() != nil:
		return StatusFor(ctx.Err()), ctx.Err()
	}
	return c.Response().Status, err
}

// eventFor builds the entry-time view of the request.
func eventFor(c echo.Context) audit.Event {
	req := c.Request()
	ctx := req.Context()
	principal, _ := auth.PrincipalFrom(ctx)

	version, resource := routeResource(req.URL.Path)
	ev := audit.Event{
		ActorID:      principal.Subject,
		ResourceName: resource,
		Application:  resource,
		Version:      version,
		Action:       audit.ActionForMethod(req.Method),
		Method:       req.Method,
		Path:         req.URL.Path,
		ClientIP:     c.RealIP(),
		UserAgent:    summarizeUserAgent(req.UserAgent()),
		Subject:      subjectOf(c, principal),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		ev.TraceID = sc.TraceID().String()
	} else {
		ev.TraceID = RequestIDFrom(c)
	}
	return ev
}

// routeResource parses /v{n}/api/{Resource}/... into ("n", "Resource").
// Other paths yield their first segment.
func routeResource(path string) (version, resource string) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) >= 3 && len(segments[0]) > 1 && segments[0][0] == 'v' && segments[1] == "api" {
		return segments[0][1:], segments[2]
	}
	if segments[0] != "" {
		return "", segments[0]
	}
	return "", "unknown"
}

func subjectOf(c echo.Context, p auth.Principal) string {
	if hdid := auth.HDIDFromRequest(c); hdid != "" {
		return hdid
	}
	return p.HDID
}

// summarizeUserAgent keeps browser, version and OS rather than the raw
// header.
func summarizeUserAgent(raw string) string {
	if raw == "" {
		return ""
	}
	ua := useragent.New(raw)
	name, version := ua.Browser()
	parts := make([]string, 0, 3)
	if ua.Bot() {
		parts = append(parts, "bot")
	}
	if name != "" {
		parts = append(parts, strings.TrimSpace(name+" "+version))
	}
	if os := ua.OS(); os != "" {
		parts = append(parts, os)
	}
	if len(parts) == 0 {
		return raw
	}
	return strings.Join(parts, " / ")
}
