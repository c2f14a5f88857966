package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/mock/gomock"

	"github.com/bcgov/healthgateway-sub024/internal/platform/audit"
	"github.com/bcgov/healthgateway-sub024/internal/platform/audit/mocks"
	"github.com/bcgov/healthgateway-sub024/internal/platform/auth"
	"github.com/bcgov/healthgateway-sub024/internal/platform/downstream"
)

// newAuditedServer mounts handler behind the request-side stages in the
// order the gateway uses.
func newAuditedServer(t *testing.T, store audit.Store, timeout time.Duration, p *auth.Principal, route string, handler echo.HandlerFunc) *echo.Echo {
	t.Helper()
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(zerolog.Nop())

	withPrincipal := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if p != nil {
				c.SetRequest(c.Request().WithContext(auth.WithPrincipal(c.Request().Context(), *p)))
			}
			return next(c)
		}
	}

	e.Use(Chain(
		Recovery(zerolog.Nop()),
		RequestID(),
		RenderErrors(),
		withPrincipal,
		Audit(audit.NewRecorder(store), auth.AuthSkipper),
		RequestTimeout(timeout),
	))
	e.GET(route, handler)
	return e
}

func onlyEvent(t *testing.T, store *audit.MemoryStore) audit.Event {
	t.Helper()
	events := store.All()
	require.Len(t, events, 1, "expected exactly one audit event")
	return events[0]
}

func TestAudit_Success(t *testing.T) {
	store := audit.NewMemoryStore()
	p := &auth.Principal{Subject: "user-1", HDID: "HDID1"}
	e := newAuditedServer(t, store, time.Second, p, "/v1/api/Laboratory/Covid19Orders", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"ok": "yes"})
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/api/Laboratory/Covid19Orders?hdid=HDID1", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	ev := onlyEvent(t, store)
	assert.Equal(t, "user-1", ev.ActorID)
	assert.Equal(t, "Laboratory", ev.ResourceName)
	assert.Equal(t, "1", ev.Version)
	assert.Equal(t, "HDID1", ev.Subject)
	assert.Equal(t, audit.ActionRead, ev.Action)
	assert.Equal(t, audit.OutcomeSuccess, ev.Outcome)
	assert.Equal(t, audit.ResultSuccess, ev.ResultCode)
	assert.Equal(t, http.StatusOK, ev.StatusCode)
	assert.Equal(t, rec.Header().Get(RequestIDHeader), ev.TraceID)
	assert.NotEmpty(t, ev.ID)
}

func TestAudit_HandlerErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		result audit.ResultCode
	}{
		{"not found", &downstream.Error{Kind: downstream.NotFound}, http.StatusNotFound, audit.ResultFailure},
		{"forbidden", echo.NewHTTPError(http.StatusForbidden), http.StatusForbidden, audit.ResultUnauthorized},
		{"server error", &downstream.Error{Kind: downstream.ServerError, Service: "phsa"}, http.StatusBadGateway, audit.ResultSystemError},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError, audit.ResultSystemError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := audit.NewMemoryStore()
			e := newAuditedServer(t, store, time.Second, nil, "/v1/api/Encounter/:hdid", func(echo.Context) error {
				return tt.err
			})

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/api/Encounter/HDID9", nil))

			assert.Equal(t, tt.status, rec.Code)
			ev := onlyEvent(t, store)
			assert.Equal(t, audit.Anonymous, ev.ActorID)
			assert.Equal(t, "HDID9", ev.Subject)
			assert.Equal(t, audit.OutcomeFailure, ev.Outcome)
			assert.Equal(t, tt.result, ev.ResultCode)
			assert.Equal(t, tt.status, ev.StatusCode)
		})
	}
}

func TestAudit_PanicRecordedAndReraised(t *testing.T) {
	store := audit.NewMemoryStore()
	e := newAuditedServer(t, store, time.Second, nil, "/v1/api/ClinicalDocument/:hdid", func(echo.Context) error {
		panic("mapping exploded")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/api/ClinicalDocument/HDID1", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	ev := onlyEvent(t, store)
	assert.Equal(t, audit.OutcomeFailure, ev.Outcome)
	assert.Equal(t, http.StatusInternalServerError, ev.StatusCode)
}

func TestAudit_PanicPropagates(t *testing.T) {
	store := audit.NewMemoryStore()
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/api/Encounter/x", nil), httptest.NewRecorder())

	h := Audit(audit.NewRecorder(store), nil)(func(echo.Context) error { panic("boom") })

	assert.PanicsWithValue(t, "boom", func() { h(c) })
	assert.Equal(t, 1, store.Len())
}

// A downstream call that outlives the request deadline is recorded once as
// a 504 failure.
func TestAudit_DownstreamTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer slow.Close()

	client, err := downstream.NewClient("phsa", slow.URL, slow.Client())
	require.NoError(t, err)
	op := downstream.Descriptor{Name: "encounters", Route: "/patient/{hdid}/encounters"}

	store := audit.NewMemoryStore()
	e := newAuditedServer(t, store, 100*time.Millisecond, nil, "/v1/api/Encounter/:hdid", func(c echo.Context) error {
		var out any
		if err := client.Do(c.Request().Context(), op, downstream.Params{Path: map[string]string{"hdid": c.Param("hdid")}}, &out); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, out)
	})

	start := time.Now()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/api/Encounter/HDID1", nil))

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	ev := onlyEvent(t, store)
	assert.Equal(t, audit.OutcomeFailure, ev.Outcome)
	assert.Equal(t, audit.ResultSystemError, ev.ResultCode)
	assert.Equal(t, http.StatusGatewayTimeout, ev.StatusCode)
}

func TestAudit_ClientCancel(t *testing.T) {
	store := audit.NewMemoryStore()
	e := newAuditedServer(t, store, time.Second, nil, "/v1/api/Encounter/:hdid", func(c echo.Context) error {
		<-c.Request().Context().Done()
		return c.Request().Context().Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/v1/api/Encounter/HDID1", nil).WithContext(ctx)
	e.ServeHTTP(httptest.NewRecorder(), req)

	ev := onlyEvent(t, store)
	assert.Equal(t, StatusClientClosedRequest, ev.StatusCode)
	assert.Equal(t, audit.OutcomeFailure, ev.Outcome)
}

func TestAudit_SkipsPublicPaths(t *testing.T) {
	store := audit.NewMemoryStore()
	e := newAuditedServer(t, store, time.Second, nil, "/health", okHandler)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, store.Len())
}

func TestAudit_StoreFailureDoesNotChangeResponse(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	store.EXPECT().
		Append(gomock.Any(), gomock.Cond(func(x any) bool {
			ev, ok := x.(audit.Event)
			return ok && ev.Outcome == audit.OutcomeSuccess && ev.StatusCode == http.StatusOK
		})).
		Return(errors.New("db down")).
		Times(1)

	e := newAuditedServer(t, store, time.Second, nil, "/v1/api/Laboratory/Covid19Orders", okHandler)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/api/Laboratory/Covid19Orders", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestAudit_TraceIDFromSpan(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})

	store := audit.NewMemoryStore()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/api/Encounter", nil)
	req = req.WithContext(trace.ContextWithSpanContext(req.Context(), sc))
	c := e.NewContext(req, httptest.NewRecorder())

	h := Audit(audit.NewRecorder(store), nil)(func(c echo.Context) error {
		return c.NoContent(http.StatusCreated)
	})
	require.NoError(t, h(c))

	ev := onlyEvent(t, store)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", ev.TraceID)
	assert.Equal(t, audit.ActionCreate, ev.Action)
	assert.Equal(t, http.StatusCreated, ev.StatusCode)
}

func TestAudit_SubjectFallsBackToPrincipal(t *testing.T) {
	store := audit.NewMemoryStore()
	p := &auth.Principal{Subject: "user-2", HDID: "SELF"}
	e := newAuditedServer(t, store, time.Second, p, "/v1/api/ClinicalDocument", okHandler)

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/api/ClinicalDocument", nil))

	assert.Equal(t, "SELF", onlyEvent(t, store).Subject)
}

func TestRouteResource(t *testing.T) {
	tests := []struct {
		path, version, resource string
	}{
		{"/v1/api/Laboratory/Covid19Orders", "1", "Laboratory"},
		{"/v2/api/Encounter/HDID1", "2", "Encounter"},
		{"/Audit/events", "", "Audit"},
		{"/", "", "unknown"},
	}
	for _, tt := range tests {
		v, r := routeResource(tt.path)
		assert.Equal(t, tt.version, v, tt.path)
		assert.Equal(t, tt.resource, r, tt.path)
	}
}

func TestSummarizeUserAgent(t *testing.T) {
	assert.Empty(t, summarizeUserAgent(""))

	got := summarizeUserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	assert.True(t, strings.HasPrefix(got, "Chrome 120"), got)
	assert.Contains(t, got, "Windows")

	bot := summarizeUserAgent("Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)")
	assert.True(t, strings.HasPrefix(bot, "bot"), bot)
}
