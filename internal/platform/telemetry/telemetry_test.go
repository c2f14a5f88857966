package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/trace"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := NewProvider(Config{ServiceName: "test"})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	return p
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{SampleRate: 3}
	cfg.applyDefaults()

	if cfg.ServiceName != "gateway-server" {
		t.Errorf("expected default service name, got %q", cfg.ServiceName)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("expected sample rate clamp to 1.0, got %v", cfg.SampleRate)
	}
	if !cfg.metricsOn() || !cfg.tracingOn() {
		t.Error("expected metrics and tracing on by default")
	}
	cfg.TracingEnabled = BoolPtr(false)
	if cfg.tracingOn() {
		t.Error("expected tracing off")
	}
}

func TestTracingMiddleware_StartsServerSpan(t *testing.T) {
	p := newTestProvider(t)
	e := echo.New()
	e.Use(p.TracingMiddleware())

	var spanCtx trace.SpanContext
	e.GET("/v1/api/Laboratory/Covid19Orders", func(c echo.Context) error {
		spanCtx = trace.SpanContextFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/api/Laboratory/Covid19Orders", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if !spanCtx.IsValid() {
		t.Fatal("expected a valid span context in the handler")
	}
}

func TestTracingMiddleware_ContinuesInboundTrace(t *testing.T) {
	p := newTestProvider(t)
	e := echo.New()
	e.Use(p.TracingMiddleware())

	var got string
	e.GET("/ping", func(c echo.Context) error {
		got = trace.SpanContextFromContext(c.Request().Context()).TraceID().String()
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	e.ServeHTTP(httptest.NewRecorder(), req)

	if got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("expected inbound trace id, got %s", got)
	}
}

func TestMetricsMiddleware_CountsByRoute(t *testing.T) {
	p := newTestProvider(t)
	e := echo.New()
	e.Use(p.MetricsMiddleware())
	e.GET("/items/:id", func(c echo.Context) error {
		return c.NoContent(http.StatusAccepted)
	})

	for i := 0; i < 3; i++ {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/"+string(rune('a'+i)), nil))
	}

	got := testutil.ToFloat64(p.Metrics.httpRequests.WithLabelValues(http.MethodGet, "/items/:id", "202"))
	if got != 3 {
		t.Errorf("expected 3 requests counted on the route pattern, got %v", got)
	}
}

func TestPrometheusHandler_ExposesGatewayMetrics(t *testing.T) {
	p := newTestProvider(t)
	p.Metrics.TokenExchange("success", 20*time.Millisecond)
	p.Metrics.AuditRecorded("success")

	e := echo.New()
	e.GET("/metrics", p.PrometheusHandler())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, name := range []string{"gateway_token_exchanges_total", "gateway_audit_events_total", "go_goroutines"} {
		if !strings.Contains(body, name) {
			t.Errorf("expected %s in exposition", name)
		}
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.TokenExchange("success", time.Second)
	m.OutboundRetry()
	m.Downstream("phsa", "op", "success", time.Second)
	m.AuditRecorded("failure")
	m.AuditWriteFailed("postgres")
}

func TestMetrics_Downstream(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.Downstream("laboratory", "covid19_orders", "not_found", 10*time.Millisecond)

	if got := testutil.ToFloat64(m.downstreamRequests.WithLabelValues("laboratory", "covid19_orders", "not_found")); got != 1 {
		t.Errorf("expected 1, got %v", got)
	}
}
