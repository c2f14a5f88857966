package downstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bcgov/healthgateway-sub024/internal/platform/telemetry"
	"github.com/bcgov/healthgateway-sub024/internal/platform/tokenexchange"
)

const maxResponseBytes = 16 << 20

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics records calls into m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithTracer sets the tracer for client spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// Client executes descriptors against one downstream base URL.
type Client struct {
	service string
	base    *url.URL
	http    *http.Client
	logger  zerolog.Logger
	metrics *telemetry.Metrics
	tracer  trace.Tracer
}

// NewClient returns a Client for service rooted at baseURL. hc is expected
// to carry the authenticating transport.
func NewClient(service, baseURL string, hc *http.Client, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("downstream %s: invalid base url %q", service, baseURL)
	}
	if hc == nil {
		return nil, fmt.Errorf("downstream %s: http client is required", service)
	}
	c := &Client{
		service: service,
		base:    u,
		http:    hc,
		logger:  zerolog.Nop(),
		tracer:  otel.Tracer("github.com/bcgov/healthgateway-sub024/downstream"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Service returns the service name used in errors and metrics.
func (c *Client) Service() string { return c.service }

// Do sends the operation and decodes a 2xx JSON reply into out. out may be
// nil. A 204 reply leaves out untouched unless the descriptor maps it to
// NotFound.
func (c *Client) Do(ctx context.Context, d Descriptor, p Params, out any) error {
	ctx, span := c.tracer.Start(ctx, c.service+"."+d.Name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("downstream.service", c.service),
			attribute.String("downstream.operation", d.Name),
		),
	)
	defer span.End()

	req, err := d.Build(ctx, c.base, p)
	if err != nil {
		return fmt.Errorf("%s %s: %w", c.service, d.Name, err)
	}

	start := time.Now()
	err = c.send(ctx, d, req, out)
	elapsed := time.Since(start)

	result := "success"
	if err != nil {
		result = resultLabel(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
		c.logger.Warn().Err(err).
			Str("service", c.service).
			Str("operation", d.Name).
			Dur("latency", elapsed).
			Msg("downstream call failed")
	} else {
		c.logger.Debug().
			Str("service", c.service).
			Str("operation", d.Name).
			Dur("latency", elapsed).
			Msg("downstream call")
	}
	c.metrics.Downstream(c.service, d.Name, result, elapsed)
	return err
}

func (c *Client) send(ctx context.Context, d Descriptor, req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return c.transportError(ctx, d, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return c.transportError(ctx, d, err)
	}

	status := resp.StatusCode
	switch {
	case status == http.StatusNoContent && d.NoContentIsNotFound:
		return &Error{Kind: NotFound, Service: c.service, Operation: d.Name, StatusCode: status, Message: "no content"}
	case status >= 200 && status <= 299:
		if out == nil || status == http.StatusNoContent || len(bytes.TrimSpace(body)) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return &Error{Kind: ServerError, Service: c.service, Operation: d.Name, StatusCode: status, Message: "undecodable response", Err: err}
		}
		return nil
	default:
		return &Error{
			Kind:       kindForStatus(status),
			Service:    c.service,
			Operation:  d.Name,
			StatusCode: status,
			Message:    snippet(body),
		}
	}
}

// transportError classifies a failed round trip. A caller that went away
// wins over whatever the token exchange reported while it was blocked.
func (c *Client) transportError(ctx context.Context, d Descriptor, err error) error {
	if ctx.Err() == context.Canceled {
		return fmt.Errorf("%s %s: %w", c.service, d.Name, context.Canceled)
	}
	var ae *tokenexchange.AuthError
	if errors.As(err, &ae) {
		return ae
	}
	if isTimeout(err) {
		return &Error{Kind: Timeout, Service: c.service, Operation: d.Name, Err: err}
	}
	return &Error{Kind: ServerError, Service: c.service, Operation: d.Name, Err: err}
}

func resultLabel(err error) string {
	if k := KindOf(err); k != "" {
		return string(k)
	}
	var ae *tokenexchange.AuthError
	if errors.As(err, &ae) {
		return "auth_" + string(ae.Kind)
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "error"
}

// snippet keeps a bounded prefix of an error body for diagnostics.
func snippet(body []byte) string {
	const max = 256
	b := bytes.TrimSpace(body)
	if len(b) > max {
		b = b[:max]
	}
	return string(b)
}
