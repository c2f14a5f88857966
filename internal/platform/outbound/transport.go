// Package outbound builds the HTTP clients used to call downstream APIs.
// Every request carries the current service bearer token; a 401 reply gets
// one retry with a freshly exchanged token.
package outbound

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/bcgov/healthgateway-sub024/internal/platform/telemetry"
	"github.com/bcgov/healthgateway-sub024/internal/platform/tokenexchange"
)

// TokenSource supplies and invalidates service tokens.
type TokenSource interface {
	GetToken(ctx context.Context) (tokenexchange.AccessToken, error)
	Invalidate(rejected tokenexchange.AccessToken)
}

// AuthTransport attaches bearer tokens to outbound requests.
type AuthTransport struct {
	Base    http.RoundTripper
	Tokens  TokenSource
	Logger  zerolog.Logger
	Metrics *telemetry.Metrics
}

// RoundTrip sends req with the current token. On a 401 it invalidates the
// token and sends once more with a new one. The second response is returned
// whatever its status. Requests whose body cannot be replayed are not
// retried.
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	tok, err := t.Tokens.GetToken(ctx)
	if err != nil {
		closeBody(req)
		t.Logger.Error().Err(err).
			Str("host", req.URL.Host).
			Str("path", req.URL.Path).
			Msg("failed to obtain service token")
		return nil, err
	}

	resp, err := t.base().RoundTrip(withBearer(req, tok.Value))
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	retry, ok := replayable(req)
	if !ok {
		t.Logger.Warn().
			Str("host", req.URL.Host).
			Str("path", req.URL.Path).
			Msg("downstream rejected service token; body not replayable, not retrying")
		return resp, nil
	}
	drain(resp)

	t.Tokens.Invalidate(tok)
	fresh, err := t.Tokens.GetToken(ctx)
	if err != nil {
		closeBody(retry)
		t.Logger.Error().Err(err).
			Str("host", req.URL.Host).
			Str("path", req.URL.Path).
			Msg("failed to refresh service token after 401")
		return nil, err
	}

	t.Metrics.OutboundRetry()
	t.Logger.Warn().
		Str("host", req.URL.Host).
		Str("path", req.URL.Path).
		Msg("downstream rejected service token; retrying with a refreshed token")

	return t.base().RoundTrip(withBearer(retry, fresh.Value))
}

func (t *AuthTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func withBearer(req *http.Request, token string) *http.Request {
	out := req.Clone(req.Context())
	out.Header.Set("Authorization", "Bearer "+token)
	return out
}

// replayable returns a copy of req with a fresh body, if one can be made.
func replayable(req *http.Request) (*http.Request, bool) {
	if req.Body == nil || req.Body == http.NoBody {
		return req, true
	}
	if req.GetBody == nil {
		return nil, false
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, false
	}
	out := req.Clone(req.Context())
	out.Body = body
	return out, true
}

func closeBody(req *http.Request) {
	if req.Body != nil {
		_ = req.Body.Close()
	}
}

// drain lets the connection be reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

// PropagationTransport injects the trace context of the request into its
// headers.
type PropagationTransport struct {
	Base       http.RoundTripper
	Propagator propagation.TextMapPropagator
}

func (t *PropagationTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	p := t.Propagator
	if p == nil {
		p = otel.GetTextMapPropagator()
	}
	out := req.Clone(req.Context())
	p.Inject(req.Context(), propagation.HeaderCarrier(out.Header))

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(out)
}

// ClientConfig configures NewClient.
type ClientConfig struct {
	Timeout    time.Duration
	Base       http.RoundTripper
	Propagator propagation.TextMapPropagator
	Logger     zerolog.Logger
	Metrics    *telemetry.Metrics
}

// NewClient returns an http.Client that authenticates with tokens and
// propagates trace context. The timeout covers the retry as well.
func NewClient(tokens TokenSource, cfg ClientConfig) (*http.Client, error) {
	if tokens == nil {
		return nil, errors.New("outbound: token source is required")
	}
	return &http.Client{
		Timeout: cfg.Timeout,
		Transport: &AuthTransport{
			Base:    &PropagationTransport{Base: cfg.Base, Propagator: cfg.Propagator},
			Tokens:  tokens,
			Logger:  cfg.Logger,
			Metrics: cfg.Metrics,
		},
	}, nil
}

// NewUnauthenticatedClient returns an http.Client that only propagates trace
// context. It serves in-cluster services that do not take the service token.
func NewUnauthenticatedClient(cfg ClientConfig) *http.Client {
	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &PropagationTransport{Base: cfg.Base, Propagator: cfg.Propagator},
	}
}
