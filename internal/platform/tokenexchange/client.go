// Package tokenexchange obtains service-to-service bearer tokens from an
// OIDC provider with the client credentials grant and caches them until they
// come within a skew window of expiry.
package tokenexchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/bcgov/healthgateway-sub024/internal/platform/telemetry"
)

const (
	// DefaultTimeout bounds a single exchange round trip.
	DefaultTimeout = 10 * time.Second
	// DefaultLifetime is assumed when the provider omits expires_in.
	DefaultLifetime = 5 * time.Minute

	maxResponseBytes = 1 << 20
	refreshKey       = "client_credentials"
)

// Config describes the token endpoint and the client credentials.
type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Audience     string
	Scopes       []string
	// Skew is how long before expiry a cached token is treated as stale.
	Skew time.Duration
	// Timeout bounds each exchange. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the client used for the exchange.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics records exchanges into m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// Client caches one AccessToken. Reads of a valid token are lock-free; at
// most one exchange is in flight per Client.
type Client struct {
	cfg     Config
	http    *http.Client
	logger  zerolog.Logger
	metrics *telemetry.Metrics
	now     func() time.Time

	current atomic.Pointer[AccessToken]
	flight  singleflight.Group
}

// New validates cfg and returns a Client with an empty cache.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.TokenURL == "" {
		return nil, errors.New("tokenexchange: token url is required")
	}
	u, err := url.Parse(cfg.TokenURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("tokenexchange: invalid token url %q", cfg.TokenURL)
	}
	if cfg.ClientID == "" {
		return nil, errors.New("tokenexchange: client id is required")
	}
	if cfg.Skew < 0 {
		return nil, errors.New("tokenexchange: skew must not be negative")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &Client{
		cfg:    cfg,
		http:   &http.Client{},
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetToken returns the cached token, refreshing it first when it is absent
// or within the skew window. Concurrent callers share one refresh. The
// exchange itself is not bound to ctx, so one caller giving up does not fail
// the others; a caller whose ctx ends stops waiting with an Unreachable error.
func (c *Client) GetToken(ctx context.Context) (AccessToken, error) {
	if tok := c.current.Load(); tok != nil && !tok.NeedsRefresh(c.now(), c.cfg.Skew) {
		return tok.clone(), nil
	}

	ch := c.flight.DoChan(refreshKey, func() (any, error) {
		return c.refresh(ctx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return AccessToken{}, res.Err
		}
		return res.Val.(AccessToken).clone(), nil
	case <-ctx.Done():
		return AccessToken{}, unreachable(ctx.Err())
	}
}

// Invalidate drops the cached token if it is still rejected. A token that
// was already replaced by a newer one is left alone.
func (c *Client) Invalidate(rejected AccessToken) {
	cur := c.current.Load()
	if cur == nil || cur.Value != rejected.Value {
		return
	}
	if c.current.CompareAndSwap(cur, nil) {
		c.logger.Debug().Time("expiry", cur.Expiry).Msg("service token invalidated")
	}
}

// Cached returns the cached token without refreshing it.
func (c *Client) Cached() (AccessToken, bool) {
	tok := c.current.Load()
	if tok == nil {
		return AccessToken{}, false
	}
	return tok.clone(), true
}

func (c *Client) refresh(ctx context.Context) (AccessToken, error) {
	// A flight that finished between our cache read and joining this one
	// has already stored a fresh token.
	if tok := c.current.Load(); tok != nil && !tok.NeedsRefresh(c.now(), c.cfg.Skew) {
		return *tok, nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	tok, err := c.exchange(ctx)
	if err != nil {
		result := "error"
		var ae *AuthError
		if errors.As(err, &ae) {
			result = string(ae.Kind)
		}
		c.metrics.TokenExchange(result, time.Since(start))
		c.logger.Error().Err(err).
			Str("token_url", c.cfg.TokenURL).
			Str("client_id", c.cfg.ClientID).
			Msg("service token exchange failed")
		return AccessToken{}, err
	}
	c.metrics.TokenExchange("success", time.Since(start))

	stored := tok.clone()
	c.current.Store(&stored)
	c.logger.Info().
		Str("client_id", c.cfg.ClientID).
		Time("expiry", tok.Expiry).
		Strs("scope", tok.Scope).
		Msg("service token refreshed")
	return tok, nil
}

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   json.Number `json:"expires_in"`
	Scope       string      `json:"scope"`
	TokenType   string      `json:"token_type"`
}

type oauthError struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

func (c *Client) exchange(ctx context.Context) (AccessToken, error) {
	form := url.Values{
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"grant_type":    {"client_credentials"},
	}
	if c.cfg.Audience != "" {
		form.Set("audience", c.cfg.Audience)
	}
	if len(c.cfg.Scopes) > 0 {
		form.Set("scope", strings.Join(c.cfg.Scopes, " "))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return AccessToken{}, unreachable(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return AccessToken{}, unreachable(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return AccessToken{}, unreachable(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var oe oauthError
		if json.Unmarshal(body, &oe) == nil && oe.Error != "" {
			return AccessToken{}, denied(resp.StatusCode, fmt.Errorf("%s: %s", oe.Error, oe.Description))
		}
		return AccessToken{}, denied(resp.StatusCode, nil)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return AccessToken{}, denied(resp.StatusCode, fmt.Errorf("decode token response: %w", err))
	}
	if tr.AccessToken == "" {
		return AccessToken{}, denied(resp.StatusCode, errors.New("token response has no access_token"))
	}

	lifetime := DefaultLifetime
	if secs, err := tr.ExpiresIn.Int64(); err == nil && secs > 0 {
		lifetime = time.Duration(secs) * time.Second
	}

	scope := parseScope(tr.Scope)
	if scope == nil && len(c.cfg.Scopes) > 0 {
		scope = append([]string(nil), c.cfg.Scopes...)
	}

	return AccessToken{
		Value:  tr.AccessToken,
		Expiry: c.now().Add(lifetime),
		Scope:  scope,
	}, nil
}
