// Package downstream turns per-service operation descriptors into HTTP
// requests and classifies the replies into a small error taxonomy.
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
	"strings"
)

// ErrMissingParam is returned when a route placeholder has no value.
var ErrMissingParam = errors.New("missing path parameter")

// Descriptor declares one downstream operation.
type Descriptor struct {
	Name   string
	Method string
	// Route is a path template with {name} placeholders, e.g.
	// "/patient/{pid}/file/{fileId}".
	Route string
	// Query holds fixed query values sent on every call.
	Query url.Values
	// NoContentIsNotFound turns a 204 reply into a NotFound error. Otherwise
	// 204 is an empty success.
	NoContentIsNotFound bool
}

// Params are the per-call values of a ProxyRequest.
type Params struct {
	Path  map[string]string
	Query url.Values
	Body  any
}

// Path renders the route template, escaping each value as a path segment.
func (d Descriptor) Path(values map[string]string) (string, error) {
	var b strings.Builder
	rest := d.Route
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return "", fmt.Errorf("route %q: unterminated placeholder", d.Route)
		}
		name := rest[open+1 : open+end]
		v, ok := values[name]
		if !ok || v == "" {
			return "", fmt.Errorf("route %q: %w %q", d.Route, ErrMissingParam, name)
		}
		b.WriteString(rest[:open])
		b.WriteString(url.PathEscape(v))
		rest = rest[open+end+1:]
	}
}

// Build renders the descriptor into a request against base.
func (d Descriptor) Build(ctx context.Context, base *url.URL, p Params) (*http.Request, error) {
	path, err := d.Path(p.Path)
	if err != nil {
		return nil, err
	}
	ref, err := url.Parse(strings.TrimRight(base.EscapedPath(), "/") + path)
	if err != nil {
		return nil, fmt.Errorf("route %q: %w", d.Route, err)
	}
	u := base.ResolveReference(ref)

	q := url.Values{}
	for k, vs := range d.Query {
		q[k] = append(q[k], vs...)
	}
	for k, vs := range p.Query {
		for _, v := range vs {
			if v != "" {
				q.Add(k, v)
			}
		}
	}
	u.RawQuery = q.Encode()

	var body io.Reader
	if p.Body != nil {
		raw, err := json.Marshal(p.Body)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", d.Name, err)
		}
		body = bytes.NewReader(raw)
	}

	method := d.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}
