package auth

import (
	"context"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	principalKey contextKey = "principal"
	authErrorKey contextKey = "auth_error"
)

// RoleAdmin satisfies every role and subject check.
const RoleAdmin = "admin"

// Claims are the inbound JWT claims the gateway reads.
type Claims struct {
	jwt.RegisteredClaims
	HDID  string   `json:"hdid"`
	PHN   string   `json:"phn"`
	Roles []string `json:"roles"`
	Scope string   `json:"scope"`
}

// Principal is the authenticated caller of an inbound request.
type Principal struct {
	Subject string
	HDID    string
	// PHN is the personal health number from the token, when it carries one.
	PHN     string
	Roles   []string
	Scopes  []string
}

func principalFromClaims(c *Claims) Principal {
	return Principal{
		Subject: c.Subject,
		HDID:    c.HDID,
		PHN:     c.PHN,
		Roles:   c.Roles,
		Scopes:  strings.Fields(c.Scope),
	}
}

// HasRole reports whether p holds role or is an admin.
func (p Principal) HasRole(role string) bool {
	return slices.Contains(p.Roles, role) || slices.Contains(p.Roles, RoleAdmin)
}

// HasScope reports whether any granted scope covers required.
func (p Principal) HasScope(required string) bool {
	for _, s := range p.Scopes {
		if matchScope(s, required) {
			return true
		}
	}
	return false
}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the principal on ctx, if any.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// SubjectFrom returns the principal's subject, or "" when unauthenticated.
func SubjectFrom(ctx context.Context) string {
	p, _ := PrincipalFrom(ctx)
	return p.Subject
}

func withAuthError(ctx context.Context, err error) context.Context {
	return context.WithValue(ctx, authErrorKey, err)
}

// ErrorFrom returns why authentication failed on ctx, if it did.
func ErrorFrom(ctx context.Context) error {
	err, _ := ctx.Value(authErrorKey).(error)
	return err
}
