package tokenexchange

import (
	"strings"
	"time"
)

// AccessToken is a service bearer token obtained through a client
// credentials exchange. Values are copies; the client never exposes its
// cached instance.
type AccessToken struct {
	Value  string
	Expiry time.Time
	Scope  []string
}

// NeedsRefresh reports whether the token is empty or expires within skew
// of now.
func (t AccessToken) NeedsRefresh(now time.Time, skew time.Duration) bool {
	if t.Value == "" {
		return true
	}
	return !now.Add(skew).Before(t.Expiry)
}

// Remaining returns the validity left at now, never negative.
func (t AccessToken) Remaining(now time.Time) time.Duration {
	if d := t.Expiry.Sub(now); d > 0 {
		return d
	}
	return 0
}

// HasScope reports whether the token was granted scope.
func (t AccessToken) HasScope(scope string) bool {
	for _, s := range t.Scope {
		if s == scope {
			return true
		}
	}
	return false
}

func (t AccessToken) clone() AccessToken {
	if t.Scope != nil {
		t.Scope = append([]string(nil), t.Scope...)
	}
	return t
}

func parseScope(raw string) []string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil
	}
	return fields
}
