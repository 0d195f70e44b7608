package security

import (
	"errors"
	"fmt"
	"net/url"
)

var (
	// ErrMalformedTarget means the url parameter was missing or unparseable.
	ErrMalformedTarget = errors.New("malformed target url")
	// ErrHostNotAllowed means the target host is outside the allow-list.
	ErrHostNotAllowed = errors.New("target host not allowed")
)

// OriginGuard holds the fixed set of origin hostnames the stream relay is
// permitted to contact. Populated once at startup, never mutated, so it
// is safe for unbounded concurrent reads.
type OriginGuard struct {
	allowed map[string]struct{}
}

// NewOriginGuard builds the guard from exact hostnames (no wildcards).
func NewOriginGuard(hosts []string) *OriginGuard {
	allowed := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		if h != "" {
			allowed[h] = struct{}{}
		}
	}
	return &OriginGuard{allowed: allowed}
}

// IsAllowed reports exact membership. An empty set denies everything.
func (g *OriginGuard) IsAllowed(host string) bool {
	_, ok := g.allowed[host]
	return ok
}

// Authorize parses raw and checks its hostname against the allow-list.
// Anything unparseable, non-HTTP, or unknown is rejected - the guard
// fails closed.
func (g *OriginGuard) Authorize(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty url", ErrMalformedTarget)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTarget, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrMalformedTarget, raw)
	}

	if !g.IsAllowed(u.Hostname()) {
		return nil, fmt.Errorf("%w: %q", ErrHostNotAllowed, u.Hostname())
	}

	return u, nil
}
