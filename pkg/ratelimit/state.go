// Package ratelimit gates outgoing PokeAPI requests. A local token bucket spaces
// requests out, and a cooldown shared through Redis stops every client instance
// after the upstream answers 429, or 503 with an explicit Retry-After.
package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RedisKeyCooldown stores the shared CooldownState as JSON.
const RedisKeyCooldown = "pokedex:rate_limit:cooldown"

const (
	// DefaultCooldown applies when a 429 carries no Retry-After.
	DefaultCooldown = 30 * time.Second

	// MaxCooldown caps whatever the upstream asks for.
	MaxCooldown = 10 * time.Minute
)

// CooldownState records when requests may resume.
type CooldownState struct {
	// Until is the earliest time the next request may be sent.
	Until time.Time `json:"until"`

	// StatusCode is the upstream status that triggered the cooldown.
	StatusCode int `json:"status_code"`

	// LastUpdate is when the state was written.
	LastUpdate time.Time `json:"last_update"`
}

// Active reports whether requests must still be held back.
func (s CooldownState) Active() bool {
	return time.Now().Before(s.Until)
}

// Remaining returns the time left in the cooldown, 0 when inactive.
func (s CooldownState) Remaining() time.Duration {
	d := time.Until(s.Until)
	if d < 0 {
		return 0
	}
	return d
}

// IsStale reports whether the state is older than maxAge. No cooldown outlives
// MaxCooldown, so older shared state is ignored.
func (s CooldownState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// later returns whichever state ends last.
func later(a, b CooldownState) CooldownState {
	if b.Until.After(a.Until) {
		return b
	}
	return a
}

// ParseRetryAfter parses a Retry-After value given as delay-seconds or an HTTP date.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}

	if at, err := http.ParseTime(value); err == nil {
		d := at.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}

	return 0, false
}

// CooldownFor returns the cooldown a response asks for. A 429 always starts one,
// DefaultCooldown when Retry-After is missing. A 503 starts one only with an explicit
// Retry-After; a bare 503 is an ordinary server error the caller may retry at once.
func CooldownFor(status int, header http.Header, now time.Time) (time.Duration, bool) {
	d, hasRetryAfter := ParseRetryAfter(header.Get("Retry-After"), now)

	switch status {
	case http.StatusTooManyRequests:
		if !hasRetryAfter {
			d = DefaultCooldown
		}
	case http.StatusServiceUnavailable:
		if !hasRetryAfter {
			return 0, false
		}
	default:
		return 0, false
	}

	return min(d, MaxCooldown), true
}
