package cache

import (
	"net/http"
	"time"
)

// Entry is a cached upstream response.
type Entry struct {
	// Body is the raw response body.
	Body []byte `json:"body"`

	// ETag is replayed as If-None-Match on revalidation.
	ETag string `json:"etag,omitempty"`

	// Expires is when the entry stops being served without revalidation.
	Expires time.Time `json:"expires"`

	// LastModified is replayed as If-Modified-Since when there is no ETag.
	LastModified time.Time `json:"last_modified,omitempty"`

	StatusCode int         `json:"status_code"`
	Header     http.Header `json:"header"`
	CachedAt   time.Time   `json:"cached_at"`
}

// IsExpired reports whether the entry is past its Expires time.
func (e *Entry) IsExpired() bool {
	return !time.Now().Before(e.Expires)
}

// TTL returns the time left until expiry, 0 once expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// CanRevalidate reports whether the entry carries a validator for a conditional request.
func (e *Entry) CanRevalidate() bool {
	if e == nil {
		return false
	}
	return e.ETag != "" || !e.LastModified.IsZero()
}
