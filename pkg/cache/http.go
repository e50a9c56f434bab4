package cache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ResponseToEntry reads resp into an Entry. The body is restored for the caller.
// fallbackTTL applies when neither Cache-Control max-age nor Expires is usable.
func ResponseToEntry(resp *http.Response, fallbackTTL time.Duration) (*Entry, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	entry := &Entry{
		Body:       body,
		ETag:       resp.Header.Get("ETag"),
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		CachedAt:   time.Now(),
		Expires:    ExpiresFromHeader(resp.Header, fallbackTTL),
	}

	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			entry.LastModified = t
		}
	}

	return entry, nil
}

// ExpiresFromHeader derives the expiry time. Cache-Control max-age wins over Expires.
// Past dates yield now, which stores the entry for revalidation only.
func ExpiresFromHeader(h http.Header, fallbackTTL time.Duration) time.Time {
	now := time.Now()

	if maxAge, ok := parseMaxAge(h.Get("Cache-Control")); ok {
		return now.Add(maxAge)
	}

	if raw := h.Get("Expires"); raw != "" {
		if expires, err := http.ParseTime(raw); err == nil {
			if expires.Before(now) {
				return now
			}
			return expires
		}
	}

	return now.Add(fallbackTTL)
}

func parseMaxAge(cacheControl string) (time.Duration, bool) {
	for _, directive := range strings.Split(cacheControl, ",") {
		value, ok := strings.CutPrefix(strings.TrimSpace(directive), "max-age=")
		if !ok {
			continue
		}
		secs, err := strconv.Atoi(value)
		if err != nil || secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	return 0, false
}

// AddConditionalHeaders sets If-None-Match, or If-Modified-Since when there is no ETag.
func AddConditionalHeaders(req *http.Request, entry *Entry) {
	if req == nil || !entry.CanRevalidate() {
		return
	}
	if entry.ETag != "" {
		req.Header.Set("If-None-Match", entry.ETag)
		return
	}
	req.Header.Set("If-Modified-Since", entry.LastModified.UTC().Format(http.TimeFormat))
}

// EntryToResponse rebuilds an *http.Response from a cached entry.
func EntryToResponse(entry *Entry, req *http.Request) *http.Response {
	header := entry.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set("X-Pokedex-Cache", "HIT")

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", entry.StatusCode, http.StatusText(entry.StatusCode)),
		StatusCode:    entry.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(entry.Body)),
		ContentLength: int64(len(entry.Body)),
		Request:       req,
	}
}
