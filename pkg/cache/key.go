package cache

import (
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix namespaces every cache key in Redis.
const KeyPrefix = "pokedex:cache"

// Key identifies a cached response by request path and query.
type Key struct {
	// Path is the request path, e.g. "/api/v2/pokemon".
	Path string

	// Query holds the request query parameters. Only the first value per name is used.
	Query url.Values
}

// String returns a deterministic Redis key.
//
// Example:
//
//	pokedex:cache:api/v2/pokemon:limit=20:offset=40
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(KeyPrefix)

	if path := strings.Trim(k.Path, "/"); path != "" {
		b.WriteByte(':')
		b.WriteString(path)
	}

	names := make([]string, 0, len(k.Query))
	for name := range k.Query {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		b.WriteByte(':')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(k.Query.Get(name))
	}

	return b.String()
}

// KeyFromURL builds a Key from a request URL.
func KeyFromURL(u *url.URL) Key {
	return Key{Path: u.Path, Query: u.Query()}
}
