// Package cache provides a Redis-backed response cache for PokeAPI list requests
// with ETag support for conditional requests.
//
// PokeAPI data is effectively static, so list pages are cached for the response's
// Expires header (or a fallback TTL) and revalidated with If-None-Match once stale
// entries are re-requested.
//
// # Basic Usage
//
//	manager, err := cache.NewManager(redisClient, cache.DefaultTTL)
//	if err != nil {
//		return err
//	}
//
//	key := cache.Key{
//		Path:  "/api/v2/pokemon",
//		Query: url.Values{"offset": {"0"}, "limit": {"20"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from upstream
//	}
//
// # Conditional Requests
//
//	if entry.CanRevalidate() {
//		cache.AddConditionalHeaders(req, entry)
//	}
//
// # Metrics
//
//   - pokedex_cache_hits_total
//   - pokedex_cache_misses_total
//   - pokedex_cache_stored_bytes_total
//   - pokedex_cache_not_modified_total
//   - pokedex_cache_conditional_requests_total
//   - pokedex_cache_errors_total{operation}
package cache
