package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts entries served from Redis.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pokedex_cache_hits_total",
		Help: "Total number of response cache hits",
	})

	// CacheMisses counts lookups that found nothing usable.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pokedex_cache_misses_total",
		Help: "Total number of response cache misses",
	})

	// StoredBytes counts bytes written to the cache.
	StoredBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pokedex_cache_stored_bytes_total",
		Help: "Total bytes written to the response cache",
	})

	// NotModifiedResponses counts 304 responses that refreshed a cached entry.
	NotModifiedResponses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pokedex_cache_not_modified_total",
		Help: "Total number of 304 Not Modified responses",
	})

	// ConditionalRequestsSent counts requests sent with If-None-Match or If-Modified-Since.
	ConditionalRequestsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pokedex_cache_conditional_requests_total",
		Help: "Total number of conditional requests sent upstream",
	})

	// CacheErrors counts Redis failures by operation.
	CacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokedex_cache_errors_total",
		Help: "Total number of cache operation errors",
	}, []string{"operation"}) // "get", "set", "delete"
)
