// Package metrics exposes the Prometheus registry shared by the pokedex packages.
// All metrics are defined in their respective packages (client, cache, ratelimit,
// repository, pagination, bff) and registered via promauto, so this package only
// serves and documents them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer all pokedex metrics are registered with.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the matching gatherer served by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the metrics in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - pokedex_rate_limit_wait_seconds (Histogram): Time spent waiting for a token
//   - pokedex_rate_limit_blocks_total (Counter): Requests refused during a shared cooldown
//   - pokedex_rate_limit_cooldowns_total (Counter): Cooldowns started from 429/503 responses
//
// Cache Metrics (pkg/cache):
//   - pokedex_cache_hits_total (Counter): Fresh cache hits
//   - pokedex_cache_misses_total (Counter): Cache misses
//   - pokedex_cache_stored_bytes_total (Counter): Bytes written to the cache
//   - pokedex_cache_not_modified_total (Counter): 304 Not Modified responses
//   - pokedex_cache_conditional_requests_total (Counter): Conditional requests sent
//   - pokedex_cache_errors_total{operation} (Counter): Cache operation errors
//
// Request Metrics (pkg/client):
//   - pokedex_requests_total{endpoint, status} (Counter): Upstream requests by endpoint and status
//   - pokedex_request_duration_seconds{endpoint} (Histogram): Upstream request duration
//   - pokedex_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//   - pokedex_retries_total{error_class} (Counter): Retry attempts, only when retries are enabled
//   - pokedex_retry_backoff_seconds{error_class} (Histogram): Backoff duration
//   - pokedex_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Repository Metrics (pkg/repository):
//   - pokedex_repository_fetches_total{result} (Counter): Page fetches by network, http, unknown, ok, canceled
//
// Pager Metrics (pkg/pagination):
//   - pokedex_pager_fetches_total{page, result} (Counter): Pager fetches by first/next page and outcome
//   - pokedex_pager_items_loaded_total (Counter): Items appended to lists
//   - pokedex_pager_duplicates_dropped_total (Counter): Items dropped as duplicate ids
//   - pokedex_pager_events_dropped_total (Counter): Events dropped on a full buffer
//   - pokedex_batch_pages_total{result} (Counter): Pages fetched by the batch fetcher
//
// BFF Metrics (internal/bff):
//   - pokedex_bff_requests_total{route, status} (Counter)
//   - pokedex_bff_request_duration_seconds{route} (Histogram)
//   - pokedex_bff_panics_total (Counter): Recovered handler panics
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(pokedex_cache_hits_total[5m])) /
//   (sum(rate(pokedex_cache_hits_total[5m])) + sum(rate(pokedex_cache_misses_total[5m])))
//
//   # Failed next-page loads
//   sum(rate(pokedex_pager_fetches_total{page="next", result="error"}[5m]))
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(pokedex_request_duration_seconds_bucket[5m]))
//
//   # 304 Response Rate
//   rate(pokedex_cache_not_modified_total[5m]) / rate(pokedex_requests_total[5m])
