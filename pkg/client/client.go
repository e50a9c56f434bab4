// Package client provides the PokeAPI HTTP transport with rate limiting, optional
// Redis caching with conditional requests, and opt-in retries.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/pokedex-client/pkg/cache"
	"github.com/Sternrassler/pokedex-client/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the public PokeAPI v2 root.
const DefaultBaseURL = "https://pokeapi.co/api/v2"

// maxBodyBytes bounds how much of a response body is decoded.
const maxBodyBytes = 8 << 20

// Prometheus metrics for client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokedex_requests_total",
		Help: "Total upstream requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pokedex_request_duration_seconds",
		Help:    "Upstream request duration in seconds by endpoint",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokedex_errors_total",
		Help: "Total upstream errors by class",
	}, []string{"class"})
)

// Config holds the client configuration.
type Config struct {
	// BaseURL is the API root every request path is resolved against.
	BaseURL string

	// UserAgent identifies the application to the upstream.
	UserAgent string

	// Timeout bounds one HTTP attempt. Fetch duration is owned here, not by callers.
	Timeout time.Duration

	// Redis enables the response cache and the shared cooldown. Optional.
	Redis *redis.Client

	// CacheTTL is the fallback TTL for responses without caching headers.
	CacheTTL time.Duration

	// RateLimit configures the local token bucket.
	RateLimit ratelimit.Config

	// Retry is disabled by default. Retry policy belongs to the caller.
	Retry RetryConfig
}

// DefaultConfig returns a safe default configuration. redis may be nil.
func DefaultConfig(redis *redis.Client, userAgent string) Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		UserAgent: userAgent,
		Timeout:   30 * time.Second,
		Redis:     redis,
		CacheTTL:  cache.DefaultTTL,
		RateLimit: ratelimit.DefaultConfig(),
		Retry:     NoRetry(),
	}
}

// Client is the PokeAPI transport.
type Client struct {
	httpClient  *http.Client
	baseURL     *url.URL
	rateLimiter *ratelimit.Tracker
	cache       *cache.Manager
	config      Config
	logger      zerolog.Logger
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry = NoRetry()
	}

	logger := log.With().Str("component", "pokeapi-client").Logger()

	var cacheManager *cache.Manager
	if cfg.Redis != nil {
		cacheManager, err = cache.NewManager(cfg.Redis, cfg.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("create cache manager: %w", err)
		}
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:     base,
		rateLimiter: ratelimit.NewTracker(cfg.RateLimit, cfg.Redis, logger),
		cache:       cacheManager,
		config:      cfg,
		logger:      logger,
	}, nil
}

// BaseURL returns the API root requests are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Do performs a GET request with rate limiting, caching and error handling.
// Any non-2xx response is returned as *APIError with the body closed.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := req.URL.Path

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: rate limit gate
	if err := c.rateLimiter.Wait(ctx); err != nil {
		if errors.Is(err, ratelimit.ErrCoolingDown) {
			requestsTotal.WithLabelValues(endpoint, "cooldown").Inc()
		}
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	// Step 2: cache lookup
	var cacheKey cache.Key
	var cached *cache.Entry
	if c.cache != nil && req.Method == http.MethodGet {
		cacheKey = cache.KeyFromURL(req.URL)
		entry, err := c.cache.Get(ctx, cacheKey)
		switch {
		case err == nil && !entry.IsExpired():
			requestsTotal.WithLabelValues(endpoint, "cache_hit").Inc()
			c.logger.Debug().Str("endpoint", endpoint).Dur("ttl", entry.TTL()).Msg("Serving cached response")
			return cache.EntryToResponse(entry, req), nil
		case err == nil:
			cached = entry
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
	}

	// Step 3: conditional request for stale entries
	if cached.CanRevalidate() {
		cache.AddConditionalHeaders(req, cached)
		cache.ConditionalRequestsSent.Inc()
		c.logger.Debug().
			Str("endpoint", endpoint).
			Str("etag", cached.ETag).
			Msg("Making conditional request")
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("query", req.URL.RawQuery).
		Msg("Executing upstream request")

	// Step 4: execute, retrying only when the caller configured it
	var resp *http.Response
	err := retryWithBackoff(ctx, c.config.Retry, func() error {
		var reqErr error
		resp, reqErr = c.httpClient.Do(req)
		if reqErr != nil {
			class := classifyError(reqErr)
			if class == ErrorClassCanceled {
				c.logger.Debug().Str("endpoint", endpoint).Msg("Request cancelled")
				return reqErr
			}
			c.logger.Warn().Err(reqErr).Str("endpoint", endpoint).Msg("HTTP request failed")
			errorsTotal.WithLabelValues(string(class)).Inc()
			requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			return reqErr
		}

		if err := c.rateLimiter.UpdateFromResponse(ctx, resp); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update shared cooldown")
		}

		requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode >= 400 {
			apiErr := newAPIError(resp, endpoint)
			errorsTotal.WithLabelValues(string(apiErr.ErrorClass)).Inc()
			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("status", resp.StatusCode).
				Str("error_class", string(apiErr.ErrorClass)).
				Msg("Upstream request error")
			drainAndClose(resp.Body)
			resp = nil
			return apiErr
		}

		return nil
	}, classifyError)
	if err != nil {
		return nil, err
	}

	// Step 5: 304 Not Modified
	if resp.StatusCode == http.StatusNotModified {
		drainAndClose(resp.Body)
		if cached == nil {
			return nil, &APIError{
				StatusCode: resp.StatusCode,
				Message:    "not modified without cached entry",
				Endpoint:   endpoint,
			}
		}

		cache.NotModifiedResponses.Inc()
		newExpires := cache.ExpiresFromHeader(resp.Header, c.cache.DefaultTTL())
		if err := c.cache.Refresh(ctx, cacheKey, cached, newExpires); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to refresh cache entry")
		}
		c.logger.Debug().Str("endpoint", endpoint).Msg("304 Not Modified - using cache")
		return cache.EntryToResponse(cached, req), nil
	}

	// Step 6: populate cache
	if c.cache != nil && resp.StatusCode == http.StatusOK {
		entry, err := cache.ResponseToEntry(resp, c.cache.DefaultTTL())
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to create cache entry")
		} else if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache response")
		} else {
			c.logger.Debug().
				Str("endpoint", endpoint).
				Dur("ttl", entry.TTL()).
				Msg("Cached response")
		}
	}

	return resp, nil
}

// Get performs a GET request for path (relative to the base URL) with query.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	u := *c.baseURL
	u.Path = strings.TrimRight(c.baseURL.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	return c.Do(req)
}

// GetJSON performs Get and decodes the JSON body into v.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, v any) error {
	resp, err := c.Get(ctx, path, query)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(v); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// GetCache returns the cache manager, nil when Redis is not configured.
func (c *Client) GetCache() *cache.Manager {
	return c.cache
}

func drainAndClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	body.Close()
}
