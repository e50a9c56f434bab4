package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the key was not found or the entry has expired.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the stored entry could not be decoded.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// DefaultTTL is used when a response carries no usable Expires header.
const DefaultTTL = 10 * time.Minute

// staleGrace keeps expired entries around long enough to be revalidated with a 304.
const staleGrace = 24 * time.Hour

// Manager reads and writes cache entries in Redis.
type Manager struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// NewManager creates a cache manager. defaultTTL <= 0 selects DefaultTTL.
func NewManager(redisClient *redis.Client, defaultTTL time.Duration) (*Manager, error) {
	if redisClient == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &Manager{
		redis:      redisClient,
		defaultTTL: defaultTTL,
	}, nil
}

// DefaultTTL returns the fallback TTL applied to responses without Expires.
func (m *Manager) DefaultTTL() time.Duration {
	return m.defaultTTL
}

// Get returns the entry stored under key, including expired entries that are still
// within the revalidation grace period. Callers check IsExpired before serving.
// Returns ErrCacheMiss when nothing is stored.
func (m *Manager) Get(ctx context.Context, key Key) (*Entry, error) {
	data, err := m.redis.Get(ctx, key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired() {
		CacheMisses.Inc()
	} else {
		CacheHits.Inc()
	}

	return &entry, nil
}

// Set stores entry under key. Redis keeps it past Expires for the revalidation grace period.
func (m *Manager) Set(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, key.String(), data, entry.TTL()+staleGrace).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	StoredBytes.Add(float64(len(data)))
	return nil
}

// Delete removes the entry stored under key.
func (m *Manager) Delete(ctx context.Context, key Key) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Refresh extends an existing entry to newExpires, typically after a 304.
func (m *Manager) Refresh(ctx context.Context, key Key, entry *Entry, newExpires time.Time) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	refreshed := *entry
	refreshed.Expires = newExpires
	refreshed.CachedAt = time.Now()
	*entry = refreshed
	return m.Set(ctx, key, entry)
}
