package position

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKeyPrefix namespaces persisted positions.
const RedisKeyPrefix = "pokedex:position:"

// ErrNotFound is returned by Store.Load when nothing was saved under the key.
var ErrNotFound = errors.New("position not found")

// Store persists positions for a host.
type Store interface {
	Load(ctx context.Context, key string) (PersistedPosition, error)
	Save(ctx context.Context, key string, pos PersistedPosition) error
}

// MemoryStore keeps positions for the lifetime of the process.
type MemoryStore struct {
	mu        sync.RWMutex
	positions map[string]PersistedPosition
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{positions: make(map[string]PersistedPosition)}
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, key string) (PersistedPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.positions[key]
	if !ok {
		return PersistedPosition{}, ErrNotFound
	}
	return pos.clone(), nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, key string, pos PersistedPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[key] = pos.clone()
	return nil
}

// RedisStore keeps positions in Redis as JSON.
type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisStore creates a RedisStore. ttl <= 0 keeps positions without expiry.
func NewRedisStore(redisClient *redis.Client, ttl time.Duration) (*RedisStore, error) {
	if redisClient == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &RedisStore{redis: redisClient, ttl: max(ttl, 0)}, nil
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, key string) (PersistedPosition, error) {
	data, err := s.redis.Get(ctx, RedisKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return PersistedPosition{}, ErrNotFound
		}
		return PersistedPosition{}, fmt.Errorf("redis get: %w", err)
	}

	var pos PersistedPosition
	if err := json.Unmarshal(data, &pos); err != nil {
		return PersistedPosition{}, fmt.Errorf("unmarshal position: %w", err)
	}
	return pos, nil
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, key string, pos PersistedPosition) error {
	data, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("marshal position: %w", err)
	}
	if err := s.redis.Set(ctx, RedisKeyPrefix+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
