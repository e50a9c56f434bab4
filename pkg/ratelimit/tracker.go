package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrCoolingDown is returned while an upstream cooldown is active.
var ErrCoolingDown = errors.New("upstream cooldown active")

// CooldownError is returned by Wait during a cooldown. It carries the upstream
// status that started it and matches ErrCoolingDown with errors.Is.
type CooldownError struct {
	StatusCode int
	Remaining  time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%v after %d: %s remaining", ErrCoolingDown, e.StatusCode, e.Remaining.Round(time.Second))
}

func (e *CooldownError) Is(target error) bool { return target == ErrCoolingDown }

var (
	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pokedex_rate_limit_wait_seconds",
		Help:    "Time spent waiting for the local token bucket",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	})

	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pokedex_rate_limit_blocks_total",
		Help: "Total number of requests refused during an upstream cooldown",
	})

	rateLimitCooldownsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokedex_rate_limit_cooldowns_total",
		Help: "Total number of cooldowns started by upstream status",
	}, []string{"status"})
)

// Config holds tracker configuration.
type Config struct {
	// RequestsPerSecond is the sustained request rate. <= 0 disables the token bucket.
	RequestsPerSecond float64

	// Burst is the token bucket size.
	Burst int
}

// DefaultConfig keeps well under PokeAPI's fair-use guidance.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 10,
		Burst:             5,
	}
}

// Tracker gates requests. The Redis client is optional; without it the cooldown is
// local to this process.
type Tracker struct {
	limiter *rate.Limiter
	redis   *redis.Client
	logger  zerolog.Logger

	mu    sync.Mutex
	local CooldownState
}

// NewTracker creates a tracker.
func NewTracker(cfg Config, redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Tracker{
		limiter: rate.NewLimiter(limit, burst),
		redis:   redisClient,
		logger:  logger,
	}
}

// GetState returns the effective cooldown: the later of the local and shared state.
// A Redis failure is returned together with the local state.
func (t *Tracker) GetState(ctx context.Context) (CooldownState, error) {
	t.mu.Lock()
	state := t.local
	t.mu.Unlock()

	if t.redis == nil {
		return state, nil
	}

	data, err := t.redis.Get(ctx, RedisKeyCooldown).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return state, nil
		}
		return state, fmt.Errorf("get cooldown state: %w", err)
	}

	var shared CooldownState
	if err := json.Unmarshal(data, &shared); err != nil {
		return state, fmt.Errorf("parse cooldown state: %w", err)
	}
	if shared.IsStale(MaxCooldown) {
		t.logger.Debug().Time("last_update", shared.LastUpdate).Msg("Ignoring stale shared cooldown")
		return state, nil
	}

	return later(state, shared), nil
}

// Wait blocks until a request may be sent. It fails fast with *CooldownError while a
// cooldown is active and returns ctx's error unchanged when ctx ends first.
func (t *Tracker) Wait(ctx context.Context) error {
	state, err := t.GetState(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		t.logger.Warn().Err(err).Msg("Shared cooldown state unavailable, using local state")
	}

	if state.Active() {
		rateLimitBlocksTotal.Inc()
		t.logger.Warn().
			Dur("remaining", state.Remaining()).
			Int("status", state.StatusCode).
			Msg("Upstream cooldown active - refusing request")
		return &CooldownError{StatusCode: state.StatusCode, Remaining: state.Remaining()}
	}

	start := time.Now()
	if err := t.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("rate limiter: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		rateLimitWaitSeconds.Observe(waited.Seconds())
	}

	return nil
}

// UpdateFromResponse starts a cooldown when resp asks for one (see CooldownFor).
// The local state is always updated; the shared state only when Redis is configured.
func (t *Tracker) UpdateFromResponse(ctx context.Context, resp *http.Response) error {
	if resp == nil {
		return nil
	}

	now := time.Now()
	d, ok := CooldownFor(resp.StatusCode, resp.Header, now)
	if !ok {
		return nil
	}
	state := CooldownState{
		Until:      now.Add(d),
		StatusCode: resp.StatusCode,
		LastUpdate: now,
	}

	t.mu.Lock()
	t.local = later(t.local, state)
	t.mu.Unlock()

	rateLimitCooldownsTotal.WithLabelValues(http.StatusText(resp.StatusCode)).Inc()
	t.logger.Warn().
		Int("status", resp.StatusCode).
		Dur("cooldown", d).
		Msg("Upstream throttling - cooldown started")

	if t.redis == nil || d <= 0 {
		return nil
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal cooldown state: %w", err)
	}
	if err := t.redis.Set(ctx, RedisKeyCooldown, data, d).Err(); err != nil {
		return fmt.Errorf("store cooldown state in redis: %w", err)
	}

	return nil
}
