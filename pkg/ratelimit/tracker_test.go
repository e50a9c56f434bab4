package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func newLocalTracker(cfg Config) *Tracker {
	return NewTracker(cfg, nil, zerolog.Nop())
}

func TestTracker_Wait_Allows(t *testing.T) {
	tracker := newLocalTracker(Config{RequestsPerSecond: 1000, Burst: 10})

	for i := 0; i < 10; i++ {
		if err := tracker.Wait(context.Background()); err != nil {
			t.Fatalf("Wait #%d: %v", i, err)
		}
	}
}

func TestTracker_Wait_UnlimitedWhenRateDisabled(t *testing.T) {
	tracker := newLocalTracker(Config{})

	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := tracker.Wait(context.Background()); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	if time.Since(start) > time.Second {
		t.Error("disabled limiter should not delay requests")
	}
}

func TestTracker_Wait_ContextCancelled(t *testing.T) {
	tracker := newLocalTracker(Config{RequestsPerSecond: 0.001, Burst: 1})

	// Drain the single token.
	if err := tracker.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tracker.Wait(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Wait error = %v, want context.Canceled", err)
	}
}

func TestTracker_UpdateFromResponse_StartsCooldown(t *testing.T) {
	tracker := newLocalTracker(DefaultConfig())
	ctx := context.Background()

	resp := &http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{}}
	resp.Header.Set("Retry-After", "60")

	if err := tracker.UpdateFromResponse(ctx, resp); err != nil {
		t.Fatalf("UpdateFromResponse: %v", err)
	}

	state, err := tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if !state.Active() {
		t.Fatal("cooldown not active")
	}
	if state.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d", state.StatusCode)
	}

	err = tracker.Wait(ctx)
	if !errors.Is(err, ErrCoolingDown) {
		t.Errorf("Wait error = %v, want ErrCoolingDown", err)
	}
	var cooldownErr *CooldownError
	if !errors.As(err, &cooldownErr) {
		t.Fatalf("Wait error = %T, want *CooldownError", err)
	}
	if cooldownErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("CooldownError.StatusCode = %d, want 429", cooldownErr.StatusCode)
	}
}

func TestTracker_Bare503DoesNotBlock(t *testing.T) {
	tracker := newLocalTracker(DefaultConfig())
	ctx := context.Background()

	resp := &http.Response{StatusCode: http.StatusServiceUnavailable, Header: http.Header{}}
	if err := tracker.UpdateFromResponse(ctx, resp); err != nil {
		t.Fatalf("UpdateFromResponse: %v", err)
	}

	if err := tracker.Wait(ctx); err != nil {
		t.Errorf("Wait after 503 without Retry-After: %v", err)
	}
}

func TestTracker_IgnoresStaleSharedState(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	t.Cleanup(func() {
		rdb.Del(context.Background(), RedisKeyCooldown)
		rdb.Close()
	})

	stale := CooldownState{
		Until:      time.Now().Add(time.Hour),
		StatusCode: http.StatusTooManyRequests,
		LastUpdate: time.Now().Add(-2 * MaxCooldown),
	}
	data, err := json.Marshal(stale)
	if err != nil {
		t.Fatal(err)
	}
	if err := rdb.Set(ctx, RedisKeyCooldown, data, time.Minute).Err(); err != nil {
		t.Fatal(err)
	}

	tracker := NewTracker(DefaultConfig(), rdb, zerolog.Nop())
	if err := tracker.Wait(ctx); err != nil {
		t.Errorf("Wait with stale shared cooldown: %v", err)
	}
}

func TestTracker_UpdateFromResponse_IgnoresNonThrottle(t *testing.T) {
	tracker := newLocalTracker(DefaultConfig())
	ctx := context.Background()

	for _, status := range []int{http.StatusOK, http.StatusNotFound, http.StatusInternalServerError} {
		if err := tracker.UpdateFromResponse(ctx, &http.Response{StatusCode: status, Header: http.Header{}}); err != nil {
			t.Fatalf("UpdateFromResponse(%d): %v", status, err)
		}
	}
	if err := tracker.UpdateFromResponse(ctx, nil); err != nil {
		t.Fatalf("UpdateFromResponse(nil): %v", err)
	}

	state, _ := tracker.GetState(ctx)
	if state.Active() {
		t.Error("cooldown started for non-throttle response")
	}
}

func TestTracker_ZeroRetryAfterDoesNotBlock(t *testing.T) {
	tracker := newLocalTracker(DefaultConfig())
	ctx := context.Background()

	resp := &http.Response{StatusCode: http.StatusServiceUnavailable, Header: http.Header{}}
	resp.Header.Set("Retry-After", "0")
	if err := tracker.UpdateFromResponse(ctx, resp); err != nil {
		t.Fatal(err)
	}

	if err := tracker.Wait(ctx); err != nil {
		t.Errorf("Wait after zero cooldown: %v", err)
	}
}
