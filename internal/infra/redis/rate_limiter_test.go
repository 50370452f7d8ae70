//go:build !integration

package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// memClient is an in-memory RedisClient covering the calls the limiter makes.
type memClient struct {
	mu      sync.Mutex
	counts  map[string]int64
	expires map[string]time.Duration
	incrErr error
}

func newMemClient() *memClient {
	return &memClient{counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (m *memClient) Ping(ctx context.Context) error { return nil }
func (m *memClient) Set(ctx context.Context, key string, value interface{}, exp time.Duration) error {
	return nil
}
func (m *memClient) Get(ctx context.Context, key string) (string, error) { return "", nil }
func (m *memClient) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.incrErr != nil {
		return 0, m.incrErr
	}
	m.counts[key]++
	return m.counts[key], nil
}
func (m *memClient) Expire(ctx context.Context, key string, exp time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expires[key] = exp
	return nil
}
func (m *memClient) Del(ctx context.Context, keys ...string) error { return nil }
func (m *memClient) Close() error                                  { return nil }

func TestRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 30, 0, time.UTC)

	newLimiter := func(c *memClient) *RateLimiter {
		rl := NewRateLimiter(c)
		rl.now = func() time.Time { return at }
		return rl
	}

	t.Run("allows up to the limit then blocks", func(t *testing.T) {
		client := newMemClient()
		rl := newLimiter(client)
		key := UserRouteKey("u1", "pay")

		for i := 0; i < 3; i++ {
			ok, err := rl.Allow(ctx, key, 3, time.Minute)
			if err != nil || !ok {
				t.Fatalf("call %d: expected allowed, got ok=%v err=%v", i, ok, err)
			}
		}
		ok, err := rl.Allow(ctx, key, 3, time.Minute)
		if err != nil || ok {
			t.Fatalf("expected fourth call blocked, got ok=%v err=%v", ok, err)
		}
		bucket := windowKey(key, at, time.Minute)
		if client.expires[bucket] != 2*time.Minute {
			t.Errorf("expected bucket ttl set on first hit, got %v", client.expires[bucket])
		}
		if client.counts[bucket] != 4 {
			t.Errorf("expected 4 hits in bucket %q, got %d", bucket, client.counts[bucket])
		}
	})

	t.Run("next window starts a fresh count", func(t *testing.T) {
		client := newMemClient()
		rl := newLimiter(client)
		key := UserRouteKey("u1", "join")

		if ok, _ := rl.Allow(ctx, key, 1, time.Minute); !ok {
			t.Fatal("expected first call allowed")
		}
		if ok, _ := rl.Allow(ctx, key, 1, time.Minute); ok {
			t.Fatal("expected second call in the same window blocked")
		}
		rl.now = func() time.Time { return at.Add(time.Minute) }
		if ok, _ := rl.Allow(ctx, key, 1, time.Minute); !ok {
			t.Fatal("expected call in the next window allowed")
		}
	})

	t.Run("keys are independent per user and route", func(t *testing.T) {
		rl := newLimiter(newMemClient())
		_, _ = rl.Allow(ctx, UserRouteKey("u1", "pay"), 1, time.Minute)
		ok, _ := rl.Allow(ctx, UserRouteKey("u2", "pay"), 1, time.Minute)
		if !ok {
			t.Fatal("expected a different user to be allowed")
		}
		if UserRouteKey("u1", "pay") != "rate_limit:u1:pay" {
			t.Errorf("unexpected key %q", UserRouteKey("u1", "pay"))
		}
	})

	t.Run("zero limit never touches redis", func(t *testing.T) {
		client := newMemClient()
		client.incrErr = errors.New("must not be called")
		ok, err := newLimiter(client).Allow(ctx, "k", 0, time.Minute)
		if err != nil || !ok {
			t.Fatalf("expected allowed without error, got ok=%v err=%v", ok, err)
		}
	})

	t.Run("redis error is returned", func(t *testing.T) {
		client := newMemClient()
		client.incrErr = errors.New("connection refused")
		if _, err := newLimiter(client).Allow(ctx, "k", 1, time.Minute); err == nil {
			t.Fatal("expected error")
		}
	})
}
