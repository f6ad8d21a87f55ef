package rate

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/fixrx/auth-service/internal/cache"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(cache.NewRedis(client), cfg, nil), mr
}

func TestAllowWithinBudget(t *testing.T) {
	l, _ := newTestLimiter(t, Config{MaxAttempts: 5, Window: 15 * time.Minute})
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		if err := l.Allow(ctx, "1.2.3.4", "alice@example.com"); err != nil {
			t.Fatalf("attempt %d rejected: %v", i, err)
		}
	}

	err := l.Allow(ctx, "1.2.3.4", "alice@example.com")
	if err == nil {
		t.Fatal("expected 6th attempt to be rejected")
	}
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	var limited *LimitExceededError
	if !errors.As(err, &limited) {
		t.Fatalf("expected *LimitExceededError, got %T", err)
	}
	if limited.RetryAfter <= 0 || limited.RetryAfter > 15*time.Minute {
		t.Fatalf("retryAfter = %v, want (0, 15m]", limited.RetryAfter)
	}
}

func TestWindowExpiryReopensBudget(t *testing.T) {
	l, mr := newTestLimiter(t, Config{MaxAttempts: 5, Window: 15 * time.Minute})
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		l.Allow(ctx, "1.2.3.4", "alice@example.com")
	}

	mr.FastForward(16 * time.Minute)

	if err := l.Allow(ctx, "1.2.3.4", "alice@example.com"); err != nil {
		t.Fatalf("attempt after window expiry rejected: %v", err)
	}

	n, err := l.Attempts(ctx, "1.2.3.4", "alice@example.com")
	if err != nil {
		t.Fatalf("Attempts failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("attempts = %d, want 1 in the fresh window", n)
	}
}

func TestLaterAttemptsDoNotExtendWindow(t *testing.T) {
	l, mr := newTestLimiter(t, Config{MaxAttempts: 5, Window: 15 * time.Minute})
	ctx := context.Background()

	l.Allow(ctx, "1.2.3.4", "alice@example.com")
	mr.FastForward(10 * time.Minute)
	l.Allow(ctx, "1.2.3.4", "alice@example.com")
	mr.FastForward(6 * time.Minute)

	// 16 minutes after the first attempt the window is gone even though the
	// second attempt came at minute 10.
	n, err := l.Attempts(ctx, "1.2.3.4", "alice@example.com")
	if err != nil {
		t.Fatalf("Attempts failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("attempts = %d, want 0 after window expiry", n)
	}
}

func TestResetClearsCounter(t *testing.T) {
	l, _ := newTestLimiter(t, Config{MaxAttempts: 2, Window: time.Minute})
	ctx := context.Background()

	l.Allow(ctx, "1.2.3.4", "alice@example.com")
	l.Allow(ctx, "1.2.3.4", "alice@example.com")
	if err := l.Allow(ctx, "1.2.3.4", "alice@example.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected rejection before reset, got %v", err)
	}

	if err := l.Reset(ctx, "1.2.3.4", "alice@example.com"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if err := l.Allow(ctx, "1.2.3.4", "alice@example.com"); err != nil {
		t.Fatalf("attempt after reset rejected: %v", err)
	}
}

func TestKeysAreScopedPerIPAndIdentity(t *testing.T) {
	l, _ := newTestLimiter(t, Config{MaxAttempts: 2, Window: time.Minute})
	ctx := context.Background()

	l.Allow(ctx, "1.2.3.4", "alice@example.com")
	l.Allow(ctx, "1.2.3.4", "alice@example.com")
	if err := l.Allow(ctx, "1.2.3.4", "alice@example.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected rejection, got %v", err)
	}

	if err := l.Allow(ctx, "5.6.7.8", "alice@example.com"); err != nil {
		t.Fatalf("other IP rejected: %v", err)
	}
	if err := l.Allow(ctx, "1.2.3.4", "bob@example.com"); err != nil {
		t.Fatalf("other identity rejected: %v", err)
	}
}

func TestLimitExceededMessageRoundsUp(t *testing.T) {
	short := &LimitExceededError{RetryAfter: 20 * time.Second}
	if got := short.Error(); got != "too many attempts, please try again in 1 minutes" {
		t.Fatalf("message = %q", got)
	}
	long := &LimitExceededError{RetryAfter: 14 * time.Minute}
	if got := long.Error(); got != "too many attempts, please try again in 14 minutes" {
		t.Fatalf("message = %q", got)
	}
}

// brokenStore simulates an unreachable cache so Allow exercises the
// in-process fallback path.
type brokenStore struct{}

func (brokenStore) Set(context.Context, string, string, time.Duration) error {
	return fmt.Errorf("%w: dial refused", cache.ErrCacheUnavailable)
}
func (brokenStore) Get(context.Context, string) (string, error) {
	return "", fmt.Errorf("%w: dial refused", cache.ErrCacheUnavailable)
}
func (brokenStore) Del(context.Context, ...string) (int64, error) {
	return 0, fmt.Errorf("%w: dial refused", cache.ErrCacheUnavailable)
}
func (brokenStore) Incr(context.Context, string) (int64, error) {
	return 0, fmt.Errorf("%w: dial refused", cache.ErrCacheUnavailable)
}
func (brokenStore) Expire(context.Context, string, time.Duration) error {
	return fmt.Errorf("%w: dial refused", cache.ErrCacheUnavailable)
}
func (brokenStore) TTL(context.Context, string) (time.Duration, error) {
	return 0, fmt.Errorf("%w: dial refused", cache.ErrCacheUnavailable)
}
func (brokenStore) Ping(context.Context) error {
	return fmt.Errorf("%w: dial refused", cache.ErrCacheUnavailable)
}

func TestFallbackWhenCacheUnavailable(t *testing.T) {
	l := New(brokenStore{}, Config{MaxAttempts: 3, Window: time.Minute}, nil)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if err := l.Allow(ctx, "1.2.3.4", "alice@example.com"); err != nil {
			t.Fatalf("fallback attempt %d rejected: %v", i, err)
		}
	}
	if err := l.Allow(ctx, "1.2.3.4", "alice@example.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected fallback rejection, got %v", err)
	}

	// Reset must clear the fallback counter even though Del fails.
	if err := l.Reset(ctx, "1.2.3.4", "alice@example.com"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if err := l.Allow(ctx, "1.2.3.4", "alice@example.com"); err != nil {
		t.Fatalf("attempt after fallback reset rejected: %v", err)
	}
}

func TestFallbackWindowExpiry(t *testing.T) {
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	f := newMemoryFallback(Config{MaxAttempts: 2, Window: time.Minute}, func() time.Time {
		return clock
	})

	f.allow("la:k")
	f.allow("la:k")
	if err := f.allow("la:k"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected rejection, got %v", err)
	}

	clock = clock.Add(2 * time.Minute)
	if err := f.allow("la:k"); err != nil {
		t.Fatalf("attempt in new window rejected: %v", err)
	}
}
