// Package rate guards the authentication endpoints with a fixed-window
// attempt counter keyed by (client IP, submitted identity). Counters live in
// the shared cache so every server instance enforces the same budget; when
// the cache is unreachable the limiter degrades to a per-process in-memory
// window rather than silently letting traffic through.
package rate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fixrx/auth-service/internal/cache"
	"go.uber.org/zap"
)

// ErrRateLimited is the base error for rejected attempts. Rejections are
// surfaced as *LimitExceededError, which matches this sentinel via errors.Is.
var ErrRateLimited = errors.New("too many attempts")

// LimitExceededError reports how long the caller must wait before the window
// reopens.
type LimitExceededError struct {
	RetryAfter time.Duration
}

func (e *LimitExceededError) Error() string {
	minutes := int(e.RetryAfter.Minutes())
	if e.RetryAfter > 0 && minutes == 0 {
		minutes = 1
	}
	return fmt.Sprintf("too many attempts, please try again in %d minutes", minutes)
}

func (e *LimitExceededError) Is(target error) bool { return target == ErrRateLimited }

// Config holds the attempt budget. Zero values fall back to the defaults of
// 5 attempts per 15 minutes.
type Config struct {
	MaxAttempts int
	Window      time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.Window <= 0 {
		c.Window = 15 * time.Minute
	}
	return c
}

// Limiter enforces the attempt budget against the shared cache, degrading to
// an in-process fallback when the cache is unreachable.
type Limiter struct {
	store    cache.Store
	config   Config
	fallback *memoryFallback
	log      *zap.Logger
}

// New creates a Limiter backed by store.
func New(store cache.Store, cfg Config, log *zap.Logger) *Limiter {
	cfg = cfg.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &Limiter{
		store:    store,
		config:   cfg,
		fallback: newMemoryFallback(cfg, time.Now),
		log:      log,
	}
}

func attemptKey(ip, identity string) string {
	if ip == "" {
		ip = "unknown"
	}
	if identity == "" {
		identity = "unknown"
	}
	return "la:" + ip + ":" + identity
}

// Allow records an authentication attempt for (ip, identity) and reports
// whether it is inside the window budget. The first attempt in a window sets
// the TTL; the window resets only after full expiry, never on later attempts.
func (l *Limiter) Allow(ctx context.Context, ip, identity string) error {
	key := attemptKey(ip, identity)

	err := l.allowShared(ctx, key)
	if errors.Is(err, cache.ErrCacheUnavailable) {
		l.log.Warn("rate limiter cache unreachable, using in-process fallback",
			zap.Error(err))
		return l.fallback.allow(key)
	}
	return err
}

// Reset clears the counter for (ip, identity) after a successful
// authentication.
func (l *Limiter) Reset(ctx context.Context, ip, identity string) error {
	key := attemptKey(ip, identity)
	l.fallback.reset(key)
	if _, err := l.store.Del(ctx, key); err != nil && !errors.Is(err, cache.ErrCacheUnavailable) {
		return err
	}
	return nil
}

// Attempts returns the current shared counter for (ip, identity). Missing
// keys report zero.
func (l *Limiter) Attempts(ctx context.Context, ip, identity string) (int, error) {
	val, err := l.store.Get(ctx, attemptKey(ip, identity))
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return 0, nil
		}
		return 0, err
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 0 {
		return 0, nil
	}
	return n, nil
}

func (l *Limiter) allowShared(ctx context.Context, key string) error {
	count, err := l.store.Incr(ctx, key)
	if err != nil {
		return err
	}

	// Fixed-window semantics: the TTL is set only on the first hit.
	if count == 1 {
		if err := l.store.Expire(ctx, key, l.config.Window); err != nil {
			return err
		}
		return nil
	}

	if count > int64(l.config.MaxAttempts) {
		retryAfter, ttlErr := l.store.TTL(ctx, key)
		if ttlErr != nil || retryAfter <= 0 {
			retryAfter = l.config.Window
		}
		return &LimitExceededError{RetryAfter: retryAfter}
	}

	return nil
}
