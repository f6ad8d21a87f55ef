// Package cache is the shared session cache: the single canonical refresh
// token per user, one-time codes (password reset, phone verification), and
// rate-limit counters all live here so that every server instance sees the
// same state.
package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCacheMiss is returned when a key does not exist or has expired.
	ErrCacheMiss = errors.New("cache miss")
	// ErrCacheUnavailable wraps transport failures. Callers with a fallback
	// policy (the rate limiter) switch to it on this error.
	ErrCacheUnavailable = errors.New("cache unavailable")
)

// Store is the key-value contract consumed by the auth flows. All operations
// may fail with ErrCacheUnavailable.
type Store interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) (int64, error)
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)
	Ping(ctx context.Context) error
}

// Key layout. One prefix per concern, user-scoped where the invariant is
// per-user (refresh tokens, reset tokens) and phone-scoped for SMS codes.
const (
	refreshPrefix = "rt:"
	resetPrefix   = "pr:"
	phonePrefix   = "pv:"
	verifyPrefix  = "ev:"
)

// RefreshKey returns the cache key holding userID's canonical refresh token.
func RefreshKey(userID string) string { return refreshPrefix + userID }

// ResetKey returns the cache key holding userID's pending reset token.
func ResetKey(userID string) string { return resetPrefix + userID }

// PhoneCodeKey returns the cache key holding the verification code for phone.
func PhoneCodeKey(phone string) string { return phonePrefix + phone }

// EmailVerifyKey returns the cache key holding userID's pending
// email-verification token.
func EmailVerifyKey(userID string) string { return verifyPrefix + userID }
