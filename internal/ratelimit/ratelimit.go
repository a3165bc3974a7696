// Package ratelimit enforces the per-user cap on notifications sent in a
// trailing window.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Window is the trailing window the cap applies to.
const Window = time.Hour

// Limiter decides whether a user may receive more notifications.
type Limiter interface {
	// Exceeded reports whether the user already reached max sends within the
	// window ending at now. max <= 0 means unlimited.
	Exceeded(ctx context.Context, userID string, max int, now time.Time) (bool, error)
	// Record notes a successful send.
	Record(ctx context.Context, userID, deliveryID string, now time.Time) error
}

// SentCounter counts sent delivery records.
type SentCounter interface {
	CountSentSince(ctx context.Context, userID string, since time.Time) (int, error)
}

// StoreLimiter counts sent records in the delivery store. It needs no state
// of its own; Record is a no-op.
type StoreLimiter struct {
	counter SentCounter
}

var _ Limiter = (*StoreLimiter)(nil)

// NewStoreLimiter creates a limiter backed by counter.
func NewStoreLimiter(counter SentCounter) *StoreLimiter {
	return &StoreLimiter{counter: counter}
}

// Exceeded implements Limiter.
func (l *StoreLimiter) Exceeded(ctx context.Context, userID string, max int, now time.Time) (bool, error) {
	if max <= 0 {
		return false, nil
	}
	n, err := l.counter.CountSentSince(ctx, userID, now.Add(-Window))
	if err != nil {
		return false, fmt.Errorf("failed to count sent notifications: %w", err)
	}
	return n >= max, nil
}

// Record implements Limiter.
func (l *StoreLimiter) Record(context.Context, string, string, time.Time) error {
	return nil
}

// KeyPrefix prefixes the per-user sorted set.
const KeyPrefix = "ratelimit:sent:"

// Key returns the sorted set holding userID's send timestamps.
func Key(userID string) string {
	return KeyPrefix + userID
}

// countScript trims entries older than the window and returns the remainder.
var countScript = redis.NewScript(`
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", "(" .. ARGV[1])
return redis.call("ZCARD", KEYS[1])
`)

// recordScript adds one send and refreshes the key's expiry.
var recordScript = redis.NewScript(`
redis.call("ZADD", KEYS[1], ARGV[1], ARGV[2])
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return 1
`)

// RedisLimiter keeps a sliding window of send timestamps per user in a Redis
// sorted set, so the cap holds across notifier replicas.
type RedisLimiter struct {
	client redis.Scripter
}

var _ Limiter = (*RedisLimiter)(nil)

// NewRedisLimiter creates a limiter on client.
func NewRedisLimiter(client redis.Scripter) *RedisLimiter {
	return &RedisLimiter{client: client}
}

// Exceeded implements Limiter.
func (l *RedisLimiter) Exceeded(ctx context.Context, userID string, max int, now time.Time) (bool, error) {
	if max <= 0 {
		return false, nil
	}
	since := now.Add(-Window).UnixMilli()
	n, err := countScript.Run(ctx, l.client, []string{Key(userID)}, strconv.FormatInt(since, 10)).Int()
	if err != nil {
		return false, fmt.Errorf("failed to read rate limit window: %w", err)
	}
	return n >= max, nil
}

// Record implements Limiter.
func (l *RedisLimiter) Record(ctx context.Context, userID, deliveryID string, now time.Time) error {
	err := recordScript.Run(ctx, l.client, []string{Key(userID)},
		now.UnixMilli(), deliveryID, Window.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("failed to record send in rate limit window: %w", err)
	}
	return nil
}
