package pipeline

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Locker is the queue-level single-writer guard. The database row lock is the
// source of truth; this keeps two workers from even starting the same
// submission's pipeline concurrently.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type redisLocker struct {
	client *redis.Client
}

// NewRedisLocker builds a SETNX-based locker.
func NewRedisLocker(client *redis.Client) Locker {
	return &redisLocker{client: client}
}

func (l *redisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, key, "1", ttl).Result()
}

func (l *redisLocker) Release(ctx context.Context, key string) error {
	return l.client.Del(ctx, key).Err()
}

// noopLocker serves single-node deployments without Redis.
type noopLocker struct{}

// NewNoopLocker returns a locker that always grants the lock.
func NewNoopLocker() Locker {
	return noopLocker{}
}

func (noopLocker) Acquire(context.Context, string, time.Duration) (bool, error) {
	return true, nil
}

func (noopLocker) Release(context.Context, string) error {
	return nil
}
