package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"collection-service/internal/entity"
)

// Locker is a per-key mutex shared by every API replica.
type Locker struct {
	client *redislock.Client
	ttl    time.Duration
	opts   *redislock.Options
}

func NewLocker(rdb *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Locker{
		client: redislock.New(rdb),
		ttl:    ttl,
		opts: &redislock.Options{
			RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 30),
		},
	}
}

// Lock waits a few seconds for key. A key still held after that is reported
// as ErrJobNotEditable.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	lock, err := l.client.Obtain(ctx, key, l.ttl, l.opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, entity.NewFieldError(entity.ErrJobNotEditable, "job", "another change is in progress")
	}
	if err != nil {
		return nil, err
	}
	return func() {
		// the request ctx may already be done
		_ = lock.Release(context.Background())
	}, nil
}
