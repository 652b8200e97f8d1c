package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	domrepo "TFTracker/internal/domain/repository"
	"TFTracker/pkg/cache"
	applogger "TFTracker/pkg/logger"
)

// CacheLocker implements Locker on top of cache.Service TryLock. With a
// RedisCache it serializes work across processes; with MemoryCache only
// within this one.
type CacheLocker struct {
	cache cache.Service
	ttl   time.Duration
	wait  time.Duration
	retry time.Duration
	l     *applogger.Logger
}

// LockerOption configures CacheLocker.
type LockerOption func(*CacheLocker)

// WithLockTTL bounds how long a crashed holder can block others.
func WithLockTTL(ttl time.Duration) LockerOption {
	return func(c *CacheLocker) { c.ttl = ttl }
}

// WithLockWait sets how long Lock polls before giving up.
func WithLockWait(wait, retry time.Duration) LockerOption {
	return func(c *CacheLocker) {
		c.wait = wait
		c.retry = retry
	}
}

// WithLockerLogger sets a structured logger.
func WithLockerLogger(l *applogger.Logger) LockerOption {
	return func(c *CacheLocker) { c.l = l }
}

func NewCacheLocker(c cache.Service, opts ...LockerOption) *CacheLocker {
	lk := &CacheLocker{
		cache: c,
		ttl:   30 * time.Second,
		wait:  10 * time.Second,
		retry: 50 * time.Millisecond,
		l:     applogger.Nop(),
	}
	for _, opt := range opts {
		opt(lk)
	}
	return lk
}

// Lock blocks until key is acquired, ctx is done or the wait elapses.
// The returned release only frees the lock while this call still owns
// it; after the TTL has passed the key may belong to another holder.
func (c *CacheLocker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := cache.GenerateKey("lock", key)
	token := uuid.NewString()
	deadline := time.NewTimer(c.wait)
	defer deadline.Stop()

	for {
		ok, err := c.cache.TryLock(ctx, lockKey, token, c.ttl)
		if err != nil {
			return nil, fmt.Errorf("try lock %s: %w", key, err)
		}
		if ok {
			return func() {
				// release must not depend on the caller's possibly cancelled ctx
				uctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				released, err := c.cache.Unlock(uctx, lockKey, token)
				if err != nil {
					c.l.Warn("lock release failed", applogger.String("key", lockKey), applogger.Error(err))
					return
				}
				if !released {
					c.l.Warn("lock expired before release", applogger.String("key", lockKey), applogger.Duration("ttl", c.ttl))
				}
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, fmt.Errorf("lock %s: %w", key, domrepo.ErrLockTimeout)
		case <-time.After(c.retry):
		}
	}
}

var _ domrepo.Locker = (*CacheLocker)(nil)
