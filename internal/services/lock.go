package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrPassInProgress = errors.New("recurring pass already in progress")

// PassLock guarantees at most one recurring pass runs at a time.
// TryAcquire reports false, without error, when another holder has it.
type PassLock interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LocalPassLock serializes passes inside one process
type LocalPassLock struct {
	mu sync.Mutex
}

func NewLocalPassLock() *LocalPassLock {
	return &LocalPassLock{}
}

func (l *LocalPassLock) TryAcquire(ctx context.Context) (bool, error) {
	return l.mu.TryLock(), nil
}

func (l *LocalPassLock) Release(ctx context.Context) error {
	l.mu.Unlock()
	return nil
}

// releaseScript deletes the key only if it still holds our token, so a pass
// that outlived its TTL cannot release a lock another replica now owns.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisPassLock serializes passes across replicas sharing one Redis
type RedisPassLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration

	mu    sync.Mutex
	token string
}

func NewRedisPassLock(client *redis.Client, key string, ttl time.Duration) *RedisPassLock {
	return &RedisPassLock{client: client, key: key, ttl: ttl}
}

func (l *RedisPassLock) TryAcquire(ctx context.Context) (bool, error) {
	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire pass lock: %w", err)
	}
	if !ok {
		return false, nil
	}

	l.mu.Lock()
	l.token = token
	l.mu.Unlock()
	return true, nil
}

func (l *RedisPassLock) Release(ctx context.Context) error {
	l.mu.Lock()
	token := l.token
	l.token = ""
	l.mu.Unlock()

	if token == "" {
		return nil
	}
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
		return fmt.Errorf("failed to release pass lock: %w", err)
	}
	return nil
}

// chainedLock acquires every lock in order and releases them in reverse
type chainedLock []PassLock

// ChainLocks combines locks, e.g. a local lock in front of a Redis lock
func ChainLocks(locks ...PassLock) PassLock {
	return chainedLock(locks)
}

func (c chainedLock) TryAcquire(ctx context.Context) (bool, error) {
	for i, l := range c {
		ok, err := l.TryAcquire(ctx)
		if err != nil || !ok {
			for j := i - 1; j >= 0; j-- {
				_ = c[j].Release(ctx)
			}
			return false, err
		}
	}
	return true, nil
}

func (c chainedLock) Release(ctx context.Context) error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i].Release(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
