package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/voicebill_backend/config"
)

var ErrSessionLockNotObtained = errors.New("could not obtain review session lock")

// SessionLocker serialises work on one key. The returned func releases the lock.
type SessionLocker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// DefaultSessionLocker uses Redis when connected so instances share locks; otherwise an
// in-process locker.
func DefaultSessionLocker() SessionLocker {
	if locker := config.GetRedisLock(); locker != nil {
		return NewRedisSessionLocker(locker)
	}
	return NewLocalSessionLocker()
}

type RedisSessionLocker struct {
	Client *redislock.Client
	TTL    time.Duration
	Retry  redislock.RetryStrategy
}

func NewRedisSessionLocker(client *redislock.Client) *RedisSessionLocker {
	return &RedisSessionLocker{
		Client: client,
		TTL:    30 * time.Second,
		Retry:  redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 50),
	}
}

func (l *RedisSessionLocker) Lock(ctx context.Context, key string) (func(), error) {
	lock, err := l.Client.Obtain(ctx, "lock:"+key, l.TTL, &redislock.Options{RetryStrategy: l.Retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrSessionLockNotObtained, key)
	} else if err != nil {
		return nil, err
	}
	return func() {
		if releaseErr := lock.Release(context.WithoutCancel(ctx)); releaseErr != nil && !errors.Is(releaseErr, redislock.ErrLockNotHeld) {
			config.LogError(config.GetLogger(), "RedisSessionLocker", "Lock", "Release", key, releaseErr)
		}
	}, nil
}

type localLock struct {
	mu   sync.Mutex
	refs int
}

// LocalSessionLocker keeps one mutex per key while anyone holds or waits for it.
type LocalSessionLocker struct {
	mu    sync.Mutex
	locks map[string]*localLock
}

func NewLocalSessionLocker() *LocalSessionLocker {
	return &LocalSessionLocker{locks: map[string]*localLock{}}
}

func (l *LocalSessionLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	entry := l.locks[key]
	if entry == nil {
		entry = &localLock{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}, nil
}
