package redisclient

import (
	"context"
	"sync"
	"time"
)

// LocalLocker is an in-process Locker for single-instance deployments
// (REDIS_DISABLED, SQLite mode) and tests.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]chan struct{}
	wait time.Duration
}

func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{
		held: make(map[string]chan struct{}),
		wait: wait,
	}
}

func (l *LocalLocker) WithLocks(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	keys = normalizeKeys(keys)

	held := make([]string, 0, len(keys))
	defer func() {
		for _, key := range held {
			l.release(key)
		}
	}()

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	for _, key := range keys {
		if err := l.acquire(ctx, key, timer.C); err != nil {
			return err
		}
		held = append(held, key)
	}

	return fn(ctx)
}

func (l *LocalLocker) acquire(ctx context.Context, key string, expired <-chan time.Time) error {
	for {
		l.mu.Lock()
		ch, busy := l.held[key]
		if !busy {
			l.held[key] = make(chan struct{})
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		case <-expired:
			return ErrLockNotAcquired
		}
	}
}

func (l *LocalLocker) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ch, ok := l.held[key]; ok {
		close(ch)
		delete(l.held, key)
	}
}
