package redisclient

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("scheduling lock not acquired")
)

const retryInterval = 25 * time.Millisecond

// Locker guards the conflict-check-then-write critical section of the
// scheduling service. All keys are held for the duration of fn.
type Locker interface {
	WithLocks(ctx context.Context, keys []string, fn func(ctx context.Context) error) error
}

// ProviderKey and PatientKey name the two scheduling scopes.
func ProviderKey(providerID string) string {
	return "lock:provider:" + providerID
}

func PatientKey(patientID uuid.UUID) string {
	return "lock:patient:" + patientID.String()
}

// normalizeKeys sorts and de-duplicates so that every caller acquires in the same order.
func normalizeKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type redisLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewRedisLocker creates a locker that uses one Redis key per scheduling scope.
// Acquisition is retried for up to wait before giving up.
func NewRedisLocker(client *redis.Client, ttl, wait time.Duration) Locker {
	return &redisLocker{
		client: client,
		ttl:    ttl,
		wait:   wait,
	}
}

func (l *redisLocker) WithLocks(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	keys = normalizeKeys(keys)
	token := uuid.NewString()

	held := make([]string, 0, len(keys))
	defer func() {
		for _, key := range held {
			_ = l.release(context.WithoutCancel(ctx), key, token)
		}
	}()

	deadline := time.Now().Add(l.wait)
	for _, key := range keys {
		if err := l.acquire(ctx, key, token, deadline); err != nil {
			return err
		}
		held = append(held, key)
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

func (l *redisLocker) acquire(ctx context.Context, key, token string, deadline time.Time) error {
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire scheduling lock: %w", err)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrLockNotAcquired
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release scheduling lock: %w", err)
	}
	return nil
}
