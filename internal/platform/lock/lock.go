// Package lock provides the distributed lock the policy service serializes
// multi-step operations with. The Redis implementation holds a lease keyed by
// a random token so a release can never drop a lock a slower peer re-acquired;
// Local is the single-instance fallback used when Redis is not configured.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "lock:"
	retryInterval = 100 * time.Millisecond
)

// releaseScript deletes the lock only when it still carries the caller's
// token. Without the check an expired holder could delete its successor's
// lock.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Redis is a lease-based lock over a shared Redis instance.
type Redis struct {
	client redis.Scripter
	ttl    time.Duration
}

// NewRedis builds a Redis lock with the given lease TTL. The TTL bounds how
// long a crashed holder can block its peers.
func NewRedis(client redis.Scripter, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// Acquire blocks until the key is held or ctx is done. The returned release
// drops the lease; it is safe to call after the lease expired.
func (l *Redis) Acquire(ctx context.Context, key string) (func(ctx context.Context) error, error) {
	fullKey := keyPrefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.Eval(ctx, acquireScript, []string{fullKey}, token, l.ttl.Milliseconds()).Bool()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %q: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryInterval):
		}
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{fullKey}, token).Err(); err != nil {
			return fmt.Errorf("release lock %q: %w", key, err)
		}
		return nil
	}
	return release, nil
}

const acquireScript = `
if redis.call("set", KEYS[1], ARGV[1], "NX", "PX", ARGV[2]) then
	return 1
end
return 0
`

// Local serializes by key within a single process. It exists so a deployment
// without Redis still gets correct single-instance behavior.
type Local struct {
	mu   sync.Mutex
	keys map[string]chan struct{}
}

func NewLocal() *Local {
	return &Local{keys: make(map[string]chan struct{})}
}

// Acquire blocks until the key is free or ctx is done.
func (l *Local) Acquire(ctx context.Context, key string) (func(ctx context.Context) error, error) {
	l.mu.Lock()
	ch, ok := l.keys[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.keys[key] = ch
	}
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return func(context.Context) error {
		<-ch
		return nil
	}, nil
}
