//go:build integration

package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"polis/pkg/testutil/containers"
)

func TestRedisLock(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()

	t.Run("serializes the same key across clients", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		l := NewRedis(rc.Client, 5*time.Second)

		release, err := l.Acquire(ctx, "policy-save:abc")
		require.NoError(t, err)

		blockedCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
		defer cancel()
		_, err = l.Acquire(blockedCtx, "policy-save:abc")
		require.ErrorIs(t, err, context.DeadlineExceeded)

		require.NoError(t, release(ctx))

		release2, err := l.Acquire(ctx, "policy-save:abc")
		require.NoError(t, err)
		require.NoError(t, release2(ctx))
	})

	t.Run("release after expiry leaves the successor's lock alone", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		l := NewRedis(rc.Client, 100*time.Millisecond)

		release, err := l.Acquire(ctx, "policy-save:xyz")
		require.NoError(t, err)

		// Let the lease expire so a second holder can take over.
		time.Sleep(200 * time.Millisecond)

		release2, err := l.Acquire(ctx, "policy-save:xyz")
		require.NoError(t, err)

		// The stale release must not delete the successor's lease.
		require.NoError(t, release(ctx))
		val, err := rc.Client.Get(ctx, "lock:policy-save:xyz").Result()
		require.NoError(t, err)
		require.NotEmpty(t, val)

		require.NoError(t, release2(ctx))
	})
}
