package lock_test

import (
	"context"
	"matchchat/backend/internal/lock"
	"matchchat/backend/internal/storage"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocker(t *testing.T) (*lock.Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return lock.NewLocker(storage.NewRedisStore(rdb)), mr
}

func TestTryAcquire_SecondCallerDenied(t *testing.T) {
	l, mr := newLocker(t)
	ctx := context.Background()

	first, ok, err := l.TryAcquire(ctx, "lock:job", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	second, ok, err := l.TryAcquire(ctx, "lock:job", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, second)

	v, err := mr.Get("lock:job")
	require.NoError(t, err)
	assert.Equal(t, first.ID, v)
	assert.Equal(t, time.Minute, mr.TTL("lock:job"))
}

func TestTryAcquire_ConcurrentOnlyOneWins(t *testing.T) {
	l, _ := newLocker(t)
	ctx := context.Background()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := l.TryAcquire(ctx, "lock:job", time.Minute)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestRelease_FreesKey(t *testing.T) {
	l, mr := newLocker(t)
	ctx := context.Background()
	lease, ok, err := l.TryAcquire(ctx, "lock:job", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, lease.Release(ctx))

	assert.False(t, mr.Exists("lock:job"))
	_, ok, err = l.TryAcquire(ctx, "lock:job", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestRelease_StaleHolderKeepsNewLease covers a holder that outlived its TTL:
// its release must not delete the lease a newer holder acquired.
func TestRelease_StaleHolderKeepsNewLease(t *testing.T) {
	l, mr := newLocker(t)
	ctx := context.Background()

	stale, ok, err := l.TryAcquire(ctx, "lock:job", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)

	fresh, ok, err := l.TryAcquire(ctx, "lock:job", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	err = stale.Release(ctx)

	assert.ErrorIs(t, err, lock.ErrNotHeld)
	v, getErr := mr.Get("lock:job")
	require.NoError(t, getErr)
	assert.Equal(t, fresh.ID, v)
}
