package index

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akolanti/TenderRAG/internal/data/redisStore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertExclusive runs workers that each hold the lock briefly and fails if two overlap.
func assertExclusive(t *testing.T, l Locker, key string) {
	t.Helper()
	var inside atomic.Int32
	var overlapped atomic.Bool
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), key)
			if !assert.NoError(t, err) {
				return
			}
			if inside.Add(1) > 1 {
				overlapped.Store(true)
			}
			time.Sleep(2 * time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()
	assert.False(t, overlapped.Load())
}

func TestKeyedMutex(t *testing.T) {
	k := NewKeyedMutex()
	assertExclusive(t, k, "kb")
	assert.Zero(t, k.size())

	t.Run("other keys do not wait", func(t *testing.T) {
		unlock, err := k.Lock(context.Background(), "kb_a")
		require.NoError(t, err)
		defer unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		unlockB, err := k.Lock(ctx, "kb_b")
		require.NoError(t, err)
		unlockB()
	})

	t.Run("cancelled waiter", func(t *testing.T) {
		unlock, err := k.Lock(context.Background(), "kb")
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err = k.Lock(ctx, "kb")
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		unlock()
		unlock() // second call is a no-op
		assert.Zero(t, k.size())
	})
}

func newRedisLock(t *testing.T) (*RedisLock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	l := NewRedisLock(redisStore.NewTestStore(client))
	l.backoff = time.Millisecond
	return l, mr
}

func TestRedisLock(t *testing.T) {
	l, mr := newRedisLock(t)
	assertExclusive(t, l, "kb")
	assert.False(t, mr.Exists(lockKey("kb")))

	unlock, err := l.Lock(context.Background(), "kb")
	require.NoError(t, err)
	assert.True(t, mr.Exists(lockKey("kb")))
	assert.Greater(t, mr.TTL(lockKey("kb")), time.Duration(0))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "kb")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.False(t, mr.Exists(lockKey("kb")))
}

func TestRedisLock_ExpiredLockIsNotStolenBack(t *testing.T) {
	l, mr := newRedisLock(t)
	unlock, err := l.Lock(context.Background(), "kb")
	require.NoError(t, err)

	// the lock expires and another process takes it
	mr.Del(lockKey("kb"))
	require.NoError(t, mr.Set(lockKey("kb"), "someone-else"))

	unlock()
	got, err := mr.Get(lockKey("kb"))
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisLock_RefreshesWhileHeld(t *testing.T) {
	l, mr := newRedisLock(t)
	l.ttl = time.Second
	l.refresh = 5 * time.Millisecond

	unlock, err := l.Lock(context.Background(), "kb")
	require.NoError(t, err)

	// miniredis only expires keys on FastForward; each refresh resets the ttl to a full second
	for i := 0; i < 3; i++ {
		mr.FastForward(700 * time.Millisecond)
		assert.Eventually(t, func() bool {
			return mr.TTL(lockKey("kb")) > 700*time.Millisecond
		}, time.Second, 5*time.Millisecond)
	}
	assert.True(t, mr.Exists(lockKey("kb")))

	unlock()
	assert.False(t, mr.Exists(lockKey("kb")))
}

func TestNewBuildLocker(t *testing.T) {
	assert.IsType(t, &KeyedMutex{}, NewBuildLocker(nil))

	l, _ := newRedisLock(t)
	chain := NewBuildLocker(l.store)
	require.IsType(t, ChainLocker{}, chain)
	assertExclusive(t, chain, "kb")
}

func TestChainLocker_ReleasesOnFailure(t *testing.T) {
	first := NewKeyedMutex()
	blocked := NewKeyedMutex()
	hold, err := blocked.Lock(context.Background(), "kb")
	require.NoError(t, err)
	defer hold()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = ChainLocker{first, blocked}.Lock(ctx, "kb")
	assert.Error(t, err)
	assert.Zero(t, first.size())
}
