package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/akolanti/TenderRAG/internal/config"
	"github.com/akolanti/TenderRAG/internal/data/redisStore"
	"github.com/akolanti/TenderRAG/pkg/logger_i"
	"github.com/google/uuid"
)

// Locker serialises rebuilds of one knowledge base. Lock blocks until the key is free or ctx ends.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// KeyedMutex is an in-process lock per key. Entries are dropped once nobody holds or waits on them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	sem  chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedEntry)}
}

func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{sem: make(chan struct{}, 1)}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.sem
				k.release(key, e)
			})
		}, nil
	case <-ctx.Done():
		k.release(key, e)
		return nil, ctx.Err()
	}
}

func (k *KeyedMutex) release(key string, e *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
}

func (k *KeyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

// ErrLockLost is logged when a redis lock expired before release.
var ErrLockLost = errors.New("build lock expired before release")

// RedisLock serialises rebuilds across processes with SET NX PX and a token checked release.
// While held, the ttl is refreshed so a build longer than the ttl keeps its lock.
type RedisLock struct {
	store   *redisStore.Store
	ttl     time.Duration
	refresh time.Duration
	backoff time.Duration
	logger  *logger_i.Logger
}

func NewRedisLock(store *redisStore.Store) *RedisLock {
	return &RedisLock{
		store:   store,
		ttl:     config.BuildLockTTL,
		refresh: config.BuildLockTTL / 3,
		backoff: config.BuildLockPollBackoff,
		logger:  logger_i.NewLogger("BuildLock"),
	}
}

func lockKey(key string) string {
	return "kb:build-lock:" + key
}

func (l *RedisLock) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	redisKey := lockKey(key)
	for {
		ok, err := l.store.SetNX(ctx, redisKey, token, l.ttl)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("acquire build lock %s: %w", key, err)
		}
		if ok {
			break
		}
		t := time.NewTimer(l.backoff)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		}
	}

	log := l.logger.FromContext(ctx).With("kbId", key)
	log.Debug("build lock acquired")

	stop := make(chan struct{})
	stopped := make(chan struct{})
	go l.keepAlive(redisKey, token, stop, stopped, log)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-stopped
			// release even when the build context was cancelled
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			released, err := l.store.CompareAndDelete(releaseCtx, redisKey, token)
			switch {
			case err != nil:
				log.Error("build lock release failed", "error", err)
			case !released:
				log.Warn("build lock release skipped", "error", ErrLockLost)
			}
		})
	}, nil
}

func (l *RedisLock) keepAlive(redisKey, token string, stop <-chan struct{}, stopped chan<- struct{}, log *logger_i.Logger) {
	defer close(stopped)
	ticker := time.NewTicker(l.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			held, err := l.store.CompareAndExpire(ctx, redisKey, token, l.ttl)
			cancel()
			if err != nil {
				log.Warn("build lock refresh failed", "error", err)
				continue
			}
			if !held {
				log.Error("build lock lost while building", "error", ErrLockLost)
				return
			}
		}
	}
}

// ChainLocker takes every lock in order and releases them in reverse.
type ChainLocker []Locker

func (c ChainLocker) Lock(ctx context.Context, key string) (func(), error) {
	var unlocks []func()
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	for _, l := range c {
		unlock, err := l.Lock(ctx, key)
		if err != nil {
			release()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return release, nil
}

// NewBuildLocker always locks in process and adds a redis lock when a store is available.
func NewBuildLocker(store *redisStore.Store) Locker {
	if store == nil {
		return NewKeyedMutex()
	}
	return ChainLocker{NewKeyedMutex(), NewRedisLock(store)}
}
