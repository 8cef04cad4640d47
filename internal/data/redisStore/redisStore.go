package redisStore

import (
	"context"
	"sync"

	"github.com/akolanti/TenderRAG/internal/config"
	"github.com/akolanti/TenderRAG/pkg/logger_i"
	"github.com/redis/go-redis/v9"
)

var (
	instances = make(map[int]*Store)
	mu        sync.Mutex
	settings  = config.RedisSettings{Addr: config.RedisAddr}
)

// Store is one redis logical db: job state lives in RedisJobStore, build locks in RedisLockStore.
type Store struct {
	client *redis.Client
	Type   int
	logger *logger_i.Logger
}

// Configure sets the connection used by stores created afterwards.
func Configure(s config.RedisSettings) {
	mu.Lock()
	defer mu.Unlock()
	if s.Addr != "" {
		settings.Addr = s.Addr
	}
	settings.Password = s.Password
}

// GetRedisStore returns the shared store for one db, or nil when redis is unreachable.
// The client is closed when ctx ends.
func GetRedisStore(ctx context.Context, dbType int) *Store {
	mu.Lock()
	defer mu.Unlock()
	if instance, exists := instances[dbType]; exists {
		return instance
	}

	store := &Store{
		client: redis.NewClient(&redis.Options{
			Addr:                  settings.Addr,
			Password:              settings.Password,
			DB:                    dbType,
			ContextTimeoutEnabled: true,
			ReadTimeout:           config.RedisIOTimeout,
			WriteTimeout:          config.RedisIOTimeout,
		}),
		Type:   dbType,
		logger: logger_i.NewLogger("RedisStore").With("db", dbType),
	}
	if err := store.Ping(ctx); err != nil {
		store.logger.Error("Redis is offline", "addr", settings.Addr, "error", err)
		_ = store.client.Close()
		return nil
	}
	store.logger.Info("Redis store ready", "addr", settings.Addr)
	instances[dbType] = store

	go func() {
		<-ctx.Done()
		store.close()
	}()
	return store
}

func (s *Store) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, config.RedisDialTimeout)
	defer cancel()
	return s.client.Ping(pingCtx).Err()
}

func (s *Store) close() {
	mu.Lock()
	if instances[s.Type] == s {
		delete(instances, s.Type)
	}
	mu.Unlock()
	if err := s.client.Close(); err != nil {
		s.logger.Error("Error closing redis client", "error", err)
		return
	}
	s.logger.Info("Redis store closed")
}

// NewTestStore wraps an existing client, typically one pointed at miniredis.
func NewTestStore(client *redis.Client) *Store {
	return &Store{client: client, logger: logger_i.NewLogger("RedisStore")}
}
