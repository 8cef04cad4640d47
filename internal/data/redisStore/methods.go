package redisStore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshScript extends the ttl only while the key still holds the caller's token.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

func (s *Store) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return s.client.Set(ctx, key, value, expiration).Err()
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	return s.client.Get(ctx, key).Result()
}

func (s *Store) Del(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}

func (s *Store) IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

// SetNX stores value only if key is absent. It reports whether the key was set.
func (s *Store) SetNX(ctx context.Context, key string, value string, expiration time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, value, expiration).Result()
}

// CompareAndDelete removes key when its value equals token.
func (s *Store) CompareAndDelete(ctx context.Context, key string, token string) (bool, error) {
	n, err := releaseScript.Run(ctx, s.client, []string{key}, token).Int()
	return n == 1, err
}

// CompareAndExpire resets the ttl of key when its value equals token.
func (s *Store) CompareAndExpire(ctx context.Context, key string, token string, expiration time.Duration) (bool, error) {
	n, err := refreshScript.Run(ctx, s.client, []string{key}, token, expiration.Milliseconds()).Int()
	return n == 1, err
}
