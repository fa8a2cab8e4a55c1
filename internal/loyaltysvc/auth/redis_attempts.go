package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const attemptKeyPrefix = "loyalty:pin-attempts:"

// failScript increments the counter and arms the expiry on the first failure
// so the window is anchored there.
var failScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return {n, redis.call('PTTL', KEYS[1])}
`)

// RedisAttemptStore shares attempt counts between service instances.
type RedisAttemptStore struct {
	rdb redis.UniversalClient
}

func NewRedisAttemptStore(rdb redis.UniversalClient) *RedisAttemptStore {
	return &RedisAttemptStore{rdb: rdb}
}

// ConnectRedis parses a redis:// URL and pings the server.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func (r *RedisAttemptStore) Get(ctx context.Context, key string) (Attempts, error) {
	k := attemptKeyPrefix + key

	pipe := r.rdb.Pipeline()
	countCmd := pipe.Get(ctx, k)
	ttlCmd := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Attempts{}, fmt.Errorf("read attempts: %w", err)
	}

	n, err := countCmd.Int()
	if errors.Is(err, redis.Nil) {
		return Attempts{}, nil
	}
	if err != nil {
		return Attempts{}, fmt.Errorf("read attempts: %w", err)
	}
	return Attempts{Count: n, Remaining: positive(ttlCmd.Val())}, nil
}

func (r *RedisAttemptStore) Fail(ctx context.Context, key string, window time.Duration) (Attempts, error) {
	res, err := failScript.Run(ctx, r.rdb, []string{attemptKeyPrefix + key}, window.Milliseconds()).Result()
	if err != nil {
		return Attempts{}, fmt.Errorf("record attempt: %w", err)
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return Attempts{}, fmt.Errorf("record attempt: unexpected reply %v", res)
	}
	n, _ := vals[0].(int64)
	ttl, _ := vals[1].(int64)
	return Attempts{Count: int(n), Remaining: positive(time.Duration(ttl) * time.Millisecond)}, nil
}

func (r *RedisAttemptStore) Reset(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, attemptKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("reset attempts: %w", err)
	}
	return nil
}

// PTTL reports -1 and -2 for keys without expiry or missing keys.
func positive(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
