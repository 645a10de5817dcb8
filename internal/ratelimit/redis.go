package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// consumeScript increments the counter and starts the window on first use.
// The whole script runs atomically on the Redis server.
var consumeScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 or redis.call('PTTL', KEYS[1]) < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return count
`)

// RedisStore shares counters between processes. Key expiry doubles as the
// window reset, so no explicit eviction is needed.
type RedisStore struct {
	client redis.Scripter
	prefix string
}

// NewRedisStore constructs a store writing keys under prefix.
func NewRedisStore(client redis.Scripter, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Consume records one operation against key.
func (s *RedisStore) Consume(ctx context.Context, key string, window time.Duration, max int) (bool, error) {
	ms := window.Milliseconds()
	if ms <= 0 {
		ms = 1
	}
	count, err := consumeScript.Run(ctx, s.client, []string{s.prefix + ":" + key}, ms).Int64()
	if err != nil {
		return false, fmt.Errorf("ratelimit: redis consume: %w", err)
	}
	return count <= int64(max), nil
}
