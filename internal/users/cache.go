package users

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	cacheKeyAll    = "users:all"
	cacheKeyPrefix = "users:"
	// Outside cacheKeyPrefix so InvalidateAll never scans it away.
	cacheKeyGen = "usercache:gen"
)

// storeIfCurrent writes KEYS[1] only while KEYS[2] still holds the
// generation read before the load started.
var storeIfCurrent = redis.NewScript(`
local gen = redis.call('GET', KEYS[2]) or '0'
if gen ~= ARGV[3] then
	return 0
end
if tonumber(ARGV[2]) > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
else
	redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

// Cache is a Redis read-through cache for user reads. Concurrent misses for
// the same key share one load. Redis failures degrade to direct loads.
// Password hashes never reach Redis because User does not serialise them.
type Cache struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewCache builds a Cache. A nil client disables caching.
func NewCache(client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{client: client, ttl: ttl, logger: logger}
}

func idKey(id int64) string      { return cacheKeyPrefix + "id:" + strconv.FormatInt(id, 10) }
func uuidKey(uuid string) string { return cacheKeyPrefix + "uuid:" + uuid }

// User returns the cached user under key or loads and stores it.
func (c *Cache) User(ctx context.Context, key string, load func(context.Context) (User, error)) (User, error) {
	var user User
	err := c.fetch(ctx, key, &user, func(ctx context.Context) (any, error) {
		return load(ctx)
	})
	return user, err
}

// List returns the cached user list or loads and stores it.
func (c *Cache) List(ctx context.Context, load func(context.Context) ([]User, error)) ([]User, error) {
	var list []User
	err := c.fetch(ctx, cacheKeyAll, &list, func(ctx context.Context) (any, error) {
		return load(ctx)
	})
	return list, err
}

// Invalidate drops every entry that may reflect u, plus the list. Fills
// already in flight are discarded instead of stored.
func (c *Cache) Invalidate(ctx context.Context, u User) {
	keys := []string{cacheKeyAll}
	if u.ID != 0 {
		keys = append(keys, idKey(u.ID))
	}
	if u.UUID != "" {
		keys = append(keys, uuidKey(u.UUID))
	}
	c.drop(ctx, keys...)
}

// InvalidateAll drops the list and every single-user entry.
func (c *Cache) InvalidateAll(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	iter := c.client.Scan(ctx, 0, cacheKeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("user cache scan failed", slog.Any("error", err))
	}
	c.drop(ctx, keys...)
}

func (c *Cache) drop(ctx context.Context, keys ...string) {
	if c == nil || c.client == nil {
		return
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, cacheKeyGen)
		if len(keys) > 0 {
			pipe.Del(ctx, keys...)
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("user cache invalidate failed", slog.Any("keys", keys), slog.Any("error", err))
	}
}

// generation reports the invalidation counter. ok is false when Redis
// cannot answer, in which case the fill must not be stored.
func (c *Cache) generation(ctx context.Context) (string, bool) {
	gen, err := c.client.Get(ctx, cacheKeyGen).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "0", true
	case err != nil:
		c.logger.Warn("user cache generation read failed", slog.Any("error", err))
		return "", false
	}
	return gen, true
}

func (c *Cache) fetch(ctx context.Context, key string, dest any, load func(context.Context) (any, error)) error {
	if c == nil || c.client == nil {
		return decodeInto(ctx, dest, load)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		if err := json.Unmarshal(payload, dest); err == nil {
			return nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("user cache read failed", slog.String("key", key), slog.Any("error", err))
	}

	ch := c.group.DoChan(key, func() (any, error) {
		gen, cacheable := c.generation(ctx)
		value, err := load(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		if cacheable {
			err := storeIfCurrent.Run(ctx, c.client, []string{key, cacheKeyGen}, raw, c.ttl.Milliseconds(), gen).Err()
			if err != nil {
				c.logger.Warn("user cache write failed", slog.String("key", key), slog.Any("error", err))
			}
		}
		return raw, nil
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return res.Err
		}
		return json.Unmarshal(res.Val.([]byte), dest)
	}
}

func decodeInto(ctx context.Context, dest any, load func(context.Context) (any, error)) error {
	value, err := load(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
