package app

import (
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/usergate/usergate/internal/observability"
	"github.com/usergate/usergate/internal/ratelimit"
)

// NewLimiter builds the per-action rate limiter for the configured backend.
// The returned memory store is nil for the Redis backend; when non-nil the
// caller is expected to run its sweeper.
func NewLimiter(cfg *Config, client redis.Scripter, logger *slog.Logger, metrics *observability.Metrics) (*ratelimit.Limiter, *ratelimit.MemoryStore) {
	opts := []ratelimit.Option{
		ratelimit.WithFailOpen(cfg.RateLimitFailOpen),
		ratelimit.WithLogger(logger),
		ratelimit.WithErrorHook(metrics.ObserveLimiterError),
	}
	if cfg.RateLimitBackend == RateLimitRedis && client != nil {
		return ratelimit.New(ratelimit.NewRedisStore(client, ""), opts...), nil
	}
	store := ratelimit.NewMemoryStore()
	return ratelimit.New(store, opts...), store
}
