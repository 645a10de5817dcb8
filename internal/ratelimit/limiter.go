// Package ratelimit enforces "at most N operations per key per fixed window".
package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// Store performs an atomic check-and-increment for one key.
type Store interface {
	Consume(ctx context.Context, key string, window time.Duration, max int) (bool, error)
}

// Limiter consumes budgets from a Store. Stores that can fail (Redis) are
// resolved by the configured policy; the limiter itself never returns an error.
type Limiter struct {
	store    Store
	failOpen bool
	logger   *slog.Logger
	onError  func(error)
}

// Option customises a Limiter.
type Option func(*Limiter)

// WithFailOpen allows traffic when the store is unavailable.
func WithFailOpen(open bool) Option {
	return func(l *Limiter) { l.failOpen = open }
}

// WithLogger sets the logger used for store failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

// WithErrorHook registers a callback invoked for every store failure.
func WithErrorHook(fn func(error)) Option {
	return func(l *Limiter) { l.onError = fn }
}

// New constructs a Limiter. A nil store means an in-memory store.
func New(store Store, opts ...Option) *Limiter {
	if store == nil {
		store = NewMemoryStore()
	}
	l := &Limiter{store: store}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Consume records one operation for key within namespace ns.
func (l *Limiter) Consume(ctx context.Context, ns string, key Key, window time.Duration, max int) bool {
	allowed, err := l.store.Consume(ctx, storageKey(ns, key), window, max)
	if err != nil {
		if l.logger != nil {
			l.logger.Warn("rate limit store failure", slog.String("scope", string(key.Scope)), slog.Bool("fail_open", l.failOpen), slog.Any("error", err))
		}
		if l.onError != nil {
			l.onError(err)
		}
		return l.failOpen
	}
	return allowed
}

// AllowRequest consumes both the origin-scoped and the principal-scoped key.
// Both are always consumed and both must pass. The result does not say which
// key tripped.
func (l *Limiter) AllowRequest(ctx context.Context, ns, origin, credential string, window time.Duration, max int) bool {
	originOK := l.Consume(ctx, ns, OriginKey(origin), window, max)
	principalOK := l.Consume(ctx, ns, PrincipalKey(credential), window, max)
	return originOK && principalOK
}
