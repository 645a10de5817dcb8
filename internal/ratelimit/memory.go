package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const shardCount = 64

type counter struct {
	start  time.Time
	window time.Duration
	count  int
}

func (c *counter) expired(now time.Time) bool {
	return now.Sub(c.start) >= c.window
}

type shard struct {
	mu       sync.Mutex
	counters map[string]*counter
}

// MemoryStore is a process-local fixed-window counter store. Each key is
// updated under its shard lock, so check-and-increment is atomic per key.
type MemoryStore struct {
	shards [shardCount]shard
	now    func() time.Time
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{now: time.Now}
	for i := range s.shards {
		s.shards[i].counters = make(map[string]*counter)
	}
	return s
}

// WithClock replaces the time source. Intended for tests.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) shardFor(key string) *shard {
	return &s.shards[xxhash.Sum64String(key)%shardCount]
}

// Consume records one operation against key. Denied attempts still count
// toward the window and are never rolled back.
func (s *MemoryStore) Consume(_ context.Context, key string, window time.Duration, max int) (bool, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	now := s.now()
	c, ok := sh.counters[key]
	if !ok || c.expired(now) {
		sh.counters[key] = &counter{start: now, window: window, count: 1}
		return 1 <= max, nil
	}
	c.count++
	return c.count <= max, nil
}

// Sweep drops counters whose window has elapsed. An elapsed counter would be
// reset on its next use anyway, so sweeping never changes a decision.
func (s *MemoryStore) Sweep() int {
	now := s.now()
	removed := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for key, c := range sh.counters {
			if c.expired(now) {
				delete(sh.counters, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Len reports the number of live counters.
func (s *MemoryStore) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		n += len(sh.counters)
		sh.mu.Unlock()
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep()
		}
	}
}
