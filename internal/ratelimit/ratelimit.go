// Package ratelimit caps how often one client may perform an action.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter reports whether key may act now. A non-nil error means the limiter
// itself failed; callers decide whether to fail open.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Memory is a per-process fixed window counter with the same semantics as
// Redis. Counters from past windows are dropped once per window.
type Memory struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu     sync.Mutex
	slot   int64
	counts map[string]int
}

func NewMemory(limit int, window time.Duration) *Memory {
	limit, window = normalize(limit, window)
	return &Memory{limit: limit, window: window, now: time.Now, counts: make(map[string]int)}
}

func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	slot := m.now().UnixNano() / int64(m.window)

	m.mu.Lock()
	defer m.mu.Unlock()
	if slot != m.slot {
		m.slot = slot
		clear(m.counts)
	}
	m.counts[key]++
	return m.counts[key] <= m.limit, nil
}

// Redis is a fixed window counter shared by every replica.
type Redis struct {
	rdb    redis.Cmdable
	prefix string
	limit  int64
	window time.Duration
	now    func() time.Time
}

func NewRedis(rdb redis.Cmdable, prefix string, limit int, window time.Duration) *Redis {
	limit, window = normalize(limit, window)
	return &Redis{rdb: rdb, prefix: prefix, limit: int64(limit), window: window, now: time.Now}
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	k := r.key(key)
	n, err := r.rdb.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit: incr: %w", err)
	}
	if n == 1 {
		if err := r.rdb.Expire(ctx, k, r.window).Err(); err != nil {
			return false, fmt.Errorf("ratelimit: expire: %w", err)
		}
	}
	return n <= r.limit, nil
}

func (r *Redis) key(key string) string {
	slot := r.now().UnixNano() / int64(r.window)
	return fmt.Sprintf("%s:%s:%d", r.prefix, key, slot)
}

func normalize(limit int, window time.Duration) (int, time.Duration) {
	if limit < 1 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return limit, window
}
