package alert

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper suppresses repeat notification keys within an expiry window.
type Deduper interface {
	// Mark records key for the window. It returns true if the key was not
	// already present, i.e. the caller holds the single dispatch right.
	Mark(ctx context.Context, key string, window time.Duration) (bool, error)
}

// MemoryDeduper is the in-process default. The check-and-mark sequence runs
// under one mutex; expired entries are purged lazily on each call.
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

func (d *MemoryDeduper) Mark(_ context.Context, key string, window time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for k, expiry := range d.seen {
		if now.After(expiry) {
			delete(d.seen, k)
		}
	}

	if _, ok := d.seen[key]; ok {
		return false, nil
	}
	d.seen[key] = now.Add(window)
	return true, nil
}

// RedisDeduper shares the dedup window across instances via SET NX with a
// TTL. Used when several client processes must not alert twice for the same
// (event, keyword) pair.
type RedisDeduper struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisDeduper(client *redis.Client, keyPrefix string) *RedisDeduper {
	return &RedisDeduper{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (d *RedisDeduper) Mark(ctx context.Context, key string, window time.Duration) (bool, error) {
	return d.client.SetNX(ctx, d.keyPrefix+key, 1, window).Result()
}
