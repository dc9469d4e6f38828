package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const localDedupeMaxKeys = 5000

// Store is the dedupe/distributed-cache collaborator. Backed by Redis when
// configured; otherwise dedupe degrades to an in-process TTL set and the
// get/set tier reports misses, which callers treat as "tier absent".
type Store struct {
	rdb   *redis.Client
	local *localDedupe
}

// Open connects to Redis using a redis:// URL. An empty URL yields a
// degraded Store (no distributed tier, local dedupe only).
func Open(url string) (*Store, error) {
	s := &Store{local: newLocalDedupe(localDedupeMaxKeys)}
	if url == "" {
		slog.Warn("redis not configured, dedupe is process-local and the distributed cache tier is disabled")
		return s, nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	s.rdb = redis.NewClient(opts)
	return s, nil
}

// Ping verifies the Redis connection. No-op when degraded.
func (s *Store) Ping(ctx context.Context) error {
	if s.rdb == nil {
		return nil
	}
	return s.rdb.Ping(ctx).Err()
}

// Close releases the Redis connection.
func (s *Store) Close() error {
	if s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

// Distributed reports whether the distributed tier is available.
func (s *Store) Distributed() bool { return s.rdb != nil }

// SetIfNotExists records key with a TTL and reports whether it was new.
// On a Redis error the event is treated as new: processing a duplicate
// beats silently dropping a real event.
func (s *Store) SetIfNotExists(ctx context.Context, key string, ttl time.Duration) bool {
	if s.rdb == nil {
		return s.local.setIfNotExists(key, ttl)
	}
	ok, err := s.rdb.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		slog.Warn("dedupe check failed, treating event as new", "key", key, "error", err)
		return true
	}
	return ok
}

// Get returns the cached value for key, or "" and false on a miss.
// A degraded store always misses.
func (s *Store) Get(ctx context.Context, key string) (string, bool) {
	if s.rdb == nil {
		return "", false
	}
	val, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("cache get failed", "key", key, "error", err)
		}
		return "", false
	}
	return val, true
}

// Set writes a value with a TTL. Errors are returned so that callers doing
// fire-and-forget writes can log and discard them.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if s.rdb == nil {
		return nil
	}
	return s.rdb.Set(ctx, key, value, ttl).Err()
}
