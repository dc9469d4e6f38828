// Package workspace resolves which knowledge-base workspace a message
// belongs to and keeps a cached directory of valid workspace slugs.
package workspace

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hivemindhq/hivebot/internal/cache"
)

const redisDirectoryKey = "hivebot:workspaces"

// Origin lists the workspaces that actually exist, normally the
// knowledge-base client.
type Origin interface {
	ListWorkspaces(ctx context.Context) ([]string, error)
}

// Directory caches the set of valid workspace slugs in three tiers:
// process memory, the shared Redis cache, then the origin. Concurrent
// misses collapse into a single origin call.
type Directory struct {
	origin   Origin
	memory   *cache.Memory[[]string]
	shared   *cache.Store
	redisTTL time.Duration
	group    singleflight.Group
}

// NewDirectory creates a Directory. shared may be a degraded cache store,
// in which case the Redis tier is skipped.
func NewDirectory(origin Origin, shared *cache.Store, memTTL, redisTTL time.Duration) *Directory {
	return &Directory{
		origin:   origin,
		memory:   cache.NewMemory[[]string](memTTL),
		shared:   shared,
		redisTTL: redisTTL,
	}
}

// Slugs returns the current workspace slugs. Tiers are consulted in
// order; an origin fetch repopulates memory synchronously and Redis
// asynchronously, so a slow Redis never delays resolution.
func (d *Directory) Slugs(ctx context.Context) ([]string, error) {
	if slugs, ok := d.memory.Get(); ok {
		return slugs, nil
	}

	v, err, _ := d.group.Do("slugs", func() (interface{}, error) {
		// Another caller may have filled memory while we waited.
		if slugs, ok := d.memory.Get(); ok {
			return slugs, nil
		}

		if slugs, ok := d.fromRedis(ctx); ok {
			d.memory.Set(slugs)
			return slugs, nil
		}

		slugs, err := d.origin.ListWorkspaces(ctx)
		if err != nil {
			return nil, err
		}
		d.memory.Set(slugs)
		go d.toRedis(slugs)
		return slugs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// Valid reports whether slug names an existing workspace. A directory
// fetch failure is reported as invalid and logged; resolution then falls
// through to the next candidate.
func (d *Directory) Valid(ctx context.Context, slug string) bool {
	if slug == "" {
		return false
	}
	slugs, err := d.Slugs(ctx)
	if err != nil {
		slog.Warn("workspace directory unavailable", "error", err)
		return false
	}
	for _, s := range slugs {
		if s == slug {
			return true
		}
	}
	return false
}

// Invalidate clears the memory tier, forcing the next lookup through
// Redis or the origin.
func (d *Directory) Invalidate() {
	d.memory.Invalidate()
}

func (d *Directory) fromRedis(ctx context.Context) ([]string, bool) {
	raw, ok := d.shared.Get(ctx, redisDirectoryKey)
	if !ok {
		return nil, false
	}
	var slugs []string
	if err := json.Unmarshal([]byte(raw), &slugs); err != nil {
		slog.Warn("corrupt workspace directory entry in redis, ignoring", "error", err)
		return nil, false
	}
	return slugs, true
}

// toRedis writes the directory snapshot fire-and-forget.
func (d *Directory) toRedis(slugs []string) {
	raw, err := json.Marshal(slugs)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.shared.Set(ctx, redisDirectoryKey, string(raw), d.redisTTL); err != nil {
		slog.Warn("workspace directory redis write failed", "error", err)
	}
}
