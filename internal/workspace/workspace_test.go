package workspace

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hivemindhq/hivebot/internal/cache"
)

type fakeOrigin struct {
	slugs []string
	err   error
	calls atomic.Int32
}

func (f *fakeOrigin) ListWorkspaces(ctx context.Context) ([]string, error) {
	f.calls.Add(1)
	return f.slugs, f.err
}

func degradedStore(t *testing.T) *cache.Store {
	t.Helper()
	s, err := cache.Open("")
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	return s
}

func TestDirectorySlugsCachesOrigin(t *testing.T) {
	origin := &fakeOrigin{slugs: []string{"billing", "platform"}}
	dir := NewDirectory(origin, degradedStore(t), time.Minute, time.Hour)

	for i := 0; i < 3; i++ {
		slugs, err := dir.Slugs(context.Background())
		if err != nil {
			t.Fatalf("Slugs: %v", err)
		}
		if len(slugs) != 2 {
			t.Fatalf("Slugs = %v, want 2 entries", slugs)
		}
	}
	if n := origin.calls.Load(); n != 1 {
		t.Errorf("origin called %d times, want 1", n)
	}
}

func TestDirectorySlugsSingleflight(t *testing.T) {
	origin := &fakeOrigin{slugs: []string{"billing"}}
	dir := NewDirectory(origin, degradedStore(t), time.Minute, time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := dir.Slugs(context.Background()); err != nil {
				t.Errorf("Slugs: %v", err)
			}
		}()
	}
	wg.Wait()
	if n := origin.calls.Load(); n != 1 {
		t.Errorf("origin called %d times, want 1", n)
	}
}

func TestDirectoryValid(t *testing.T) {
	origin := &fakeOrigin{slugs: []string{"billing", "platform"}}
	dir := NewDirectory(origin, degradedStore(t), time.Minute, time.Hour)

	ctx := context.Background()
	if !dir.Valid(ctx, "billing") {
		t.Error("Valid(billing) = false, want true")
	}
	if dir.Valid(ctx, "missing") {
		t.Error("Valid(missing) = true, want false")
	}
	if dir.Valid(ctx, "") {
		t.Error("Valid(\"\") = true, want false")
	}
}

func TestDirectoryValidOriginDown(t *testing.T) {
	origin := &fakeOrigin{err: errors.New("connection refused")}
	dir := NewDirectory(origin, degradedStore(t), time.Minute, time.Hour)
	if dir.Valid(context.Background(), "billing") {
		t.Error("Valid = true with origin down, want false")
	}
}

func TestDirectoryInvalidateForcesRefetch(t *testing.T) {
	origin := &fakeOrigin{slugs: []string{"billing"}}
	dir := NewDirectory(origin, degradedStore(t), time.Minute, time.Hour)

	ctx := context.Background()
	if _, err := dir.Slugs(ctx); err != nil {
		t.Fatalf("Slugs: %v", err)
	}
	dir.Invalidate()
	if _, err := dir.Slugs(ctx); err != nil {
		t.Fatalf("Slugs: %v", err)
	}
	if n := origin.calls.Load(); n != 2 {
		t.Errorf("origin called %d times after invalidate, want 2", n)
	}
}

func newTestResolver(t *testing.T, slugs []string, users, channels map[string]string, fallback string) *Resolver {
	t.Helper()
	origin := &fakeOrigin{slugs: slugs}
	dir := NewDirectory(origin, degradedStore(t), time.Minute, time.Hour)
	return NewResolver(dir, users, channels, fallback)
}

func TestResolvePrecedence(t *testing.T) {
	slugs := []string{"billing", "platform", "support", "general"}
	users := map[string]string{"U1": "platform"}
	channels := map[string]string{"C1": "support"}

	tests := []struct {
		name      string
		suggested string
		user      string
		channel   string
		want      string
	}{
		{"suggestion wins over all", "billing", "U1", "C1", "billing"},
		{"user mapping beats channel", "", "U1", "C1", "platform"},
		{"channel mapping beats fallback", "", "U2", "C1", "support"},
		{"fallback when nothing maps", "", "U2", "C2", "general"},
		{"invalid suggestion falls to user", "nope", "U1", "C1", "platform"},
		{"invalid suggestion and unmapped user fall to channel", "nope", "U2", "C1", "support"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestResolver(t, slugs, users, channels, "general")
			got := r.Resolve(context.Background(), tt.suggested, tt.user, tt.channel)
			if got != tt.want {
				t.Errorf("Resolve = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveInvalidMappedWorkspaceFallsThrough(t *testing.T) {
	// User maps to a workspace the directory no longer lists.
	r := newTestResolver(t, []string{"support", "general"},
		map[string]string{"U1": "deleted"}, map[string]string{"C1": "support"}, "general")
	got := r.Resolve(context.Background(), "", "U1", "C1")
	if got != "support" {
		t.Errorf("Resolve = %q, want %q", got, "support")
	}
}

func TestResolveInvalidFallback(t *testing.T) {
	r := newTestResolver(t, []string{"billing"}, nil, nil, "general")
	if got := r.Resolve(context.Background(), "", "U1", "C1"); got != "" {
		t.Errorf("Resolve = %q, want empty for invalid fallback", got)
	}
}
