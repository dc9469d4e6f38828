package cache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryGetSet(t *testing.T) {
	m := NewMemory[[]string](time.Minute)

	if _, ok := m.Get(); ok {
		t.Error("empty cache reported a value")
	}

	m.Set([]string{"a", "b"})
	v, ok := m.Get()
	if !ok || len(v) != 2 {
		t.Errorf("Get = (%v, %v), want fresh value", v, ok)
	}

	m.Invalidate()
	if _, ok := m.Get(); ok {
		t.Error("invalidated cache reported a value")
	}
}

func TestMemoryExpiry(t *testing.T) {
	m := NewMemory[string](time.Minute)
	now := time.Now()
	m.now = func() time.Time { return now }

	m.Set("snapshot")
	if _, ok := m.Get(); !ok {
		t.Fatal("fresh value missing")
	}

	now = now.Add(2 * time.Minute)
	if v, ok := m.Get(); ok {
		t.Errorf("expired value still served: %q", v)
	}
}

func TestMemoryNoTTLNeverExpires(t *testing.T) {
	m := NewMemory[int](0)
	now := time.Now()
	m.now = func() time.Time { return now }

	m.Set(42)
	now = now.Add(1000 * time.Hour)
	if v, ok := m.Get(); !ok || v != 42 {
		t.Errorf("Get = (%v, %v), want (42, true)", v, ok)
	}
}

func TestLocalDedupe(t *testing.T) {
	d := newLocalDedupe(100)

	if !d.setIfNotExists("k1", time.Minute) {
		t.Error("first set reported existing")
	}
	if d.setIfNotExists("k1", time.Minute) {
		t.Error("second set reported new")
	}
	if !d.setIfNotExists("k2", time.Minute) {
		t.Error("distinct key reported existing")
	}
}

func TestLocalDedupeExpiry(t *testing.T) {
	d := newLocalDedupe(100)
	now := time.Now()
	d.now = func() time.Time { return now }

	d.setIfNotExists("k1", time.Minute)
	now = now.Add(2 * time.Minute)
	if !d.setIfNotExists("k1", time.Minute) {
		t.Error("expired key still reported existing")
	}
}

func TestLocalDedupeBounded(t *testing.T) {
	d := newLocalDedupe(50)
	for i := 0; i < 500; i++ {
		d.setIfNotExists(fmt.Sprintf("k%d", i), time.Hour)
	}
	if len(d.seen) > 50 {
		t.Errorf("dedupe map grew to %d entries, cap is 50", len(d.seen))
	}
}

func TestDegradedStore(t *testing.T) {
	s, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if s.Distributed() {
		t.Error("degraded store claims a distributed tier")
	}
	if !s.SetIfNotExists(ctx, "k", time.Minute) {
		t.Error("first SetIfNotExists = false")
	}
	if s.SetIfNotExists(ctx, "k", time.Minute) {
		t.Error("duplicate SetIfNotExists = true")
	}
	if _, ok := s.Get(ctx, "k"); ok {
		t.Error("degraded Get reported a hit")
	}
	if err := s.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Errorf("degraded Set: %v", err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Errorf("degraded Ping: %v", err)
	}
}

func TestOpenBadURL(t *testing.T) {
	if _, err := Open("not-a-redis-url"); err == nil {
		t.Error("bad url accepted")
	}
}
