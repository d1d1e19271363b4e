package cache

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemoryPutAndGetWithinTTL(t *testing.T) {
	clock := newFakeClock()
	mem := NewMemory[string](10*time.Minute, WithClock(clock.Now))

	stored := mem.Put("providerTop:8:US", "payload")
	clock.Advance(5 * time.Minute)

	entry, ok := mem.Get("providerTop:8:US")
	if !ok {
		t.Fatalf("expected fresh entry")
	}
	if entry.Value != "payload" {
		t.Fatalf("unexpected value %q", entry.Value)
	}
	if !entry.StoredAt.Equal(stored.StoredAt) {
		t.Fatalf("storedAt changed on read: %v vs %v", entry.StoredAt, stored.StoredAt)
	}
}

func TestMemoryEntryStaleAtExactTTL(t *testing.T) {
	clock := newFakeClock()
	mem := NewMemory[int](10*time.Minute, WithClock(clock.Now))
	mem.Put("k", 1)

	clock.Advance(10*time.Minute - time.Nanosecond)
	if _, ok := mem.Get("k"); !ok {
		t.Fatalf("entry should still be fresh just before ttl")
	}

	clock.Advance(time.Nanosecond)
	if _, ok := mem.Get("k"); ok {
		t.Fatalf("entry must not be fresh once now-storedAt == ttl")
	}
	if mem.Len() != 1 {
		t.Fatalf("stale entries are kept until overwritten, got len %d", mem.Len())
	}
}

func TestMemoryOverwriteRefreshesStoredAt(t *testing.T) {
	clock := newFakeClock()
	mem := NewMemory[int](time.Minute, WithClock(clock.Now))
	first := mem.Put("k", 1)
	clock.Advance(2 * time.Minute)
	second := mem.Put("k", 2)

	if !second.StoredAt.After(first.StoredAt) {
		t.Fatalf("expected storedAt to advance")
	}
	entry, ok := mem.Get("k")
	if !ok || entry.Value != 2 {
		t.Fatalf("expected overwritten value 2, got %v (ok=%v)", entry.Value, ok)
	}
}

func TestMemoryKeysAreIndependent(t *testing.T) {
	clock := newFakeClock()
	mem := NewMemory[string](10*time.Minute, WithClock(clock.Now))
	mem.Put("providerTop:8:US", "a")
	clock.Advance(6 * time.Minute)
	mem.Put("providerTop:8:GB", "b")
	clock.Advance(6 * time.Minute)

	if _, ok := mem.Get("providerTop:8:US"); ok {
		t.Fatalf("US entry should be stale")
	}
	entry, ok := mem.Get("providerTop:8:GB")
	if !ok || entry.Value != "b" {
		t.Fatalf("GB entry should be fresh and independent")
	}
}

func TestMemoryStats(t *testing.T) {
	clock := newFakeClock()
	mem := NewMemory[int](time.Minute, WithClock(clock.Now))
	mem.Get("missing")
	mem.Put("k", 1)
	mem.Get("k")
	clock.Advance(time.Minute)
	mem.Get("k")

	stats := mem.Stats()
	if stats.Hits != 1 || stats.Misses != 2 || stats.Stale != 1 || stats.Entries != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestMemoryConcurrentWriters(t *testing.T) {
	mem := NewMemory[int](time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			mem.Put("same", v)
			mem.Get("same")
		}(i)
	}
	wg.Wait()

	if _, ok := mem.Get("same"); !ok {
		t.Fatalf("expected one surviving value")
	}
}

func TestMemoryPeekFreshSkipsStats(t *testing.T) {
	clock := newFakeClock()
	mem := NewMemory[string](time.Minute, WithClock(clock.Now))
	mem.Put("k", "v")

	if entry, ok := mem.PeekFresh("k"); !ok || entry.Value != "v" {
		t.Fatalf("expected fresh entry, got %+v %v", entry, ok)
	}
	clock.Advance(time.Minute)
	if _, ok := mem.PeekFresh("k"); ok {
		t.Fatalf("expired entry must not be returned")
	}
	if mem.Len() != 1 {
		t.Fatalf("expired entry should stay until overwritten, len=%d", mem.Len())
	}
	if stats := mem.Stats(); stats.Hits != 0 || stats.Misses != 0 {
		t.Fatalf("peeks must not touch stats: %+v", stats)
	}
}
