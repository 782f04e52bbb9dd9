package hybridcache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hybridcache/hybridcache/disk"
	"github.com/hybridcache/hybridcache/memory"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open("test", t.TempDir(), Options{
		Memory: memory.Options{},
		Disk:   disk.Options{Mode: disk.ModeInline},
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestFacade_SetGetMemoryHit(t *testing.T) {
	t.Parallel()

	c := openTestCache(t)
	if !c.Set("k", "v", 1) {
		t.Fatal("Set must succeed")
	}
	v, ok := c.Get("k")
	if !ok || v != "v" {
		t.Fatalf("Get = %v, ok=%v", v, ok)
	}
}

// A value written, then forgotten by the memory tier, must still be
// served from disk and promoted back into memory on the next Get, at
// cost 0.
func TestFacade_GetPromotesDiskHitIntoMemory(t *testing.T) {
	t.Parallel()

	c := openTestCache(t)
	c.Set("k", "v", 1)
	c.mem.Remove("k") // simulate eviction from the memory tier only

	if c.mem.Contains("k") {
		t.Fatal("precondition: key must not be in memory")
	}

	v, ok := c.Get("k")
	if !ok || v != "v" {
		t.Fatalf("Get after memory eviction = %v, ok=%v", v, ok)
	}
	if !c.mem.Contains("k") {
		t.Fatal("Get must promote a disk hit back into memory")
	}
}

func TestFacade_ContainsDoesNotPromote(t *testing.T) {
	t.Parallel()

	c := openTestCache(t)
	c.Set("k", "v", 1)
	c.mem.Remove("k")

	if !c.Contains("k") {
		t.Fatal("Contains must find the disk row")
	}
	if c.mem.Contains("k") {
		t.Fatal("Contains must not promote a disk hit into memory")
	}
}

func TestFacade_RemoveClearsBothTiers(t *testing.T) {
	t.Parallel()

	c := openTestCache(t)
	c.Set("k", "v", 1)
	if !c.Remove("k") {
		t.Fatal("Remove must succeed")
	}
	if c.Contains("k") {
		t.Fatal("k must be gone from both tiers")
	}
}

func TestFacade_RemoveAllClearsBothTiers(t *testing.T) {
	t.Parallel()

	c := openTestCache(t)
	for i := 0; i < 5; i++ {
		c.Set(keyN(i), i, 1)
	}
	c.RemoveAll()
	for i := 0; i < 5; i++ {
		if c.Contains(keyN(i)) {
			t.Fatalf("%s must be gone after RemoveAll", keyN(i))
		}
	}
}

func TestFacade_AsyncSetGetRemove(t *testing.T) {
	t.Parallel()

	c := openTestCache(t)

	var wg sync.WaitGroup
	wg.Add(1)
	c.SetAsync("k", "v", 1, func() { wg.Done() })
	wg.Wait()

	wg.Add(1)
	c.GetAsync("k", func(key string, value any, ok bool) {
		defer wg.Done()
		if !ok || value != "v" {
			t.Errorf("GetAsync = %v, ok=%v", value, ok)
		}
	})
	wg.Wait()

	wg.Add(1)
	c.RemoveAsync("k", func(key string) { wg.Done() })
	wg.Wait()

	if c.Contains("k") {
		t.Fatal("k must be gone after RemoveAsync completes")
	}
}

// Concurrent Gets for the same cold key must coalesce into one disk load
// via singleflight-coalesced promotion.
func TestFacade_ConcurrentGetCoalescesPromotion(t *testing.T) {
	t.Parallel()

	dm := &countingDiskMetrics{}
	c, err := Open("test", t.TempDir(), Options{
		Disk: disk.Options{Mode: disk.ModeInline, Metrics: dm},
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	c.Set("k", "v", 1)
	c.mem.Remove("k")

	var wg sync.WaitGroup
	results := make([]bool, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, ok := c.Get("k")
			results[i] = ok
		}(i)
	}
	wg.Wait()

	for i, ok := range results {
		if !ok {
			t.Fatalf("goroutine %d: Get must hit", i)
		}
	}
	if got := dm.hits.Load(); got != 1 {
		t.Fatalf("disk loads = %d, want 1", got)
	}
}

// countingDiskMetrics counts disk-tier reads that found a row.
type countingDiskMetrics struct {
	disk.NoopMetrics
	hits atomic.Int64
}

func (m *countingDiskMetrics) Hit() { m.hits.Add(1) }

func TestFacade_GetMissReturnsFalse(t *testing.T) {
	t.Parallel()

	c := openTestCache(t)
	if _, ok := c.Get("absent"); ok {
		t.Fatal("Get of an absent key must miss")
	}
}

func TestFacade_RemoveAllAsyncForwardsProgressAndEnd(t *testing.T) {
	t.Parallel()

	c := openTestCache(t)
	for i := 0; i < 5; i++ {
		c.Set(keyN(i), i, 1)
	}

	done := make(chan bool, 1)
	c.RemoveAllAsync(nil, func(failed bool) { done <- failed })

	select {
	case failed := <-done:
		if failed {
			t.Fatal("RemoveAllAsync reported failure")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("end callback never fired")
	}
}

func keyN(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	return string(letters[i%len(letters)]) + string(rune('0'+i))
}
