package memory

import "testing"

func TestLRUIndex_InsertLookupPromotes(t *testing.T) {
	t.Parallel()

	clk := float64(0)
	idx := newLRUIndex(func() float64 { return clk })

	idx.insertOrUpdate("a", 1, 0)
	idx.insertOrUpdate("b", 2, 0)
	idx.insertOrUpdate("c", 3, 0)

	clk = 1
	if v, ok := idx.lookup("a"); !ok || v != 1 {
		t.Fatalf("lookup a: got %v, %v", v, ok)
	}

	// a was promoted, so popTail should return b (now the LRU entry).
	k, _, _, ok := idx.popTail()
	if !ok || k != "b" {
		t.Fatalf("popTail want b, got %q ok=%v", k, ok)
	}
}

func TestLRUIndex_EvictionOrder(t *testing.T) {
	t.Parallel()

	idx := newLRUIndex(func() float64 { return 0 })
	idx.insertOrUpdate("k1", "v1", 0)
	idx.insertOrUpdate("k2", "v2", 0)
	idx.insertOrUpdate("k3", "v3", 0)

	// No re-access: first eviction under a count limit of 2 removes k1.
	k, _, _, ok := idx.popTail()
	if !ok || k != "k1" {
		t.Fatalf("first eviction should be k1, got %q", k)
	}
}

func TestLRUIndex_UpdateAdjustsCost(t *testing.T) {
	t.Parallel()

	idx := newLRUIndex(func() float64 { return 0 })
	idx.insertOrUpdate("x", "v1", 5)
	if idx.totalCost != 5 {
		t.Fatalf("totalCost want 5, got %d", idx.totalCost)
	}
	idx.insertOrUpdate("x", "v2", 9)
	if idx.totalCost != 9 {
		t.Fatalf("totalCost after update want 9, got %d", idx.totalCost)
	}
	if idx.totalCount != 1 {
		t.Fatalf("totalCount want 1, got %d", idx.totalCount)
	}
}

func TestLRUIndex_RemoveAndPopTailEmpty(t *testing.T) {
	t.Parallel()

	idx := newLRUIndex(func() float64 { return 0 })
	if _, _, _, ok := idx.popTail(); ok {
		t.Fatal("popTail on empty index should report ok=false")
	}

	idx.insertOrUpdate("a", 1, 0)
	if _, _, ok := idx.remove("missing"); ok {
		t.Fatal("remove of missing key should report ok=false")
	}
	v, _, ok := idx.remove("a")
	if !ok || v != 1 {
		t.Fatalf("remove a: got %v, %v", v, ok)
	}
	if idx.totalCount != 0 || idx.totalCost != 0 {
		t.Fatalf("counters should be zero after removing the only entry")
	}
}

func TestLRUIndex_SnapshotKeysOlderThan(t *testing.T) {
	t.Parallel()

	clk := float64(0)
	idx := newLRUIndex(func() float64 { return clk })

	idx.insertOrUpdate("old", 1, 0) // accessTime 0
	clk = 10
	idx.insertOrUpdate("new", 2, 0) // accessTime 10

	stale := idx.snapshotKeysOlderThan(5)
	if len(stale) != 1 || stale[0] != "old" {
		t.Fatalf("want [old], got %v", stale)
	}
}
