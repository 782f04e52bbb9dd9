// Package memory implements the in-process tier of a two-tier key-value
// cache: an O(1) LRU index (map + intrusive doubly linked list) wrapped by
// a thread-safe Cache that enforces count, cost, and age limits.
//
// Design
//
//   - Storage: lruIndex keeps a map[string]*node for lookups and an
//     intrusive MRU<->LRU doubly linked list for ordering. All operations
//     are O(1) worst case.
//
//   - Concurrency: Cache guards the index with a single mutex. The mutex
//     spans only index manipulation; value release never happens while it
//     is held (see Options.ReleaseAsynchronously / ReleaseOnMainThread).
//
//   - Limits are soft: a background trimmer enforces count_limit,
//     cost_limit, and age_limit every AutoTrimInterval (default 5s). Set
//     also performs one inline pass (count, then cost, then age, with a
//     fresh time snapshot) when an insert pushes the count or cost
//     counter over its limit.
//
//   - Lifecycle: an optional Lifecycle subscribes to host memory-pressure
//     and background-transition signals. Each defaults to clearing the
//     cache (RemoveAllOnMemoryWarning / RemoveAllOnBackground, both true
//     by default) before invoking a user callback.
//
// Basic usage
//
//	c := memory.New(memory.Options{CountLimit: 10_000})
//	defer c.Close()
//	c.Set("a", []byte("1"), 0)
//	if v, ok := c.Get("a"); ok {
//	    _ = v
//	}
//	c.Remove("a")
package memory
