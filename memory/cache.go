package memory

import (
	"sync"
	"time"
)

// Cache is a thread-safe, count/cost/age-bounded LRU cache of string keys to
// arbitrary values. It wraps an lruIndex with a mutex, a background
// trimmer, and configurable value-release and lifecycle policies.
//
// All operations take the mutex; it guards only index manipulation, never
// user-value destruction (see Options.ReleaseAsynchronously).
type Cache struct {
	mu  sync.Mutex
	idx *lruIndex
	opt Options

	startMono time.Time // t0 for the monotonic clock when Options.Clock is nil

	releaseQueue chan any // only used when ReleaseAsynchronously and Executor is nil

	closeOnce sync.Once
	stopCh    chan struct{}
	stoppedWG sync.WaitGroup
}

// New constructs a memory cache with the given options. A zero Options
// value is valid and means "unbounded, 5s auto-trim, remove-all on
// lifecycle signals, asynchronous release".
func New(opt Options) *Cache {
	o := opt.withDefaults()
	c := &Cache{
		opt:    o,
		stopCh: make(chan struct{}),
	}
	c.startMono = time.Now()
	c.idx = newLRUIndex(c.nowSeconds)

	if *o.ReleaseAsynchronously && o.Executor == nil {
		c.releaseQueue = make(chan any, 1024)
		c.stoppedWG.Add(1)
		go c.drainReleaseQueue()
	}

	if o.Lifecycle != nil {
		o.Lifecycle.OnMemoryWarning(c.handleMemoryWarning)
		o.Lifecycle.OnBackground(c.handleBackground)
	}

	c.stoppedWG.Add(1)
	go c.runAutoTrim()

	return c
}

func (c *Cache) nowSeconds() float64 {
	if c.opt.Clock != nil {
		return c.opt.Clock.NowSeconds()
	}
	return time.Since(c.startMono).Seconds()
}

// Close stops the background trimmer and release-drain goroutines. It does
// not clear the cache.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		close(c.stopCh)
		c.stoppedWG.Wait()
	})
}

// Contains reports whether key is present, without promoting it.
func (c *Cache) Contains(key string) bool {
	if key == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.idx.peek(key)
	return ok
}

// Get returns the value for key, promoting it to MRU on a hit.
func (c *Cache) Get(key string) (any, bool) {
	if key == "" {
		return nil, false
	}
	c.mu.Lock()
	v, ok := c.idx.lookup(key)
	c.mu.Unlock()

	if ok {
		c.opt.Metrics.Hit()
	} else {
		c.opt.Metrics.Miss()
	}
	return v, ok
}

// Set inserts or updates key with the given cost (0 by default). If
// inserting pushed count or cost over its limit, a single inline trim pass
// runs while the mutex is still held, evicting oldest first until all
// three limits are satisfied: count, then cost, then age. The evicted
// values are released after the mutex is released.
func (c *Cache) Set(key string, value any, cost uint64) {
	if key == "" {
		return
	}
	c.mu.Lock()
	c.idx.insertOrUpdate(key, value, cost)
	overCount := c.opt.CountLimit > 0 && c.idx.totalCount > c.opt.CountLimit
	overCost := c.opt.CostLimit > 0 && c.idx.totalCost > c.opt.CostLimit
	var evicted []evictedEntry
	if overCount || overCost {
		evicted = c.trimLocked()
	}
	count, totalCost := c.idx.totalCount, c.idx.totalCost
	c.mu.Unlock()

	c.opt.Metrics.Size(count, totalCost)
	c.release(evicted)
}

// Remove deletes key if present.
func (c *Cache) Remove(key string) {
	if key == "" {
		return
	}
	c.mu.Lock()
	v, _, ok := c.idx.remove(key)
	count, cost := c.idx.totalCount, c.idx.totalCost
	c.mu.Unlock()

	if ok {
		c.opt.Metrics.Evict(EvictExplicit)
		c.opt.Metrics.Size(count, cost)
		c.release([]evictedEntry{{key: key, value: v}})
	}
}

// RemoveAll empties the cache immediately.
func (c *Cache) RemoveAll() {
	c.mu.Lock()
	evicted := make([]evictedEntry, 0, c.idx.totalCount)
	for {
		k, v, _, ok := c.idx.popTail()
		if !ok {
			break
		}
		evicted = append(evicted, evictedEntry{key: k, value: v})
	}
	c.mu.Unlock()

	c.opt.Metrics.Size(0, 0)
	c.release(evicted)
}

// TotalCount returns the number of resident entries.
func (c *Cache) TotalCount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idx.totalCount
}

// TotalCost returns the sum of resident entry costs.
func (c *Cache) TotalCost() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idx.totalCost
}

// TrimToCount removes LRU entries until totalCount <= n.
func (c *Cache) TrimToCount(n uint64) {
	c.mu.Lock()
	var evicted []evictedEntry
	for c.idx.totalCount > n {
		k, v, _, ok := c.idx.popTail()
		if !ok {
			break
		}
		evicted = append(evicted, evictedEntry{key: k, value: v})
	}
	count, cost := c.idx.totalCount, c.idx.totalCost
	c.mu.Unlock()

	c.emitEvictions(evicted, EvictCount)
	c.opt.Metrics.Size(count, cost)
	c.release(evicted)
}

// TrimToCost removes LRU entries until totalCost <= cost.
func (c *Cache) TrimToCost(cost uint64) {
	c.mu.Lock()
	var evicted []evictedEntry
	for c.idx.totalCost > cost {
		k, v, _, ok := c.idx.popTail()
		if !ok {
			break
		}
		evicted = append(evicted, evictedEntry{key: k, value: v})
	}
	count, totalCost := c.idx.totalCount, c.idx.totalCost
	c.mu.Unlock()

	c.emitEvictions(evicted, EvictCost)
	c.opt.Metrics.Size(count, totalCost)
	c.release(evicted)
}

// TrimToAge removes every entry whose accessTime is older than
// (now - age).
func (c *Cache) TrimToAge(age float64) {
	c.mu.Lock()
	cutoff := c.nowSeconds() - age
	stale := c.idx.snapshotKeysOlderThan(cutoff)
	evicted := make([]evictedEntry, 0, len(stale))
	for _, k := range stale {
		if v, _, ok := c.idx.remove(k); ok {
			evicted = append(evicted, evictedEntry{key: k, value: v})
		}
	}
	count, cost := c.idx.totalCount, c.idx.totalCost
	c.mu.Unlock()

	c.emitEvictions(evicted, EvictAge)
	c.opt.Metrics.Size(count, cost)
	c.release(evicted)
}

type evictedEntry struct {
	key   string
	value any
}

// trimLocked runs the synchronous post-insert trim pass: count first, then
// cost, then age, evicting oldest first until all three limits are
// satisfied. Age uses a fresh "now" snapshot taken here, same as the
// periodic trimmer. Caller holds c.mu.
func (c *Cache) trimLocked() []evictedEntry {
	var evicted []evictedEntry
	for c.opt.CountLimit > 0 && c.idx.totalCount > c.opt.CountLimit {
		k, v, _, ok := c.idx.popTail()
		if !ok {
			break
		}
		evicted = append(evicted, evictedEntry{key: k, value: v})
		c.opt.Metrics.Evict(EvictCount)
	}
	for c.opt.CostLimit > 0 && c.idx.totalCost > c.opt.CostLimit {
		k, v, _, ok := c.idx.popTail()
		if !ok {
			break
		}
		evicted = append(evicted, evictedEntry{key: k, value: v})
		c.opt.Metrics.Evict(EvictCost)
	}
	if c.opt.AgeLimit > 0 {
		cutoff := c.nowSeconds() - c.opt.AgeLimit
		for _, k := range c.idx.snapshotKeysOlderThan(cutoff) {
			v, _, ok := c.idx.remove(k)
			if !ok {
				continue
			}
			evicted = append(evicted, evictedEntry{key: k, value: v})
			c.opt.Metrics.Evict(EvictAge)
		}
	}
	return evicted
}

func (c *Cache) emitEvictions(evicted []evictedEntry, reason EvictReason) {
	for range evicted {
		c.opt.Metrics.Evict(reason)
	}
}

// release hands evicted values to the configured release policy. The mutex
// must already be released by the time this is called.
func (c *Cache) release(evicted []evictedEntry) {
	if len(evicted) == 0 {
		return
	}
	async := *c.opt.ReleaseAsynchronously
	onMain := c.opt.ReleaseOnMainThread

	for _, e := range evicted {
		v := e.value
		switch {
		case c.opt.Executor != nil && (async || onMain):
			c.opt.Executor(func() { _ = v })
		case async:
			select {
			case c.releaseQueue <- v:
			default:
				// Queue full: release inline rather than block the caller.
			}
		default:
			_ = v
		}
	}
}

func (c *Cache) drainReleaseQueue() {
	defer c.stoppedWG.Done()
	for {
		select {
		case v := <-c.releaseQueue:
			_ = v
		case <-c.stopCh:
			return
		}
	}
}

// runAutoTrim enforces count_limit, cost_limit, and age_limit on a
// recurring timer. Limits are soft between ticks: a synchronous Set trims
// only when it pushes count or cost over its limit, so entries that age
// out without such an insert are cleaned up here.
func (c *Cache) runAutoTrim() {
	defer c.stoppedWG.Done()
	if c.opt.AutoTrimInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.opt.AutoTrimInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.autoTrimTick()
		case <-c.stopCh:
			return
		}
	}
}

func (c *Cache) autoTrimTick() {
	if c.opt.CountLimit > 0 {
		c.TrimToCount(c.opt.CountLimit)
	}
	if c.opt.CostLimit > 0 {
		c.TrimToCost(c.opt.CostLimit)
	}
	if c.opt.AgeLimit > 0 {
		c.TrimToAge(c.opt.AgeLimit)
	}
}

func (c *Cache) handleMemoryWarning() {
	if c.opt.RemoveAllOnMemoryWarning != nil && *c.opt.RemoveAllOnMemoryWarning {
		c.RemoveAll()
	}
	if c.opt.OnMemoryWarning != nil {
		c.opt.OnMemoryWarning()
	}
}

func (c *Cache) handleBackground() {
	if c.opt.RemoveAllOnBackground != nil && *c.opt.RemoveAllOnBackground {
		c.RemoveAll()
	}
	if c.opt.OnBackground != nil {
		c.opt.OnBackground()
	}
}
