package disk

import (
	"sync"
	"time"
)

// Cache wraps Storage with a single mutex and a background executor,
// providing both sync and async API variants. Sync variants acquire the
// mutex on the caller's goroutine and run to completion; async variants
// enqueue the work and invoke the callback once it completes, off the
// caller's goroutine.
type Cache struct {
	mu      sync.Mutex
	storage *Storage
	exec    *executor
	opt     Options
	path    string

	closeOnce sync.Once
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// Open opens or reattaches to the disk cache rooted at dir. If a live
// Cache already exists for the canonical path, it is returned instead of
// opening a second handle via the weak registry; ok reports whether this
// call created the returned Cache (false means an existing instance was
// reused).
func Open(dir string, opt Options) (c *Cache, ok bool, err error) {
	path, err := canonicalPath(dir)
	if err != nil {
		return nil, false, err
	}

	if existing, found := globalRegistry.lookup(path); found {
		return existing, false, nil
	}

	storage, err := OpenStorage(dir, opt)
	if err != nil {
		return nil, false, err
	}

	candidate := &Cache{
		storage: storage,
		exec:    newExecutor(4),
		opt:     opt.withDefaults(),
		path:    path,
		stopCh:  make(chan struct{}),
	}

	existing := globalRegistry.register(path, candidate)
	if existing != candidate {
		// Lost the race: someone else registered for this path between our
		// lookup and our register. Close the handle we just opened and
		// hand back theirs.
		storage.Close()
		candidate.exec.stop()
		return existing, false, nil
	}

	candidate.wg.Add(1)
	go candidate.runAutoTrim()
	return candidate, true, nil
}

// Close stops the background trimmer/executor, closes the underlying
// Storage, and removes this Cache from the process-wide registry.
func (c *Cache) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stopCh)
		c.wg.Wait()
		c.exec.stop()
		c.mu.Lock()
		err = c.storage.Close()
		c.mu.Unlock()
		globalRegistry.forget(c.path)
	})
	return err
}

func (c *Cache) runAutoTrim() {
	defer c.wg.Done()
	interval := c.opt.AutoTrimInterval
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
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
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.opt.CountLimit > 0 {
		c.storage.RemoveItemsToFitCount(c.opt.CountLimit)
	}
	if c.opt.CostLimit > 0 {
		c.storage.RemoveItemsToFitSize(c.opt.CostLimit)
	}
	if c.opt.AgeLimit > 0 {
		c.storage.RemoveAllBeforeTime(time.Now().Unix() - c.opt.AgeLimit)
	}
	if c.opt.FreeDiskSpaceLimit > 0 {
		c.storage.RemoveItemsToFreeSpace()
	}
	c.storage.sweepTrash()
	c.opt.Metrics.Size(c.storage.ItemCount(), c.storage.ItemSizeSum())
}

// ---- object-level API: applies the configured (Un)Archiver ----

// Save serializes value with the configured Archiver and stores it under
// key, synchronously.
func (c *Cache) Save(key string, value any) bool {
	data, err := c.opt.Archiver(value)
	if err != nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.storage.Save(key, data, "", nil)
}

// SaveAsync is the async variant of Save; cb is invoked once the write
// completes, off the caller's goroutine.
func (c *Cache) SaveAsync(key string, value any, cb func(ok bool)) {
	c.exec.submit(func() {
		ok := c.Save(key, value)
		if cb != nil {
			cb(ok)
		}
	})
}

// Load reads key and deserializes it with the configured Unarchiver into
// dst. The default Unarchiver requires dst to be a *any; a custom
// Unarchiver may support concrete destination types instead.
func (c *Cache) Load(key string, dst any) bool {
	c.mu.Lock()
	data, ok := c.storage.GetValue(key)
	c.mu.Unlock()
	if !ok {
		return false
	}
	if err := c.opt.Unarchiver(data, dst); err != nil {
		return false
	}
	return true
}

// LoadAsync is the async variant of Load.
func (c *Cache) LoadAsync(key string, dst any, cb func(ok bool)) {
	c.exec.submit(func() {
		ok := c.Load(key, dst)
		if cb != nil {
			cb(ok)
		}
	})
}

// Contains reports whether key has a row, without refreshing its access
// time (mirrors the memory tier's Contains semantics).
func (c *Cache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok, _ := c.storage.idx.get(key)
	return ok
}

// ContainsAsync is the async variant of Contains.
func (c *Cache) ContainsAsync(key string, cb func(key string, ok bool)) {
	c.exec.submit(func() {
		ok := c.Contains(key)
		if cb != nil {
			cb(key, ok)
		}
	})
}

// Remove deletes key synchronously.
func (c *Cache) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.storage.Remove(key)
}

// RemoveAsync is the async variant of Remove.
func (c *Cache) RemoveAsync(key string, cb func(key string)) {
	c.exec.submit(func() {
		c.Remove(key)
		if cb != nil {
			cb(key)
		}
	})
}

// RemoveAll clears every row and blob synchronously.
func (c *Cache) RemoveAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.storage.RemoveAll(nil, nil)
}

// RemoveAllAsync is the async, progress-reporting variant of RemoveAll.
// progress is invoked after each page; end is invoked exactly once with
// whether any row failed to delete.
func (c *Cache) RemoveAllAsync(progress func(removed, total int), end func(failed bool)) {
	c.exec.submit(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.storage.RemoveAll(progress, end)
	})
}

// QueueDepth reports the number of async tasks submitted but not yet
// started on this Cache's executor. Useful as a backlog gauge alongside
// the Metrics.Size counters.
func (c *Cache) QueueDepth() int64 { return c.exec.queueDepth() }

// Raw exposes the underlying Storage for callers that need the
// byte-oriented API directly. Raw must still only be called while
// holding no assumption about Cache's mutex: each method on Storage
// returned here is thread-compatible, so callers must serialize their own
// access or go through Cache's Save/Load/Remove wrappers instead.
func (c *Cache) Raw() *Storage { return c.storage }

// WithLock runs fn with Cache's mutex held, for callers that need to
// perform a raw Storage operation under the same lock used by the sync API
// above.
func (c *Cache) WithLock(fn func(s *Storage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.storage)
}
