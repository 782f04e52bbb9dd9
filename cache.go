package hybridcache

import (
	"context"

	"github.com/hybridcache/hybridcache/disk"
	"github.com/hybridcache/hybridcache/internal/singleflight"
	"github.com/hybridcache/hybridcache/memory"
)

// Cache composes a memory.Cache and a disk.Cache sharing one name.
// Contains checks memory first, then disk, without promoting a
// disk hit. Get promotes a disk hit into memory at cost 0. Concurrent
// promotions of the same cold key are coalesced so only one disk read
// happens per key at a time.
type Cache struct {
	name string
	mem  *memory.Cache
	dsk  *disk.Cache

	promote singleflight.Group[string, any]
}

// Open constructs or reattaches to a two-tier cache named name, with the
// disk tier rooted at dir.
func Open(name, dir string, opt Options) (*Cache, error) {
	dc, _, err := disk.Open(dir, opt.Disk)
	if err != nil {
		return nil, err
	}
	return &Cache{
		name: name,
		mem:  memory.New(opt.Memory),
		dsk:  dc,
	}, nil
}

// Close releases both tiers. The memory tier's Close stops its background
// trimmer and release goroutines without clearing its entries; the disk
// tier's Close stops its background trimmer and unregisters it from the
// process-wide registry.
func (c *Cache) Close() error {
	c.mem.Close()
	return c.dsk.Close()
}

// Name returns the name the two tiers share.
func (c *Cache) Name() string { return c.name }

// Contains reports whether key is present in either tier. A memory hit
// short-circuits without touching disk; neither tier is promoted.
func (c *Cache) Contains(key string) bool {
	if c.mem.Contains(key) {
		return true
	}
	return c.dsk.Contains(key)
}

// ContainsAsync is the async variant of Contains.
func (c *Cache) ContainsAsync(key string, cb func(key string, ok bool)) {
	if c.mem.Contains(key) {
		if cb != nil {
			cb(key, true)
		}
		return
	}
	c.dsk.ContainsAsync(key, cb)
}

// Get returns key's value. A memory hit is returned directly; a disk hit
// is promoted into memory at cost 0 before being returned, coalesced
// across concurrent callers for the same key.
func (c *Cache) Get(key string) (any, bool) {
	if v, ok := c.mem.Get(key); ok {
		return v, true
	}

	v, err := c.promote.Do(context.Background(), key, func() (any, error) {
		if v, ok := c.mem.Get(key); ok {
			return v, nil
		}
		var dst any
		if !c.dsk.Load(key, &dst) {
			return nil, ErrNotFound
		}
		c.mem.Set(key, dst, 0)
		return dst, nil
	})
	if err != nil {
		return nil, false
	}
	return v, true
}

// GetAsync is the async variant of Get. A memory hit invokes cb inline;
// a miss runs the same coalesced promotion path as Get on a separate
// goroutine, since the disk tier's own executor has no way to return a
// value through Cache's Archiver/Unarchiver and singleflight layering.
func (c *Cache) GetAsync(key string, cb func(key string, value any, ok bool)) {
	if v, ok := c.mem.Get(key); ok {
		if cb != nil {
			cb(key, v, true)
		}
		return
	}
	go func() {
		v, ok := c.Get(key)
		if cb != nil {
			cb(key, v, ok)
		}
	}()
}

// Set writes key synchronously to memory, then to disk.
func (c *Cache) Set(key string, value any, cost uint64) bool {
	c.mem.Set(key, value, cost)
	return c.dsk.Save(key, value)
}

// SetAsync writes key to memory synchronously and to disk asynchronously;
// cb fires once the disk write completes.
func (c *Cache) SetAsync(key string, value any, cost uint64, cb func()) {
	c.mem.Set(key, value, cost)
	c.dsk.SaveAsync(key, value, func(ok bool) {
		if cb != nil {
			cb()
		}
	})
}

// Remove deletes key from both tiers synchronously.
func (c *Cache) Remove(key string) bool {
	c.mem.Remove(key)
	return c.dsk.Remove(key)
}

// RemoveAsync deletes key from memory synchronously and from disk
// asynchronously; the disk callback is forwarded unchanged.
func (c *Cache) RemoveAsync(key string, cb func(key string)) {
	c.mem.Remove(key)
	c.dsk.RemoveAsync(key, cb)
}

// RemoveAll clears both tiers synchronously.
func (c *Cache) RemoveAll() {
	c.mem.RemoveAll()
	c.dsk.RemoveAll()
}

// RemoveAllAsync clears memory synchronously and disk asynchronously; the
// progress and end callbacks are the disk tier's, forwarded unchanged.
func (c *Cache) RemoveAllAsync(progress func(removed, total int), end func(failed bool)) {
	c.mem.RemoveAll()
	c.dsk.RemoveAllAsync(progress, end)
}
