package disk

import (
	"path/filepath"
	"runtime"
	"sync"
)

// registry is the process-wide mapping of absolute canonical path to a live
// *Cache, guarded by its own mutex. Open looks a path up here and returns
// the registered instance, or opens and registers a new one.
//
// The map holds ordinary (strong) references, so a registered *Cache stays
// reachable and its entry stays in place until Cache.Close calls forget;
// entries are not dropped by garbage collection while registered. The
// runtime.AddCleanup hook set by register can only run after Close has
// forgotten the entry and the *Cache has been collected. Until Close, a
// second Open for the same path returns the existing instance; the bool
// returned by Open reports whether that call created the instance.
var globalRegistry = newRegistry()

type registry struct {
	mu   sync.Mutex
	live map[string]*Cache
}

func newRegistry() *registry {
	return &registry{live: make(map[string]*Cache)}
}

// canonicalPath resolves dir to an absolute path used as the registry key.
func canonicalPath(dir string) (string, error) {
	return filepath.Abs(dir)
}

// lookup returns the existing live *Cache for path, if any, without
// registering anything.
func (r *registry) lookup(path string) (*Cache, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.live[path]
	return existing, ok
}

// register records newCache as the live instance for path and attaches a
// cleanup that forgets path once newCache is garbage collected (which can
// happen only after the entry has been forgotten, see above). If
// another instance raced in and registered first, that instance is
// returned instead and newCache is not recorded.
func (r *registry) register(path string, newCache *Cache) *Cache {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.live[path]; ok {
		return existing
	}
	r.live[path] = newCache
	// The cleanup callback must not retain newCache itself (that would
	// keep it reachable forever); it closes only over the path and the
	// registry, and simply forgets whichever entry is there when it runs.
	runtime.AddCleanup(newCache, r.forget, path)
	return newCache
}

func (r *registry) forget(path string) {
	r.mu.Lock()
	delete(r.live, path)
	r.mu.Unlock()
}
