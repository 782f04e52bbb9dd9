package memory

import "time"

// Metrics exposes observability hooks for the memory tier. A NoopMetrics
// implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason)
	Size(count, cost uint64)
}

// EvictReason explains why an entry left the cache.
type EvictReason int

const (
	// EvictCount — removed to satisfy count_limit.
	EvictCount EvictReason = iota
	// EvictCost — removed to satisfy cost_limit.
	EvictCost
	// EvictAge — removed to satisfy age_limit.
	EvictAge
	// EvictExplicit — removed by an explicit Remove/RemoveAll call.
	EvictExplicit
)

// Clock provides monotonic seconds; useful for deterministic tests.
type Clock interface{ NowSeconds() float64 }

// Lifecycle is the small subscription interface the host passes at
// construction for memory-pressure and background-transition signals.
// Absent a host, neither hook is ever invoked and the cache still
// functions normally.
type Lifecycle interface {
	OnMemoryWarning(fn func())
	OnBackground(fn func())
}

// Executor runs a deferred value release. With no executor (nil), an
// asynchronous release is handed to one background goroutine and a
// synchronous release happens inline, under no lock. A custom executor may
// hop to the main thread or a worker pool; see Options.ReleaseAsynchronously.
type Executor func(release func())

// Options configures a Cache. Zero values are the documented defaults
// except where noted.
type Options struct {
	// CountLimit caps the number of resident entries. 0 = unbounded.
	CountLimit uint64
	// CostLimit caps the sum of entry costs. 0 = unbounded.
	CostLimit uint64
	// AgeLimit caps how long (seconds) an entry may go unaccessed. 0 = unbounded.
	AgeLimit float64

	// AutoTrimInterval is the background trimmer period. Default 5s.
	AutoTrimInterval time.Duration

	// RemoveAllOnMemoryWarning clears the cache on a memory-pressure signal.
	// Nil means true, matching YYMemoryCache.h's
	// shouldRemoveAllObjectsOnMemoryWarning default; set a pointer to
	// false to opt out.
	RemoveAllOnMemoryWarning *bool
	// RemoveAllOnBackground clears the cache on a background-transition
	// signal. Nil means true, same provenance as above.
	RemoveAllOnBackground *bool

	// ReleaseOnMainThread routes evicted values through Executor even when
	// ReleaseAsynchronously is false, so the caller can hop to a specific
	// thread. Default false.
	ReleaseOnMainThread bool
	// ReleaseAsynchronously defers value release past the mutex release
	// instead of releasing inline. Nil means true; set a pointer to false
	// to opt into synchronous inline release.
	ReleaseAsynchronously *bool
	// Executor runs deferred releases when ReleaseAsynchronously or
	// ReleaseOnMainThread is set. Nil means: with ReleaseAsynchronously,
	// values go to a queue drained by one background goroutine; otherwise
	// they are released inline on the calling goroutine, outside the mutex.
	Executor Executor

	// Lifecycle subscribes to host memory-warning/background signals.
	// Nil disables both hooks.
	Lifecycle Lifecycle
	// OnMemoryWarning, if set, runs after RemoveAllOnMemoryWarning's
	// removeAll (if any).
	OnMemoryWarning func()
	// OnBackground, if set, runs after RemoveAllOnBackground's removeAll
	// (if any).
	OnBackground func()

	// Metrics receives Hit/Miss/Evict/Size signals. Nil means NoopMetrics.
	Metrics Metrics
	// Clock overrides the time source (tests). Nil means time.Now-backed.
	Clock Clock
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.AutoTrimInterval <= 0 {
		out.AutoTrimInterval = 5 * time.Second
	}
	if out.Metrics == nil {
		out.Metrics = NoopMetrics{}
	}
	if out.RemoveAllOnMemoryWarning == nil {
		out.RemoveAllOnMemoryWarning = boolPtr(true)
	}
	if out.RemoveAllOnBackground == nil {
		out.RemoveAllOnBackground = boolPtr(true)
	}
	if out.ReleaseAsynchronously == nil {
		out.ReleaseAsynchronously = boolPtr(true)
	}
	return out
}

func boolPtr(b bool) *bool { return &b }
