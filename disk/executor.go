package disk

import (
	"sync"

	"github.com/hybridcache/hybridcache/internal/util"
)

// executor is a small fixed-size worker pool that runs queued async tasks.
// Grounded on the worker-goroutine pattern in cmd/bench/main.go (a fixed
// number of goroutines started up front), here pulling work off a shared
// channel, rather than a goroutine-per-task model, since disk tasks hold
// Cache's single mutex and
// unbounded goroutines would just queue behind it anyway.
type executor struct {
	tasks chan func()
	wg    sync.WaitGroup
	close sync.Once
	done  chan struct{}

	// queued counts tasks submitted but not yet started. It is padded to
	// its own cache line since every async Cache call increments it from
	// whatever goroutine the caller happens to be on, and runWorker reads
	// it from a worker goroutine at the same time.
	queued util.PaddedAtomicInt64
}

func newExecutor(workers int) *executor {
	if workers <= 0 {
		workers = 4
	}
	e := &executor{
		tasks: make(chan func(), 256),
		done:  make(chan struct{}),
	}
	e.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go e.runWorker()
	}
	return e
}

func (e *executor) runWorker() {
	defer e.wg.Done()
	for {
		select {
		case task := <-e.tasks:
			e.queued.Add(-1)
			task()
		case <-e.done:
			// Drain whatever is already queued before exiting.
			for {
				select {
				case task := <-e.tasks:
					e.queued.Add(-1)
					task()
				default:
					return
				}
			}
		}
	}
}

func (e *executor) submit(task func()) {
	e.queued.Add(1)
	e.tasks <- task
}

// queueDepth reports the number of tasks submitted but not yet started.
func (e *executor) queueDepth() int64 {
	return e.queued.Load()
}

func (e *executor) stop() {
	e.close.Do(func() { close(e.done) })
	e.wg.Wait()
}
