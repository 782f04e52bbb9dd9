package disk

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// trash implements O(1) deletion: a writer path renames a file (or an
// entire subtree) into trash/<uuid> in O(1), and one background sweeper
// goroutine removes trashed subtrees asynchronously. No cache read ever
// observes a file that is in the trash, since readers only ever look
// under data/.
//
// Grounded on the evicted-entries channel of
// buchgr-bazel-remote's disk.SizedLRU (queuedEvictionsChan drained by
// performQueuedEvictionsContinuously), generalized here from in-memory
// entries to on-disk subtrees.
type trash struct {
	dir     string
	pending chan string // absolute paths queued for removal
}

func newTrash(rootDir string) (*trash, error) {
	dir := filepath.Join(rootDir, "trash")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: mkdir trash: %v", ErrIO, err)
	}
	t := &trash{dir: dir, pending: make(chan string, 256)}
	if err := t.resumePending(); err != nil {
		return nil, err
	}
	return t, nil
}

// resumePending re-enqueues any subtrees left in trash/ from a prior run
// that was killed before the sweeper finished.
func (t *trash) resumePending() error {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		return fmt.Errorf("%w: read trash dir: %v", ErrIO, err)
	}
	for _, e := range entries {
		select {
		case t.pending <- filepath.Join(t.dir, e.Name()):
		default:
			// Pending queue full; the sweeper will pick stragglers up via
			// another ReadDir pass triggered by sweepOnce's caller.
		}
	}
	return nil
}

// move renames path (a file or directory under the cache root) into
// trash/<uuid> and enqueues it for background removal. Never unlinks
// synchronously: deletes must be O(1) and contend with no reader.
func (t *trash) move(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	dst := filepath.Join(t.dir, uuid.NewString())
	if err := os.Rename(path, dst); err != nil {
		return fmt.Errorf("%w: rename into trash: %v", ErrIO, err)
	}
	select {
	case t.pending <- dst:
	default:
		// Queue full: sweepOnce's periodic ReadDir fallback will find it.
	}
	return nil
}

// sweepOnce removes every subtree currently queued, plus anything left
// over in trash/ that never made it into the channel (queue overflow, or
// a resumed crash).
func (t *trash) sweepOnce() {
	for {
		select {
		case p := <-t.pending:
			os.RemoveAll(p)
		default:
			t.sweepLeftovers()
			return
		}
	}
}

func (t *trash) sweepLeftovers() {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		os.RemoveAll(filepath.Join(t.dir, e.Name()))
	}
}
