package disk

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"
)

// Storage is a hybrid metadata-index-plus-blob store: a BuntDB metadata
// index plus a data/ directory of out-of-line blobs, on a single root
// directory. Methods are thread-compatible, not thread-safe — Cache
// (disk/cache.go) supplies the mutex.
type Storage struct {
	rootDir  string
	dataDir  string
	dirtyPth string
	canon    string // canonical path, used to free openStorageDirs on Close

	idx   *metaIndex
	trash *trash
	opt   Options
}

// openStorageDirs guards against two live *Storage instances pointed at the
// same directory: a collision that would race both on the BuntDB file lock
// and on the .dirty marker. Cache (disk/cache.go) already prevents this for
// callers that go through its registry, but OpenStorage is also callable
// directly, so the check lives here rather than only in Cache.
var openStorageDirs = struct {
	mu   sync.Mutex
	dirs map[string]struct{}
}{dirs: make(map[string]struct{})}

// OpenStorage opens (creating if necessary) a Storage rooted at dir. If a
// dirty marker from an unclean prior shutdown is present, reconciliation
// runs before OpenStorage returns. Returns ErrAlreadyOpen if another
// *Storage is already live at the same canonical path within this process.
func OpenStorage(dir string, opt Options) (*Storage, error) {
	o := opt.withDefaults()

	canon, err := canonicalPath(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve path: %v", ErrIO, err)
	}
	openStorageDirs.mu.Lock()
	if _, open := openStorageDirs.dirs[canon]; open {
		openStorageDirs.mu.Unlock()
		return nil, ErrAlreadyOpen
	}
	openStorageDirs.dirs[canon] = struct{}{}
	openStorageDirs.mu.Unlock()

	s, err := doOpenStorage(dir, canon, o)
	if err != nil {
		openStorageDirs.mu.Lock()
		delete(openStorageDirs.dirs, canon)
		openStorageDirs.mu.Unlock()
		return nil, err
	}
	return s, nil
}

func doOpenStorage(dir, canon string, o Options) (*Storage, error) {
	dataDir := filepath.Join(dir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: mkdir data: %v", ErrIO, err)
	}

	idx, err := openMetaIndex(filepath.Join(dir, "index.db"))
	if err != nil {
		return nil, err
	}

	tr, err := newTrash(dir)
	if err != nil {
		idx.Close()
		return nil, err
	}

	s := &Storage{
		rootDir:  dir,
		dataDir:  dataDir,
		dirtyPth: filepath.Join(dir, ".dirty"),
		canon:    canon,
		idx:      idx,
		trash:    tr,
		opt:      o,
	}

	if _, err := os.Stat(s.dirtyPth); err == nil {
		if err := s.reconcile(); err != nil {
			idx.Close()
			return nil, err
		}
	}
	if err := s.markDirty(); err != nil {
		idx.Close()
		return nil, err
	}

	return s, nil
}

// Close clears the dirty marker (clean shutdown), closes the index, and
// frees this directory for a future OpenStorage/Open call.
func (s *Storage) Close() error {
	openStorageDirs.mu.Lock()
	delete(openStorageDirs.dirs, s.canon)
	openStorageDirs.mu.Unlock()

	if err := os.Remove(s.dirtyPth); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: clear dirty marker: %v", ErrIO, err)
	}
	return s.idx.Close()
}

func (s *Storage) markDirty() error {
	f, err := os.OpenFile(s.dirtyPth, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: write dirty marker: %v", ErrIO, err)
	}
	return f.Close()
}

func (s *Storage) blobPath(filename string) string {
	return filepath.Join(s.dataDir, filename)
}

// Save implements the storage decision tree. If filename is
// non-empty the value is always written out-of-line under that name
// (overwriting atomically); otherwise the configured StorageMode and
// InlineThreshold decide. Metadata is upserted only after a successful
// file write, so a failing write never leaves a partially-persisted row.
func (s *Storage) Save(key string, value []byte, filename string, extended []byte) bool {
	if key == "" {
		return false
	}

	prior, hadPrior, _ := s.idx.get(key)

	useFilename := filename
	inline := []byte(nil)

	switch {
	case filename != "":
		if err := s.writeFileAtomic(filename, value); err != nil {
			s.opt.Metrics.IOError()
			return false
		}
	case s.opt.Mode == ModeInline, s.opt.Mode == ModeMixed && len(value) <= s.opt.InlineThreshold:
		inline = value
		useFilename = ""
	default:
		useFilename = s.opt.FilenameDeriver(key)
		if err := s.writeFileAtomic(useFilename, value); err != nil {
			s.opt.Metrics.IOError()
			return false
		}
	}

	// If an old out-of-line file is being superseded by an inline value
	// (or a different filename), trash the stale file after the new row
	// commits successfully below.
	staleFile := ""
	if hadPrior && prior.Filename != "" && prior.Filename != useFilename {
		staleFile = prior.Filename
	}

	now := time.Now().Unix()
	item := Item{
		Key:            key,
		Filename:       useFilename,
		Size:           uint32(len(value)),
		InlineData:     inline,
		ModTime:        now,
		LastAccessTime: now,
		ExtendedData:   extended,
	}
	if extended == nil && hadPrior {
		item.ExtendedData = prior.ExtendedData
	}

	if err := s.idx.upsert(item); err != nil {
		s.opt.Metrics.IndexError()
		return false
	}

	if staleFile != "" {
		s.trash.move(s.blobPath(staleFile))
	}
	return true
}

func (s *Storage) writeFileAtomic(filename string, value []byte) error {
	dst := s.blobPath(filename)
	tmp, err := os.CreateTemp(s.dataDir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// Get returns the metadata row for key, refreshing last_access_time.
func (s *Storage) Get(key string) (Item, bool) {
	if key == "" {
		return Item{}, false
	}
	it, ok, err := s.idx.get(key)
	if err != nil || !ok {
		if err != nil {
			s.opt.Metrics.IndexError()
		}
		s.opt.Metrics.Miss()
		return Item{}, false
	}
	s.touch(it)
	s.opt.Metrics.Hit()
	return it, true
}

// GetValue returns the value bytes for key, reading the backing file if
// the row is not inline.
func (s *Storage) GetValue(key string) ([]byte, bool) {
	it, ok := s.Get(key)
	if !ok {
		return nil, false
	}
	if it.IsInline() {
		return it.InlineData, true
	}
	data, err := os.ReadFile(s.blobPath(it.Filename))
	if err != nil {
		s.opt.Metrics.IOError()
		return nil, false
	}
	return data, true
}

// touch refreshes last_access_time synchronously. The update need not be
// durable before Get/GetValue returns, so failures here are swallowed
// rather than surfaced.
func (s *Storage) touch(it Item) {
	it.LastAccessTime = time.Now().Unix()
	_ = s.idx.upsert(it)
}

// Remove deletes key's row and trashes its backing file, if any.
func (s *Storage) Remove(key string) bool {
	if key == "" {
		return false
	}
	it, ok, _ := s.idx.get(key)
	if !ok {
		return false
	}
	if err := s.idx.delete(key); err != nil {
		s.opt.Metrics.IndexError()
		return false
	}
	if it.Filename != "" {
		s.trash.move(s.blobPath(it.Filename))
	}
	s.opt.Metrics.Evict(EvictExplicit)
	return true
}

// RemoveItems deletes every key in keys, skipping any that are absent.
func (s *Storage) RemoveItems(keys []string) {
	for _, k := range keys {
		s.Remove(k)
	}
}

// ItemCount returns the number of rows in the index.
func (s *Storage) ItemCount() uint64 {
	n, err := s.idx.count()
	if err != nil {
		s.opt.Metrics.IndexError()
		return 0
	}
	return uint64(n)
}

// ItemSizeSum returns the sum of Size across all rows.
func (s *Storage) ItemSizeSum() uint64 {
	total, err := s.idx.sumSize()
	if err != nil {
		s.opt.Metrics.IndexError()
		return 0
	}
	return total
}

// RemoveAllBelowSize deletes, LRU-first, every row with Size < limit,
// until none remain below it: a one-shot predicate pass rather than a
// target sum.
func (s *Storage) RemoveAllBelowSize(limit uint32) {
	s.removeWhile(func(it Item) bool { return it.Size < limit }, EvictSize)
}

// RemoveAllBeforeTime deletes every row with LastAccessTime < cutoff.
func (s *Storage) RemoveAllBeforeTime(cutoff int64) {
	s.removeWhile(func(it Item) bool { return it.LastAccessTime < cutoff }, EvictAge)
}

// RemoveItemsToFitSize evicts LRU-first (by last_access_time ascending)
// until ItemSizeSum() <= target.
func (s *Storage) RemoveItemsToFitSize(target uint64) {
	s.removeLRUUntil(func() bool { return s.ItemSizeSum() <= target }, EvictSize)
}

// RemoveItemsToFitCount evicts LRU-first until ItemCount() <= target.
func (s *Storage) RemoveItemsToFitCount(target uint64) {
	s.removeLRUUntil(func() bool { return s.ItemCount() <= target }, EvictCount)
}

// removeLRUUntil pages through rows ordered by last_access_time ascending
// (oldest first), page size Options.PageSize, deleting rows until done()
// is satisfied or the index is exhausted. Shared by the "by size"/"by
// count" trim algorithms.
func (s *Storage) removeLRUUntil(done func() bool, reason EvictReason) {
	afterKey := ""
	for !done() {
		page, err := s.idx.pageAscendingByAccess(afterKey, s.opt.PageSize)
		if err != nil {
			s.opt.Metrics.IndexError()
			return
		}
		if len(page) == 0 {
			return
		}
		for _, it := range page {
			if done() {
				return
			}
			if !s.deleteItem(it, reason) {
				// A row that could not be deleted stays in the index and
				// becomes the resume point for the next page.
				afterKey = it.Key
			}
		}
	}
}

// removeWhile pages through every row ordered by last_access_time
// ascending and deletes those matching pred, without an early stop (used
// by the age/size predicate variants, which must inspect every row once).
func (s *Storage) removeWhile(pred func(Item) bool, reason EvictReason) {
	afterKey := ""
	for {
		page, err := s.idx.pageAscendingByAccess(afterKey, s.opt.PageSize)
		if err != nil {
			s.opt.Metrics.IndexError()
			return
		}
		if len(page) == 0 {
			return
		}
		for _, it := range page {
			if pred(it) && s.deleteItem(it, reason) {
				continue
			}
			afterKey = it.Key // still indexed, so a valid resume point
		}
	}
}

func (s *Storage) deleteItem(it Item, reason EvictReason) bool {
	if err := s.idx.delete(it.Key); err != nil {
		s.opt.Metrics.IndexError()
		return false
	}
	if it.Filename != "" {
		s.trash.move(s.blobPath(it.Filename))
	}
	s.opt.Metrics.Evict(reason)
	return true
}

// EnumerateItemsWithSizeGreaterThan calls fn for every row with
// Size > limit, ordered by last_access_time ascending, stopping early if
// fn returns false.
func (s *Storage) EnumerateItemsWithSizeGreaterThan(limit uint32, fn func(Item) bool) {
	afterKey := ""
	for {
		page, err := s.idx.pageAscendingByAccess(afterKey, s.opt.PageSize)
		if err != nil || len(page) == 0 {
			return
		}
		afterKey = page[len(page)-1].Key
		for _, it := range page {
			if it.Size > limit {
				if !fn(it) {
					return
				}
			}
		}
	}
}

// RemoveAll short-circuits a full wipe: rename the whole data folder into
// a freshly created trash subdirectory and recreate an empty one, then
// clear the index page by page, invoking progress after each page and end
// once when the index has been cleared. progress and end may be nil.
func (s *Storage) RemoveAll(progress func(removed, total int), end func(failed bool)) {
	total, _ := s.idx.count()
	keys, err := s.idx.allKeys()
	if err != nil {
		s.opt.Metrics.IndexError()
		if end != nil {
			end(true)
		}
		return
	}

	if err := s.trash.move(s.dataDir); err != nil {
		s.opt.Metrics.IOError()
		if end != nil {
			end(true)
		}
		return
	}
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		s.opt.Metrics.IOError()
		if end != nil {
			end(true)
		}
		return
	}

	removed := 0
	pageSize := s.opt.PageSize
	failed := false
	for i := 0; i < len(keys); i += pageSize {
		stop := i + pageSize
		if stop > len(keys) {
			stop = len(keys)
		}
		for _, k := range keys[i:stop] {
			if err := s.idx.delete(k); err != nil {
				s.opt.Metrics.IndexError()
				failed = true
				continue
			}
			removed++
		}
		if progress != nil {
			progress(removed, total)
		}
	}

	if end != nil {
		end(failed)
	}
}

// reconcile restores the invariant that index rows and data files
// correspond one-to-one: a row referencing a missing file is purged; a
// file with no referencing row is trashed. Runs at Open when a dirty
// marker indicates an unclean prior shutdown.
func (s *Storage) reconcile() error {
	keys, err := s.idx.allKeys()
	if err != nil {
		return err
	}
	referenced := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		it, ok, err := s.idx.get(k)
		if err != nil || !ok {
			continue
		}
		if it.Filename == "" {
			continue
		}
		if _, statErr := os.Stat(s.blobPath(it.Filename)); statErr != nil {
			s.idx.delete(k)
			continue
		}
		referenced[it.Filename] = struct{}{}
	}

	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return fmt.Errorf("%w: read data dir: %v", ErrIO, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if _, ok := referenced[name]; ok {
			continue
		}
		s.trash.move(s.blobPath(name))
	}
	return nil
}

// sweepTrash runs one pass of the background trash sweeper.
func (s *Storage) sweepTrash() { s.trash.sweepOnce() }

// freeSpaceBelowLimit reports whether the filesystem backing dataDir has
// fewer free bytes than Options.FreeDiskSpaceLimit. A limit of 0 disables
// the check.
func (s *Storage) freeSpaceBelowLimit() bool {
	if s.opt.FreeDiskSpaceLimit == 0 {
		return false
	}
	var st syscall.Statfs_t
	if err := syscall.Statfs(s.dataDir, &st); err != nil {
		return false
	}
	free := uint64(st.Bavail) * uint64(st.Bsize)
	return free < s.opt.FreeDiskSpaceLimit
}

// RemoveItemsToFreeSpace evicts LRU-first until freeSpaceBelowLimit no
// longer holds, or the index is exhausted. No-op when FreeDiskSpaceLimit
// is 0.
func (s *Storage) RemoveItemsToFreeSpace() {
	if s.opt.FreeDiskSpaceLimit == 0 {
		return
	}
	s.removeLRUUntil(func() bool { return !s.freeSpaceBelowLimit() }, EvictSize)
}
