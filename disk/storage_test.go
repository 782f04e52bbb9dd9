package disk

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func openTestStorage(t *testing.T, opt Options) *Storage {
	t.Helper()
	s, err := OpenStorage(t.TempDir(), opt)
	if err != nil {
		t.Fatalf("OpenStorage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStorage_OpenTwiceAtSamePathFails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s1, err := OpenStorage(dir, Options{})
	if err != nil {
		t.Fatalf("OpenStorage: %v", err)
	}
	t.Cleanup(func() { _ = s1.Close() })

	_, err = OpenStorage(dir, Options{})
	if !errors.Is(err, ErrAlreadyOpen) {
		t.Fatalf("second OpenStorage at the same path = %v, want ErrAlreadyOpen", err)
	}

	if err := s1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	s2, err := OpenStorage(dir, Options{})
	if err != nil {
		t.Fatalf("OpenStorage after Close: %v", err)
	}
	_ = s2.Close()
}

// Small values stay inline; large ones spill to a file, at the exact
// inline-threshold boundary.
func TestStorage_InlineThresholdBoundary(t *testing.T) {
	t.Parallel()

	s := openTestStorage(t, Options{Mode: ModeMixed, InlineThreshold: 8})

	if !s.Save("small", []byte("12345678"), "", nil) {
		t.Fatal("Save small must succeed")
	}
	it, ok := s.Get("small")
	if !ok || !it.IsInline() {
		t.Fatalf("want inline row, got %+v ok=%v", it, ok)
	}

	if !s.Save("big", []byte("123456789"), "", nil) {
		t.Fatal("Save big must succeed")
	}
	it, ok = s.Get("big")
	if !ok || it.IsInline() {
		t.Fatalf("want out-of-line row, got %+v ok=%v", it, ok)
	}
	data, ok := s.GetValue("big")
	if !ok || string(data) != "123456789" {
		t.Fatalf("GetValue big = %q, ok=%v", data, ok)
	}
}

func TestStorage_SaveGetRemoveRoundTrip(t *testing.T) {
	t.Parallel()

	s := openTestStorage(t, Options{Mode: ModeFile})

	if !s.Save("k", []byte("v"), "", nil) {
		t.Fatal("Save must succeed")
	}
	data, ok := s.GetValue("k")
	if !ok || string(data) != "v" {
		t.Fatalf("GetValue = %q, ok=%v", data, ok)
	}
	if !s.Remove("k") {
		t.Fatal("Remove must succeed")
	}
	if _, ok := s.GetValue("k"); ok {
		t.Fatal("k must be gone after Remove")
	}
	if s.Remove("k") {
		t.Fatal("second Remove of an absent key must be false")
	}
}

func TestStorage_EmptyKeyIsRejected(t *testing.T) {
	t.Parallel()

	s := openTestStorage(t, Options{})
	if s.Save("", []byte("v"), "", nil) {
		t.Fatal("Save with empty key must fail")
	}
	if _, ok := s.Get(""); ok {
		t.Fatal("Get with empty key must miss")
	}
}

func TestStorage_RemoveItemsToFitCount(t *testing.T) {
	t.Parallel()

	s := openTestStorage(t, Options{Mode: ModeInline, PageSize: 2})
	for i := 0; i < 5; i++ {
		s.Save(keyN(i), []byte("v"), "", nil)
	}
	s.RemoveItemsToFitCount(2)
	if got := s.ItemCount(); got > 2 {
		t.Fatalf("ItemCount = %d, want <= 2", got)
	}
}

func TestStorage_RemoveItemsToFitSize(t *testing.T) {
	t.Parallel()

	s := openTestStorage(t, Options{Mode: ModeInline, PageSize: 2})
	for i := 0; i < 5; i++ {
		s.Save(keyN(i), []byte("1234"), "", nil)
	}
	s.RemoveItemsToFitSize(8)
	if got := s.ItemSizeSum(); got > 8 {
		t.Fatalf("ItemSizeSum = %d, want <= 8", got)
	}
}

func TestStorage_RemoveAllBeforeTime(t *testing.T) {
	t.Parallel()

	s := openTestStorage(t, Options{Mode: ModeInline})
	s.Save("old", []byte("v"), "", nil)

	it, _, _ := s.idx.get("old")
	it.LastAccessTime = 1
	s.idx.upsert(it)

	s.Save("new", []byte("v"), "", nil)
	s.RemoveAllBeforeTime(2)

	if _, ok := s.GetValue("old"); ok {
		t.Fatal("old row must be gone")
	}
	if _, ok := s.GetValue("new"); !ok {
		t.Fatal("new row must survive")
	}
}

func TestStorage_RemoveAll(t *testing.T) {
	t.Parallel()

	s := openTestStorage(t, Options{Mode: ModeFile})
	for i := 0; i < 10; i++ {
		s.Save(keyN(i), []byte("payload"), "", nil)
	}

	var lastRemoved, lastTotal int
	ended := false
	var failed bool
	s.RemoveAll(func(removed, total int) {
		lastRemoved, lastTotal = removed, total
	}, func(f bool) {
		ended = true
		failed = f
	})

	if !ended {
		t.Fatal("end callback must fire")
	}
	if failed {
		t.Fatal("RemoveAll must not report failure")
	}
	if lastTotal != 10 {
		t.Fatalf("total = %d, want 10", lastTotal)
	}
	if lastRemoved != 10 {
		t.Fatalf("removed = %d, want 10", lastRemoved)
	}
	if got := s.ItemCount(); got != 0 {
		t.Fatalf("ItemCount after RemoveAll = %d, want 0", got)
	}
}

// A prior unclean shutdown leaves a .dirty marker; Open must reconcile an
// index row whose backing file vanished, and an orphan file with no row.
func TestStorage_ReconcileOnDirtyReopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := OpenStorage(dir, Options{Mode: ModeFile})
	if err != nil {
		t.Fatalf("OpenStorage: %v", err)
	}
	s.Save("a", []byte("payload"), "", nil)

	it, _, _ := s.idx.get("a")
	blobPath := s.blobPath(it.Filename)

	// Simulate a crash: remove the backing file without updating the
	// index, write an orphan file with no row, and leave the dirty marker
	// in place (skip Close). As a process exit would, close the index and
	// release the in-process open guard so the directory can be reopened.
	os.Remove(blobPath)
	os.WriteFile(filepath.Join(s.dataDir, "orphan"), []byte("x"), 0o644)
	s.idx.Close()
	openStorageDirs.mu.Lock()
	delete(openStorageDirs.dirs, s.canon)
	openStorageDirs.mu.Unlock()

	s2, err := OpenStorage(dir, Options{Mode: ModeFile})
	if err != nil {
		t.Fatalf("reopen after dirty shutdown: %v", err)
	}
	t.Cleanup(func() { s2.Close() })

	if _, ok := s2.GetValue("a"); ok {
		t.Fatal("row referencing a missing file must be purged on reconcile")
	}
	if _, err := os.Stat(filepath.Join(s2.dataDir, "orphan")); err == nil {
		t.Fatal("orphan file must be trashed on reconcile")
	}
}

func keyN(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	return string(letters[i%len(letters)]) + string(rune('0'+i))
}
