package disk

import (
	"sync"
	"testing"
	"time"
)

func TestCache_OpenReturnsSameInstanceForSamePath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c1, created1, err := Open(dir, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c1.Close() })
	if !created1 {
		t.Fatal("first Open must report created=true")
	}

	c2, created2, err := Open(dir, Options{})
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	if created2 {
		t.Fatal("second Open for the same path must report created=false")
	}
	if c2 != c1 {
		t.Fatal("second Open for the same path must return the existing instance")
	}
}

func TestCache_SaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	c, _, err := Open(t.TempDir(), Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	if !c.Save("k", "hello") {
		t.Fatal("Save must succeed")
	}
	var got any
	if !c.Load("k", &got) {
		t.Fatal("Load must succeed")
	}
	if got != "hello" {
		t.Fatalf("Load = %v, want hello", got)
	}
}

func TestCache_AsyncSaveAndRemove(t *testing.T) {
	t.Parallel()

	c, _, err := Open(t.TempDir(), Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	var wg sync.WaitGroup
	wg.Add(1)
	c.SaveAsync("k", "v", func(ok bool) {
		defer wg.Done()
		if !ok {
			t.Error("SaveAsync callback reported failure")
		}
	})
	wg.Wait()

	if !c.Contains("k") {
		t.Fatal("Contains must be true after SaveAsync completes")
	}

	wg.Add(1)
	c.RemoveAsync("k", func(key string) {
		defer wg.Done()
		if key != "k" {
			t.Errorf("RemoveAsync callback key = %q, want k", key)
		}
	})
	wg.Wait()

	if c.Contains("k") {
		t.Fatal("Contains must be false after RemoveAsync completes")
	}
}

func TestCache_RemoveAllAsyncInvokesEndExactlyOnce(t *testing.T) {
	t.Parallel()

	c, _, err := Open(t.TempDir(), Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	for i := 0; i < 5; i++ {
		c.Save(keyN(i), i)
	}

	done := make(chan bool, 1)
	c.RemoveAllAsync(nil, func(failed bool) { done <- failed })

	select {
	case failed := <-done:
		if failed {
			t.Fatal("RemoveAllAsync reported failure")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("end callback never fired")
	}
}
