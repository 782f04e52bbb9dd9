// Package disk implements the second cache tier: a hybrid metadata-index
// plus out-of-line blob store on a single directory.
//
// Design:
//   - Storage holds a BuntDB metadata index (index.db) keyed by cache key,
//     with secondary indices on last_access_time and size, plus a data/
//     directory of content files. Small values may be stored inline in the
//     index row instead of as a separate file, per Options.Mode.
//   - Deletes are O(1): a file is renamed into a trash/ subdirectory and
//     removed asynchronously by a background sweeper, never unlinked on
//     the caller's goroutine.
//   - Cache wraps Storage with a mutex and a small worker pool, exposing
//     synchronous methods and completion-callback async variants of the
//     same operations.
//   - A process-wide registry (registry.go) ensures at most one live Cache
//     per canonical directory path, matching how a single BuntDB file
//     cannot be opened twice.
//
// Basic usage:
//
//	c, _, err := disk.Open("/var/cache/images", disk.Options{
//		Mode:            disk.ModeMixed,
//		InlineThreshold: disk.DefaultInlineThreshold,
//		CountLimit:      100000,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer c.Close()
//
//	c.Raw().Save("key", []byte("value"), "", nil)
//	data, ok := c.Raw().GetValue("key")
package disk
