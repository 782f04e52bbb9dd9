// Package hybridcache is a two-tier key-value cache: a bounded in-process
// memory tier (package memory) backed by a disk tier combining a
// metadata index with out-of-line blob storage (package disk).
//
// Basic usage:
//
//	c, err := hybridcache.Open("images", "/var/cache/images", hybridcache.Options{
//		Memory: memory.Options{CountLimit: 10000},
//		Disk:   disk.Options{Mode: disk.ModeMixed, CountLimit: 100000},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer c.Close()
//
//	c.Set("key", []byte("value"), 1)
//	v, ok := c.Get("key")
package hybridcache
