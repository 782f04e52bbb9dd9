package hybridcache

import (
	"github.com/hybridcache/hybridcache/disk"
	"github.com/hybridcache/hybridcache/memory"
)

// Options configures both tiers of a Cache. Memory and Disk are passed
// through verbatim to memory.New and disk.Open.
type Options struct {
	Memory memory.Options
	Disk   disk.Options
}
