package disk

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// FilenameDeriver derives a stable, filesystem-safe filename for a key that
// will be stored out-of-line. The exact digest function is swappable as
// long as it is stable per key.
type FilenameDeriver func(key string) string

// defaultFilenameDeriver hashes the key with xxhash and formats it as 16
// lowercase hex digits. This is not a security boundary: filenames only
// need to be stable per key, not collision-proof against an adversary.
func defaultFilenameDeriver(key string) string {
	h := xxhash.Sum64String(key)
	return fmt.Sprintf("%016x", h)
}
