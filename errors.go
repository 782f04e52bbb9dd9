package hybridcache

import "github.com/hybridcache/hybridcache/disk"

// Sentinel errors re-exported from the disk tier, so callers that only
// import the root package can still errors.Is against them.
var (
	ErrNotFound        = disk.ErrNotFound
	ErrIO              = disk.ErrIO
	ErrIndex           = disk.ErrIndex
	ErrSerialization   = disk.ErrSerialization
	ErrInvalidArgument = disk.ErrInvalidArgument
	ErrAlreadyOpen     = disk.ErrAlreadyOpen
)
