package disk

import "errors"

// Error kinds for the disk tier. Reads and writes on Storage and Cache
// report failure only as a boolean/optional result; these values are what
// OpenStorage and Open return (wrapped, so errors.Is applies) and what the
// index and (un)archiver wrap internally.
var (
	// ErrNotFound names the absent-key case. No Storage or Cache method
	// returns it; the façade's Get uses it internally for a disk miss.
	ErrNotFound = errors.New("disk: key not found")
	// ErrIO wraps filesystem failures (file read/write/rename).
	ErrIO = errors.New("disk: io failure")
	// ErrIndex wraps metadata-index failures (BuntDB).
	ErrIndex = errors.New("disk: index failure")
	// ErrSerialization wraps archiver/unarchiver failures.
	ErrSerialization = errors.New("disk: serialization failure")
	// ErrInvalidArgument names the empty-key case. Save and Remove report an
	// empty key by returning false, not by returning this error.
	ErrInvalidArgument = errors.New("disk: invalid argument")
	// ErrAlreadyOpen is returned by OpenStorage when another *Storage is
	// already live at the same canonical path within this process (see
	// openStorageDirs in storage.go). Cache.Open never surfaces this: it
	// checks its own registry first and hands back the existing instance
	// instead of racing OpenStorage (see registry.go).
	ErrAlreadyOpen = errors.New("disk: cache already open at this path")
)
