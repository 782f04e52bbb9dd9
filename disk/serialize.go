package disk

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// Archiver serializes an arbitrary value into bytes for disk storage.
// Unarchiver is its inverse. Both default to an encoding/gob-backed
// implementation; see DESIGN.md for why no third-party object codec
// replaces it.
type Archiver func(value any) ([]byte, error)

// Unarchiver is the inverse of Archiver. dst is a pointer to the type the
// caller expects back; Cache.Load and Cache.LoadAsync round-trip through
// *dst.
type Unarchiver func(data []byte, dst any) error

func defaultArchiver(value any) ([]byte, error) {
	// gob requires the concrete type behind an interface{} to be
	// registered before it can be sent; register it here rather than
	// forcing every caller to call gob.Register up front.
	gob.Register(value)

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&value); err != nil {
		return nil, fmt.Errorf("%w: gob encode: %v", ErrSerialization, err)
	}
	return buf.Bytes(), nil
}

func defaultUnarchiver(data []byte, dst any) error {
	var value any
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&value); err != nil {
		return fmt.Errorf("%w: gob decode: %v", ErrSerialization, err)
	}
	if ptr, ok := dst.(*any); ok {
		*ptr = value
		return nil
	}
	return fmt.Errorf("%w: unarchiver requires a *any destination", ErrSerialization)
}
