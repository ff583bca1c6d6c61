package cache

import (
	"errors"
	"fmt"
)

// ErrInvalidEntry indicates a cache file could not be decoded into an entry.
var ErrInvalidEntry = errors.New("invalid cache entry")

// CacheIOError is returned for any failure reading, writing or deleting
// cache files. It is never retried.
type CacheIOError struct {
	// Op is the failed operation ("load", "decode", "write", "reset", "compact")
	Op string

	// Path is the file or directory involved
	Path string

	Err error
}

// Error implements the error interface.
func (e *CacheIOError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *CacheIOError) Unwrap() error {
	return e.Err
}
