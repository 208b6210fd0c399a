package respcache

import (
	"errors"
	"fmt"
)

// ErrCacheIO is matched by every persistence failure.
var ErrCacheIO = errors.New("response cache i/o")

// ErrCorruptTable is matched by load failures caused by the stored table itself, as opposed to
// the medium it is read from. A corrupt table may be overwritten.
var ErrCorruptTable = errors.New("corrupt response table")

// CacheIOError reports a failed load or save. Callers continue with whatever cache state they
// have.
type CacheIOError struct {
	Op  string
	Err error
}

func (e *CacheIOError) Error() string {
	return fmt.Sprintf("response cache %s: %v", e.Op, e.Err)
}

func (e *CacheIOError) Unwrap() []error {
	return []error{ErrCacheIO, e.Err}
}
