package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a referenced element does not exist.
var ErrNotFound = errors.New("element not found")

// CorruptError describes an index file that failed to parse and was moved
// aside. Load recovers from it locally; callers only ever see it through
// the load report, never as a returned error.
type CorruptError struct {
	Path       string
	Quarantine string
	Err        error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("corrupt index %s (quarantined as %s): %v", e.Path, e.Quarantine, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }
