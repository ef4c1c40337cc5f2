package syncengine

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateKeyRace marks a create that lost a race on a new natural key:
// two concurrent imports inserted the same item_no. Not retried.
var ErrDuplicateKeyRace = errors.New("concurrent create on the same item number")

// ErrTimeout marks a store call that exceeded its deadline after one retry.
var ErrTimeout = errors.New("backend call timed out")

// SyncError reports a failed backend operation for one sub-entity of a row.
type SyncError struct {
	Entity string
	Err    error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s: %v", e.Entity, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }
