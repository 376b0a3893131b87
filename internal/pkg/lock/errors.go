package lock

import "errors"

var (
	// ErrLockTimeout is returned when a lock cannot be acquired in time.
	ErrLockTimeout = errors.New("lock acquisition timeout")
)
