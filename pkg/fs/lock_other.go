//go:build !unix

package fs

import (
	"errors"
	"fmt"
)

// ErrWouldBlock is returned when a lock is held by another process.
var ErrWouldBlock = errors.New("lock would block")

// Locker is unavailable on this platform; every TryLock fails with
// [errors.ErrUnsupported].
type Locker struct{}

// NewLocker returns a Locker that always fails.
func NewLocker(fs FS) *Locker {
	if fs == nil {
		panic("fs is nil")
	}

	return &Locker{}
}

// Lock is a held file lock.
type Lock struct {
	path string
}

// Path returns the lock file path.
func (lk *Lock) Path() string {
	return lk.path
}

// Close is a no-op.
func (lk *Lock) Close() error {
	return nil
}

// TryLock always fails on this platform.
func (l *Locker) TryLock(path string) (*Lock, error) {
	return nil, fmt.Errorf("lock %q: %w", path, errors.ErrUnsupported)
}
