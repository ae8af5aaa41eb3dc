package prefs

import "io"

// Backend stores documents. A location is an opaque string produced by
// Locate or Ephemeral and passed back to the other methods.
//
// Implementations must make WriteAtomic all-or-nothing: a concurrent or
// later Read observes either the previous document or the new one.
type Backend interface {
	// Locate returns the location of document file for namespace.
	// Failures wrap [ErrDirectoryResolution].
	Locate(namespace, file string) (string, error)

	// Read returns the stored document. A missing document is reported as
	// found=false with a nil error. Failures wrap [ErrFileOpen] or
	// [ErrFileRead].
	Read(location string) (data []byte, found bool, err error)

	// WriteAtomic replaces the document at location with data.
	WriteAtomic(location string, data []byte) error

	// Ephemeral returns a fresh location for file that no other call has
	// returned. Used by the testing entry points.
	Ephemeral(file string) (string, error)

	// Discard removes an ephemeral location and anything created for it.
	Discard(location string) error

	// Describe returns a human-readable form of location for messages.
	Describe(location string) string
}

// ProcessLocker is implemented by backends that can exclude other processes
// from a location. LockProcess must not block; contention is reported as
// an error wrapping [ErrInstanceAlreadyLoaded].
type ProcessLocker interface {
	LockProcess(location string) (io.Closer, error)
}
