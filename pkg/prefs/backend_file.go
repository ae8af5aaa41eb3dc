package prefs

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/calvinalkan/prefstore/pkg/fs"
)

// FileBackend stores each document as a file named after the schema's file
// inside the namespace directory.
//
// Writes go through [fs.AtomicWriter]: temp file in the same directory,
// fsync, rename over the document, fsync the directory. Missing directories
// are created on the first write.
type FileBackend struct {
	fs       fs.FS
	writer   *fs.AtomicWriter
	locker   *fs.Locker
	resolver Resolver

	// TempDir is the parent of ephemeral locations. Empty means [os.TempDir].
	TempDir string

	// Perm is the document mode. Zero means 0o644.
	Perm os.FileMode
}

// NewFileBackend returns a FileBackend over fsys. A nil fsys means
// [fs.NewReal]; a nil resolver means [ConfigDirResolver].
func NewFileBackend(fsys fs.FS, resolver Resolver) *FileBackend {
	if fsys == nil {
		fsys = fs.NewReal()
	}

	if resolver == nil {
		resolver = ConfigDirResolver{}
	}

	return &FileBackend{
		fs:       fsys,
		writer:   fs.NewAtomicWriter(fsys),
		locker:   fs.NewLocker(fsys),
		resolver: resolver,
	}
}

// Locate implements [Backend].
func (b *FileBackend) Locate(namespace, file string) (string, error) {
	dir, err := b.resolver.Resolve(namespace)
	if err != nil {
		if errors.Is(err, ErrDirectoryResolution) {
			return "", err
		}

		return "", fmt.Errorf("%w: %w", ErrDirectoryResolution, err)
	}

	if dir == "" {
		return "", fmt.Errorf("%w: resolver returned an empty directory for %q", ErrDirectoryResolution, namespace)
	}

	return filepath.Join(dir, file), nil
}

// Read implements [Backend].
func (b *FileBackend) Read(location string) ([]byte, bool, error) {
	f, err := b.fs.Open(location)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("%w: %w", ErrFileOpen, err)
	}

	data, readErr := io.ReadAll(f)
	closeErr := f.Close()

	if readErr != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrFileRead, readErr)
	}

	if closeErr != nil {
		return nil, false, fmt.Errorf("%w: close: %w", ErrFileRead, closeErr)
	}

	return data, true, nil
}

// WriteAtomic implements [Backend]. If only the final directory sync fails
// the error wraps [fs.ErrAtomicWriteDirSync] and the new document is in place.
func (b *FileBackend) WriteAtomic(location string, data []byte) error {
	opts := b.writer.DefaultOptions()
	if b.Perm != 0 {
		opts.Perm = b.Perm
	}

	return b.writer.Write(location, bytes.NewReader(data), opts)
}

// Ephemeral implements [Backend]. Each location lives in its own
// uuid-named directory.
func (b *FileBackend) Ephemeral(file string) (string, error) {
	base := b.TempDir
	if base == "" {
		base = os.TempDir()
	}

	dir := filepath.Join(base, "prefs-"+uuid.NewString())

	err := b.fs.MkdirAll(dir, 0o700)
	if err != nil {
		return "", fmt.Errorf("create ephemeral dir: %w", err)
	}

	return filepath.Join(dir, file), nil
}

// Discard implements [Backend] by removing the ephemeral directory.
func (b *FileBackend) Discard(location string) error {
	return b.fs.RemoveAll(filepath.Dir(location))
}

// Describe implements [Backend]. File locations are already paths.
func (*FileBackend) Describe(location string) string {
	return location
}

// LockProcess implements [ProcessLocker] with an flock on location+".lock".
// The lock file is left in place on release.
func (b *FileBackend) LockProcess(location string) (io.Closer, error) {
	err := b.fs.MkdirAll(filepath.Dir(location), 0o755)
	if err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	lk, err := b.locker.TryLock(location + ".lock")
	if err != nil {
		if errors.Is(err, fs.ErrWouldBlock) {
			return nil, fmt.Errorf("%w: locked by another process", ErrInstanceAlreadyLoaded)
		}

		return nil, fmt.Errorf("lock %s: %w", location, err)
	}

	return lk, nil
}
