package fs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// ErrAtomicWriteDirSync indicates the parent directory could not be synced after rename.
//
// When returned, the new file is in place but durability is not guaranteed.
// Callers can detect this with errors.Is(err, ErrAtomicWriteDirSync).
var ErrAtomicWriteDirSync = errors.New("dir sync")

// AtomicWriter replaces files atomically: readers of the destination path
// observe either the previous complete content or the new complete content.
type AtomicWriter struct {
	fs FS
}

// NewAtomicWriter creates an AtomicWriter that uses the given filesystem.
// Panics if fs is nil.
func NewAtomicWriter(fs FS) *AtomicWriter {
	if fs == nil {
		panic("fs is nil")
	}

	return &AtomicWriter{fs: fs}
}

// AtomicWriteOptions configures [AtomicWriter.Write].
type AtomicWriteOptions struct {
	// SyncDir controls whether the parent directory is synced after rename.
	SyncDir bool

	// CreateDir creates missing parent directories with DirPerm before
	// writing the temp file.
	CreateDir bool

	// Perm specifies the file permissions. Must be non-zero.
	// The file is always explicitly chmod'd to this mode, regardless of umask.
	Perm os.FileMode

	// DirPerm is used for directories created when CreateDir is set.
	// Zero means 0o755.
	DirPerm os.FileMode
}

// Write writes data from r to path atomically and durably.
//
// The sequence is: create a temp file next to path (O_EXCL), copy, fsync,
// rename over path, then fsync the parent directory when opts.SyncDir is set.
// Any failure before the rename leaves path untouched and removes the temp
// file (best effort).
//
// If only the directory sync step fails, the returned error satisfies
// errors.Is(err, ErrAtomicWriteDirSync) and the new content is in place.
func (w *AtomicWriter) Write(path string, reader io.Reader, opts AtomicWriteOptions) error {
	if reader == nil {
		panic("reader is nil")
	}

	if path == "" {
		return errors.New("path is empty")
	}

	if opts.Perm == 0 {
		return errors.New("opts.Perm must be non-zero")
	}

	dir, base := filepath.Split(path)
	if base == "" || base == string(os.PathSeparator) || base == "." {
		return fmt.Errorf("path is invalid: %q", path)
	}

	if dir == "" {
		dir = "."
	}

	dir = filepath.Clean(dir)

	if opts.CreateDir {
		dirPerm := opts.DirPerm
		if dirPerm == 0 {
			dirPerm = 0o755
		}

		err := w.fs.MkdirAll(dir, dirPerm)
		if err != nil {
			return fmt.Errorf("create dir %q: %w", dir, err)
		}
	}

	tmpFile, tmpPath, err := createTempFile(w.fs, dir, base, opts.Perm)
	if err != nil {
		return err
	}

	cleanup := func() error {
		return errors.Join(closeTempFile(tmpPath, tmpFile), removeTempFile(w.fs, tmpPath))
	}

	chmodErr := tmpFile.Chmod(opts.Perm)
	if chmodErr != nil {
		return errors.Join(fmt.Errorf("chmod temp file %q: %w", tmpPath, chmodErr), cleanup())
	}

	writeErr := copyAndSync(tmpFile, tmpPath, reader)
	if writeErr != nil {
		return errors.Join(writeErr, cleanup())
	}

	renameErr := w.fs.Rename(tmpPath, path)
	if renameErr != nil {
		return errors.Join(fmt.Errorf("rename: %w", renameErr), cleanup())
	}

	// The temp path no longer exists; only the descriptor needs closing.
	closeErr := closeTempFile(tmpPath, tmpFile)

	if opts.SyncDir {
		syncErr := syncDir(w.fs, dir)
		if syncErr != nil {
			return errors.Join(syncErr, closeErr)
		}
	}

	return closeErr
}

// WriteWithDefaults writes content atomically using [AtomicWriter.DefaultOptions].
func (w *AtomicWriter) WriteWithDefaults(path string, r io.Reader) error {
	return w.Write(path, r, w.DefaultOptions())
}

// DefaultOptions returns the default atomic write options.
func (*AtomicWriter) DefaultOptions() AtomicWriteOptions {
	return AtomicWriteOptions{
		SyncDir:   true,
		CreateDir: true,
		Perm:      0o644,
		DirPerm:   0o755,
	}
}

// IsTempFile reports whether name looks like a temp file created by
// [AtomicWriter]. Useful to skip leftovers from an aborted write.
func IsTempFile(name string) bool {
	base := filepath.Base(name)

	return strings.HasPrefix(base, ".") && strings.Contains(base, tempSuffix)
}

const (
	tempSuffix         = ".tmp-"
	tempCreateAttempts = 10000
)

var tempCounter atomic.Uint64

func createTempFile(fs FS, dir, base string, perm os.FileMode) (File, string, error) {
	for range tempCreateAttempts {
		seq := tempCounter.Add(1)
		path := filepath.Join(dir, fmt.Sprintf(".%s%s%d", base, tempSuffix, seq))

		file, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
		if err == nil {
			return file, path, nil
		}

		if os.IsExist(err) {
			continue
		}

		return nil, "", fmt.Errorf("create temp file: %w", err)
	}

	return nil, "", fmt.Errorf("exhausted temp file attempts in %q", dir)
}

func copyAndSync(file File, path string, r io.Reader) error {
	_, err := io.Copy(file, r)
	if err != nil {
		return fmt.Errorf("write temp file %q: %w", path, err)
	}

	err = file.Sync()
	if err != nil {
		return fmt.Errorf("sync temp file %q: %w", path, err)
	}

	return nil
}

func syncDir(fs FS, dir string) error {
	f, err := fs.Open(dir)
	if err != nil {
		return errors.Join(ErrAtomicWriteDirSync, fmt.Errorf("open dir %q: %w", dir, err))
	}

	syncErr := f.Sync()
	closeErr := f.Close()

	if syncErr != nil {
		return errors.Join(ErrAtomicWriteDirSync, fmt.Errorf("%q: %w", dir, syncErr), closeErr)
	}

	if closeErr != nil {
		return fmt.Errorf("close dir %q: %w", dir, closeErr)
	}

	return nil
}

func closeTempFile(path string, file File) error {
	err := file.Close()
	if err == nil {
		return nil
	}

	return fmt.Errorf("close temp file %q: %w", path, err)
}

func removeTempFile(fs FS, path string) error {
	err := fs.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove temp file %q: %w", path, err)
	}

	return nil
}
