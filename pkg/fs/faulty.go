package fs

import (
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"strings"
	"sync"
	"syscall"
)

// Op identifies an operation that [Faulty] can intercept.
type Op string

// Operations that can carry a [Fault].
const (
	OpOpen      Op = "open"
	OpOpenFile  Op = "openfile"
	OpMkdirAll  Op = "mkdirall"
	OpStat      Op = "stat"
	OpRemove    Op = "remove"
	OpRemoveAll Op = "removeall"
	OpRename    Op = "rename"
	OpFileRead  Op = "file.read"
	OpFileWrite Op = "file.write"
	OpFileSync  Op = "file.sync"
	OpFileClose Op = "file.close"
	OpFileChmod Op = "file.chmod"
)

// Fault describes one injected failure.
//
// The zero value of every field except Op is usable: it fails the first
// matching operation with EIO.
type Fault struct {
	// Op is the operation to intercept.
	Op Op

	// PathContains restricts the fault to operations whose path contains
	// this substring. For [OpRename] both paths are checked. Empty matches
	// every path.
	PathContains string

	// After triggers on the Nth matching operation (1-indexed). Zero means 1.
	After uint64

	// Err is returned by the failing operation. Nil means EIO wrapped in a
	// *fs.PathError (or *os.LinkError for rename).
	Err error

	// Partial applies to [OpFileWrite]: half of the buffer is written to the
	// underlying file before the fault fires, leaving a truncated file.
	Partial bool

	// Abort panics with [*AbortError] instead of returning an error. This
	// simulates the process dying mid-operation: no cleanup code runs after
	// the failing call. Tests recover the panic and inspect the disk.
	Abort bool

	// Sticky keeps the fault active after it first fires.
	Sticky bool
}

// AbortError is the panic value used by [Fault.Abort].
type AbortError struct {
	Op   Op
	Path string
	Seq  uint64
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("fs: injected abort op=%s seq=%d path=%q", e.Op, e.Seq, e.Path)
}

// InjectedError marks an error as intentionally injected by [Faulty].
//
// It wraps the underlying error so errors.Is/As continue to work.
type InjectedError struct {
	Err error
}

// Error returns the underlying error's message.
func (e *InjectedError) Error() string {
	return "injected: " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *InjectedError) Unwrap() error {
	return e.Err
}

// IsInjected reports whether err (or any wrapped error) was injected by [Faulty].
func IsInjected(err error) bool {
	var injected *InjectedError

	return errors.As(err, &injected)
}

// Faulty wraps an [FS] and fails selected operations.
//
// Unlike a random chaos wrapper, every fault is deterministic: tests say
// exactly which operation fails and how. Faulty also counts every operation
// it sees, so tests can assert how many renames or syncs a code path did.
//
// Faulty is safe for concurrent use.
type Faulty struct {
	fs FS

	mu     sync.Mutex
	faults []*faultState
	counts map[Op]uint64
}

type faultState struct {
	Fault

	seen  uint64
	fired bool
}

// NewFaulty wraps fs with the given faults. Panics if fs is nil.
func NewFaulty(fs FS, faults ...Fault) *Faulty {
	if fs == nil {
		panic("fs is nil")
	}

	f := &Faulty{fs: fs, counts: make(map[Op]uint64)}
	for _, fault := range faults {
		f.Add(fault)
	}

	return f
}

// Add registers another fault.
func (f *Faulty) Add(fault Fault) {
	if fault.After == 0 {
		fault.After = 1
	}

	f.mu.Lock()
	f.faults = append(f.faults, &faultState{Fault: fault})
	f.mu.Unlock()
}

// Reset removes all faults. Operation counts are kept.
func (f *Faulty) Reset() {
	f.mu.Lock()
	f.faults = nil
	f.mu.Unlock()
}

// Count returns how many times op was attempted, including failed attempts.
func (f *Faulty) Count(op Op) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.counts[op]
}

func (f *Faulty) Open(path string) (File, error) {
	if fault := f.check(OpOpen, path); fault != nil {
		return nil, fault.pathError(OpOpen, path)
	}

	file, err := f.fs.Open(path)
	if err != nil {
		return nil, err
	}

	return &faultyFile{File: file, owner: f, path: path}, nil
}

func (f *Faulty) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	if fault := f.check(OpOpenFile, path); fault != nil {
		return nil, fault.pathError(OpOpenFile, path)
	}

	file, err := f.fs.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}

	return &faultyFile{File: file, owner: f, path: path}, nil
}

func (f *Faulty) MkdirAll(path string, perm os.FileMode) error {
	if fault := f.check(OpMkdirAll, path); fault != nil {
		return fault.pathError(OpMkdirAll, path)
	}

	return f.fs.MkdirAll(path, perm)
}

func (f *Faulty) Stat(path string) (os.FileInfo, error) {
	if fault := f.check(OpStat, path); fault != nil {
		return nil, fault.pathError(OpStat, path)
	}

	return f.fs.Stat(path)
}

func (f *Faulty) Remove(path string) error {
	if fault := f.check(OpRemove, path); fault != nil {
		return fault.pathError(OpRemove, path)
	}

	return f.fs.Remove(path)
}

func (f *Faulty) RemoveAll(path string) error {
	if fault := f.check(OpRemoveAll, path); fault != nil {
		return fault.pathError(OpRemoveAll, path)
	}

	return f.fs.RemoveAll(path)
}

func (f *Faulty) Rename(oldpath, newpath string) error {
	if fault := f.check(OpRename, oldpath, newpath); fault != nil {
		err := fault.Err
		if err == nil {
			err = syscall.EIO
		}

		return &InjectedError{Err: &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: err}}
	}

	return f.fs.Rename(oldpath, newpath)
}

// check counts op and returns the fault that fires for it, if any.
// Aborting faults panic here.
func (f *Faulty) check(op Op, paths ...string) *faultState {
	f.mu.Lock()

	f.counts[op]++
	seq := f.counts[op]

	var hit *faultState

	for _, fault := range f.faults {
		if fault.Op != op || !fault.matches(paths) {
			continue
		}

		if fault.fired && !fault.Sticky {
			continue
		}

		fault.seen++
		if fault.fired || fault.seen >= fault.After {
			fault.fired = true
			hit = fault

			break
		}
	}

	f.mu.Unlock()

	if hit != nil && hit.Abort && !(op == OpFileWrite && hit.Partial) {
		panic(&AbortError{Op: op, Path: paths[0], Seq: seq})
	}

	return hit
}

func (s *faultState) matches(paths []string) bool {
	if s.PathContains == "" {
		return true
	}

	for _, p := range paths {
		if strings.Contains(p, s.PathContains) {
			return true
		}
	}

	return false
}

func (s *faultState) pathError(op Op, path string) error {
	err := s.Err
	if err == nil {
		err = syscall.EIO
	}

	return &InjectedError{Err: &iofs.PathError{Op: string(op), Path: path, Err: err}}
}

type faultyFile struct {
	File

	owner *Faulty
	path  string
}

func (ff *faultyFile) Read(p []byte) (int, error) {
	if fault := ff.owner.check(OpFileRead, ff.path); fault != nil {
		return 0, fault.pathError(OpFileRead, ff.path)
	}

	return ff.File.Read(p)
}

func (ff *faultyFile) Write(p []byte) (int, error) {
	fault := ff.owner.check(OpFileWrite, ff.path)
	if fault == nil {
		return ff.File.Write(p)
	}

	if !fault.Partial {
		return 0, fault.pathError(OpFileWrite, ff.path)
	}

	n, err := ff.File.Write(p[:len(p)/2])
	if err != nil {
		return n, err
	}

	if fault.Abort {
		panic(&AbortError{Op: OpFileWrite, Path: ff.path, Seq: ff.owner.Count(OpFileWrite)})
	}

	return n, fault.pathError(OpFileWrite, ff.path)
}

func (ff *faultyFile) Sync() error {
	if fault := ff.owner.check(OpFileSync, ff.path); fault != nil {
		return fault.pathError(OpFileSync, ff.path)
	}

	return ff.File.Sync()
}

func (ff *faultyFile) Chmod(mode os.FileMode) error {
	if fault := ff.owner.check(OpFileChmod, ff.path); fault != nil {
		return fault.pathError(OpFileChmod, ff.path)
	}

	return ff.File.Chmod(mode)
}

// Close always closes the underlying descriptor, even when a fault fires,
// to avoid leaking file descriptors in tests.
func (ff *faultyFile) Close() error {
	fault := ff.owner.check(OpFileClose, ff.path)
	err := ff.File.Close()

	if fault != nil {
		return fault.pathError(OpFileClose, ff.path)
	}

	return err
}

// Compile-time interface checks.
var (
	_ FS   = (*Faulty)(nil)
	_ File = (*faultyFile)(nil)
)
