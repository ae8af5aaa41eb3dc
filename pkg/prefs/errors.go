package prefs

import (
	"errors"
	"strings"
	"time"
)

// Sentinel errors. Every error returned by the public API wraps exactly one
// of the load/persist kinds below, so callers branch with [errors.Is]:
//
//	rec, err := prefs.Load(schema, "com.example.app")
//	if errors.Is(err, prefs.ErrDeserialization) {
//	    // document is corrupt
//	}
var (
	// ErrInstanceAlreadyLoaded indicates another live [Record] of the same
	// schema exists in this process (or, with [Options.ProcessLock], in
	// another process).
	//
	// This is never absorbed by the lenient entry points.
	ErrInstanceAlreadyLoaded = errors.New("another instance is already loaded")

	// ErrDirectoryResolution indicates the storage location for a namespace
	// could not be determined.
	ErrDirectoryResolution = errors.New("cannot resolve storage directory")

	// ErrFileOpen indicates the document exists but could not be opened.
	ErrFileOpen = errors.New("open document")

	// ErrFileRead indicates the document was opened but reading it failed.
	ErrFileRead = errors.New("read document")

	// ErrDeserialization indicates the document is not valid TOML.
	ErrDeserialization = errors.New("decode document")

	// ErrPersist indicates the atomic write failed. The previous document is
	// still in place.
	ErrPersist = errors.New("persist document")

	// ErrNoLocation indicates the record has no storage location because
	// resolution failed during a lenient load. Always wrapped in [ErrPersist].
	ErrNoLocation = errors.New("record has no storage location")

	// ErrClosed indicates the record was already closed.
	ErrClosed = errors.New("record closed")

	// ErrUnknownField indicates a field name not present in the schema.
	ErrUnknownField = errors.New("unknown field")

	// ErrInvalidValue indicates a value that cannot be converted to the
	// field's kind.
	ErrInvalidValue = errors.New("invalid value")

	// ErrInvalidSchema indicates a schema declaration error.
	ErrInvalidSchema = errors.New("invalid schema")
)

// Error is the structured error returned by load and persist operations.
//
// The underlying cause comes first, followed by context:
//
//	decode document: toml: expected newline (schema=AppPreferences location=/home/u/.config/app/app.toml)
//
// Use [errors.As] to extract the fields and [errors.Is] for the sentinel.
type Error struct {
	// Schema is the record type name.
	Schema string

	// Location is the backend location, as shown by [Backend.Describe].
	// Empty when resolution failed.
	Location string

	// Err is the underlying cause. It wraps one of the sentinel errors.
	Err error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	var parts []string

	if e.Schema != "" {
		parts = append(parts, "schema="+e.Schema)
	}

	if e.Location != "" {
		parts = append(parts, "location="+e.Location)
	}

	cause := ""
	if e.Err != nil {
		cause = e.Err.Error()
	}

	if len(parts) == 0 {
		return cause
	}

	suffix := "(" + strings.Join(parts, " ") + ")"
	if cause == "" {
		return suffix
	}

	return cause + " " + suffix
}

// Unwrap returns the underlying error for use with [errors.Is] and [errors.As].
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}

// EditHeldTooLongError is the panic value raised when an [EditGuard] stays
// open longer than [Options.EditHoldLimit]. Edit guards are meant for short
// synchronous batches; holding one across slow work is a programming error.
type EditHeldTooLongError struct {
	Schema string
	Held   time.Duration
	Limit  time.Duration
}

func (e *EditHeldTooLongError) Error() string {
	return "prefs: edit guard for " + e.Schema + " held " + e.Held.String() + " (limit " + e.Limit.String() + ")"
}
