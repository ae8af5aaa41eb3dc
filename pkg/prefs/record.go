package prefs

import (
	"errors"
	"fmt"
	"io"

	"github.com/calvinalkan/prefstore/pkg/fs"
)

// Record is one live, in-memory materialization of a [Schema].
//
// Reads never touch storage. Every write replaces the whole document.
// A Record is not safe for concurrent mutation; share it across goroutines
// only behind a caller-held mutex.
type Record struct {
	schema  *Schema
	opts    options
	backend Backend

	// location is empty when a lenient load could not resolve one.
	location  string
	ephemeral bool

	values []any
	dirty  bool

	// registry is nil for testing records.
	registry *Registry
	lock     io.Closer

	guard  *EditGuard
	closed bool
}

func newRecord(s *Schema, o options, reg *Registry) *Record {
	return &Record{
		schema:   s,
		opts:     o,
		backend:  o.backend,
		values:   s.defaults(),
		registry: reg,
	}
}

// Schema returns the record's schema.
func (r *Record) Schema() *Schema { return r.schema }

// Path returns the backend's description of the document location, such as
// a file path or "localStorage::<key>". Empty for a memory-only record.
func (r *Record) Path() string {
	if r.location == "" {
		return ""
	}

	return r.backend.Describe(r.location)
}

// Dirty reports whether in-memory values differ from the last successful
// write.
func (r *Record) Dirty() bool { return r.dirty }

// String renders the current values as the TOML document a write would
// produce.
func (r *Record) String() string {
	data, err := encodeDocument(r.schema, r.values)
	if err != nil {
		return fmt.Sprintf("<%s: %v>", r.schema.name, err)
	}

	return string(data)
}

// Get returns the field's current value.
//
// Panics if f is not part of the record's schema.
func (f *Field[T]) Get(r *Record) T {
	return f.clone(r.values[r.schema.indexOf(f)].(T))
}

// Save sets the field and writes the document. Saving the current value
// writes nothing, unless an earlier write failed and left changes pending.
//
// Panics while an [EditGuard] is open; use [Field.Set] inside edits.
func (f *Field[T]) Save(r *Record, v T) error {
	r.mustNotEditing("Save")

	if r.closed {
		return r.wrap(ErrClosed)
	}

	i := r.schema.indexOf(f)
	if !f.equal(r.values[i].(T), v) {
		r.values[i] = f.clone(v)
		r.dirty = true
	}

	if !r.dirty {
		return nil
	}

	return r.persist()
}

// FieldValue is one field's current value, as returned by [Record.Values].
type FieldValue struct {
	Name  string
	Key   string
	Kind  Kind
	Value any
}

// Value returns the current value of the named field.
func (r *Record) Value(name string) (any, error) {
	f, ok := r.schema.Field(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}

	return f.cloneAny(r.values[r.schema.indexOf(f)]), nil
}

// Values returns all current values in field order.
func (r *Record) Values() []FieldValue {
	out := make([]FieldValue, len(r.schema.fields))
	for i, f := range r.schema.fields {
		out[i] = FieldValue{Name: f.Name(), Key: f.Key(), Kind: f.Kind(), Value: f.cloneAny(r.values[i])}
	}

	return out
}

// SaveValue is the untyped form of [Field.Save]. raw must be a value the
// field's kind accepts in a document, such as int64 for [KindInt] or "90s"
// for [KindDuration]; [ParseValue] converts command-line text.
func (r *Record) SaveValue(name string, raw any) error {
	r.mustNotEditing("SaveValue")

	if r.closed {
		return r.wrap(ErrClosed)
	}

	_, err := r.setValue(name, raw)
	if err != nil {
		return err
	}

	if !r.dirty {
		return nil
	}

	return r.persist()
}

func (r *Record) setValue(name string, raw any) (bool, error) {
	f, ok := r.schema.Field(name)
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}

	v, ok := f.decodeAny(raw)
	if !ok {
		return false, fmt.Errorf("%w: %v (%T) for %s field %q", ErrInvalidValue, raw, raw, f.Kind(), name)
	}

	i := r.schema.indexOf(f)
	if f.equalAny(r.values[i], v) {
		return false, nil
	}

	r.values[i] = v
	r.dirty = true

	return true, nil
}

// Reset sets every field to its default and writes the document.
func (r *Record) Reset() error {
	r.mustNotEditing("Reset")

	if r.closed {
		return r.wrap(ErrClosed)
	}

	r.values = r.schema.defaults()
	r.dirty = true

	return r.persist()
}

// Import replaces values from a TOML document using the load rules
// (current key, then legacy keys). Fields absent from data keep their
// values; a present value of the wrong type fails with [ErrInvalidValue]
// and changes nothing. Writes once if anything changed.
func (r *Record) Import(data []byte) error {
	r.mustNotEditing("Import")

	if r.closed {
		return r.wrap(ErrClosed)
	}

	doc, err := decodeDocument(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeserialization, err)
	}

	var mismatch error

	values, keys := resolveValues(r.schema, doc, func(f Descriptor, key string, raw any) {
		mismatch = errors.Join(mismatch, fmt.Errorf("%w: %s = %v (%T) for %s field %q", ErrInvalidValue, key, raw, raw, f.Kind(), f.Name()))
	})
	if mismatch != nil {
		return mismatch
	}

	for i, f := range r.schema.fields {
		if keys[i] == "" || f.equalAny(r.values[i], values[i]) {
			continue
		}

		r.values[i] = values[i]
		r.dirty = true
	}

	if !r.dirty {
		return nil
	}

	return r.persist()
}

// Persist writes the document unconditionally.
func (r *Record) Persist() error {
	r.mustNotEditing("Persist")

	if r.closed {
		return r.wrap(ErrClosed)
	}

	return r.persist()
}

// Close releases the record's registry slot and process lock. A testing
// record also removes its ephemeral location. Unsaved values are not
// written. Close is idempotent.
//
// Panics while an [EditGuard] is open.
func (r *Record) Close() error {
	r.mustNotEditing("Close")

	if r.closed {
		return nil
	}

	r.closed = true

	var err error

	if r.ephemeral {
		err = r.backend.Discard(r.location)
		if err != nil {
			err = r.wrap(fmt.Errorf("discard: %w", err))
		}
	}

	r.release()

	return err
}

// release gives back the process lock and the registry slot.
func (r *Record) release() {
	if r.lock != nil {
		_ = r.lock.Close()
		r.lock = nil
	}

	if r.registry != nil {
		r.registry.Release(r.schema.name)
		r.registry = nil
	}
}

func (r *Record) persist() error {
	if r.location == "" {
		return r.wrap(fmt.Errorf("%w: %w", ErrPersist, ErrNoLocation))
	}

	data, err := encodeDocument(r.schema, r.values)
	if err != nil {
		return r.wrap(fmt.Errorf("%w: %w", ErrPersist, err))
	}

	start := r.opts.now()
	err = r.backend.WriteAtomic(r.location, data)

	ev := PersistEvent{
		Schema:   r.schema.name,
		Location: r.Path(),
		Result:   PersistOK,
		Bytes:    len(data),
		Duration: r.opts.now().Sub(start),
	}

	switch {
	case err == nil:
	case errors.Is(err, fs.ErrAtomicWriteDirSync):
		r.opts.logger.Warn("prefs: document replaced but directory sync failed",
			"schema", r.schema.name, "location", ev.Location, "error", err)

		ev.Result = PersistUnsynced
		ev.Err = err
	default:
		ev.Result = PersistFailed
		ev.Err = err
		r.opts.observer.ObservePersist(ev)

		return r.wrap(fmt.Errorf("%w: %w", ErrPersist, err))
	}

	r.dirty = false
	r.opts.observer.ObservePersist(ev)

	return nil
}

func (r *Record) wrap(err error) error {
	return &Error{Schema: r.schema.name, Location: r.Path(), Err: err}
}

func (r *Record) mustNotEditing(op string) {
	if r.guard != nil {
		panic("prefs: " + op + " called on " + r.schema.name + " while an edit guard is open")
	}
}
