package prefs

import (
	"errors"
	"fmt"
	"log/slog"
)

// Load is [Open] with zero [Options].
func Load(s *Schema, namespace string) (*Record, error) {
	return Open(s, namespace, Options{})
}

// LoadOrDefault is [OpenOrDefault] with zero [Options].
func LoadOrDefault(s *Schema, namespace string) *Record {
	return OpenOrDefault(s, namespace, Options{})
}

// LoadTesting is [OpenTesting] with zero [Options].
func LoadTesting(s *Schema) *Record {
	return OpenTesting(s, Options{})
}

// Open loads the record of schema s stored under namespace.
//
// The schema's registry slot is taken first; if another record of the same
// schema is live, Open fails with [ErrInstanceAlreadyLoaded] without touching
// storage. A missing document yields defaults. Every other failure is
// returned as an [*Error] and releases the slot.
//
// The caller owns the returned record and must [Record.Close] it to allow
// another load of the same schema.
func Open(s *Schema, namespace string, opts Options) (*Record, error) {
	return open(s, namespace, opts.resolve(), false)
}

// OpenOrDefault is like [Open] but never fails for storage reasons: any
// error is logged at warn level and the record starts from defaults.
//
// If the location cannot be resolved the record is memory-only and saves
// fail with [ErrPersist] wrapping [ErrNoLocation]. If the document is
// unreadable or corrupt the record keeps its location, so the next save
// replaces the bad document.
//
// A live record of the same schema (or, with [Options.ProcessLock], a lock
// held by another process) is not recoverable: OpenOrDefault panics with
// the [*Error].
func OpenOrDefault(s *Schema, namespace string, opts Options) *Record {
	r, err := open(s, namespace, opts.resolve(), true)
	if err != nil {
		panic(err)
	}

	return r
}

// OpenTesting returns a record on a fresh ephemeral location of the
// configured backend. The registry is not used, so any number of testing
// records of one schema may be live at once. Defaults are written
// immediately. Any failure panics. [Record.Close] removes the location.
func OpenTesting(s *Schema, opts Options) *Record {
	o := opts.resolve()
	start := o.now()

	loc, err := o.backend.Ephemeral(s.File())
	if err != nil {
		panic(&Error{Schema: s.name, Err: fmt.Errorf("%w: ephemeral location: %w", ErrDirectoryResolution, err)})
	}

	r := newRecord(s, o, nil)
	r.location = loc
	r.ephemeral = true

	err = r.persist()
	if err != nil {
		_ = o.backend.Discard(loc)

		panic(err)
	}

	o.observer.ObserveLoad(LoadEvent{
		Schema:   s.name,
		Location: r.Path(),
		Source:   SourceEphemeral,
		Duration: o.now().Sub(start),
	})

	return r
}

func open(s *Schema, namespace string, o options, lenient bool) (*Record, error) {
	if s == nil {
		panic("prefs: nil schema")
	}

	start := o.now()

	err := o.registry.Acquire(s.name)
	if err != nil {
		return nil, &Error{Schema: s.name, Err: err}
	}

	r := newRecord(s, o, o.registry)
	log := o.logger.With("schema", s.name)

	// fail handles a storage error: strict loads give the slot back and
	// return it, lenient loads log it and keep going on defaults.
	fail := func(err error) (*Record, error) {
		e := &Error{Schema: s.name, Location: r.Path(), Err: err}

		if !lenient {
			r.release()

			return nil, e
		}

		log.Warn("prefs: using defaults", "location", e.Location, "error", err)

		o.observer.ObserveLoad(LoadEvent{
			Schema:   s.name,
			Location: e.Location,
			Source:   SourceFallback,
			Err:      err,
			Duration: o.now().Sub(start),
		})

		return r, nil
	}

	loc, err := o.backend.Locate(namespace, s.File())
	if err != nil {
		if !errors.Is(err, ErrDirectoryResolution) {
			err = fmt.Errorf("%w: %w", ErrDirectoryResolution, err)
		}

		return fail(err)
	}

	r.location = loc

	if o.processLock {
		err = r.lockProcess(log)
		if errors.Is(err, ErrInstanceAlreadyLoaded) {
			r.release()

			e := &Error{Schema: s.name, Location: r.Path(), Err: err}
			if lenient {
				panic(e)
			}

			return nil, e
		}

		if err != nil {
			return fail(fmt.Errorf("%w: %w", ErrFileOpen, err))
		}
	}

	data, found, err := o.backend.Read(loc)
	if err != nil {
		if !errors.Is(err, ErrFileOpen) && !errors.Is(err, ErrFileRead) {
			err = fmt.Errorf("%w: %w", ErrFileRead, err)
		}

		return fail(err)
	}

	source := SourceDefaults

	if found {
		doc, err := decodeDocument(data)
		if err != nil {
			return fail(fmt.Errorf("%w: %w", ErrDeserialization, err))
		}

		values, keys := resolveValues(s, doc, func(f Descriptor, key string, raw any) {
			log.Debug("prefs: ignoring value of wrong type", "field", f.Name(), "key", key, "kind", f.Kind().String(), "type", fmt.Sprintf("%T", raw))
		})

		for i, f := range s.fields {
			if keys[i] != "" && keys[i] != f.Key() {
				log.Debug("prefs: read legacy key", "field", f.Name(), "key", keys[i])
			}
		}

		r.values = values
		source = SourceDocument
	}

	o.observer.ObserveLoad(LoadEvent{
		Schema:   s.name,
		Location: r.Path(),
		Source:   source,
		Duration: o.now().Sub(start),
	})

	return r, nil
}

// lockProcess takes the backend's process lock if it has one.
func (r *Record) lockProcess(log *slog.Logger) error {
	pl, ok := r.backend.(ProcessLocker)
	if !ok {
		log.Debug("prefs: backend has no process lock", "backend", fmt.Sprintf("%T", r.backend))

		return nil
	}

	lk, err := pl.LockProcess(r.location)
	if err != nil {
		return err
	}

	r.lock = lk

	return nil
}
