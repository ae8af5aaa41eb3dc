package prefs

import (
	"errors"
	"time"
)

// EditGuard batches field changes into a single write.
//
// A guard is obtained from [Record.Edit] and committed by [EditGuard.Close],
// which writes the document once if anything changed. Use [Record.Update]
// to get the commit on every exit path.
//
// Guards are for short synchronous batches. When the hold check is enabled
// (always under "go test", otherwise via [Options.CheckEditHold]) a guard
// open for longer than [Options.EditHoldLimit] makes Close panic with an
// [*EditHeldTooLongError] after writing.
type EditGuard struct {
	r       *Record
	started time.Time
	done    bool

	// unwinding is set when the guard is closed while a panic propagates;
	// the hold check is skipped so the original panic survives.
	unwinding bool
}

// Edit opens an edit guard. Panics if the record is closed or already has
// an open guard.
func (r *Record) Edit() *EditGuard {
	if r.closed {
		panic("prefs: Edit on closed record " + r.schema.name)
	}

	r.mustNotEditing("Edit")

	g := &EditGuard{r: r, started: r.opts.now()}
	r.guard = g

	return g
}

// Set changes the field in memory. Nothing is written until the guard is
// closed.
//
// Panics if the guard is closed.
func (f *Field[T]) Set(g *EditGuard, v T) {
	g.mustBeOpen()

	r := g.r
	i := r.schema.indexOf(f)

	if f.equal(r.values[i].(T), v) {
		return
	}

	r.values[i] = f.clone(v)
	r.dirty = true
}

// SetValue is the untyped form of [Field.Set]; see [Record.SaveValue] for
// accepted values.
func (g *EditGuard) SetValue(name string, raw any) error {
	g.mustBeOpen()

	_, err := g.r.setValue(name, raw)

	return err
}

// Record returns the guarded record, for reads inside the batch.
func (g *EditGuard) Record() *Record { return g.r }

// Close commits the guard: one write if any value changed, none otherwise.
// Only the first call commits; later calls return nil.
func (g *EditGuard) Close() error {
	if g.done {
		return nil
	}

	g.done = true

	r := g.r
	r.guard = nil

	held := r.opts.now().Sub(g.started)

	var err error
	if r.dirty {
		err = r.persist()
	}

	if r.opts.checkHold && !g.unwinding && held > r.opts.holdLimit {
		panic(&EditHeldTooLongError{
			Schema: r.schema.name,
			Held:   held,
			Limit:  r.opts.holdLimit,
		})
	}

	return err
}

// Update runs fn inside an edit guard and commits when fn returns or
// panics. The commit error is joined with fn's error. A panic from fn is
// re-raised unchanged; the hold check does not replace it.
func (r *Record) Update(fn func(g *EditGuard) error) (err error) {
	g := r.Edit()
	returned := false

	defer func() {
		g.unwinding = !returned
		err = errors.Join(err, g.Close())
	}()

	err = fn(g)
	returned = true

	return err
}

func (g *EditGuard) mustBeOpen() {
	if g.done {
		panic("prefs: edit guard for " + g.r.schema.name + " used after Close")
	}
}
