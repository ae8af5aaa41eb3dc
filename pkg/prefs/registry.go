package prefs

import (
	"sync"
	"sync/atomic"
)

// Registry tracks which record types currently have a live [Record].
//
// There is one slot per record type name, created on first use and never
// removed. A slot is held from a successful load until [Record.Close].
// Safe for concurrent use.
type Registry struct {
	slots sync.Map // map[string]*atomic.Bool
}

// DefaultRegistry is the process-wide registry used when [Options.Registry]
// is nil.
var DefaultRegistry = &Registry{}

// NewRegistry returns an empty registry, isolated from [DefaultRegistry].
func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) slot(id string) *atomic.Bool {
	if val, ok := r.slots.Load(id); ok {
		return val.(*atomic.Bool)
	}

	val, _ := r.slots.LoadOrStore(id, new(atomic.Bool))

	return val.(*atomic.Bool)
}

// Acquire marks id as held. It fails with [ErrInstanceAlreadyLoaded] if id
// is already held. Exactly one of any number of concurrent callers wins.
func (r *Registry) Acquire(id string) error {
	if !r.slot(id).CompareAndSwap(false, true) {
		return ErrInstanceAlreadyLoaded
	}

	return nil
}

// Release frees id. Releasing a free slot is a no-op.
func (r *Registry) Release(id string) {
	r.slot(id).Store(false)
}

// Held reports whether id is currently held.
func (r *Registry) Held(id string) bool {
	val, ok := r.slots.Load(id)
	if !ok {
		return false
	}

	return val.(*atomic.Bool).Load()
}
