package prefs

import (
	"log/slog"
	"testing"
	"time"
)

// DefaultEditHoldLimit is the longest an [EditGuard] may stay open when the
// hold check is enabled.
const DefaultEditHoldLimit = 10 * time.Millisecond

// Options configures the load entry points. The zero value is ready to use.
type Options struct {
	// Backend stores the document. Nil means [DefaultBackend].
	Backend Backend

	// Registry enforces one live record per schema name. Nil means
	// [DefaultRegistry]. Ignored by the testing entry points.
	Registry *Registry

	// Logger receives fallback warnings and migration details.
	// Nil means [slog.Default].
	Logger *slog.Logger

	// Observer is notified of loads and writes. Nil disables notifications.
	Observer Observer

	// ProcessLock additionally holds a non-blocking advisory lock next to
	// the document for the record's lifetime, so a second process loading
	// the same document fails with [ErrInstanceAlreadyLoaded]. Only backends
	// implementing [ProcessLocker] support it; others ignore it.
	ProcessLock bool

	// EditHoldLimit bounds how long an edit guard may stay open. Zero means
	// [DefaultEditHoldLimit]; negative disables the check.
	EditHoldLimit time.Duration

	// CheckEditHold enables the hold check outside of tests. Under
	// "go test" it is always enabled.
	CheckEditHold bool

	// Now is the clock used for the hold check. Nil means [time.Now].
	Now func() time.Time
}

type options struct {
	backend     Backend
	registry    *Registry
	logger      *slog.Logger
	observer    Observer
	processLock bool
	holdLimit   time.Duration
	checkHold   bool
	now         func() time.Time
}

func (o Options) resolve() options {
	out := options{
		backend:     o.Backend,
		registry:    o.Registry,
		logger:      o.Logger,
		observer:    o.Observer,
		processLock: o.ProcessLock,
		holdLimit:   o.EditHoldLimit,
		checkHold:   o.CheckEditHold || testing.Testing(),
		now:         o.Now,
	}

	if out.backend == nil {
		out.backend = DefaultBackend()
	}

	if out.registry == nil {
		out.registry = DefaultRegistry
	}

	if out.logger == nil {
		out.logger = slog.Default()
	}

	if out.observer == nil {
		out.observer = nopObserver{}
	}

	switch {
	case out.holdLimit == 0:
		out.holdLimit = DefaultEditHoldLimit
	case out.holdLimit < 0:
		out.checkHold = false
	}

	if out.now == nil {
		out.now = time.Now
	}

	return out
}
