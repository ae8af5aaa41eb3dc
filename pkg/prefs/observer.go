package prefs

import "time"

// Observer receives load and write notifications. Calls are synchronous, on
// the goroutine performing the operation, so implementations must be fast.
type Observer interface {
	ObserveLoad(LoadEvent)
	ObservePersist(PersistEvent)
}

// LoadSource describes where a loaded record's values came from.
type LoadSource string

const (
	// SourceDocument means an existing document was decoded.
	SourceDocument LoadSource = "document"

	// SourceDefaults means no document existed.
	SourceDefaults LoadSource = "defaults"

	// SourceFallback means a lenient load absorbed an error and used defaults.
	SourceFallback LoadSource = "fallback"

	// SourceEphemeral means a testing load on a fresh location.
	SourceEphemeral LoadSource = "ephemeral"
)

// LoadEvent describes a successful load. Failed strict loads are not
// reported.
type LoadEvent struct {
	Schema   string
	Location string
	Source   LoadSource

	// Err is the absorbed error for [SourceFallback].
	Err error

	Duration time.Duration
}

// PersistResult is the outcome of one document write.
type PersistResult string

const (
	PersistOK PersistResult = "ok"

	// PersistUnsynced means the document was replaced but the directory
	// sync failed, so the rename may not survive a power loss.
	PersistUnsynced PersistResult = "unsynced"

	PersistFailed PersistResult = "error"
)

// PersistEvent describes one attempted document write. Saves skipped
// because nothing changed are not reported.
type PersistEvent struct {
	Schema   string
	Location string
	Result   PersistResult
	Bytes    int
	Duration time.Duration
	Err      error
}

type nopObserver struct{}

func (nopObserver) ObserveLoad(LoadEvent)       {}
func (nopObserver) ObservePersist(PersistEvent) {}
