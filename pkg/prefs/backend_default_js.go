//go:build js && wasm

package prefs

// DefaultBackend returns the backend used when [Options.Backend] is nil:
// the page's localStorage, or an in-memory store when the host has none.
func DefaultBackend() Backend {
	storage, err := NewBrowserStorage()
	if err != nil {
		return NewLocalStorageBackend(NewMapStorage())
	}

	return NewLocalStorageBackend(storage)
}
