//go:build !(js && wasm)

package prefs

// DefaultBackend returns the backend used when [Options.Backend] is nil:
// a [FileBackend] on the real filesystem under the user config directory.
func DefaultBackend() Backend {
	return NewFileBackend(nil, nil)
}
