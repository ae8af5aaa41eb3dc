package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Resolver maps a namespace to the directory that holds its documents.
type Resolver interface {
	Resolve(namespace string) (string, error)
}

// ResolverFunc adapts a function to [Resolver].
type ResolverFunc func(namespace string) (string, error)

// Resolve calls fn(namespace).
func (fn ResolverFunc) Resolve(namespace string) (string, error) {
	return fn(namespace)
}

// ConfigDirResolver resolves namespaces under the user configuration
// directory.
//
// An absolute namespace is used as the directory unchanged. Any other
// namespace must be a single path element (for example "com.example.app")
// and is joined onto the first of $XDG_CONFIG_HOME, $HOME/.config, and
// [os.UserConfigDir] that is available.
type ConfigDirResolver struct {
	// Env looks up environment variables. Nil means [os.Getenv].
	Env func(key string) string
}

// Resolve implements [Resolver].
func (r ConfigDirResolver) Resolve(namespace string) (string, error) {
	if namespace == "" {
		return "", fmt.Errorf("%w: empty namespace", ErrDirectoryResolution)
	}

	if filepath.IsAbs(namespace) {
		return filepath.Clean(namespace), nil
	}

	if namespace == "." || namespace == ".." || strings.ContainsAny(namespace, `/\`) {
		return "", fmt.Errorf("%w: namespace %q must be a single path element or an absolute path", ErrDirectoryResolution, namespace)
	}

	base, err := r.configDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(base, namespace), nil
}

func (r ConfigDirResolver) configDir() (string, error) {
	getenv := r.Env
	if getenv == nil {
		getenv = os.Getenv
	}

	if dir := getenv("XDG_CONFIG_HOME"); dir != "" && filepath.IsAbs(dir) {
		return dir, nil
	}

	if home := getenv("HOME"); home != "" {
		return filepath.Join(home, ".config"), nil
	}

	// Env overrides are authoritative in tests; only consult the OS when
	// the real environment is in use.
	if r.Env == nil {
		dir, err := os.UserConfigDir()
		if err == nil && dir != "" {
			return dir, nil
		}
	}

	return "", fmt.Errorf("%w: no config directory (set XDG_CONFIG_HOME or HOME)", ErrDirectoryResolution)
}
