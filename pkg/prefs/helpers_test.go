package prefs_test

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/calvinalkan/prefstore/pkg/fs"
	"github.com/calvinalkan/prefstore/pkg/prefs"
)

var (
	notifications = prefs.Bool("notifications", true)
	username      = prefs.String("username", "guest", prefs.Legacy("user", "login"))
	volume        = prefs.Int("volume", 5)
	ratio         = prefs.Float("ratio", 0.5)
	tags          = prefs.Strings("tags", []string{"a"})
	timeout       = prefs.Duration("timeout", 30*time.Second)

	appSchema      = prefs.MustSchema("AppPrefs", "app", notifications, username, volume, ratio, tags, timeout)
	scenarioSchema = prefs.MustSchema("Scenario", "scenario", notifications, username)
)

// fileEnv is an isolated file-backed setup: its own registry and a temp
// namespace directory.
type fileEnv struct {
	dir  string
	opts prefs.Options
}

func newFileEnv(t *testing.T) *fileEnv {
	t.Helper()

	return newFileEnvFS(t, fs.NewReal())
}

func newFileEnvFS(t *testing.T, fsys fs.FS) *fileEnv {
	t.Helper()

	dir := t.TempDir()
	backend := prefs.NewFileBackend(fsys, nil)
	backend.TempDir = t.TempDir()

	return &fileEnv{
		dir: dir,
		opts: prefs.Options{
			Backend:  backend,
			Registry: prefs.NewRegistry(),
		},
	}
}

func (e *fileEnv) path(s *prefs.Schema) string {
	return filepath.Join(e.dir, s.File())
}

func (e *fileEnv) open(t *testing.T, s *prefs.Schema) *prefs.Record {
	t.Helper()

	rec, err := prefs.Open(s, e.dir, e.opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	return rec
}

func (e *fileEnv) writeDoc(t *testing.T, s *prefs.Schema, content string) {
	t.Helper()

	err := os.WriteFile(e.path(s), []byte(content), 0o644)
	if err != nil {
		t.Fatalf("write document: %v", err)
	}
}

func (e *fileEnv) readDoc(t *testing.T, s *prefs.Schema) map[string]any {
	t.Helper()

	data, err := os.ReadFile(e.path(s))
	if err != nil {
		t.Fatalf("read document: %v", err)
	}

	return decodeTOML(t, data)
}

func decodeTOML(t *testing.T, data []byte) map[string]any {
	t.Helper()

	doc := map[string]any{}

	err := toml.Unmarshal(data, &doc)
	if err != nil {
		t.Fatalf("decode document %q: %v", data, err)
	}

	return doc
}

func closeRecord(t *testing.T, rec *prefs.Record) {
	t.Helper()

	err := rec.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
}

// memEnv is an isolated memory-backed setup.
type memEnv struct {
	backend *prefs.MemoryBackend
	opts    prefs.Options
}

const memNamespace = "com.example.test"

func newMemEnv() *memEnv {
	backend := prefs.NewMemoryBackend()

	return &memEnv{
		backend: backend,
		opts:    prefs.Options{Backend: backend, Registry: prefs.NewRegistry()},
	}
}

func (e *memEnv) location(s *prefs.Schema) string {
	loc, _ := e.backend.Locate(memNamespace, s.File())

	return loc
}

func (e *memEnv) open(t *testing.T, s *prefs.Schema) *prefs.Record {
	t.Helper()

	rec, err := prefs.Open(s, memNamespace, e.opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	return rec
}

func (e *memEnv) writes(s *prefs.Schema) int {
	return e.backend.Writes(e.location(s))
}

// fakeClock is a manually advanced clock for the edit hold check.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recoverPanic runs fn and returns the recovered value, or nil.
func recoverPanic(fn func()) (r any) {
	defer func() {
		r = recover()
	}()

	fn()

	return nil
}

func assertErrorIs(t *testing.T, err error, targets ...error) {
	t.Helper()

	for _, target := range targets {
		if !errors.Is(err, target) {
			t.Fatalf("err=%v, want errors.Is %v", err, target)
		}
	}
}
