package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestConfig is the project config NewCLI writes: one field of every kind.
const TestConfig = `{
	// JSONC: comments and trailing commas are fine.
	"schema": "Editor",
	"file": "editor",
	"namespace": "com.example.editor",
	"fields": [
		{"name": "theme", "kind": "string", "default": "light"},
		{"name": "font_size", "kind": "int", "default": 12, "legacy": ["fontSize"]},
		{"name": "wrap", "kind": "bool"},
		{"name": "zoom", "kind": "float", "default": 1.5},
		{"name": "recent", "kind": "strings"},
		{"name": "autosave", "kind": "duration", "default": "30s"},
	],
}
`

// CLI provides a clean interface for running CLI commands in tests.
// It manages a temp directory and environment variables.
type CLI struct {
	t   *testing.T
	Dir string
	Env map[string]string
}

// NewCLI creates a test CLI with a temp working directory holding
// [TestConfig], and a private config home.
func NewCLI(t *testing.T) *CLI {
	t.Helper()

	root := t.TempDir()

	c := &CLI{
		t:   t,
		Dir: filepath.Join(root, "work"),
		Env: map[string]string{
			"XDG_CONFIG_HOME": filepath.Join(root, "config"),
			"HOME":            filepath.Join(root, "home"),
		},
	}

	c.WriteFile(ConfigFileName, TestConfig)

	return c
}

// Run executes the CLI with the given args and returns stdout, stderr, and exit code.
// Args should not include "prefsctl" or "--cwd" - those are added automatically.
func (r *CLI) Run(args ...string) (string, string, int) {
	return r.RunWithInput(nil, args...)
}

// RunWithInput executes the CLI with stdin and returns stdout, stderr, and exit code.
// stdin must be nil, a string or an io.Reader; panics otherwise.
func (r *CLI) RunWithInput(stdin any, args ...string) (string, string, int) {
	var inReader io.Reader

	switch v := stdin.(type) {
	case nil:
	case string:
		inReader = strings.NewReader(v)
	case io.Reader:
		inReader = v
	default:
		panic(fmt.Sprintf("stdin must be string or io.Reader, got %T", stdin))
	}

	var outBuf, errBuf bytes.Buffer

	code := Run(inReader, &outBuf, &errBuf, r.args(args), r.Env, nil)

	return outBuf.String(), errBuf.String(), code
}

func (r *CLI) args(args []string) []string {
	return append([]string{"prefsctl", "--cwd", r.Dir}, args...)
}

// MustRun executes the CLI and fails the test if the command returns non-zero.
// Returns trimmed stdout on success.
func (r *CLI) MustRun(args ...string) string {
	r.t.Helper()

	stdout, stderr, code := r.Run(args...)
	if code != 0 {
		r.t.Fatalf("command %v failed with exit code %d\nstderr: %s", args, code, stderr)
	}

	return strings.TrimSpace(stdout)
}

// MustFail executes the CLI and fails the test if the command succeeds.
// Also fails if stdout is not empty. Returns trimmed stderr.
func (r *CLI) MustFail(args ...string) string {
	r.t.Helper()

	stdout, stderr, code := r.Run(args...)
	if code == 0 {
		r.t.Fatalf("command %v should have failed but succeeded\nstdout: %s", args, stdout)
	}

	if stdout != "" {
		r.t.Fatalf("command %v failed but stdout should be empty\nstdout: %s", args, stdout)
	}

	return strings.TrimSpace(stderr)
}

// DocumentPath returns where the test schema's document lives.
func (r *CLI) DocumentPath() string {
	return filepath.Join(r.Env["XDG_CONFIG_HOME"], "com.example.editor", "editor.toml")
}

// ReadDocument returns the document content, or "" if it does not exist.
func (r *CLI) ReadDocument() string {
	r.t.Helper()

	data, err := os.ReadFile(r.DocumentPath())
	if os.IsNotExist(err) {
		return ""
	}

	if err != nil {
		r.t.Fatalf("read document: %v", err)
	}

	return string(data)
}

// WriteDocument writes the document directly, bypassing the CLI.
func (r *CLI) WriteDocument(content string) {
	r.t.Helper()

	writeFile(r.t, r.DocumentPath(), content)
}

// WriteFile writes a file relative to the working directory.
func (r *CLI) WriteFile(name, content string) string {
	r.t.Helper()

	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.Dir, name)
	}

	writeFile(r.t, path, content)

	return path
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	err := os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}

	err = os.WriteFile(path, []byte(content), 0o600)
	if err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// AssertContains fails the test if content doesn't contain substr.
func AssertContains(t *testing.T, content, substr string) {
	t.Helper()

	if !strings.Contains(content, substr) {
		t.Errorf("content should contain %q\ncontent:\n%s", substr, content)
	}
}

// AssertNotContains fails the test if content contains substr.
func AssertNotContains(t *testing.T, content, substr string) {
	t.Helper()

	if strings.Contains(content, substr) {
		t.Errorf("content should NOT contain %q\ncontent:\n%s", substr, content)
	}
}
