package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/prefstore/pkg/fs"
)

func newTestApp(t *testing.T, fsys fs.FS) *app {
	t.Helper()

	cfg, err := parseConfig([]byte(TestConfig))
	require.NoError(t, err)

	cfg.Format = formatTOML
	cfg.Namespace = filepath.Join(t.TempDir(), "prefs")

	return &app{
		cfg:     cfg,
		env:     map[string]string{},
		workDir: t.TempDir(),
		fsys:    fsys,
		logger:  slog.New(slog.DiscardHandler),
	}
}

func Test_Watch_Creates_Document_Dir_Through_App_FS(t *testing.T) {
	t.Parallel()

	faulty := fs.NewFaulty(fs.NewReal())
	a := newTestApp(t, faulty)

	var out, errOut bytes.Buffer

	err := execWatch(context.Background(), NewIO(nil, &out, &errOut), a, 1)
	require.NoError(t, err)
	require.Contains(t, out.String(), "theme = ")
	require.GreaterOrEqual(t, faulty.Count(fs.OpMkdirAll), uint64(1))

	info, err := os.Stat(a.cfg.Namespace)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func Test_Watch_Fails_When_Document_Dir_Cannot_Be_Created(t *testing.T) {
	t.Parallel()

	faulty := fs.NewFaulty(fs.NewReal(), fs.Fault{Op: fs.OpMkdirAll, Sticky: true})
	a := newTestApp(t, faulty)

	var out, errOut bytes.Buffer

	err := execWatch(context.Background(), NewIO(nil, &out, &errOut), a, 1)
	require.True(t, fs.IsInjected(err), "err=%v", err)
	require.Empty(t, out.String())
}

func Test_App_WriteFile_Goes_Through_App_FS(t *testing.T) {
	t.Parallel()

	write := func(w io.Writer) (int, error) { return io.WriteString(w, "get theme\n") }

	a := newTestApp(t, fs.NewReal())
	path := filepath.Join(t.TempDir(), "state", "prefsctl", "history")

	require.NoError(t, a.writeFile(path, write))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "get theme\n", string(data))

	broken := newTestApp(t, fs.NewFaulty(fs.NewReal(), fs.Fault{Op: fs.OpMkdirAll, Sticky: true}))
	other := filepath.Join(t.TempDir(), "nested", "history")

	err = broken.writeFile(other, write)
	require.True(t, fs.IsInjected(err), "err=%v", err)

	_, err = os.Stat(other)
	require.True(t, os.IsNotExist(err), "stat err=%v", err)
}
