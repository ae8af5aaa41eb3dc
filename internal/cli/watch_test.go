package cli_test

import (
	"bytes"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/prefstore/internal/cli"
)

// syncBuffer lets the test read output while watch is still writing.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

type watchRun struct {
	out, errOut *syncBuffer
	done        chan int
}

func startWatch(c *cli.CLI, sigCh <-chan os.Signal, args ...string) *watchRun {
	w := &watchRun{out: &syncBuffer{}, errOut: &syncBuffer{}, done: make(chan int, 1)}
	full := append([]string{"prefsctl", "--cwd", c.Dir, "watch"}, args...)

	go func() {
		w.done <- cli.Run(nil, w.out, w.errOut, full, c.Env, sigCh)
	}()

	return w
}

func (w *watchRun) waitFor(t *testing.T, substr string) {
	t.Helper()

	require.Eventually(t, func() bool {
		return strings.Contains(w.out.String(), substr)
	}, 5*time.Second, 10*time.Millisecond, "stdout=%q stderr=%q", w.out.String(), w.errOut.String())
}

func (w *watchRun) wait(t *testing.T) int {
	t.Helper()

	select {
	case code := <-w.done:
		return code
	case <-time.After(5 * time.Second):
		t.Fatalf("watch did not exit; stdout=%q", w.out.String())

		return -1
	}
}

func Test_Watch_Prints_Initial_State_And_Each_Change(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	w := startWatch(c, nil, "--count", "2")

	// The first print happens after the watch is registered.
	w.waitFor(t, "theme = ")

	c.MustRun("set", "theme=midnight")

	require.Equal(t, 0, w.wait(t), "stderr=%s", w.errOut.String())

	out := w.out.String()
	require.Equal(t, 2, strings.Count(out, "font_size = 12"), "stdout=%s", out)
	cli.AssertContains(t, out, "midnight")
}

func Test_Watch_Stops_When_Signalled(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	sigCh := make(chan os.Signal, 1)
	w := startWatch(c, sigCh)

	w.waitFor(t, "theme = ")

	sigCh <- os.Interrupt

	require.Equal(t, 0, w.wait(t))
}

func Test_Watch_Keeps_Running_When_Document_Becomes_Corrupt(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	w := startWatch(c, nil, "--count", "2")

	w.waitFor(t, "theme = ")

	c.WriteDocument("theme = = nope\n")

	require.Eventually(t, func() bool {
		return strings.Contains(w.errOut.String(), "decode document")
	}, 5*time.Second, 10*time.Millisecond)

	c.WriteDocument("theme = 'fixed'\n")

	require.Equal(t, 0, w.wait(t))
	cli.AssertContains(t, w.out.String(), "fixed")
}
