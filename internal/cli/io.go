package cli

import (
	"fmt"
	"io"
	"sync"
)

// IO handles command output. Warnings are collected and printed to stderr
// both before the first stdout line and at the end, so they survive
// truncation by head or tail.
//
// IO is safe for concurrent use; watch prints from its event loop.
type IO struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	mu       sync.Mutex
	warnings []string
	started  bool
}

// NewIO creates a new IO instance.
func NewIO(in io.Reader, out, errOut io.Writer) *IO {
	return &IO{in: in, out: out, errOut: errOut}
}

// Warn records an actionable warning. Any warning makes the exit code 1,
// but does not suppress normal output.
func (o *IO) Warn(issue string, action string) {
	o.mu.Lock()
	o.warnings = append(o.warnings, fmt.Sprintf("%s: %s", issue, action))
	o.mu.Unlock()
}

// Println writes to stdout.
func (o *IO) Println(a ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.flushWarningsStart()
	_, _ = fmt.Fprintln(o.out, a...)
}

// Printf writes formatted output to stdout.
func (o *IO) Printf(format string, a ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.flushWarningsStart()
	_, _ = fmt.Fprintf(o.out, format, a...)
}

// ErrPrintln writes to stderr.
func (o *IO) ErrPrintln(a ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()

	_, _ = fmt.Fprintln(o.errOut, a...)
}

// Finish prints warnings to stderr and returns the exit code:
// 1 if there were warnings, 0 otherwise.
func (o *IO) Finish() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.flushWarningsStart()

	for _, w := range o.warnings {
		_, _ = fmt.Fprintln(o.errOut, "warning:", w)
	}

	if len(o.warnings) > 0 {
		return 1
	}

	return 0
}

func (o *IO) flushWarningsStart() {
	if !o.started && len(o.warnings) > 0 {
		for _, w := range o.warnings {
			_, _ = fmt.Fprintln(o.errOut, "warning:", w)
		}

		o.started = true
	}
}
