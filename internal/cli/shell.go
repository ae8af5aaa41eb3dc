package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"

	"github.com/calvinalkan/prefstore/pkg/prefs"

	flag "github.com/spf13/pflag"
)

// ShellCmd returns the shell command.
func ShellCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("shell", flag.ContinueOnError),
		Usage: "shell",
		Short: "Edit values interactively",
		Long: `Open the record and read commands until exit. The record stays loaded and
locked for the whole session, so other prefsctl writers wait their turn.

Commands: get <field>, set <field>=<value>..., show, reset, fields, help, exit.
Reads commands line by line from stdin when it is not a terminal.`,
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			return a.withRecord(true, func(rec *prefs.Record) error {
				sh := &shell{app: a, o: o, rec: rec}

				return sh.run(ctx)
			})
		},
	}
}

var shellCommands = []string{"get", "set", "show", "reset", "fields", "help", "exit", "quit"}

// prompter reads one line of input. *liner.State implements it.
type prompter interface {
	Prompt(prompt string) (string, error)
}

type lineReader struct {
	sc *bufio.Scanner
}

func (r *lineReader) Prompt(string) (string, error) {
	if !r.sc.Scan() {
		err := r.sc.Err()
		if err == nil {
			err = io.EOF
		}

		return "", err
	}

	return r.sc.Text(), nil
}

type shell struct {
	app *app
	o   *IO
	rec *prefs.Record
}

func (sh *shell) run(ctx context.Context) error {
	var in prompter

	if f, ok := sh.o.in.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		ln := liner.NewLiner()
		defer ln.Close()

		ln.SetCtrlCAborts(true)
		ln.SetCompleter(sh.complete)

		history := sh.historyFile()
		if history != "" {
			if hf, err := sh.app.fsys.Open(history); err == nil {
				_, _ = ln.ReadHistory(hf)
				_ = hf.Close()
			}
		}

		defer sh.saveHistory(ln, history)

		sh.o.Println("prefsctl shell for", sh.rec.Schema().Name(), "at", sh.rec.Path())
		sh.o.Println("Type 'help' for commands.")

		in = &historyPrompter{ln: ln}
	} else {
		if sh.o.in == nil {
			return errors.New("shell: no input")
		}

		in = &lineReader{sc: bufio.NewScanner(sh.o.in)}
	}

	for ctx.Err() == nil {
		line, err := in.Prompt("prefs> ")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				return nil
			}

			return err
		}

		parts := strings.Fields(line)
		if len(parts) == 0 || strings.HasPrefix(parts[0], "#") {
			continue
		}

		if parts[0] == "exit" || parts[0] == "quit" {
			return nil
		}

		err = sh.exec(parts[0], parts[1:])
		if err != nil {
			sh.o.ErrPrintln("error:", err)
		}
	}

	return nil
}

func (sh *shell) exec(cmd string, args []string) error {
	switch cmd {
	case "help", "?":
		sh.o.Println("get <field>               print one value")
		sh.o.Println("set <field>=<value>...    change values (one write)")
		sh.o.Println("show                      print all values")
		sh.o.Println("reset                     restore defaults")
		sh.o.Println("fields                    list fields")
		sh.o.Println("exit                      leave the shell")
	case "get":
		if len(args) == 0 {
			return ErrFieldRequired
		}

		v, err := sh.rec.Value(args[0])
		if err != nil {
			return err
		}

		sh.o.Println(formatValue(v))
	case "set":
		assignments, err := parseAssignments(sh.rec.Schema(), args)
		if err != nil {
			return err
		}

		changed, err := applyAssignments(sh.rec, assignments)
		if err != nil {
			return err
		}

		if !changed {
			sh.o.Println("Unchanged")
		}
	case "show":
		out, err := renderRecord(sh.rec, sh.app.cfg.Format)
		if err != nil {
			return err
		}

		sh.o.Printf("%s", out)
	case "reset":
		return sh.rec.Reset()
	case "fields":
		for _, f := range sh.rec.Schema().Fields() {
			sh.o.Printf("%-20s %-9s key=%s\n", f.Name(), f.Kind(), f.Key())
		}
	default:
		return errors.New("unknown command " + cmd + " (type 'help' for commands)")
	}

	return nil
}

func (sh *shell) complete(line string) []string {
	var out []string

	cmd, rest, hasArg := strings.Cut(line, " ")
	if !hasArg {
		for _, c := range shellCommands {
			if strings.HasPrefix(c, cmd) {
				out = append(out, c)
			}
		}

		return out
	}

	if cmd != "get" && cmd != "set" {
		return nil
	}

	// Complete the last word as a field name.
	words := strings.Fields(rest)

	last := ""
	if len(words) > 0 && !strings.HasSuffix(rest, " ") {
		last = words[len(words)-1]
		words = words[:len(words)-1]
	}

	prefix := strings.Join(slices.Concat([]string{cmd}, words), " ") + " "

	for _, f := range sh.rec.Schema().Fields() {
		if strings.HasPrefix(f.Name(), last) {
			suffix := ""
			if cmd == "set" {
				suffix = "="
			}

			out = append(out, prefix+f.Name()+suffix)
		}
	}

	return out
}

// historyFile returns $XDG_STATE_HOME/prefsctl/history or
// ~/.local/state/prefsctl/history.
func (sh *shell) historyFile() string {
	env := sh.app.env

	if state := env["XDG_STATE_HOME"]; state != "" {
		return filepath.Join(state, "prefsctl", "history")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".local", "state", "prefsctl", "history")
	}

	return ""
}

func (sh *shell) saveHistory(ln *liner.State, path string) {
	if path == "" {
		return
	}

	err := sh.app.writeFile(path, ln.WriteHistory)
	if err != nil {
		sh.app.logger.Debug("shell: cannot save history", "path", path, "error", err)
	}
}

// writeFile creates or truncates path, creating parent directories, and
// fills it with write.
func (a *app) writeFile(path string, write func(w io.Writer) (int, error)) error {
	err := a.fsys.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return err
	}

	f, err := a.fsys.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}

	_, err = write(f)

	return errors.Join(err, f.Close())
}

// historyPrompter records every non-blank line in the liner history.
type historyPrompter struct {
	ln *liner.State
}

func (p *historyPrompter) Prompt(prompt string) (string, error) {
	line, err := p.ln.Prompt(prompt)
	if err == nil && strings.TrimSpace(line) != "" {
		p.ln.AppendHistory(line)
	}

	return line, err
}
