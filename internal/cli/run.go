package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/prefstore/pkg/fs"
	"github.com/calvinalkan/prefstore/pkg/prefs"
)

// Run is the main entry point. Returns exit code.
//
// sigCh, if non-nil, cancels the running command when it receives; watch
// and shell stop cleanly on it.
func Run(in io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	globals, err := parseGlobalFlags(args)
	if err != nil {
		fprintln(errOut, "error:", err)
		fprintln(errOut)
		printGlobalFlags(errOut, globals.set)

		return 1
	}

	if globals.help || len(globals.remaining) == 0 {
		printUsage(out, commands(nil), globals.set)

		return 0
	}

	workDir := globals.workDir
	if workDir == "" {
		workDir, err = os.Getwd()
		if err != nil {
			fprintln(errOut, "error: cannot get working directory:", err)

			return 1
		}
	}

	cfg, err := LoadConfig(LoadConfigInput{
		WorkDir:           workDir,
		ConfigPath:        globals.configPath,
		NamespaceOverride: globals.namespace,
		FormatOverride:    globals.format,
		Env:               env,
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	a := &app{
		cfg:     cfg,
		env:     env,
		workDir: workDir,
		fsys:    fs.NewReal(),
		logger:  newLogger(errOut, globals.verbose),
	}

	name := globals.remaining[0]

	var cmd *Command

	for _, c := range commands(a) {
		if c.Name() == name {
			cmd = c

			break
		}
	}

	if cmd == nil {
		fprintln(errOut, "error: unknown command:", name)
		printUsage(errOut, commands(nil), globals.set)

		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	return cmd.Run(ctx, NewIO(in, out, errOut), globals.remaining[1:])
}

// commands returns all commands. a may be nil when only help is needed.
func commands(a *app) []*Command {
	return []*Command{
		ShowCmd(a),
		GetCmd(a),
		SetCmd(a),
		PathCmd(a),
		ResetCmd(a),
		ExportCmd(a),
		ImportCmd(a),
		WatchCmd(a),
		ShellCmd(a),
		PrintConfigCmd(a),
	}
}

type globalFlags struct {
	set        *flag.FlagSet
	workDir    string
	configPath string
	namespace  string
	format     string
	verbose    bool
	help       bool
	remaining  []string
}

func parseGlobalFlags(args []string) (globalFlags, error) {
	var g globalFlags

	g.set = flag.NewFlagSet("prefsctl", flag.ContinueOnError)
	g.set.SetOutput(io.Discard)
	g.set.SetInterspersed(false)

	g.set.StringVarP(&g.workDir, "cwd", "C", "", "Run as if started in `dir`")
	g.set.StringVarP(&g.configPath, "config", "c", "", "Use the specified config `file`")
	g.set.StringVarP(&g.namespace, "namespace", "n", "", "Override the configured namespace")
	g.set.StringVar(&g.format, "format", "", "Output format: toml, json or yaml")
	g.set.BoolVarP(&g.verbose, "verbose", "v", false, "Log debug details to stderr")
	g.set.BoolVarP(&g.help, "help", "h", false, "Show help")

	if len(args) > 0 {
		args = args[1:]
	}

	err := g.set.Parse(args)
	if err != nil {
		return g, err
	}

	g.remaining = g.set.Args()

	return g, nil
}

// app carries what commands need: the resolved config and the logger.
type app struct {
	cfg     Config
	env     map[string]string
	workDir string
	fsys    fs.FS
	logger  *slog.Logger

	// registry is per invocation so concurrent Runs in one process (tests)
	// never contend; the process lock covers other processes.
	registry *prefs.Registry
}

func (a *app) schema() (*prefs.Schema, error) {
	return a.cfg.BuildSchema()
}

func (a *app) backend() *prefs.FileBackend {
	resolver := prefs.ConfigDirResolver{Env: func(key string) string { return a.env[key] }}

	return prefs.NewFileBackend(a.fsys, resolver)
}

// open loads the configured record. Mutating commands pass exclusive=true
// to take the cross-process lock for the duration of the command.
func (a *app) open(exclusive bool) (*prefs.Record, error) {
	s, err := a.schema()
	if err != nil {
		return nil, err
	}

	if a.registry == nil {
		a.registry = prefs.NewRegistry()
	}

	rec, err := prefs.Open(s, a.cfg.Namespace, prefs.Options{
		Backend:     a.backend(),
		Registry:    a.registry,
		Logger:      a.logger,
		ProcessLock: exclusive,
	})
	if errors.Is(err, prefs.ErrInstanceAlreadyLoaded) {
		return nil, fmt.Errorf("%w (is another prefsctl or the application holding it?)", err)
	}

	return rec, err
}

// withRecord opens the record, runs fn and closes it.
func (a *app) withRecord(exclusive bool, fn func(rec *prefs.Record) error) error {
	rec, err := a.open(exclusive)
	if err != nil {
		return err
	}

	return errors.Join(fn(rec), rec.Close())
}

// newLogger logs to w through tint, colored when w is a terminal.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	noColor := true

	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		noColor = false
		w = colorable.NewColorable(f)
	}

	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    noColor,
	}))
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printGlobalFlags(w io.Writer, set *flag.FlagSet) {
	fprintln(w, "Global flags:")
	fprintln(w, strings.TrimRight(set.FlagUsages(), "\n"))
}

func printUsage(w io.Writer, cmds []*Command, set *flag.FlagSet) {
	fprintln(w, `prefsctl - inspect and edit preference documents

Usage: prefsctl [flags] <command> [args]`)
	fprintln(w)
	printGlobalFlags(w, set)
	fprintln(w)
	fprintln(w, "Commands:")

	for _, c := range cmds {
		fprintln(w, c.HelpLine())
	}
}
