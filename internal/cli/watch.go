package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/calvinalkan/prefstore/pkg/prefs"

	flag "github.com/spf13/pflag"
)

// WatchCmd returns the watch command.
func WatchCmd(a *app) *Command {
	flags := flag.NewFlagSet("watch", flag.ContinueOnError)
	count := flags.Int("count", 0, "Exit after printing `n` states (0 = until interrupted)")

	return &Command{
		Flags: flags,
		Usage: "watch [flags]",
		Short: "Print values whenever the document changes",
		Long: `Print the current values, then print them again each time the document is
replaced. Only changes that alter a value are printed. Stops on Ctrl-C.`,
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			return execWatch(ctx, o, a, *count)
		},
	}
}

func execWatch(ctx context.Context, o *IO, a *app, count int) error {
	s, err := a.schema()
	if err != nil {
		return err
	}

	loc, err := a.backend().Locate(a.cfg.Namespace, s.File())
	if err != nil {
		return err
	}

	dir := filepath.Dir(loc)

	err = a.fsys.MkdirAll(dir, 0o755)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer watcher.Close()

	// The directory is watched because atomic replaces swap the inode.
	err = watcher.Add(dir)
	if err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	a.logger.Debug("watching", "dir", dir, "file", s.File())

	last := ""
	printed := 0

	emit := func() error {
		out, err := a.snapshot()
		if err != nil {
			return err
		}

		if printed > 0 && out == last {
			return nil
		}

		if printed > 0 {
			o.Println()
		}

		o.Printf("%s", out)

		last = out
		printed++

		return nil
	}

	err = emit()
	if err != nil {
		return err
	}

	for count <= 0 || printed < count {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Base(ev.Name) != s.File() || !ev.Has(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) {
				continue
			}

			a.logger.Debug("document event", "op", ev.Op.String())

			err := emit()
			if err != nil {
				// A broken document can be fixed while we watch.
				o.ErrPrintln("error:", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			if errors.Is(err, fsnotify.ErrEventOverflow) {
				a.logger.Warn("watch: events dropped", "error", err)

				continue
			}

			return fmt.Errorf("watch: %w", err)
		}
	}

	return nil
}

// snapshot opens the record, renders it and closes it again, so watch never
// holds the record between changes.
func (a *app) snapshot() (string, error) {
	var out string

	err := a.withRecord(false, func(rec *prefs.Record) error {
		var err error

		out, err = renderRecord(rec, a.cfg.Format)

		return err
	})

	return out, err
}
