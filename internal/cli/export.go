package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/calvinalkan/prefstore/pkg/prefs"

	flag "github.com/spf13/pflag"
)

// ErrFileRequired is returned when export or import gets no file argument.
var ErrFileRequired = errors.New("file argument is required (use - for stdio)")

// ExportCmd returns the export command.
func ExportCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("export", flag.ContinueOnError),
		Usage: "export <file|->",
		Short: "Write current values to a TOML file",
		Long: `Write every field's current value as a TOML document, defaults included.
The target file is replaced atomically. Use - to write to stdout.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			return execExport(o, a, args)
		},
	}
}

func execExport(o *IO, a *app, args []string) error {
	if len(args) == 0 {
		return ErrFileRequired
	}

	target := args[0]

	return a.withRecord(false, func(rec *prefs.Record) error {
		doc := rec.String()

		if target == "-" {
			o.Printf("%s", doc)

			return nil
		}

		path := a.absPath(target)

		err := atomic.WriteFile(path, strings.NewReader(doc))
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}

		o.Println("Exported", path)

		return nil
	})
}

// ImportCmd returns the import command.
func ImportCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("import", flag.ContinueOnError),
		Usage: "import <file|->",
		Short: "Load values from a TOML file",
		Long: `Read a TOML document and apply its values, honoring legacy keys.
Fields the file does not mention keep their values. A value of the wrong
type fails the import and nothing is written. Use - to read stdin.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			return execImport(o, a, args)
		},
	}
}

func execImport(o *IO, a *app, args []string) error {
	if len(args) == 0 {
		return ErrFileRequired
	}

	var (
		data []byte
		err  error
	)

	if args[0] == "-" {
		if o.in == nil {
			return errors.New("import: no stdin")
		}

		data, err = io.ReadAll(o.in)
	} else {
		data, err = os.ReadFile(a.absPath(args[0]))
	}

	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	return a.withRecord(true, func(rec *prefs.Record) error {
		before := rec.String()

		err := rec.Import(data)
		if err != nil {
			return err
		}

		if rec.String() == before {
			o.Warn("import changed nothing", "check that "+args[0]+" uses this schema's keys")

			return nil
		}

		o.Println("Imported into", rec.Path())

		return nil
	})
}

// absPath resolves p against the working directory.
func (a *app) absPath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}

	return filepath.Join(a.workDir, p)
}
