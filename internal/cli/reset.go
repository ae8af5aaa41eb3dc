package cli

import (
	"context"

	"github.com/calvinalkan/prefstore/pkg/prefs"

	flag "github.com/spf13/pflag"
)

// ResetCmd returns the reset command.
func ResetCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("reset", flag.ContinueOnError),
		Usage: "reset",
		Short: "Restore all defaults",
		Long:  "Set every field to its default and write the document.",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			return a.withRecord(true, func(rec *prefs.Record) error {
				err := rec.Reset()
				if err != nil {
					return err
				}

				o.Println("Reset", rec.Path())

				return nil
			})
		},
	}
}
