package cli

import (
	"context"

	"github.com/calvinalkan/prefstore/pkg/prefs"

	flag "github.com/spf13/pflag"
)

// ShowCmd returns the show command.
func ShowCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("show", flag.ContinueOnError),
		Usage: "show",
		Short: "Show all values",
		Long: `Print every field's current value keyed by storage key, in field order.
Missing keys show their defaults. Use --format to print json or yaml.`,
		Exec: func(_ context.Context, o *IO, _ []string) error {
			return execShow(o, a)
		},
	}
}

func execShow(o *IO, a *app) error {
	return a.withRecord(false, func(rec *prefs.Record) error {
		out, err := renderRecord(rec, a.cfg.Format)
		if err != nil {
			return err
		}

		o.Printf("%s", out)

		return nil
	})
}
