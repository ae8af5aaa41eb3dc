package cli

import (
	"context"
	"errors"

	"github.com/calvinalkan/prefstore/pkg/prefs"

	flag "github.com/spf13/pflag"
)

// ErrFieldRequired is returned when a command needs a field name.
var ErrFieldRequired = errors.New("field name is required")

// GetCmd returns the get command.
func GetCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("get", flag.ContinueOnError),
		Usage: "get <field>",
		Short: "Print one value",
		Long: `Print the current value of a field by name. Lists print comma-separated
and durations in Go notation (1m30s), the same form set accepts.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			return execGet(o, a, args)
		},
	}
}

func execGet(o *IO, a *app, args []string) error {
	if len(args) == 0 {
		return ErrFieldRequired
	}

	return a.withRecord(false, func(rec *prefs.Record) error {
		v, err := rec.Value(args[0])
		if err != nil {
			return err
		}

		o.Println(formatValue(v))

		return nil
	})
}
