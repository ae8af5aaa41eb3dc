package cli

import (
	"context"

	flag "github.com/spf13/pflag"
)

// PathCmd returns the path command.
func PathCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("path", flag.ContinueOnError),
		Usage: "path",
		Short: "Print the document location",
		Long:  "Print where the document is stored. The document is not opened and need not exist.",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			return execPath(o, a)
		},
	}
}

func execPath(o *IO, a *app) error {
	s, err := a.schema()
	if err != nil {
		return err
	}

	b := a.backend()

	loc, err := b.Locate(a.cfg.Namespace, s.File())
	if err != nil {
		return err
	}

	o.Println(b.Describe(loc))

	return nil
}
