package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/calvinalkan/prefstore/pkg/prefs"

	flag "github.com/spf13/pflag"
)

// ErrAssignmentRequired is returned when set gets no field=value argument.
var ErrAssignmentRequired = errors.New("expected <field>=<value>")

// SetCmd returns the set command.
func SetCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("set", flag.ContinueOnError),
		Usage: "set <field>=<value>...",
		Short: "Change values",
		Long: `Set one or more fields and write the document once.

Values are read as TOML first (true, 42, 0.5, ["a", "b"], "text") and fall
back to the raw text, so strings need no quotes. Lists also accept a,b,c.
All values are checked before anything is written; an invalid value
changes nothing.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			return execSet(o, a, args)
		},
	}
}

type assignment struct {
	name  string
	value any
}

// parseAssignments converts field=value arguments into typed values.
func parseAssignments(s *prefs.Schema, args []string) ([]assignment, error) {
	if len(args) == 0 {
		return nil, ErrAssignmentRequired
	}

	out := make([]assignment, 0, len(args))

	for _, arg := range args {
		name, text, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("%w, got %q", ErrAssignmentRequired, arg)
		}

		d, ok := s.Field(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", prefs.ErrUnknownField, name)
		}

		v, err := prefs.ParseValue(d, text)
		if err != nil {
			return nil, err
		}

		out = append(out, assignment{name: name, value: v})
	}

	return out, nil
}

// applyAssignments sets all values in one edit batch. Reports whether
// anything changed.
func applyAssignments(rec *prefs.Record, assignments []assignment) (bool, error) {
	changed := false

	err := rec.Update(func(g *prefs.EditGuard) error {
		for _, as := range assignments {
			err := g.SetValue(as.name, as.value)
			if err != nil {
				return err
			}
		}

		changed = g.Record().Dirty()

		return nil
	})

	return changed, err
}

func execSet(o *IO, a *app, args []string) error {
	s, err := a.schema()
	if err != nil {
		return err
	}

	assignments, err := parseAssignments(s, args)
	if err != nil {
		return err
	}

	return a.withRecord(true, func(rec *prefs.Record) error {
		changed, err := applyAssignments(rec, assignments)
		if err != nil {
			return err
		}

		if changed {
			o.Println("Updated", rec.Path())
		} else {
			o.Println("Unchanged")
		}

		return nil
	})
}
