package cli

import (
	"context"

	flag "github.com/spf13/pflag"
)

// PrintConfigCmd returns the print-config command.
func PrintConfigCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("print-config", flag.ContinueOnError),
		Usage: "print-config",
		Short: "Show resolved configuration",
		Long:  "Display the effective configuration, the declared fields and which files it was loaded from.",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			return execPrintConfig(o, a)
		},
	}
}

func execPrintConfig(o *IO, a *app) error {
	cfg := a.cfg

	o.Println("schema=" + cfg.Schema)
	o.Println("file=" + cfg.File)
	o.Println("namespace=" + cfg.Namespace)
	o.Println("format=" + cfg.Format)

	if len(cfg.Fields) > 0 {
		o.Println("")
		o.Println("# fields")

		s, err := a.schema()
		if err != nil {
			return err
		}

		for _, f := range s.Fields() {
			o.Printf("%s kind=%s key=%s default=%s\n", f.Name(), f.Kind(), f.Key(), formatValue(f.DefaultValue()))
		}
	}

	o.Println("")
	o.Println("# sources")

	if cfg.Sources.Global == "" && cfg.Sources.Project == "" {
		o.Println("(defaults only)")
	} else {
		if cfg.Sources.Global != "" {
			o.Println("global_config=" + cfg.Sources.Global)
		}

		if cfg.Sources.Project != "" {
			o.Println("project_config=" + cfg.Sources.Project)
		}
	}

	return nil
}
