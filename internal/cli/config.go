package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"

	"github.com/calvinalkan/prefstore/pkg/prefs"
)

// Config errors.
var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config file")
	ErrNoSchema           = errors.New("no schema configured (set \"schema\", \"file\" and \"fields\" in .prefsctl.json)")
	ErrInvalidFormat      = errors.New("format must be toml, json or yaml")
)

// Config is the prefsctl configuration. It declares the record schema the
// tool operates on, so prefsctl can inspect any document without knowing
// the application that owns it.
type Config struct {
	// Schema is the record type name.
	Schema string `json:"schema"`

	// File is the document name without extension.
	File string `json:"file"`

	// Namespace is passed to the resolver: a single directory name under
	// the user config directory, or an absolute directory.
	Namespace string `json:"namespace"`

	// Format is the default output format.
	Format string `json:"format,omitempty"`

	Fields []FieldConfig `json:"fields"`

	// Sources tracks which config files were loaded (for diagnostics).
	Sources ConfigSources `json:"-"`
}

// FieldConfig declares one field.
type FieldConfig struct {
	Name    string   `json:"name"`
	Key     string   `json:"key,omitempty"`
	Kind    string   `json:"kind"`
	Default any      `json:"default,omitempty"`
	Legacy  []string `json:"legacy,omitempty"`
}

// ConfigSources tracks which config files were loaded.
type ConfigSources struct {
	Global  string // Path to global config if loaded, empty otherwise
	Project string // Path to project or explicit config if loaded, empty otherwise
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{Format: formatTOML}
}

// ConfigFileName is the project config file name.
const ConfigFileName = ".prefsctl.json"

// getGlobalConfigPath returns $XDG_CONFIG_HOME/prefsctl/config.json, or
// ~/.config/prefsctl/config.json. Empty if neither variable is set.
func getGlobalConfigPath(env map[string]string) string {
	if xdgConfig := env["XDG_CONFIG_HOME"]; xdgConfig != "" {
		return filepath.Join(xdgConfig, "prefsctl", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "prefsctl", "config.json")
	}

	return ""
}

// LoadConfigInput holds the inputs for LoadConfig.
type LoadConfigInput struct {
	WorkDir           string            // directory searched for .prefsctl.json
	ConfigPath        string            // -c/--config flag value
	NamespaceOverride string            // -n/--namespace flag value
	FormatOverride    string            // --format flag value
	Env               map[string]string // environment variables
}

// LoadConfig loads configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config ($XDG_CONFIG_HOME/prefsctl/config.json)
// 3. Project config file (.prefsctl.json in the working directory, if exists)
// 4. Explicit config file via ConfigPath (replaces 3; must exist)
// 5. CLI overrides.
//
// A later layer's field list replaces an earlier one as a whole.
func LoadConfig(input LoadConfigInput) (Config, error) {
	cfg := DefaultConfig()

	globalPath := getGlobalConfigPath(input.Env)
	if globalPath != "" {
		globalCfg, loaded, err := loadConfigFile(globalPath, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg = mergeConfig(cfg, globalCfg)
			cfg.Sources.Global = globalPath
		}
	}

	projectPath := filepath.Join(input.WorkDir, ConfigFileName)
	mustExist := false

	if input.ConfigPath != "" {
		projectPath = input.ConfigPath
		if !filepath.IsAbs(projectPath) {
			projectPath = filepath.Join(input.WorkDir, projectPath)
		}

		mustExist = true
	}

	projectCfg, loaded, err := loadConfigFile(projectPath, mustExist)
	if err != nil {
		return Config{}, err
	}

	if loaded {
		cfg = mergeConfig(cfg, projectCfg)
		cfg.Sources.Project = projectPath
	}

	if input.NamespaceOverride != "" {
		cfg.Namespace = input.NamespaceOverride
	}

	if input.FormatOverride != "" {
		cfg.Format = input.FormatOverride
	}

	if !validFormat(cfg.Format) {
		return Config{}, fmt.Errorf("%w: %q", ErrInvalidFormat, cfg.Format)
	}

	return cfg, nil
}

// loadConfigFile loads a config file. If mustExist is false, a missing file
// is not an error and reports loaded=false.
func loadConfigFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if mustExist {
				return Config{}, false, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
			}

			return Config{}, false, nil
		}

		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigFileRead, path, err)
	}

	cfg, err := parseConfig(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	return cfg, true, nil
}

func parseConfig(data []byte) (Config, error) {
	// Standardize JSONC to JSON
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config

	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.UseNumber()
	dec.DisallowUnknownFields()

	err = dec.Decode(&cfg)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return cfg, nil
}

func mergeConfig(base, overlay Config) Config {
	if overlay.Schema != "" {
		base.Schema = overlay.Schema
	}

	if overlay.File != "" {
		base.File = overlay.File
	}

	if overlay.Namespace != "" {
		base.Namespace = overlay.Namespace
	}

	if overlay.Format != "" {
		base.Format = overlay.Format
	}

	if len(overlay.Fields) > 0 {
		base.Fields = overlay.Fields
	}

	return base
}

// BuildSchema turns the configured fields into a [prefs.Schema].
func (c Config) BuildSchema() (*prefs.Schema, error) {
	if c.Schema == "" || c.File == "" || len(c.Fields) == 0 {
		return nil, ErrNoSchema
	}

	fields := make([]prefs.Descriptor, 0, len(c.Fields))

	for _, fc := range c.Fields {
		kind, err := prefs.ParseKind(fc.Kind)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", fc.Name, err)
		}

		var opts []prefs.FieldOption
		if fc.Key != "" {
			opts = append(opts, prefs.Key(fc.Key))
		}

		if len(fc.Legacy) > 0 {
			opts = append(opts, prefs.Legacy(fc.Legacy...))
		}

		d, err := prefs.NewDescriptor(kind, fc.Name, jsonDefault(fc.Default), opts...)
		if err != nil {
			return nil, err
		}

		fields = append(fields, d)
	}

	return prefs.NewSchema(c.Schema, c.File, fields...)
}

// jsonDefault converts json.Number (from UseNumber) into int64 or float64
// so defaults match the types TOML documents decode to.
func jsonDefault(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}

		f, _ := t.Float64()

		return f
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = jsonDefault(item)
		}

		return out
	default:
		return v
	}
}
