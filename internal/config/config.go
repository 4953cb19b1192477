// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads the envsuite run configuration from a YAML file and
// command-line flags.
package config

import (
	"bytes"
	"os"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/envsuite/internal/xdg"
)

// Environment variables consulted by Path and Load.
const (
	EnvConfigPath  = "ENVSUITE_CONFIG"
	EnvDatabaseURL = "DATABASE_URL"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// delim separates nested keys. Environment descriptor keys may contain dots.
const delim = "/"

// Config is the run configuration.
type Config struct {
	Title               string            `koanf:"title" json:"title,omitempty" jsonschema:"description=Name of the root suite"`
	Environment         map[string]string `koanf:"environment" json:"environment,omitempty" jsonschema:"description=Environment descriptor consulted by conditional specs"`
	Database            Database          `koanf:"database" json:"database,omitempty"`
	AbortOnResetFailure bool              `koanf:"abort_on_reset_failure" json:"abort_on_reset_failure,omitempty" jsonschema:"description=Abort remaining specs when a state reset fails"`
	MetricsFile         string            `koanf:"metrics_file" json:"metrics_file,omitempty" jsonschema:"description=Write harness metrics in Prometheus text format to this file"`
	Log                 Log               `koanf:"log" json:"log,omitempty"`
}

// Database selects the database collaborator.
type Database struct {
	Driver string `koanf:"driver" json:"driver,omitempty" jsonschema:"enum=sqlite,enum=postgres"`
	Dir    string `koanf:"dir" json:"dir,omitempty" jsonschema:"description=SQLite data directory"`
	URL    string `koanf:"url" json:"url,omitempty" jsonschema:"description=PostgreSQL connection string"`
}

// Log configures the logger.
type Log struct {
	Format string `koanf:"format" json:"format,omitempty" jsonschema:"enum=text,enum=json"`
	Level  string `koanf:"level" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

var levels = []string{"debug", "info", "warn", "warning", "error"}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Database: Database{Driver: DriverSQLite},
		Log:      Log{Format: "text", Level: "info"},
	}
}

// flagKeys maps flag names registered by RegisterFlags to config keys.
var flagKeys = map[string]string{
	"title":                  "title",
	"db-driver":              "database" + delim + "driver",
	"db-dir":                 "database" + delim + "dir",
	"db-url":                 "database" + delim + "url",
	"abort-on-reset-failure": "abort_on_reset_failure",
	"metrics-file":           "metrics_file",
	"log-format":             "log" + delim + "format",
	"log-level":              "log" + delim + "level",
}

// RegisterFlags adds the configuration flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	def := Default()
	fs.String("title", "", "root suite title")
	fs.StringToString("env", nil, "environment descriptor entries (key=value)")
	fs.String("db-driver", def.Database.Driver, "database driver (sqlite or postgres)")
	fs.String("db-dir", "", "sqlite data directory")
	fs.String("db-url", "", "postgres connection string")
	fs.Bool("abort-on-reset-failure", false, "abort remaining specs when a state reset fails")
	fs.String("metrics-file", "", "write harness metrics to this file")
	fs.String("log-format", def.Log.Format, "log format (text or json)")
	fs.String("log-level", def.Log.Level, "log level (debug, info, warn, error)")
}

// Path resolves the config file to read: explicit wins, then
// ENVSUITE_CONFIG, then the XDG default if it exists. An empty result means
// no file.
func Path(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	p, err := xdg.DefaultConfigFile()
	if err != nil {
		return ""
	}
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}

// Load builds the configuration from defaults, the YAML file at path (if
// non-empty) and the changed flags in flags (if non-nil), in that order of
// precedence. The file is validated against Schema before it is merged.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(delim)

	def := Default()
	for key, val := range map[string]any{
		"database" + delim + "driver": def.Database.Driver,
		"log" + delim + "format":      def.Log.Format,
		"log" + delim + "level":       def.Log.Level,
	} {
		if err := k.Set(key, val); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
		}
	}

	if path != "" {
		provider := file.Provider(path)
		data, err := provider.ReadBytes()
		if err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
		if len(bytes.TrimSpace(data)) > 0 {
			if err := ValidateSchema(data); err != nil {
				return nil, oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
			}
		}
		if err := k.Load(provider, yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, delim, k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, flagValue(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").Wrap(err)
	}

	if flags != nil {
		if env, err := flags.GetStringToString("env"); err == nil && len(env) > 0 {
			if cfg.Environment == nil {
				cfg.Environment = make(map[string]string, len(env))
			}
			for key, val := range env {
				cfg.Environment[key] = val
			}
		}
	}

	if cfg.Database.Driver == DriverPostgres && cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv(EnvDatabaseURL)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func flagValue(flags *pflag.FlagSet, f *pflag.Flag) any {
	if f.Value.Type() == "bool" {
		v, err := flags.GetBool(f.Name)
		if err == nil {
			return v
		}
	}
	return f.Value.String()
}

// Validate checks values the schema cannot see, such as those set by flags.
// Missing capabilities are not errors here; the harness reports them.
func (c *Config) Validate() error {
	if !slices.Contains([]string{DriverSQLite, DriverPostgres}, c.Database.Driver) {
		return oops.Code("CONFIG_INVALID").
			With("field", "database.driver").
			With("value", c.Database.Driver).
			Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return oops.Code("CONFIG_INVALID").
			With("field", "log.format").
			With("value", c.Log.Format).
			Errorf("unsupported log format %q", c.Log.Format)
	}
	if c.Log.Level != "" && !slices.Contains(levels, strings.ToLower(c.Log.Level)) {
		return oops.Code("CONFIG_INVALID").
			With("field", "log.level").
			With("value", c.Log.Level).
			Errorf("unsupported log level %q", c.Log.Level)
	}
	return nil
}
