// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stockroom Contributors

// Package config loads process configuration from a YAML file with
// command-line flag overrides.
package config

import (
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config holds the process-wide settings read by the plugin loader and
// its collaborators.
type Config struct {
	Plugins       PluginConfig        `koanf:"plugins"`
	Server        ServerConfig        `koanf:"server"`
	Database      DatabaseConfig      `koanf:"database"`
	Observability ObservabilityConfig `koanf:"observability"`
	Log           LogConfig           `koanf:"log"`
}

// ServerConfig holds the public HTTP listener settings.
type ServerConfig struct {
	Addr string `koanf:"addr"`
}

// PluginConfig controls plugin discovery and activation.
type PluginConfig struct {
	// Dirs lists filesystem locations scanned for plugin manifests.
	Dirs []string `koanf:"dirs"`
	// Testing forces every discovered plugin active and makes the
	// record store optional.
	Testing bool `koanf:"testing"`
	// TestingSetup re-enables entry-point discovery while Testing is set.
	TestingSetup bool `koanf:"testing_setup"`
	// EnableSettings gates the settings binder.
	EnableSettings bool `koanf:"enable_settings"`
	// EnableApps gates the app binder.
	EnableApps bool `koanf:"enable_apps"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// ObservabilityConfig holds metrics/health endpoint settings.
type ObservabilityConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the built-in configuration defaults.
func Default() Config {
	return Config{
		Plugins: PluginConfig{
			Dirs:           []string{"plugins"},
			EnableSettings: true,
			EnableApps:     true,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Observability: ObservabilityConfig{
			Addr: "127.0.0.1:9100",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from the given YAML file, overlaid by the
// provided flag set. A missing file is not an error when path is empty;
// an explicitly named file that cannot be read is.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	cfg := Default()

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return cfg, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
	} else if _, err := os.Stat("stockroom.yaml"); err == nil {
		if err := k.Load(file.Provider("stockroom.yaml"), yaml.Parser()); err != nil {
			return cfg, oops.Code("CONFIG_READ_FAILED").With("path", "stockroom.yaml").Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return cfg, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	// Environment override for the database URL keeps parity with the
	// migrate tooling, which reads DATABASE_URL directly.
	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}

	return cfg, nil
}
