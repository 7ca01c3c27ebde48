// Package config holds the workspace-level settings for the build
// orchestrator. Settings come from built-in defaults, optionally overridden
// by a YAML file in the workspace, optionally overridden by command flags.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file looked up in the workspace root when
// no explicit path is given.
const DefaultFileName = "tiler-build.yaml"

// Config describes how the orchestrator drives the toolchain for one
// workspace.
type Config struct {
	// Cargo is the toolchain executable, resolved through PATH when not
	// absolute.
	Cargo string `yaml:"cargo"`
	// Package is the cargo package whose binary this workspace produces.
	Package string `yaml:"package"`
	// Binary overrides the artifact name. Empty means: resolve it from the
	// workspace manifest.
	Binary string `yaml:"binary"`
	// TargetDir is the toolchain output directory, relative to the
	// workspace unless absolute.
	TargetDir string `yaml:"target_dir"`
	// Archive is the vendor archive file, relative to the workspace unless
	// absolute.
	Archive string `yaml:"archive"`
	// Prefix is the installation prefix appended to the destdir.
	Prefix string `yaml:"prefix"`
}

// Default returns the settings for the pop-tiler workspace this tool was
// built for.
func Default() Config {
	return Config{
		Cargo:     "cargo",
		Package:   "pop-tiler-ipc",
		TargetDir: "target",
		Archive:   "vendor.tar.xz",
		Prefix:    "/usr",
	}
}

// Load reads a config file and merges it over the defaults. Keys absent
// from the file keep their default values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first missing required setting.
func (c Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"cargo", c.Cargo},
		{"package", c.Package},
		{"target_dir", c.TargetDir},
		{"archive", c.Archive},
		{"prefix", c.Prefix},
	}
	for _, field := range required {
		if field.value == "" {
			return fmt.Errorf("%s must not be empty", field.name)
		}
	}
	return nil
}
