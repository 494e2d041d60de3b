package config

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
)

// Option overrides a loaded value; options are applied after the file and before validation.
type Option func(*Config)

// WithWorkers overrides build.workers when n > 0.
func WithWorkers(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Build.Workers = n
		}
	}
}

// WithOutputDir overrides output.dir when dir is non-empty.
func WithOutputDir(dir string) Option {
	return func(c *Config) {
		if dir != "" {
			c.Output.Dir = dir
		}
	}
}

// Load reads, expands, decodes, resolves and validates the configuration file.
//
// Overlay order: built-in defaults, then the file (after ${VAR} expansion with
// .env files loaded), then opts. Every failure is a config-category error.
func Load(path string, opts ...Option) (*Config, error) {
	loadEnvFiles()

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "resolve configuration path").
			Fatal().WithContext("path", path).Build()
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ferrors.ConfigError("configuration file not found").WithContext("path", abs).Build()
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "read configuration file").
			Fatal().WithContext("path", abs).Build()
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "parse configuration file").
			Fatal().WithContext("path", abs).Build()
	}
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.path = abs
	cfg.resolvePaths(filepath.Dir(abs))

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML on top of Default() with environment expansion.
// Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	expanded := os.ExpandEnv(string(data))
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

// resolvePaths makes every relative path absolute against base (the config file's directory).
func (c *Config) resolvePaths(base string) {
	abs := func(p string) string {
		if p == "" {
			return ""
		}
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(base, p)
	}
	c.Input.Dir = abs(c.Input.Dir)
	c.Output.Dir = abs(c.Output.Dir)
	c.Media.Dir = abs(c.Media.Dir)
	c.Template.Path = abs(c.Template.Path)
	c.Build.History.Path = abs(c.Build.History.Path)
}
