package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
	"git.home.luguber.info/inful/sitegen/internal/textenc"
)

// ValidateConfig checks the loaded configuration; the first problem is returned as a ConfigError.
func ValidateConfig(cfg *Config) error {
	v := &configurationValidator{config: cfg}
	for _, check := range []func() error{
		v.validateDirs,
		v.validateExtensions,
		v.validateEncodings,
		v.validateMenu,
		v.validateBuild,
		v.validateServe,
	} {
		if err := check(); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid configuration").
				Fatal().WithContext("path", cfg.path).Build()
		}
	}
	return nil
}

type configurationValidator struct {
	config *Config
}

func (cv *configurationValidator) validateDirs() error {
	c := cv.config
	if strings.TrimSpace(c.Input.Dir) == "" {
		return fmt.Errorf("input.dir must not be empty")
	}
	if strings.TrimSpace(c.Output.Dir) == "" {
		return fmt.Errorf("output.dir must not be empty")
	}
	if strings.TrimSpace(c.Template.Path) == "" {
		return fmt.Errorf("template.path must not be empty")
	}
	// Everything under output.dir that is not a build target gets reaped.
	for _, src := range []struct{ field, path string }{
		{"input.dir", c.Input.Dir},
		{"media.dir", c.Media.Dir},
		{"template.path", c.Template.Path},
		{"config file", c.path},
	} {
		if src.path == "" {
			continue
		}
		inside, err := contains(c.Output.Dir, src.path)
		if err != nil {
			return err
		}
		if inside {
			return fmt.Errorf("output.dir %q must not contain %s %q", c.Output.Dir, src.field, src.path)
		}
	}
	return nil
}

// contains reports whether path equals dir or lies below it.
func contains(dir, path string) (bool, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false, fmt.Errorf("resolve %q: %w", dir, err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("resolve %q: %w", path, err)
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false, nil
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))), nil
}

func (cv *configurationValidator) validateExtensions() error {
	for field, ext := range map[string]string{"input.ext": cv.config.Input.Ext, "output.ext": cv.config.Output.Ext} {
		if ext == "" {
			return fmt.Errorf("%s must not be empty", field)
		}
		if !strings.HasPrefix(ext, ".") || strings.ContainsAny(ext, `/\`) {
			return fmt.Errorf("%s must start with '.' and contain no separators: %q", field, ext)
		}
	}
	return nil
}

func (cv *configurationValidator) validateEncodings() error {
	if _, err := textenc.Lookup(cv.config.Input.Enc); err != nil {
		return fmt.Errorf("input.enc: %w", err)
	}
	if _, err := textenc.Lookup(cv.config.Output.Enc); err != nil {
		return fmt.Errorf("output.enc: %w", err)
	}
	return nil
}

func (cv *configurationValidator) validateMenu() error {
	c := cv.config
	if len(c.Menu) > 0 && len(c.Sitemap) > 0 {
		return fmt.Errorf("menu and sitemap are aliases; set only one")
	}
	seen := make(map[string]bool, len(c.Menu))
	for i, entry := range c.Menu {
		slug := strings.TrimSpace(entry.Slug)
		if slug == "" {
			return fmt.Errorf("menu[%d]: slug must not be empty", i)
		}
		if strings.HasPrefix(slug, "/") || strings.Contains(slug, "..") {
			return fmt.Errorf("menu[%d]: slug must be relative to input.dir: %q", i, slug)
		}
		if seen[slug] {
			return fmt.Errorf("menu[%d]: duplicate slug %q", i, slug)
		}
		seen[slug] = true
	}
	return nil
}

func (cv *configurationValidator) validateBuild() error {
	b := cv.config.Build
	if b.Workers < 0 {
		return fmt.Errorf("build.workers must be >= 0, got %d", b.Workers)
	}
	switch b.History.Backend {
	case HistoryJSON, HistorySQLite:
	default:
		return fmt.Errorf("build.history.backend must be json or sqlite, got %q", b.History.Backend)
	}
	return nil
}

func (cv *configurationValidator) validateServe() error {
	s := cv.config.Serve
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("serve.port out of range: %d", s.Port)
	}
	if s.Interval != "" {
		d, err := time.ParseDuration(s.Interval)
		if err != nil {
			return fmt.Errorf("serve.interval: %w", err)
		}
		if d < time.Second {
			return fmt.Errorf("serve.interval must be at least 1s, got %s", d)
		}
	}
	return nil
}

// IntervalDuration returns the parsed serve.interval (zero when unset).
func (s ServeConfig) IntervalDuration() time.Duration {
	d, _ := time.ParseDuration(s.Interval)
	return d
}
