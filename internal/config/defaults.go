package config

import "runtime"

// Default values applied before the config file is decoded over them.
const (
	DefaultInputDir     = "pages"
	DefaultInputExt     = ".md"
	DefaultOutputDir    = "site"
	DefaultOutputExt    = ".html"
	DefaultEncoding     = "utf-8"
	DefaultMediaDir     = "media"
	DefaultTemplatePath = "templates/default.tmpl"
	DefaultHistoryJSON  = ".sitegen/history.json"
	DefaultHistoryDB    = ".sitegen/history.db"
	DefaultServeHost    = "127.0.0.1"
	DefaultServePort    = 8000
)

// Default returns the built-in configuration. Load decodes the file on top of it.
func Default() *Config {
	return &Config{
		Input:    InputConfig{Dir: DefaultInputDir, Ext: DefaultInputExt, Enc: DefaultEncoding},
		Output:   OutputConfig{Dir: DefaultOutputDir, Ext: DefaultOutputExt, Enc: DefaultEncoding},
		Media:    MediaConfig{Dir: DefaultMediaDir},
		Template: TemplateConfig{Path: DefaultTemplatePath},
		Build:    BuildConfig{History: HistoryConfig{Backend: HistoryJSON}},
		Serve: ServeConfig{
			Host:       DefaultServeHost,
			Port:       DefaultServePort,
			LiveReload: true,
			Watch:      true,
		},
	}
}

// EffectiveWorkers resolves the worker count, substituting NumCPU for 0.
func (b BuildConfig) EffectiveWorkers() int {
	if b.Workers > 0 {
		return b.Workers
	}
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 1
}

// applyDefaults fills fields the file may have blanked out.
func applyDefaults(cfg *Config) {
	if cfg.Input.Enc == "" {
		cfg.Input.Enc = DefaultEncoding
	}
	if cfg.Output.Enc == "" {
		cfg.Output.Enc = DefaultEncoding
	}
	if cfg.Build.History.Backend == "" {
		cfg.Build.History.Backend = HistoryJSON
	}
	if cfg.Build.History.Path == "" {
		if cfg.Build.History.Backend == HistorySQLite {
			cfg.Build.History.Path = DefaultHistoryDB
		} else {
			cfg.Build.History.Path = DefaultHistoryJSON
		}
	}
	if cfg.Serve.Host == "" {
		cfg.Serve.Host = DefaultServeHost
	}
	if len(cfg.Menu) == 0 && len(cfg.Sitemap) > 0 {
		cfg.Menu, cfg.Sitemap = cfg.Sitemap, nil
	}
}
