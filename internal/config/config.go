// Package config defines the sitegen configuration schema and its loader.
//
// A Config is built once per invocation by Load and is treated as read-only
// afterwards by every other component.
package config

// Config is the root of the site configuration file.
type Config struct {
	Input    InputConfig    `yaml:"input"`
	Output   OutputConfig   `yaml:"output"`
	Media    MediaConfig    `yaml:"media"`
	Template TemplateConfig `yaml:"template"`
	Markdown MarkdownConfig `yaml:"markdown"`
	Site     SiteConfig     `yaml:"site,omitempty"`

	// Menu is the explicit ordered page list. When empty, pages are
	// discovered by scanning Input.Dir and reading their metadata header.
	Menu []MenuEntry `yaml:"menu,omitempty"`
	// Sitemap is accepted as an alias for Menu.
	Sitemap []MenuEntry `yaml:"sitemap,omitempty"`

	Build BuildConfig `yaml:"build"`
	Serve ServeConfig `yaml:"serve"`

	path string
}

// InputConfig describes where source documents live.
type InputConfig struct {
	Dir string `yaml:"dir"`
	Ext string `yaml:"ext"`
	Enc string `yaml:"enc"`
}

// OutputConfig describes the rendered output tree.
type OutputConfig struct {
	Dir string `yaml:"dir"`
	Ext string `yaml:"ext"`
	Enc string `yaml:"enc"`
}

// MediaConfig points at static assets copied verbatim into the output.
type MediaConfig struct {
	Dir string `yaml:"dir"`
}

// TemplateConfig points at the single page template.
type TemplateConfig struct {
	Path string `yaml:"path"`
}

// MarkdownConfig tunes the markup converter.
type MarkdownConfig struct {
	// Unsafe passes raw HTML embedded in sources through to the output.
	Unsafe     bool `yaml:"unsafe"`
	HeadingIDs bool `yaml:"heading_ids"`
}

// SiteConfig holds free-form values exposed to the template.
type SiteConfig struct {
	Title  string         `yaml:"title,omitempty"`
	Params map[string]any `yaml:"params,omitempty"`
}

// BuildConfig tunes the executor and run history.
type BuildConfig struct {
	// Workers bounds concurrent leaf tasks; 0 means runtime.NumCPU().
	Workers int           `yaml:"workers"`
	History HistoryConfig `yaml:"history"`
}

// HistoryBackend selects the run-history persistence.
type HistoryBackend string

const (
	HistoryJSON   HistoryBackend = "json"
	HistorySQLite HistoryBackend = "sqlite"
)

// HistoryConfig locates the persisted run history.
type HistoryConfig struct {
	Backend HistoryBackend `yaml:"backend"`
	Path    string         `yaml:"path"`
}

// ServeConfig configures the local preview server.
type ServeConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	LiveReload bool   `yaml:"live_reload"`
	Watch      bool   `yaml:"watch"`
	// Interval triggers periodic rebuilds when set (Go duration, e.g. "30s").
	Interval string `yaml:"interval,omitempty"`
}

// Path returns the absolute path of the file the config was loaded from.
func (c *Config) Path() string {
	if c == nil {
		return ""
	}
	return c.path
}

// ExplicitMenu reports whether pages come from the configured menu list.
func (c *Config) ExplicitMenu() bool {
	return c != nil && len(c.Menu) > 0
}
