package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultsForEmptyFile(t *testing.T) {
	path := writeConfig(t, "")
	cfg, err := Load(path)
	require.NoError(t, err)

	base := filepath.Dir(path)
	require.Equal(t, filepath.Join(base, "pages"), cfg.Input.Dir)
	require.Equal(t, ".md", cfg.Input.Ext)
	require.Equal(t, filepath.Join(base, "site"), cfg.Output.Dir)
	require.Equal(t, ".html", cfg.Output.Ext)
	require.Equal(t, filepath.Join(base, "templates", "default.tmpl"), cfg.Template.Path)
	require.Equal(t, HistoryJSON, cfg.Build.History.Backend)
	require.Equal(t, filepath.Join(base, ".sitegen", "history.json"), cfg.Build.History.Path)
	require.Equal(t, path, cfg.Path())
	require.False(t, cfg.ExplicitMenu())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
input: {dir: src, ext: .mkd}
output: {dir: public}
menu:
  - slug: index
    title: Home
  - about: About
build:
  workers: 3
  history: {backend: sqlite}
serve:
  live_reload: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	base := filepath.Dir(path)
	require.Equal(t, filepath.Join(base, "src"), cfg.Input.Dir)
	require.Equal(t, ".mkd", cfg.Input.Ext)
	require.Equal(t, "utf-8", cfg.Input.Enc)
	require.Equal(t, filepath.Join(base, "public"), cfg.Output.Dir)
	require.Equal(t, []MenuEntry{{Slug: "index", Title: "Home"}, {Slug: "about", Title: "About"}}, cfg.Menu)
	require.Equal(t, 3, cfg.Build.EffectiveWorkers())
	require.Equal(t, filepath.Join(base, ".sitegen", "history.db"), cfg.Build.History.Path)
	require.False(t, cfg.Serve.LiveReload)
	require.True(t, cfg.Serve.Watch)
}

func TestLoad_SitemapAlias(t *testing.T) {
	cfg, err := Load(writeConfig(t, "sitemap:\n  - index: Home\n"))
	require.NoError(t, err)
	require.Equal(t, []MenuEntry{{Slug: "index", Title: "Home"}}, cfg.Menu)
	require.Empty(t, cfg.Sitemap)
}

func TestLoad_OptionsApplyAfterFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, "build: {workers: 2}\n"), WithWorkers(8), WithOutputDir("/tmp/out"))
	require.NoError(t, err)
	require.Equal(t, 8, cfg.Build.Workers)
	require.Equal(t, "/tmp/out", cfg.Output.Dir)
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("SITEGEN_TEST_OUT", "rendered")
	cfg, err := Load(writeConfig(t, "output: {dir: ${SITEGEN_TEST_OUT}}\n"))
	require.NoError(t, err)
	require.Equal(t, "rendered", filepath.Base(cfg.Output.Dir))
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown key", "inptu: {dir: x}\n"},
		{"malformed yaml", "input: [\n"},
		{"ext without dot", "input: {ext: md}\n"},
		{"unknown encoding", "output: {enc: klingon}\n"},
		{"duplicate slug", "menu: [{index: Home}, {index: Again}]\n"},
		{"menu and sitemap", "menu: [{index: Home}]\nsitemap: [{about: About}]\n"},
		{"negative workers", "build: {workers: -1}\n"},
		{"unknown backend", "build: {history: {backend: redis}}\n"},
		{"bad interval", "serve: {interval: soon}\n"},
		{"same dirs", "input: {dir: x}\noutput: {dir: x}\n"},
		{"output contains config", "output: {dir: .}\n"},
		{"output contains input", "input: {dir: site/pages}\n"},
		{"output contains media", "output: {dir: assets}\nmedia: {dir: assets/img}\n"},
		{"output contains template", "output: {dir: templates}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			require.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig), "got %v", err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
	require.Contains(t, err.Error(), "configuration file not found")
}

func TestLoad_OutputBesideSourcesIsAccepted(t *testing.T) {
	cfg, err := Load(writeConfig(t, "output: {dir: site-out}\nbuild: {history: {path: site-out/.history.json}}\n"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(filepath.Dir(cfg.Path()), "site-out"), cfg.Output.Dir)
}

func TestContains(t *testing.T) {
	base := t.TempDir()
	for _, tt := range []struct {
		dir, path string
		want      bool
	}{
		{base, base, true},
		{base, filepath.Join(base, "pages"), true},
		{filepath.Join(base, "site"), filepath.Join(base, "site-pages"), false},
		{filepath.Join(base, "site"), filepath.Join(base, "pages"), false},
		{filepath.Join(base, "a", "b"), filepath.Join(base, "a"), false},
	} {
		got, err := contains(tt.dir, tt.path)
		require.NoError(t, err)
		require.Equal(t, tt.want, got, "%s in %s", tt.path, tt.dir)
	}
}
