package commands

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
)

// run parses args and runs the selected command the way main does.
func run(t *testing.T, args ...string) error {
	t.Helper()
	cli := &CLI{}
	global := &Global{Context: t.Context()}
	parser, err := kong.New(cli,
		kong.Name("sitegen"),
		kong.Vars{"version": "test"},
		kong.Bind(global),
		kong.Exit(func(int) { t.Fatalf("unexpected exit for %v", args) }),
	)
	require.NoError(t, err)
	ctx, err := parser.Parse(args)
	require.NoError(t, err)
	return ctx.Run(global, cli)
}

func TestCreateThenDefaultCommandGenerates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, run(t, "create", dir))
	require.FileExists(t, filepath.Join(dir, "config.yaml"))

	require.NoError(t, run(t, "-c", filepath.Join(dir, "config.yaml")))
	assert.FileExists(t, filepath.Join(dir, "site", "index.html"))
	assert.FileExists(t, filepath.Join(dir, "site", "default.css"))
}

func TestGen_DryRunWritesNothing(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, run(t, "create", dir))

	require.NoError(t, run(t, "-c", filepath.Join(dir, "config.yaml"), "gen", "--dry-run"))
	assert.NoFileExists(t, filepath.Join(dir, "site", "index.html"))
}

func TestGen_OutputOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, run(t, "create", dir))
	out := filepath.Join(t.TempDir(), "public")

	require.NoError(t, run(t, "-c", filepath.Join(dir, "config.yaml"), "gen", "-o", out, "-w", "2", "--force"))
	assert.FileExists(t, filepath.Join(out, "index.html"))
	assert.NoFileExists(t, filepath.Join(dir, "site", "index.html"))
}

func TestGen_MissingConfigExitsWithConfigCode(t *testing.T) {
	err := run(t, "-c", filepath.Join(t.TempDir(), "absent.yaml"), "gen")
	require.Error(t, err)
	assert.Equal(t, ferrors.ExitConfig, ferrors.NewCLIErrorAdapter(false, slog.Default()).ExitCodeFor(err))
}

func TestGen_FailedPageExitsWithBuildCode(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, run(t, "create", dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pages", "broken.md"), []byte("no header\n"), 0o600))

	err := run(t, "-c", filepath.Join(dir, "config.yaml"), "gen")
	require.Error(t, err)
	assert.Equal(t, ferrors.ExitBuild, ferrors.NewCLIErrorAdapter(false, slog.Default()).ExitCodeFor(err))
	assert.FileExists(t, filepath.Join(dir, "site", "index.html"))
}

func TestPublish_NotImplemented(t *testing.T) {
	err := run(t, "publish")
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
	assert.Equal(t, ferrors.ExitUsage, ferrors.NewCLIErrorAdapter(false, slog.Default()).ExitCodeFor(err))
}

func TestParseLogLevel(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	assert.Equal(t, slog.LevelInfo, parseLogLevel(false))
	assert.Equal(t, slog.LevelDebug, parseLogLevel(true))

	t.Setenv(EnvLogLevel, "WARN")
	assert.Equal(t, slog.LevelWarn, parseLogLevel(true))
	t.Setenv(EnvLogLevel, "error")
	assert.Equal(t, slog.LevelError, parseLogLevel(false))
	t.Setenv(EnvLogLevel, "bogus")
	assert.Equal(t, slog.LevelInfo, parseLogLevel(false))
}
