// Package commands holds one kong command per sitegen subcommand.
package commands

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/sitegen/internal/config"
)

// EnvLogLevel overrides the log level chosen by --verbose.
const EnvLogLevel = "SITEGEN_LOG_LEVEL"

// Global carries state shared by every command.
type Global struct {
	Context context.Context
	Logger  *slog.Logger
}

// CLI is the root command line.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"config.yaml" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Create  CreateCmd  `cmd:"" help:"Scaffold a new site; existing files are never overwritten"`
	Gen     GenCmd     `cmd:"" default:"withargs" help:"Render pages and copy media that changed, then remove orphaned output (default)"`
	Serve   ServeCmd   `cmd:"" help:"Build, serve the output directory and rebuild on changes"`
	Publish PublishCmd `cmd:"" help:"Publish the generated site (not implemented)"`
}

// AfterApply runs after flag parsing; set up logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply(g *Global) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(c.Verbose)}))
	slog.SetDefault(logger)
	g.Logger = logger
	if g.Context == nil {
		g.Context = context.Background()
	}
	return nil
}

// parseLogLevel honors SITEGEN_LOG_LEVEL, falling back to the verbose flag.
func parseLogLevel(verbose bool) slog.Level {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(EnvLogLevel))) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// loadConfig reads the root --config file with command overrides applied.
func loadConfig(root *CLI, opts ...config.Option) (*config.Config, error) {
	return config.Load(root.Config, opts...)
}
