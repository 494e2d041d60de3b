package commands

import (
	"time"

	"git.home.luguber.info/inful/sitegen/internal/config"
	"git.home.luguber.info/inful/sitegen/internal/preview"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Port     int           `short:"p" help:"Port to listen on (0 uses serve.port)"`
	Open     bool          `help:"Open the site in the default browser"`
	Interval time.Duration `help:"Also rebuild on this interval (e.g. 30s)"`
	Workers  int           `short:"w" help:"Concurrent tasks (0 uses build.workers)"`
}

func (c *ServeCmd) Run(g *Global, root *CLI) error {
	return preview.Run(g.Context, preview.Options{
		ConfigPath:    root.Config,
		ConfigOptions: []config.Option{config.WithWorkers(c.Workers)},
		Port:          c.Port,
		Interval:      c.Interval,
		Open:          c.Open,
		Logger:        g.Logger,
	})
}
