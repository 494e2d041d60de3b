package commands

import (
	"fmt"
	"path/filepath"

	"git.home.luguber.info/inful/sitegen/internal/pipeline"
)

// CreateCmd implements the 'create' command.
type CreateCmd struct {
	Dir string `arg:"" optional:"" default:"." type:"path" help:"Directory to scaffold the site into"`
}

func (c *CreateCmd) Run(g *Global, _ *CLI) error {
	fmt.Printf("Creating site in %s\n", c.Dir)
	res, err := pipeline.Create(g.Context, c.Dir, pipeline.CreateOptions{Logger: g.Logger})
	if err != nil {
		return err
	}
	for _, p := range res.Created {
		fmt.Printf("  created  %s\n", rel(c.Dir, p))
	}
	for _, p := range res.Existing {
		fmt.Printf("  kept     %s\n", rel(c.Dir, p))
	}
	return nil
}

func rel(base, path string) string {
	if r, err := filepath.Rel(base, path); err == nil {
		return r
	}
	return path
}
