package commands

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/sitegen/internal/config"
	"git.home.luguber.info/inful/sitegen/internal/executor"
	"git.home.luguber.info/inful/sitegen/internal/pipeline"
)

// GenCmd implements the 'gen' command.
type GenCmd struct {
	DryRun  bool   `name:"dry-run" short:"n" help:"Report which tasks would run without running them"`
	Force   bool   `short:"f" help:"Rebuild everything, ignoring run history"`
	Workers int    `short:"w" help:"Concurrent tasks (0 uses build.workers)"`
	Output  string `short:"o" type:"path" help:"Override output.dir"`
}

func (c *GenCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root, config.WithWorkers(c.Workers), config.WithOutputDir(c.Output))
	if err != nil {
		return err
	}
	b, err := pipeline.NewBuilder(cfg, pipeline.WithLogger(g.Logger), pipeline.WithForce(c.Force))
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	if c.DryRun {
		plan, err := b.Plan()
		if err != nil {
			return err
		}
		printPlan(os.Stdout, plan)
		return nil
	}

	sum, err := b.Gen(g.Context)
	if sum != nil {
		printSummary(os.Stdout, sum)
	}
	return err
}

func printPlan(w io.Writer, plan []executor.Planned) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	dirty := 0
	for _, p := range plan {
		status := "clean"
		if p.Decision.Dirty {
			status = "dirty"
			dirty++
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", status, p.Task.ID, p.Decision.Reason, p.Decision.Path)
	}
	_ = tw.Flush()
	_, _ = fmt.Fprintf(w, "%d of %d tasks would run\n", dirty, len(plan))
}

func printSummary(w io.Writer, sum *pipeline.Summary) {
	for _, r := range sum.Report.Failed() {
		_, _ = fmt.Fprintf(w, "FAILED  %s: %v\n", r.TaskID, r.Err)
	}
	for _, p := range sum.Removed {
		_, _ = fmt.Fprintf(w, "removed %s\n", p)
	}
	counts := sum.Report.Counts()
	_, _ = fmt.Fprintf(w, "%d succeeded, %d up to date, %d failed, %d canceled in %s\n",
		counts[executor.StateSucceeded], counts[executor.StateSkipped],
		counts[executor.StateFailed], counts[executor.StateCanceled],
		sum.Report.Duration.Round(time.Millisecond))
}
