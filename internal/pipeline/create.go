package pipeline

import (
	"context"
	"log/slog"
	"os"

	"git.home.luguber.info/inful/sitegen/internal/executor"
	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
	"git.home.luguber.info/inful/sitegen/internal/history"
	"git.home.luguber.info/inful/sitegen/internal/scaffold"
	"git.home.luguber.info/inful/sitegen/internal/staleness"
	"git.home.luguber.info/inful/sitegen/internal/task"
)

// CreateOptions tunes Create.
type CreateOptions struct {
	// DataDir overrides scaffold contents; empty falls back to $SITEGEN_DATA.
	DataDir string
	Logger  *slog.Logger
}

// Create scaffolds a new project under root. It runs as a single run-once
// task whose targets are the scaffold files; existing files are kept.
func Create(ctx context.Context, root string, opts CreateOptions) (scaffold.Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dataDir := opts.DataDir
	if dataDir == "" {
		dataDir = os.Getenv(scaffold.EnvDataDir)
	}

	tree, err := scaffold.Skeleton()
	if err != nil {
		return scaffold.Result{}, ferrors.WrapError(err, ferrors.CategoryInternal, "load scaffold").Build()
	}
	targets, err := scaffold.Targets(root, tree)
	if err != nil {
		return scaffold.Result{}, ferrors.WrapError(err, ferrors.CategoryInternal, "enumerate scaffold").Build()
	}

	var res scaffold.Result
	g := task.NewGraph()
	if err := g.Add(task.Task{
		ID:      TaskCreate,
		Kind:    task.KindLeaf,
		Doc:     "scaffold a new site in " + root,
		RunOnce: true,
		Targets: targets,
		Action: func(context.Context, task.Deps) (any, error) {
			var err error
			res, err = scaffold.Materialize(root, tree, scaffold.Options{DataDir: dataDir, Logger: logger})
			return res, err
		},
	}); err != nil {
		return res, err
	}

	exec := executor.New(staleness.New(history.NewMemory()), executor.WithWorkers(1), executor.WithLogger(logger))
	rep, err := exec.Run(ctx, g, TaskCreate)
	if err != nil {
		return res, err
	}
	r, _ := rep.Result(TaskCreate)
	switch r.State {
	case executor.StateSucceeded:
		return res, nil
	case executor.StateCanceled:
		return res, ferrors.CanceledError("create canceled").Build()
	default:
		return res, r.Err
	}
}
