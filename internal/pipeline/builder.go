package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/sitegen/internal/config"
	"git.home.luguber.info/inful/sitegen/internal/executor"
	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
	"git.home.luguber.info/inful/sitegen/internal/history"
	"git.home.luguber.info/inful/sitegen/internal/logfields"
	"git.home.luguber.info/inful/sitegen/internal/markdown"
	"git.home.luguber.info/inful/sitegen/internal/metrics"
	"git.home.luguber.info/inful/sitegen/internal/site"
	"git.home.luguber.info/inful/sitegen/internal/staleness"
	"git.home.luguber.info/inful/sitegen/internal/task"
	"git.home.luguber.info/inful/sitegen/internal/textenc"
)

// Builder runs builds for one configuration. It may be reused for repeated
// builds (serve mode), which keeps the metadata header cache warm.
type Builder struct {
	cfg       *config.Config
	layout    site.Layout
	resolver  *site.Resolver
	converter *markdown.Converter
	store     history.Store
	oracle    *staleness.Oracle
	executor  *executor.Executor
	recorder  metrics.Recorder
	logger    *slog.Logger
	charset   string
}

// Option configures a Builder.
type Option func(*builderOptions)

type builderOptions struct {
	logger   *slog.Logger
	recorder metrics.Recorder
	force    bool
	store    history.Store
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *builderOptions) { o.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *builderOptions) { o.recorder = r }
}

// WithForce treats every task as dirty.
func WithForce(force bool) Option {
	return func(o *builderOptions) { o.force = force }
}

// WithHistory replaces the configured history store.
func WithHistory(s history.Store) Option {
	return func(o *builderOptions) { o.store = s }
}

// NewBuilder opens the run history and prepares the collaborators for cfg.
func NewBuilder(cfg *config.Config, opts ...Option) (*Builder, error) {
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	o := builderOptions{logger: slog.Default(), recorder: metrics.NoopRecorder{}}
	for _, opt := range opts {
		opt(&o)
	}

	store := o.store
	if store == nil {
		var err error
		store, err = history.Open(cfg.Build.History)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "open run history").
				Fatal().WithContext("path", cfg.Build.History.Path).Build()
		}
	}
	charset, err := textenc.Canonical(cfg.Output.Enc)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "unknown output encoding").Fatal().Build()
	}

	layout := site.LayoutOf(cfg)
	oracle := staleness.New(store, staleness.WithForce(o.force))
	return &Builder{
		cfg:       cfg,
		layout:    layout,
		resolver:  site.NewResolver(layout, cfg.Input.Enc, site.WithLogger(o.logger)),
		converter: markdown.New(markdown.Options{AllowRawHTML: cfg.Markdown.Unsafe, HeadingIDs: cfg.Markdown.HeadingIDs}),
		store:     store,
		oracle:    oracle,
		executor: executor.New(oracle,
			executor.WithWorkers(cfg.Build.EffectiveWorkers()),
			executor.WithLogger(o.logger),
			executor.WithRecorder(o.recorder)),
		recorder: o.recorder,
		logger:   o.logger,
		charset:  charset,
	}, nil
}

// Config returns the configuration the builder was created with.
func (b *Builder) Config() *config.Config { return b.cfg }

// Close flushes and closes the run history.
func (b *Builder) Close() error {
	return b.store.Close()
}

// run is the per-invocation state shared by task actions.
type run struct {
	bc        *BuildContext
	converter *markdown.Converter
	recorder  metrics.Recorder
	logger    *slog.Logger
	charset   string
	removed   []string
}

// Prepare resolves pages and media and registers the task graph. Errors are
// fatal: nothing has run yet.
func (b *Builder) Prepare() (*BuildContext, *task.Graph, error) {
	r, g, err := b.prepare(uuid.NewString())
	if err != nil {
		return nil, nil, err
	}
	return r.bc, g, nil
}

func (b *Builder) prepare(runID string) (*run, *task.Graph, error) {
	pages, err := b.resolver.Resolve(b.cfg.Menu)
	if err != nil {
		return nil, nil, err
	}
	media, err := site.DiscoverMedia(b.layout)
	if err != nil {
		return nil, nil, err
	}
	bc := &BuildContext{
		RunID:  runID,
		Config: b.cfg,
		Layout: b.layout,
		Pages:  pages,
		Media:  media,
		Menu:   site.NewMenu(b.layout, pages),
	}
	r := &run{
		bc:        bc,
		converter: b.converter,
		recorder:  b.recorder,
		logger:    b.logger.With(logfields.RunID(runID)),
		charset:   b.charset,
	}
	g, err := r.register()
	if err != nil {
		return nil, nil, err
	}
	return r, g, nil
}

// Summary describes a finished build.
type Summary struct {
	RunID   string
	Report  *executor.Report
	Removed []string
}

// Gen runs a full build: every dirty page and media task, then the orphan
// reaper. The returned Summary is non-nil whenever tasks were executed; the
// error reports fatal preparation problems, failed tasks or cancellation.
func (b *Builder) Gen(ctx context.Context) (*Summary, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := b.logger.With(logfields.RunID(runID))

	r, g, err := b.prepare(runID)
	if err != nil {
		b.finish(start, metrics.BuildFailed)
		return nil, err
	}
	logger.Info("Build started",
		slog.Int("pages", len(r.bc.Pages)),
		slog.Int("media", len(r.bc.Media)),
		logfields.Workers(b.executor.Workers()),
		slog.String("config", b.cfg.Snapshot()[:12]))

	rep, err := b.executor.Run(ctx, g, GroupPages, GroupMedia)
	if err != nil {
		b.finish(start, metrics.BuildFailed)
		return nil, err
	}
	sum := &Summary{RunID: runID, Report: rep, Removed: r.removed}

	if err := b.store.Flush(); err != nil {
		b.finish(start, metrics.BuildFailed)
		return sum, ferrors.WrapError(err, ferrors.CategoryFileSystem, "persist run history").
			WithContext("path", b.cfg.Build.History.Path).Build()
	}

	counts := rep.Counts()
	logger.Info("Build finished",
		slog.Int("succeeded", counts[executor.StateSucceeded]),
		slog.Int("skipped", counts[executor.StateSkipped]),
		slog.Int("failed", counts[executor.StateFailed]),
		slog.Int("canceled", counts[executor.StateCanceled]),
		slog.Int("removed", len(r.removed)),
		logfields.DurationMS(float64(time.Since(start).Microseconds())/1000))

	switch {
	case counts[executor.StateFailed] > 0:
		b.finish(start, metrics.BuildFailed)
		return sum, ferrors.TaskError(fmt.Sprintf("%d task(s) failed", counts[executor.StateFailed])).
			WithContext("run_id", runID).Build()
	case counts[executor.StateCanceled] > 0 || ctx.Err() != nil:
		b.finish(start, metrics.BuildCanceled)
		return sum, ferrors.CanceledError("build canceled").WithContext("run_id", runID).Build()
	}
	b.finish(start, metrics.BuildSuccess)
	return sum, nil
}

// Plan reports, without running anything, which page and media tasks are
// dirty and why.
func (b *Builder) Plan() ([]executor.Planned, error) {
	_, g, err := b.prepare(uuid.NewString())
	if err != nil {
		return nil, err
	}
	return b.executor.Plan(g, GroupPages, GroupMedia)
}

func (b *Builder) finish(start time.Time, outcome metrics.BuildOutcomeLabel) {
	b.recorder.ObserveBuildDuration(time.Since(start))
	b.recorder.IncBuildOutcome(outcome)
}
