// Package preview implements the serve command: an initial build, a static
// file server over the output directory, and rebuilds on source changes or
// on a schedule, with browsers notified over server-sent events.
package preview

import (
	"context"
	"log/slog"
	"net"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/browser"
	prom "github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/sitegen/internal/config"
	"git.home.luguber.info/inful/sitegen/internal/executor"
	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
	"git.home.luguber.info/inful/sitegen/internal/logfields"
	"git.home.luguber.info/inful/sitegen/internal/metrics"
	"git.home.luguber.info/inful/sitegen/internal/pipeline"
	"git.home.luguber.info/inful/sitegen/internal/task"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

// Options configures Run.
type Options struct {
	ConfigPath    string
	ConfigOptions []config.Option
	// Port overrides serve.port when positive.
	Port int
	// Interval overrides serve.interval when non-zero. Negative values are rejected.
	Interval time.Duration
	// Open launches the default browser once the server is up.
	Open bool
	// Listener replaces the listener Run would open itself.
	Listener net.Listener
	Logger   *slog.Logger
}

// Run builds the site and serves it until ctx is canceled.
func Run(ctx context.Context, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := config.Load(opts.ConfigPath, opts.ConfigOptions...)
	if err != nil {
		return err
	}

	reg := prom.NewRegistry()
	hub := NewHub(logger)
	rb := &rebuilder{
		path:     opts.ConfigPath,
		cfgOpts:  opts.ConfigOptions,
		recorder: metrics.NewPrometheusRecorder(reg),
		hub:      hub,
		logger:   logger,
	}
	if err := rb.setConfig(cfg); err != nil {
		return err
	}
	defer rb.close()

	if err := rb.build(ctx); err != nil && ferrors.GetSeverity(err) == ferrors.SeverityFatal {
		return err
	}

	ln, err := listen(cfg, opts)
	if err != nil {
		return err
	}
	srvOpts := ServerOptions{Root: cfg.Output.Dir, Registry: reg, Logger: logger}
	if cfg.Serve.LiveReload {
		srvOpts.Hub = hub
	}
	srv := NewServer(ln.Addr().String(), srvOpts)

	requests := make(chan struct{}, 1)
	request := func() {
		select {
		case requests <- struct{}{}:
		default:
		}
	}

	// Watcher and scheduler are set up before any goroutine starts; on
	// failure only the listener needs releasing.
	var w *Watcher
	if cfg.Serve.Watch {
		if w, err = NewWatcher(watchSet(cfg), DefaultDebounce, logger); err != nil {
			_ = ln.Close()
			return err
		}
		defer func() { _ = w.Close() }()
	}
	var sched *Scheduler
	if interval := rebuildInterval(cfg, opts); interval != 0 {
		if sched, err = NewScheduler(logger); err != nil {
			_ = ln.Close()
			return err
		}
		defer func() { _ = sched.Stop() }()
		if _, err := sched.Every("rebuild", interval, request); err != nil {
			_ = ln.Close()
			return ferrors.WrapError(err, ferrors.CategoryValidation, "invalid rebuild interval").Build()
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(ln) })
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		logger.Info("Shutting down preview server")
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-requests:
				logger.Info("Change detected; rebuilding site")
				if err := rb.build(gctx); err != nil {
					logger.Warn("Rebuild failed", logfields.Error(err))
				}
			}
		}
	})
	if w != nil {
		g.Go(func() error { return w.Run(gctx, request) })
	}
	if sched != nil {
		sched.Start()
	}

	url := "http://" + ln.Addr().String() + "/"
	if opts.Open {
		if err := browser.OpenURL(url); err != nil {
			logger.Warn("Failed to open browser", slog.String("url", url), logfields.Error(err))
		}
	}
	return g.Wait()
}

func listen(cfg *config.Config, opts Options) (net.Listener, error) {
	if opts.Listener != nil {
		return opts.Listener, nil
	}
	port := cfg.Serve.Port
	if opts.Port > 0 {
		port = opts.Port
	}
	addr := net.JoinHostPort(cfg.Serve.Host, strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "listen for preview server").
			Fatal().WithContext("addr", addr).Build()
	}
	return ln, nil
}

func rebuildInterval(cfg *config.Config, opts Options) time.Duration {
	if opts.Interval != 0 {
		return opts.Interval
	}
	if cfg.Serve.Interval == "" {
		return 0
	}
	d, err := time.ParseDuration(cfg.Serve.Interval)
	if err != nil {
		return 0
	}
	return d
}

// watchSet covers every build input and leaves out what builds write.
func watchSet(cfg *config.Config) WatchSet {
	set := WatchSet{
		Dirs:   []string{cfg.Input.Dir, cfg.Media.Dir, filepath.Dir(cfg.Template.Path)},
		Ignore: []string{cfg.Output.Dir, filepath.Dir(cfg.Build.History.Path)},
	}
	if cfg.Path() != "" {
		set.Files = append(set.Files, cfg.Path())
	}
	return set
}

// rebuilder owns the Builder across rebuilds and replaces it when the
// configuration file changes in a way that affects output.
type rebuilder struct {
	path     string
	cfgOpts  []config.Option
	recorder metrics.Recorder
	hub      *Hub
	logger   *slog.Logger

	mu        sync.Mutex
	builder   *pipeline.Builder
	snapshot  string
	announced bool
}

func (r *rebuilder) setConfig(cfg *config.Config) error {
	b, err := pipeline.NewBuilder(cfg, pipeline.WithLogger(r.logger), pipeline.WithRecorder(r.recorder))
	if err != nil {
		return err
	}
	if r.builder != nil {
		if err := r.builder.Close(); err != nil {
			r.logger.Warn("Closing previous builder", logfields.Error(err))
		}
	}
	r.builder = b
	r.snapshot = cfg.Snapshot()
	return nil
}

// reload picks up an edited configuration file. Serve settings and the
// output directory are fixed for the lifetime of the server.
func (r *rebuilder) reload() {
	cfg, err := config.Load(r.path, r.cfgOpts...)
	if err != nil {
		r.logger.Warn("Configuration reload failed; keeping previous configuration", logfields.Error(err))
		return
	}
	if cfg.Snapshot() == r.snapshot {
		return
	}
	if prev := r.builder.Config(); cfg.Output.Dir != prev.Output.Dir {
		r.logger.Warn("output.dir changed; restart serve to pick it up", logfields.Path(cfg.Output.Dir))
		return
	}
	if err := r.setConfig(cfg); err != nil {
		r.logger.Warn("Configuration reload failed", logfields.Error(err))
		return
	}
	r.logger.Info("Configuration reloaded", slog.String("config", r.snapshot[:12]))
}

func (r *rebuilder) build(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.path != "" {
		r.reload()
	}
	sum, err := r.builder.Gen(ctx)
	// The first build always announces itself so browsers get a baseline.
	if sum != nil && (changed(sum) || !r.announced) {
		r.hub.Broadcast(sum.RunID)
		r.announced = true
	}
	return err
}

// changed reports whether a build wrote or removed any output file.
func changed(sum *pipeline.Summary) bool {
	if sum == nil {
		return false
	}
	if len(sum.Removed) > 0 {
		return true
	}
	for _, res := range sum.Report.Results() {
		if res.Kind == task.KindLeaf && res.State == executor.StateSucceeded {
			return true
		}
	}
	return false
}

func (r *rebuilder) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.builder != nil {
		if err := r.builder.Close(); err != nil {
			r.logger.Warn("Closing run history", logfields.Error(err))
		}
	}
}
