// Package executor runs a task graph: setup tasks first and sequentially,
// then the dirty members of the requested groups on a bounded worker pool,
// then cleanup tasks.
//
// Failures are recorded per task and never abort siblings. Only a failed
// setup blocks the tasks that depend on it. Cancellation stops dispatching;
// actions already started run to completion.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
	"git.home.luguber.info/inful/sitegen/internal/logfields"
	"git.home.luguber.info/inful/sitegen/internal/metrics"
	"git.home.luguber.info/inful/sitegen/internal/staleness"
	"git.home.luguber.info/inful/sitegen/internal/task"
)

// Oracle is the staleness view the executor needs.
type Oracle interface {
	Check(t *task.Task) staleness.Decision
	MarkDone(t *task.Task)
	Forget(t *task.Task)
}

// Executor schedules and runs tasks.
type Executor struct {
	oracle   Oracle
	workers  int
	logger   *slog.Logger
	recorder metrics.Recorder
}

// Option configures an Executor.
type Option func(*Executor)

// WithWorkers bounds concurrent leaf tasks; n <= 0 means runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(e *Executor) { e.workers = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(e *Executor) {
		if r != nil {
			e.recorder = r
		}
	}
}

// New returns an Executor that consults oracle for every task.
func New(oracle Oracle, opts ...Option) *Executor {
	e := &Executor{
		oracle:   oracle,
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers <= 0 {
		e.workers = max(runtime.NumCPU(), 1)
	}
	return e
}

// Workers returns the effective pool size.
func (e *Executor) Workers() int { return e.workers }

// Planned is one entry of a dry-run plan.
type Planned struct {
	Task     *task.Task
	Decision staleness.Decision
}

// Plan evaluates staleness for the tasks ids denote without running anything.
func (e *Executor) Plan(g *task.Graph, ids ...string) ([]Planned, error) {
	members, err := g.Expand(ids...)
	if err != nil {
		return nil, err
	}
	out := make([]Planned, 0, len(members))
	for _, m := range members {
		out = append(out, Planned{Task: m, Decision: e.oracle.Check(m)})
	}
	return out, nil
}

// Run executes the requested leaf and group tasks of g, followed by every
// cleanup task in g. The returned error is non-nil only when the request
// itself is invalid; task failures are reported in the Report.
func (e *Executor) Run(ctx context.Context, g *task.Graph, ids ...string) (*Report, error) {
	members, err := g.Expand(ids...)
	if err != nil {
		return nil, err
	}

	rep := newReport()
	e.recorder.SetWorkers(e.workers)

	for _, m := range members {
		rep.track(m)
	}

	dirty := e.evaluate(ctx, rep, members)
	var cleanups []*task.Task
	for _, id := range g.ByKind(task.KindCleanup) {
		t, _ := g.Task(id)
		cleanups = append(cleanups, t)
	}
	setups := e.runSetups(ctx, g, rep, append(slices.Clone(dirty), cleanups...))
	e.dispatch(ctx, g, rep, dirty, setups)
	e.settleGroups(g, rep, ids)
	e.runCleanup(ctx, g, rep, setups)

	rep.Duration = time.Since(rep.Started)
	return rep, nil
}

// evaluate asks the oracle about each member and returns the dirty ones.
func (e *Executor) evaluate(ctx context.Context, rep *Report, members []*task.Task) []*task.Task {
	var dirty []*task.Task
	for _, m := range members {
		if ctx.Err() != nil {
			e.cancel(rep, m)
			continue
		}
		d := e.oracle.Check(m)
		if !d.Dirty {
			e.setState(rep, m, StateSkipped, func(r *Result) { r.Reason = d.Reason })
			e.logger.Debug("Task up to date", logfields.TaskID(m.ID), logfields.Reason(string(d.Reason)))
			continue
		}
		e.setReason(rep, m.ID, d.Reason)
		e.logger.Debug("Task dirty", logfields.TaskID(m.ID), logfields.Reason(string(d.Reason)), logfields.Path(d.Path))
		dirty = append(dirty, m)
	}
	return dirty
}

// setupOutputs holds the values produced by setup tasks in this run.
type setupOutputs map[string]any

// runSetups runs, in dependency order, every setup one of needers requires.
// Each setup runs at most once per run.
func (e *Executor) runSetups(ctx context.Context, g *task.Graph, rep *Report, needers []*task.Task) setupOutputs {
	outputs := setupOutputs{}
	ids := make([]string, 0, len(needers))
	for _, t := range needers {
		ids = append(ids, t.ID)
	}
	order, err := g.SetupOrder(ids...)
	if err != nil {
		// Validate rejects cycles before a run; reaching this is a bug.
		e.logger.Error("Cannot order setup tasks", logfields.Error(err))
		return outputs
	}

	for _, id := range order {
		t, _ := g.Task(id)
		rep.track(t)
		if ctx.Err() != nil {
			e.cancel(rep, t)
			continue
		}
		if blocker := e.blockedBy(g, rep, t); blocker != "" {
			e.block(rep, t, blocker)
			continue
		}
		value, ok := e.execute(ctx, rep, t, task.NewDeps(outputs))
		if ok {
			outputs[id] = value
		}
	}
	return outputs
}

// dispatch runs the dirty members on the worker pool.
func (e *Executor) dispatch(ctx context.Context, g *task.Graph, rep *Report, dirty []*task.Task, setups setupOutputs) {
	var eg errgroup.Group
	eg.SetLimit(e.workers)
	deps := task.NewDeps(setups)

	for _, t := range dirty {
		if ctx.Err() != nil {
			e.cancel(rep, t)
			continue
		}
		if blocker := e.blockedBy(g, rep, t); blocker != "" {
			e.block(rep, t, blocker)
			continue
		}
		eg.Go(func() error {
			// The slot may have opened after cancellation; an action that has
			// not started yet is not in flight.
			if ctx.Err() != nil {
				e.cancel(rep, t)
				return nil
			}
			e.execute(ctx, rep, t, deps)
			return nil
		})
	}
	_ = eg.Wait()
}

// settleGroups derives each requested group's state from its members.
func (e *Executor) settleGroups(g *task.Graph, rep *Report, ids []string) {
	for _, id := range ids {
		t, ok := g.Task(id)
		if !ok || t.Kind != task.KindGroup {
			continue
		}
		rep.track(t)
		if rep.state(id).Terminal() {
			continue
		}

		var failed, canceled int
		for _, m := range t.Members {
			switch rep.state(m) {
			case StateFailed:
				failed++
			case StateCanceled:
				canceled++
			}
		}
		switch {
		case failed > 0:
			err := ferrors.TaskError(fmt.Sprintf("%d of %d members failed", failed, len(t.Members))).
				WithContext("group", id).Build()
			e.setState(rep, t, StateFailed, func(r *Result) { r.Err = err })
		case canceled > 0:
			e.cancel(rep, t)
		default:
			e.setState(rep, t, StateRunning, nil)
			e.setState(rep, t, StateSucceeded, nil)
		}
		e.logger.Debug("Group settled", logfields.Group(id), logfields.TaskState(string(rep.state(id))))
	}
}

// runCleanup runs every cleanup task after the groups have settled.
func (e *Executor) runCleanup(ctx context.Context, g *task.Graph, rep *Report, setups setupOutputs) {
	for _, id := range g.ByKind(task.KindCleanup) {
		t, _ := g.Task(id)
		rep.track(t)
		if ctx.Err() != nil {
			e.cancel(rep, t)
			continue
		}
		if blocker := e.blockedBy(g, rep, t); blocker != "" {
			e.block(rep, t, blocker)
			continue
		}
		e.execute(ctx, rep, t, task.NewDeps(setups))
	}
}

// execute runs one action and records the outcome. Only leaf outcomes are
// remembered by the oracle. Actions receive a context that is not canceled
// with ctx so partial writes are avoided.
func (e *Executor) execute(ctx context.Context, rep *Report, t *task.Task, deps task.Deps) (any, bool) {
	e.setState(rep, t, StateRunning, nil)
	start := time.Now()

	value, err := safeCall(context.WithoutCancel(ctx), t, deps)
	elapsed := time.Since(start)
	e.recorder.ObserveTaskDuration(string(t.Kind), elapsed)

	if err != nil {
		if t.Kind == task.KindLeaf {
			e.oracle.Forget(t)
		}
		e.setState(rep, t, StateFailed, func(r *Result) { r.Err = err; r.Duration = elapsed })
		e.logger.Error("Task failed",
			logfields.TaskID(t.ID),
			logfields.TaskKind(string(t.Kind)),
			logfields.DurationMS(float64(elapsed.Microseconds())/1000),
			logfields.Error(err))
		return nil, false
	}

	if t.Kind == task.KindLeaf {
		e.oracle.MarkDone(t)
	}
	e.setState(rep, t, StateSucceeded, func(r *Result) { r.Duration = elapsed })
	e.logger.Debug("Task succeeded",
		logfields.TaskID(t.ID),
		logfields.DurationMS(float64(elapsed.Microseconds())/1000))
	return value, true
}

func safeCall(ctx context.Context, t *task.Task, deps task.Deps) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ferrors.InternalError(fmt.Sprintf("task panicked: %v", r)).
				WithContext("task_id", t.ID).
				WithContext("stack", string(debug.Stack())).
				Build()
		}
	}()
	return t.Action(ctx, deps)
}

// blockedBy returns the first setup prerequisite of t (direct or transitive)
// that did not succeed, or "" when all did.
func (e *Executor) blockedBy(g *task.Graph, rep *Report, t *task.Task) string {
	if len(t.Setup) == 0 {
		return ""
	}
	order, err := g.SetupOrder(t.Setup...)
	if err != nil {
		return strings.Join(t.Setup, ",")
	}
	for _, id := range order {
		if rep.state(id) != StateSucceeded {
			return id
		}
	}
	return ""
}

// block marks t failed because blocker did not succeed; a canceled blocker
// cancels t instead.
func (e *Executor) block(rep *Report, t *task.Task, blocker string) {
	if rep.state(blocker) == StateCanceled {
		e.cancel(rep, t)
		return
	}
	err := ferrors.TaskError("blocked by failed setup task").
		WithContext("task_id", t.ID).
		WithContext("setup", blocker).
		Build()
	if res, ok := rep.Result(blocker); ok && res.Err != nil {
		err = ferrors.WrapError(res.Err, ferrors.CategoryTask, "blocked by failed setup task").
			WithContext("task_id", t.ID).
			WithContext("setup", blocker).
			Build()
	}
	e.oracle.Forget(t)
	e.setState(rep, t, StateFailed, func(r *Result) { r.Err = err })
	e.logger.Error("Task failed", logfields.TaskID(t.ID), logfields.Error(err))
}

func (e *Executor) cancel(rep *Report, t *task.Task) {
	e.setState(rep, t, StateCanceled, nil)
}

func (e *Executor) setReason(rep *Report, id string, reason staleness.Reason) {
	rep.mu.Lock()
	defer rep.mu.Unlock()
	if res, ok := rep.results[id]; ok {
		res.Reason = reason
	}
}

func (e *Executor) setState(rep *Report, t *task.Task, to State, mutate func(*Result)) {
	if err := rep.transition(t.ID, to, mutate); err != nil {
		e.logger.Error("Invalid task transition", logfields.TaskID(t.ID), logfields.Error(err))
		return
	}
	if to.Terminal() {
		e.recorder.IncTaskResult(string(t.Kind), resultLabel(to))
	}
}

func resultLabel(s State) metrics.TaskResultLabel {
	switch s {
	case StateSucceeded:
		return metrics.TaskSucceeded
	case StateSkipped:
		return metrics.TaskSkipped
	case StateCanceled:
		return metrics.TaskCanceled
	default:
		return metrics.TaskFailed
	}
}
