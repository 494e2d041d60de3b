// Package staleness decides whether a task must run.
//
// The decision is timestamp based and never reads file contents: a task with
// targets is dirty when a target is missing, when a dependency is newer than
// the oldest target, or when the recorded history of its last success does not
// match its current dependency list or signature. Equal modification times
// count as clean, so filesystems with coarse timestamps can miss an edit made
// within the same tick as the previous build.
package staleness

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"git.home.luguber.info/inful/sitegen/internal/history"
	"git.home.luguber.info/inful/sitegen/internal/task"
)

// Reason explains a Decision.
type Reason string

const (
	ReasonUpToDate         Reason = "up to date"
	ReasonForced           Reason = "forced"
	ReasonNoTargets        Reason = "no targets"
	ReasonRunOncePending   Reason = "run-once task not yet completed"
	ReasonRunOnceDone      Reason = "run-once task already completed"
	ReasonTargetMissing    Reason = "target missing"
	ReasonDepMissing       Reason = "dependency missing"
	ReasonDepNewer         Reason = "dependency newer than target"
	ReasonNoHistory        Reason = "no successful run on record"
	ReasonDepsChanged      Reason = "dependency list changed"
	ReasonSignatureChanged Reason = "signature changed"
	ReasonStatFailed       Reason = "cannot stat file"
)

// Decision is the oracle's verdict for one task.
type Decision struct {
	Dirty  bool
	Reason Reason
	// Path names the file that triggered the decision, when there is one.
	Path string
}

func clean(r Reason) Decision              { return Decision{Reason: r} }
func dirty(r Reason, path string) Decision { return Decision{Dirty: true, Reason: r, Path: path} }

// Oracle evaluates staleness against the filesystem and a history store.
// It is safe for concurrent use.
type Oracle struct {
	store history.Store
	force bool
	now   func() time.Time
	stat  func(string) (fs.FileInfo, error)
}

// Option configures an Oracle.
type Option func(*Oracle)

// WithForce makes every task dirty except run-once tasks already completed.
func WithForce(force bool) Option {
	return func(o *Oracle) { o.force = force }
}

// WithClock overrides the clock used for history timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Oracle) { o.now = now }
}

// New returns an Oracle backed by store.
func New(store history.Store, opts ...Option) *Oracle {
	o := &Oracle{
		store: store,
		now:   time.Now,
		stat:  os.Stat,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Check decides whether t must run.
func (o *Oracle) Check(t *task.Task) Decision {
	if t.RunOnce {
		if _, done := o.store.Get(t.ID); done {
			return clean(ReasonRunOnceDone)
		}
		return dirty(ReasonRunOncePending, "")
	}
	if o.force {
		return dirty(ReasonForced, "")
	}
	if len(t.Targets) == 0 {
		return dirty(ReasonNoTargets, "")
	}

	var oldestTarget time.Time
	for i, target := range t.Targets {
		info, err := o.stat(target)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return dirty(ReasonTargetMissing, target)
			}
			return dirty(ReasonStatFailed, target)
		}
		if i == 0 || info.ModTime().Before(oldestTarget) {
			oldestTarget = info.ModTime()
		}
	}

	for _, dep := range t.FileDeps {
		info, err := o.stat(dep)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return dirty(ReasonDepMissing, dep)
			}
			return dirty(ReasonStatFailed, dep)
		}
		if info.ModTime().After(oldestTarget) {
			return dirty(ReasonDepNewer, dep)
		}
	}

	rec, ok := o.store.Get(t.ID)
	switch {
	case !ok:
		return dirty(ReasonNoHistory, "")
	case !rec.SameDeps(t.FileDeps):
		return dirty(ReasonDepsChanged, "")
	case rec.Signature != t.Signature:
		return dirty(ReasonSignatureChanged, "")
	}
	return clean(ReasonUpToDate)
}

// MarkDone records a successful run of t.
func (o *Oracle) MarkDone(t *task.Task) {
	o.store.Put(history.Record{
		TaskID:      t.ID,
		CompletedAt: o.now().UTC(),
		FileDeps:    t.FileDeps,
		Signature:   t.Signature,
	})
}

// Forget drops the record of t so the next check finds it dirty.
func (o *Oracle) Forget(t *task.Task) {
	o.store.Delete(t.ID)
}
