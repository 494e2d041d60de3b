package executor

import (
	"sync"
	"time"

	"git.home.luguber.info/inful/sitegen/internal/staleness"
	"git.home.luguber.info/inful/sitegen/internal/task"
)

// Result is the outcome of one task in a run.
type Result struct {
	TaskID   string
	Kind     task.Kind
	State    State
	Reason   staleness.Reason
	Err      error
	Duration time.Duration
}

// Report collects per-task results of a run. It is safe for concurrent use
// while the run is in progress.
type Report struct {
	Started  time.Time
	Duration time.Duration

	mu      sync.Mutex
	results map[string]*Result
	order   []string
}

func newReport() *Report {
	return &Report{Started: time.Now(), results: make(map[string]*Result)}
}

func (r *Report) track(t *task.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.results[t.ID]; ok {
		return
	}
	r.results[t.ID] = &Result{TaskID: t.ID, Kind: t.Kind, State: StatePending}
	r.order = append(r.order, t.ID)
}

func (r *Report) transition(id string, to State, mutate func(*Result)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.results[id]
	if !ok {
		return &TransitionError{TaskID: id, From: "untracked", To: to}
	}
	if !isAllowedTransition(res.State, to) {
		return &TransitionError{TaskID: id, From: res.State, To: to}
	}
	res.State = to
	if mutate != nil {
		mutate(res)
	}
	return nil
}

func (r *Report) state(id string) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.results[id]; ok {
		return res.State
	}
	return ""
}

// Result returns the outcome of task id.
func (r *Report) Result(id string) (Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.results[id]
	if !ok {
		return Result{}, false
	}
	return *res, true
}

// Results returns every tracked result in evaluation order.
func (r *Report) Results() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Result, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.results[id])
	}
	return out
}

// Failed returns the results in StateFailed.
func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results() {
		if res.State == StateFailed {
			out = append(out, res)
		}
	}
	return out
}

// Count returns how many tasks ended in s.
func (r *Report) Count(s State) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, res := range r.results {
		if res.State == s {
			n++
		}
	}
	return n
}

// Counts returns the number of tasks per state.
func (r *Report) Counts() map[State]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[State]int)
	for _, res := range r.results {
		out[res.State]++
	}
	return out
}

// OK reports whether no task failed or was canceled.
func (r *Report) OK() bool {
	return r.Count(StateFailed) == 0 && r.Count(StateCanceled) == 0
}
