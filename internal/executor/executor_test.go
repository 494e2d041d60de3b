package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
	"git.home.luguber.info/inful/sitegen/internal/history"
	"git.home.luguber.info/inful/sitegen/internal/staleness"
	"git.home.luguber.info/inful/sitegen/internal/task"
)

// journal records the order in which actions ran.
type journal struct {
	mu  sync.Mutex
	ids []string
}

func (j *journal) add(id string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ids = append(j.ids, id)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.ids...)
}

func (j *journal) count(id string) int {
	n := 0
	for _, v := range j.list() {
		if v == id {
			n++
		}
	}
	return n
}

func writeAction(j *journal, id, target string) task.Action {
	return func(context.Context, task.Deps) (any, error) {
		j.add(id)
		if target == "" {
			return nil, nil
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
			return nil, err
		}
		return nil, os.WriteFile(target, []byte(id), 0o600)
	}
}

type site struct {
	dir   string
	src   string
	graph *task.Graph
	j     *journal
}

// newSite registers a template setup, n page leaves, one media leaf, the two
// groups and a cleanup task.
func newSite(t *testing.T, pages int, failPage string) *site {
	t.Helper()
	s := &site{dir: t.TempDir(), graph: task.NewGraph(), j: &journal{}}
	s.src = filepath.Join(s.dir, "src.txt")
	require.NoError(t, os.WriteFile(s.src, []byte("x"), 0o600))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(s.src, old, old))

	add := func(tk task.Task) { require.NoError(t, s.graph.Add(tk)) }
	add(task.Task{ID: "template", Kind: task.KindSetup, Action: func(context.Context, task.Deps) (any, error) {
		s.j.add("template")
		return "TEMPLATE", nil
	}})

	var members []string
	for i := range pages {
		id := "page:" + string(rune('a'+i))
		out := filepath.Join(s.dir, "out", id+".html")
		action := func(_ context.Context, deps task.Deps) (any, error) {
			tpl, err := task.Value[string](deps, "template")
			if err != nil {
				return nil, err
			}
			s.j.add(id)
			if id == failPage {
				return nil, errors.New("render exploded")
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o750); err != nil {
				return nil, err
			}
			return nil, os.WriteFile(out, []byte(tpl), 0o600)
		}
		add(task.Task{ID: id, Kind: task.KindLeaf, Action: action, Setup: []string{"template"},
			FileDeps: []string{s.src}, Targets: []string{out}})
		members = append(members, id)
	}
	mediaOut := filepath.Join(s.dir, "out", "style.css")
	add(task.Task{ID: "media:style.css", Kind: task.KindLeaf, Action: writeAction(s.j, "media:style.css", mediaOut),
		FileDeps: []string{s.src}, Targets: []string{mediaOut}})
	add(task.Task{ID: "pages", Kind: task.KindGroup, Members: members})
	add(task.Task{ID: "media", Kind: task.KindGroup, Members: []string{"media:style.css"}})
	add(task.Task{ID: "clean", Kind: task.KindCleanup, Action: writeAction(s.j, "clean", "")})
	require.NoError(t, s.graph.Validate())
	return s
}

func newExecutor(store history.Store, workers int) *Executor {
	return New(staleness.New(store), WithWorkers(workers))
}

func TestRun_SetupBeforeLeavesAndCleanupLast(t *testing.T) {
	s := newSite(t, 3, "")
	exec := newExecutor(history.NewMemory(), 2)

	rep, err := exec.Run(t.Context(), s.graph, "pages", "media")
	require.NoError(t, err)
	require.True(t, rep.OK())

	order := s.j.list()
	require.Len(t, order, 6)
	assert.Equal(t, "template", order[0])
	assert.Equal(t, "clean", order[len(order)-1])
	assert.Equal(t, 1, s.j.count("template"))

	assert.Equal(t, 8, rep.Count(StateSucceeded))
	for _, id := range []string{"page:a", "page:b", "page:c", "media:style.css", "pages", "media", "template", "clean"} {
		res, ok := rep.Result(id)
		require.True(t, ok, id)
		assert.Equal(t, StateSucceeded, res.State, id)
	}
}

func TestRun_SecondRunSkipsEverythingAndSkipsSetup(t *testing.T) {
	s := newSite(t, 3, "")
	store := history.NewMemory()

	_, err := newExecutor(store, 2).Run(t.Context(), s.graph, "pages", "media")
	require.NoError(t, err)

	before := len(s.j.list())

	rep, err := newExecutor(store, 2).Run(t.Context(), s.graph, "pages", "media")
	require.NoError(t, err)
	assert.Equal(t, 4, rep.Count(StateSkipped))
	for _, id := range []string{"page:a", "media:style.css"} {
		res, _ := rep.Result(id)
		assert.Equal(t, staleness.ReasonUpToDate, res.Reason)
	}
	_, tracked := rep.Result("template")
	assert.False(t, tracked, "setup must not run when no dependent is dirty")
	grp, _ := rep.Result("pages")
	assert.Equal(t, StateSucceeded, grp.State)
	assert.Equal(t, []string{"clean"}, s.j.list()[before:])
}

func TestRun_FailureDoesNotStopSiblings(t *testing.T) {
	s := newSite(t, 3, "page:b")

	rep, err := newExecutor(history.NewMemory(), 1).Run(t.Context(), s.graph, "pages", "media")
	require.NoError(t, err)
	assert.False(t, rep.OK())

	failed := rep.Failed()
	ids := make([]string, 0, len(failed))
	for _, f := range failed {
		ids = append(ids, f.TaskID)
	}
	assert.ElementsMatch(t, []string{"page:b", "pages"}, ids)

	for _, id := range []string{"page:a", "page:c", "media:style.css", "media", "clean"} {
		res, _ := rep.Result(id)
		assert.Equal(t, StateSucceeded, res.State, id)
	}
	grp, _ := rep.Result("pages")
	assert.True(t, ferrors.HasCategory(grp.Err, ferrors.CategoryTask))
}

func TestRun_FailedPageIsDirtyNextRun(t *testing.T) {
	s := newSite(t, 2, "page:a")
	store := history.NewMemory()

	_, err := newExecutor(store, 2).Run(t.Context(), s.graph, "pages")
	require.NoError(t, err)
	_, ok := store.Get("page:a")
	assert.False(t, ok)
	_, ok = store.Get("page:b")
	assert.True(t, ok)
}

func TestRun_FailedSetupBlocksDependentsOnly(t *testing.T) {
	dir := t.TempDir()
	g := task.NewGraph()
	j := &journal{}
	require.NoError(t, g.Add(task.Task{ID: "template", Kind: task.KindSetup, Action: func(context.Context, task.Deps) (any, error) {
		return nil, ferrors.RenderError("bad template").Build()
	}}))
	require.NoError(t, g.Add(task.Task{ID: "page:a", Kind: task.KindLeaf, Setup: []string{"template"},
		Action: writeAction(j, "page:a", filepath.Join(dir, "a.html")), Targets: []string{filepath.Join(dir, "a.html")}}))
	require.NoError(t, g.Add(task.Task{ID: "media:x", Kind: task.KindLeaf,
		Action: writeAction(j, "media:x", filepath.Join(dir, "x.css")), Targets: []string{filepath.Join(dir, "x.css")}}))
	require.NoError(t, g.Add(task.Task{ID: "pages", Kind: task.KindGroup, Members: []string{"page:a"}}))
	require.NoError(t, g.Add(task.Task{ID: "media", Kind: task.KindGroup, Members: []string{"media:x"}}))

	rep, err := newExecutor(history.NewMemory(), 2).Run(t.Context(), g, "pages", "media")
	require.NoError(t, err)

	page, _ := rep.Result("page:a")
	assert.Equal(t, StateFailed, page.State)
	assert.True(t, ferrors.HasCategory(page.Err, ferrors.CategoryTask))
	assert.True(t, ferrors.HasCategory(errors.Unwrap(page.Err), ferrors.CategoryRender))

	media, _ := rep.Result("media:x")
	assert.Equal(t, StateSucceeded, media.State)
	assert.Equal(t, []string{"media:x"}, j.list())
}

func TestRun_BoundedConcurrency(t *testing.T) {
	const n, workers = 12, 3
	g := task.NewGraph()
	dir := t.TempDir()

	var running, peak atomic.Int32
	var members []string
	for i := range n {
		id := "page:" + string(rune('a'+i))
		out := filepath.Join(dir, "nested", "dir", id+".html")
		members = append(members, id)
		require.NoError(t, g.Add(task.Task{ID: id, Kind: task.KindLeaf, Targets: []string{out},
			Action: func(context.Context, task.Deps) (any, error) {
				cur := running.Add(1)
				defer running.Add(-1)
				for {
					p := peak.Load()
					if cur <= p || peak.CompareAndSwap(p, cur) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				if err := os.MkdirAll(filepath.Dir(out), 0o750); err != nil {
					return nil, err
				}
				return nil, os.WriteFile(out, []byte(id), 0o600)
			}}))
	}
	require.NoError(t, g.Add(task.Task{ID: "pages", Kind: task.KindGroup, Members: members}))

	exec := newExecutor(history.NewMemory(), workers)
	assert.Equal(t, workers, exec.Workers())

	rep, err := exec.Run(t.Context(), g, "pages")
	require.NoError(t, err)
	require.True(t, rep.OK())
	assert.LessOrEqual(t, int(peak.Load()), workers)

	for i := range n {
		id := "page:" + string(rune('a'+i))
		data, err := os.ReadFile(filepath.Join(dir, "nested", "dir", id+".html"))
		require.NoError(t, err)
		assert.Equal(t, id, string(data))
	}
}

func TestRun_CanceledBeforeStart(t *testing.T) {
	s := newSite(t, 2, "")
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	rep, err := newExecutor(history.NewMemory(), 2).Run(ctx, s.graph, "pages", "media")
	require.NoError(t, err)
	assert.Empty(t, s.j.list())
	assert.False(t, rep.OK())
	for _, res := range rep.Results() {
		assert.Equal(t, StateCanceled, res.State, res.TaskID)
	}
}

func TestRun_CancelStopsDispatchButFinishesInFlight(t *testing.T) {
	g := task.NewGraph()
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	var finished atomic.Int32
	var members []string
	for i := range 5 {
		id := "page:" + string(rune('a'+i))
		out := filepath.Join(dir, id)
		members = append(members, id)
		require.NoError(t, g.Add(task.Task{ID: id, Kind: task.KindLeaf, Targets: []string{out},
			Action: func(actx context.Context, _ task.Deps) (any, error) {
				if id == "page:a" {
					cancel()
				}
				if actx.Err() != nil {
					return nil, errors.New("action saw cancellation")
				}
				finished.Add(1)
				return nil, nil
			}}))
	}
	require.NoError(t, g.Add(task.Task{ID: "pages", Kind: task.KindGroup, Members: members}))

	rep, err := newExecutor(history.NewMemory(), 1).Run(ctx, g, "pages")
	require.NoError(t, err)

	first, _ := rep.Result("page:a")
	assert.Equal(t, StateSucceeded, first.State)
	assert.Equal(t, 0, rep.Count(StateFailed))
	assert.Equal(t, int32(rep.Count(StateSucceeded)), finished.Load())
	assert.Positive(t, rep.Count(StateCanceled))
	grp, _ := rep.Result("pages")
	assert.Equal(t, StateCanceled, grp.State)
}

func TestRun_PanicIsRecorded(t *testing.T) {
	g := task.NewGraph()
	require.NoError(t, g.Add(task.Task{ID: "page:a", Kind: task.KindLeaf,
		Action: func(context.Context, task.Deps) (any, error) { panic("boom") }}))

	rep, err := newExecutor(history.NewMemory(), 1).Run(t.Context(), g, "page:a")
	require.NoError(t, err)
	res, _ := rep.Result("page:a")
	assert.Equal(t, StateFailed, res.State)
	assert.True(t, ferrors.HasCategory(res.Err, ferrors.CategoryInternal))
	assert.Contains(t, res.Err.Error(), "boom")
}

func TestRun_RunOnceExecutesOncePerProcess(t *testing.T) {
	g := task.NewGraph()
	j := &journal{}
	require.NoError(t, g.Add(task.Task{ID: "create", Kind: task.KindLeaf, RunOnce: true,
		Action: writeAction(j, "create", "")}))

	exec := newExecutor(history.NewMemory(), 1)
	for range 3 {
		_, err := exec.Run(t.Context(), g, "create", "create")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, j.count("create"))
}

func TestRun_UnknownTask(t *testing.T) {
	_, err := newExecutor(history.NewMemory(), 1).Run(t.Context(), task.NewGraph(), "nope")
	require.Error(t, err)
}

func TestPlan(t *testing.T) {
	s := newSite(t, 2, "")
	exec := newExecutor(history.NewMemory(), 1)

	plan, err := exec.Plan(s.graph, "pages")
	require.NoError(t, err)
	require.Len(t, plan, 2)
	for _, p := range plan {
		assert.True(t, p.Decision.Dirty)
		assert.Equal(t, staleness.ReasonTargetMissing, p.Decision.Reason)
	}
	assert.Empty(t, s.j.list())
}

func TestTransitions(t *testing.T) {
	allowed := map[State][]State{
		StatePending: {StateRunning, StateSkipped, StateFailed, StateCanceled},
		StateRunning: {StateSucceeded, StateFailed},
	}
	all := []State{StatePending, StateRunning, StateSucceeded, StateFailed, StateSkipped, StateCanceled}
	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, isAllowedTransition(from, to), "%s -> %s", from, to)
		}
	}
}
