package task

import (
	"path/filepath"
	"slices"
	"strings"

	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
	"git.home.luguber.info/inful/sitegen/internal/util/sets"
)

// Graph is the task registry for one build.
type Graph struct {
	tasks   map[string]*Task
	order   []string
	targets map[string]string
}

// NewGraph returns an empty registry.
func NewGraph() *Graph {
	return &Graph{
		tasks:   make(map[string]*Task),
		targets: make(map[string]string),
	}
}

// Add registers t. Registration rejects malformed tasks, duplicate ids and
// two tasks claiming the same target; each is a configuration error.
func (g *Graph) Add(t Task) error {
	if strings.TrimSpace(t.ID) == "" {
		return ferrors.ConfigError("task id is required").Build()
	}
	if _, dup := g.tasks[t.ID]; dup {
		return ferrors.ConfigError("duplicate task id").WithContext("task_id", t.ID).Build()
	}
	if err := checkShape(&t); err != nil {
		return err
	}

	claimed := make([]string, 0, len(t.Targets))
	for _, target := range t.Targets {
		key := filepath.Clean(target)
		if owner, taken := g.targets[key]; taken {
			return ferrors.ConfigError("output path claimed by more than one task").
				WithContext("path", target).
				WithContext("task_id", t.ID).
				WithContext("owner", owner).
				Build()
		}
		if slices.Contains(claimed, key) {
			return ferrors.ConfigError("task declares the same target twice").
				WithContext("path", target).WithContext("task_id", t.ID).Build()
		}
		claimed = append(claimed, key)
	}
	for _, key := range claimed {
		g.targets[key] = t.ID
	}

	stored := t
	stored.FileDeps = slices.Clone(t.FileDeps)
	stored.Targets = slices.Clone(t.Targets)
	stored.Setup = slices.Clone(t.Setup)
	stored.Members = slices.Clone(t.Members)
	g.tasks[t.ID] = &stored
	g.order = append(g.order, t.ID)
	return nil
}

func checkShape(t *Task) error {
	fail := func(msg string) error {
		return ferrors.ConfigError(msg).WithContext("task_id", t.ID).WithContext("task_kind", string(t.Kind)).Build()
	}
	switch t.Kind {
	case KindGroup:
		if t.Action != nil {
			return fail("group task must not have an action")
		}
		if len(t.Targets) > 0 || len(t.FileDeps) > 0 {
			return fail("group task must not declare files")
		}
	case KindSetup, KindLeaf, KindCleanup:
		if t.Action == nil {
			return fail("task requires an action")
		}
		if len(t.Members) > 0 {
			return fail("only group tasks may have members")
		}
	default:
		return fail("unknown task kind")
	}
	return nil
}

// Validate checks references between tasks: setup prerequisites must be
// setup tasks, group members must be leaves, and setups must not form a cycle.
func (g *Graph) Validate() error {
	for _, id := range g.order {
		t := g.tasks[id]
		for _, s := range t.Setup {
			dep, ok := g.tasks[s]
			if !ok {
				return ferrors.ConfigError("unknown setup task").
					WithContext("task_id", id).WithContext("setup", s).Build()
			}
			if dep.Kind != KindSetup {
				return ferrors.ConfigError("setup prerequisite is not a setup task").
					WithContext("task_id", id).WithContext("setup", s).Build()
			}
		}
		for _, m := range t.Members {
			member, ok := g.tasks[m]
			if !ok || member.Kind != KindLeaf {
				return ferrors.ConfigError("group member is not a leaf task").
					WithContext("task_id", id).WithContext("member", m).Build()
			}
		}
	}
	_, err := g.SetupOrder(g.ByKind(KindSetup)...)
	return err
}

// Task returns the task registered under id.
func (g *Graph) Task(id string) (*Task, bool) {
	t, ok := g.tasks[id]
	return t, ok
}

// Len returns the number of registered tasks.
func (g *Graph) Len() int { return len(g.order) }

// Tasks returns every task in registration order.
func (g *Graph) Tasks() []*Task {
	out := make([]*Task, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.tasks[id])
	}
	return out
}

// ByKind returns the ids of tasks of kind k in registration order.
func (g *Graph) ByKind(k Kind) []string {
	var out []string
	for _, id := range g.order {
		if g.tasks[id].Kind == k {
			out = append(out, id)
		}
	}
	return out
}

// Targets returns the union of every registered task's targets.
func (g *Graph) Targets() sets.Set[string] {
	out := sets.New[string]()
	for key := range g.targets {
		out.Add(key)
	}
	return out
}

// Expand resolves requested ids to the leaf tasks they denote: groups become
// their members, leaves stay themselves. Duplicates are dropped and the
// result follows registration order.
func (g *Graph) Expand(ids ...string) ([]*Task, error) {
	want := sets.New[string]()
	for _, id := range ids {
		t, ok := g.tasks[id]
		if !ok {
			return nil, ferrors.ValidationError("unknown task").WithContext("task_id", id).Build()
		}
		switch t.Kind {
		case KindGroup:
			want.Add(t.Members...)
		case KindLeaf:
			want.Add(id)
		default:
			return nil, ferrors.ValidationError("only leaf and group tasks can be requested").
				WithContext("task_id", id).WithContext("task_kind", string(t.Kind)).Build()
		}
	}
	out := make([]*Task, 0, want.Len())
	for _, id := range g.order {
		if want.Has(id) {
			out = append(out, g.tasks[id])
		}
	}
	return out, nil
}

// SetupOrder returns the setup tasks reachable from ids through Setup edges,
// prerequisites first. ids may name any task; the tasks themselves are only
// included when they are setup tasks.
func (g *Graph) SetupOrder(ids ...string) ([]string, error) {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int)
	var out []string

	var visit func(id string, path []string) error
	visit = func(id string, path []string) error {
		switch color[id] {
		case black:
			return nil
		case gray:
			return ferrors.ConfigError("setup dependency cycle").
				WithContext("cycle", strings.Join(append(path, id), " -> ")).Build()
		}
		t, ok := g.tasks[id]
		if !ok {
			return ferrors.ConfigError("unknown setup task").WithContext("setup", id).Build()
		}
		color[id] = gray
		for _, s := range t.Setup {
			if err := visit(s, append(path, id)); err != nil {
				return err
			}
		}
		color[id] = black
		if t.Kind == KindSetup {
			out = append(out, id)
		}
		return nil
	}

	for _, id := range ids {
		if err := visit(id, nil); err != nil {
			return nil, err
		}
	}
	return out, nil
}
