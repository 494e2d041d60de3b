package task

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
	"git.home.luguber.info/inful/sitegen/internal/util/sets"
)

func noop(context.Context, Deps) (any, error) { return nil, nil }

func buildGraph(t *testing.T, tasks ...Task) *Graph {
	t.Helper()
	g := NewGraph()
	for _, tk := range tasks {
		require.NoError(t, g.Add(tk))
	}
	return g
}

func TestAdd_RejectsDuplicatesAndCollisions(t *testing.T) {
	out := filepath.FromSlash("/out/index.html")
	g := buildGraph(t, Task{ID: "page:index", Kind: KindLeaf, Action: noop, Targets: []string{out}})

	err := g.Add(Task{ID: "page:index", Kind: KindLeaf, Action: noop})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))

	err = g.Add(Task{ID: "media:index.html", Kind: KindLeaf, Action: noop, Targets: []string{out}})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	owner, _ := ce.Context().GetString("owner")
	assert.Equal(t, "page:index", owner)

	// The rejected task must not be half registered.
	_, ok = g.Task("media:index.html")
	assert.False(t, ok)
	assert.Equal(t, 1, g.Len())
}

func TestAdd_RejectsMalformedTasks(t *testing.T) {
	g := NewGraph()
	cases := []Task{
		{ID: "", Kind: KindLeaf, Action: noop},
		{ID: "x", Kind: KindLeaf},
		{ID: "x", Kind: KindGroup, Action: noop},
		{ID: "x", Kind: KindGroup, Targets: []string{"a"}},
		{ID: "x", Kind: KindLeaf, Action: noop, Members: []string{"y"}},
		{ID: "x", Kind: "weird", Action: noop},
		{ID: "x", Kind: KindLeaf, Action: noop, Targets: []string{"a", "./a"}},
	}
	for _, tk := range cases {
		err := g.Add(tk)
		require.Error(t, err, tk.ID)
		assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
	}
	assert.Zero(t, g.Len())
}

func TestValidate(t *testing.T) {
	good := buildGraph(t,
		Task{ID: "template", Kind: KindSetup, Action: noop},
		Task{ID: "menu", Kind: KindSetup, Action: noop},
		Task{ID: "page:a", Kind: KindLeaf, Action: noop, Setup: []string{"template", "menu"}},
		Task{ID: "pages", Kind: KindGroup, Members: []string{"page:a"}},
	)
	require.NoError(t, good.Validate())

	unknownSetup := buildGraph(t, Task{ID: "page:a", Kind: KindLeaf, Action: noop, Setup: []string{"nope"}})
	require.Error(t, unknownSetup.Validate())

	leafAsSetup := buildGraph(t,
		Task{ID: "page:a", Kind: KindLeaf, Action: noop},
		Task{ID: "page:b", Kind: KindLeaf, Action: noop, Setup: []string{"page:a"}},
	)
	require.Error(t, leafAsSetup.Validate())

	badMember := buildGraph(t,
		Task{ID: "template", Kind: KindSetup, Action: noop},
		Task{ID: "pages", Kind: KindGroup, Members: []string{"template"}},
	)
	require.Error(t, badMember.Validate())

	cycle := buildGraph(t,
		Task{ID: "a", Kind: KindSetup, Action: noop, Setup: []string{"b"}},
		Task{ID: "b", Kind: KindSetup, Action: noop, Setup: []string{"a"}},
	)
	err := cycle.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestSetupOrder_PrerequisitesFirst(t *testing.T) {
	g := buildGraph(t,
		Task{ID: "config", Kind: KindSetup, Action: noop},
		Task{ID: "menu", Kind: KindSetup, Action: noop, Setup: []string{"config"}},
		Task{ID: "template", Kind: KindSetup, Action: noop, Setup: []string{"config"}},
		Task{ID: "page:a", Kind: KindLeaf, Action: noop, Setup: []string{"menu", "template"}},
		Task{ID: "media:x", Kind: KindLeaf, Action: noop},
	)

	order, err := g.SetupOrder("page:a")
	require.NoError(t, err)
	assert.Equal(t, []string{"config", "menu", "template"}, order)

	order, err = g.SetupOrder("media:x")
	require.NoError(t, err)
	assert.Empty(t, order)
}

func TestExpand(t *testing.T) {
	g := buildGraph(t,
		Task{ID: "page:a", Kind: KindLeaf, Action: noop},
		Task{ID: "page:b", Kind: KindLeaf, Action: noop},
		Task{ID: "media:x", Kind: KindLeaf, Action: noop},
		Task{ID: "pages", Kind: KindGroup, Members: []string{"page:b", "page:a"}},
		Task{ID: "media", Kind: KindGroup, Members: []string{"media:x"}},
		Task{ID: "clean", Kind: KindCleanup, Action: noop},
	)

	got, err := g.Expand("media", "pages", "page:a")
	require.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, tk := range got {
		ids = append(ids, tk.ID)
	}
	assert.Equal(t, []string{"page:a", "page:b", "media:x"}, ids)

	_, err = g.Expand("nope")
	require.Error(t, err)
	_, err = g.Expand("clean")
	require.Error(t, err)
}

func TestTargets(t *testing.T) {
	g := buildGraph(t,
		Task{ID: "page:a", Kind: KindLeaf, Action: noop, Targets: []string{"/out/a.html"}},
		Task{ID: "media:x", Kind: KindLeaf, Action: noop, Targets: []string{"/out/x.css"}},
	)
	assert.Equal(t,
		sets.New(filepath.Clean("/out/a.html"), filepath.Clean("/out/x.css")),
		g.Targets())
}

func TestValue(t *testing.T) {
	deps := NewDeps(map[string]any{"menu": []string{"a"}, "n": 3})

	v, err := Value[[]string](deps, "menu")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, v)

	_, err = Value[string](deps, "n")
	require.Error(t, err)
	_, err = Value[int](deps, "missing")
	require.Error(t, err)
}
