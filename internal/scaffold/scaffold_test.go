package scaffold

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitegen/internal/config"
	"git.home.luguber.info/inful/sitegen/internal/frontmatter"
	"git.home.luguber.info/inful/sitegen/internal/templates"
)

func TestWalk_OrderAndValidation(t *testing.T) {
	tree := Dir{
		"b.txt": File{},
		"a":     Dir{"z.txt": File{}, "y": Dir{}},
	}
	var seen []string
	require.NoError(t, Walk(tree, func(rel string, _ Node) error {
		seen = append(seen, rel)
		return nil
	}))
	assert.Equal(t, []string{"a", "a/y", "a/z.txt", "b.txt"}, seen)

	files, err := Files(tree)
	require.NoError(t, err)
	assert.Equal(t, []string{"a/z.txt", "b.txt"}, files)

	require.Error(t, Walk(Dir{"../evil": File{}}, func(string, Node) error { return nil }))
}

func TestSkeleton(t *testing.T) {
	tree, err := Skeleton()
	require.NoError(t, err)

	files, err := Files(tree)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"config.yaml",
		"media/default.css",
		"pages/index.md",
		"templates/default.tmpl",
	}, files)

	site, ok := tree["site"].(Dir)
	require.True(t, ok)
	assert.Empty(t, site)

	index := tree["pages"].(Dir)["index.md"].(File)
	h, _, err := frontmatter.Parse(index.Content)
	require.NoError(t, err)
	assert.Equal(t, "Home", h.Title)

	tmpl := tree["templates"].(Dir)["default.tmpl"].(File)
	_, err = templates.Parse("default.tmpl", string(tmpl.Content))
	require.NoError(t, err)

	_, err = config.Parse(tree[ConfigFile].(File).Content)
	require.NoError(t, err)
}

func TestMaterialize_CreatesAndNeverOverwrites(t *testing.T) {
	root := t.TempDir()
	tree, err := Skeleton()
	require.NoError(t, err)

	existing := filepath.Join(root, "pages", "index.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(existing), 0o750))
	require.NoError(t, os.WriteFile(existing, []byte("mine"), 0o600))

	res, err := Materialize(root, tree, Options{})
	require.NoError(t, err)
	assert.Len(t, res.Created, 3)
	assert.Equal(t, []string{existing}, res.Existing)
	assert.DirExists(t, filepath.Join(root, "site"))

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "mine", string(data))

	again, err := Materialize(root, tree, Options{})
	require.NoError(t, err)
	assert.Empty(t, again.Created)
	assert.Len(t, again.Existing, 4)
}

func TestMaterialize_DataDirOverrides(t *testing.T) {
	root := t.TempDir()
	data := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(data, "media"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(data, "media", "default.css"), []byte("/* custom */"), 0o600))

	tree, err := Skeleton()
	require.NoError(t, err)
	_, err = Materialize(root, tree, Options{DataDir: data})
	require.NoError(t, err)

	css, err := os.ReadFile(filepath.Join(root, "media", "default.css"))
	require.NoError(t, err)
	assert.Equal(t, "/* custom */", string(css))

	cfg, err := os.ReadFile(filepath.Join(root, "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(cfg), "input:")
}

func TestTargets(t *testing.T) {
	root := filepath.FromSlash("/srv/new")
	got, err := Targets(root, Dir{"pages": Dir{"index.md": File{}}, "site": Dir{}})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "pages", "index.md")}, got)
}
