package site

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitegen/internal/config"
	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestResolve_ExplicitMenu_KeepsDeclarationOrder(t *testing.T) {
	root := t.TempDir()
	l := testLayout(root)

	pages, err := NewResolver(l, "utf-8").Resolve([]config.MenuEntry{
		{Slug: "index", Title: "Home"},
		{Slug: "about", Title: "About"},
		{Slug: "docs/guide", Title: "Guide"},
	})
	require.NoError(t, err)
	require.Len(t, pages, 3)

	assert.Equal(t, "index", pages[0].Name)
	assert.Equal(t, "Home", pages[0].Title)
	assert.Equal(t, filepath.Join(root, "pages", "index.mkd"), pages[0].SourcePath)
	assert.Equal(t, filepath.Join(root, "output", "index.html"), pages[0].OutputPath)
	assert.Equal(t, "about", pages[1].Name)
	assert.Equal(t, filepath.Join(root, "output", "docs", "guide.html"), pages[2].OutputPath)
}

func TestResolve_Scan(t *testing.T) {
	root := t.TempDir()
	l := testLayout(root)
	writeFile(t, filepath.Join(root, "pages", "index.mkd"), "---\ntitle: Home\nweight: -1\n---\nWelcome\n")
	writeFile(t, filepath.Join(root, "pages", "about.mkd"), "---\ntitle: About\n---\nAbout us\n")
	writeFile(t, filepath.Join(root, "pages", "docs", "guide.mkd"), "---\ntitle: Guide\n---\n")
	writeFile(t, filepath.Join(root, "pages", "notes.txt"), "ignored")
	writeFile(t, filepath.Join(root, "pages", ".drafts", "x.mkd"), "---\ntitle: Draft\n---\n")

	pages, err := NewResolver(l, "utf-8").Resolve(nil)
	require.NoError(t, err)

	names := make([]string, 0, len(pages))
	for _, p := range pages {
		require.NoError(t, p.Err)
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"index", "about", "docs/guide"}, names)
	assert.Equal(t, "Home", pages[0].Title)
	assert.Equal(t, filepath.Join(root, "output", "docs", "guide.html"), pages[2].OutputPath)
}

func TestResolve_Scan_MissingMetadataFailsOnlyThatPage(t *testing.T) {
	root := t.TempDir()
	l := testLayout(root)
	writeFile(t, filepath.Join(root, "pages", "index.mkd"), "---\ntitle: Home\n---\n")
	writeFile(t, filepath.Join(root, "pages", "bare.mkd"), "no header here\n")

	pages, err := NewResolver(l, "utf-8").Resolve(nil)
	require.NoError(t, err)
	require.Len(t, pages, 2)

	assert.Equal(t, "bare", pages[0].Name)
	require.Error(t, pages[0].Err)
	assert.True(t, ferrors.HasCategory(pages[0].Err, ferrors.CategoryMetadata))
	assert.NoError(t, pages[1].Err)
}

func TestResolve_Scan_SkipsOutputDirInsideInput(t *testing.T) {
	root := t.TempDir()
	l := Layout{
		InputDir:  root,
		InputExt:  ".md",
		OutputDir: filepath.Join(root, "site"),
		OutputExt: ".md",
		MediaDir:  filepath.Join(root, "media"),
	}
	writeFile(t, filepath.Join(root, "index.md"), "---\ntitle: Home\n---\n")
	writeFile(t, filepath.Join(root, "site", "index.md"), "rendered")

	pages, err := NewResolver(l, "utf-8").Resolve(nil)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "index", pages[0].Name)
}

func TestResolve_Scan_MissingInputDir(t *testing.T) {
	l := testLayout(t.TempDir())

	_, err := NewResolver(l, "utf-8").Resolve(nil)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryFileSystem))
}

func TestResolve_Scan_HeaderCacheInvalidatedOnChange(t *testing.T) {
	root := t.TempDir()
	l := testLayout(root)
	src := filepath.Join(root, "pages", "index.mkd")
	writeFile(t, src, "---\ntitle: Home\n---\n")

	r := NewResolver(l, "utf-8")
	pages, err := r.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, "Home", pages[0].Title)

	writeFile(t, src, "---\ntitle: Start page\n---\n")
	later := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(src, later, later))

	pages, err = r.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, "Start page", pages[0].Title)
}

func TestResolve_Scan_DecodesSourceEncoding(t *testing.T) {
	root := t.TempDir()
	l := testLayout(root)
	// "Café" in latin-1.
	writeFile(t, filepath.Join(root, "pages", "cafe.mkd"), "---\ntitle: Caf\xe9\n---\n")

	pages, err := NewResolver(l, "latin1", WithHeaderCache(0)).Resolve(nil)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "Café", pages[0].Title)
}
