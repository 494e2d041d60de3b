package preview

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_Relevant(t *testing.T) {
	root := t.TempDir()
	w := &Watcher{set: clean(WatchSet{
		Dirs:   []string{filepath.Join(root, "pages"), root},
		Files:  []string{filepath.Join(root, "config.yaml")},
		Ignore: []string{filepath.Join(root, "site")},
	})}

	assert.True(t, w.relevant(filepath.Join(root, "pages", "index.md")))
	assert.True(t, w.relevant(filepath.Join(root, "config.yaml")))
	assert.False(t, w.relevant(filepath.Join(root, "site", "index.html")))
	assert.False(t, w.relevant(filepath.Join(root, "pages", ".index.md.swp")))
	assert.False(t, w.relevant(filepath.Join(root, "pages", "index.md~")))
	assert.False(t, w.relevant(filepath.Join(root, "pages", "#index.md#")))
	assert.False(t, w.relevant(filepath.Join(filepath.Dir(root), "elsewhere.md")))
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(WatchSet{Dirs: []string{dir}}, 100*time.Millisecond, nil)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	var calls atomic.Int32
	go func() { _ = w.Run(t.Context(), func() { calls.Add(1) }) }()

	for i := range 5 {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "page.md"), []byte{byte('a' + i)}, 0o600))
		time.Sleep(10 * time.Millisecond)
	}
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWatcher_PicksUpNewDirectories(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(WatchSet{Dirs: []string{dir}}, 50*time.Millisecond, nil)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	var calls atomic.Int32
	go func() { _ = w.Run(t.Context(), func() { calls.Add(1) }) }()

	sub := filepath.Join(dir, "docs")
	require.NoError(t, os.Mkdir(sub, 0o750))
	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 20*time.Millisecond)

	before := calls.Load()
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "guide.md"), []byte("x"), 0o600))
	require.Eventually(t, func() bool { return calls.Load() > before }, 2*time.Second, 20*time.Millisecond)
}

func TestDebounce_StopCancelsPending(t *testing.T) {
	var calls atomic.Int32
	trigger, stop := debounce(50*time.Millisecond, func() { calls.Add(1) })
	trigger()
	stop()
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, calls.Load())
}
