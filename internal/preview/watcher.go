package preview

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
	"git.home.luguber.info/inful/sitegen/internal/logfields"
)

// DefaultDebounce coalesces bursts of editor writes into one rebuild.
const DefaultDebounce = 300 * time.Millisecond

// WatchSet names what a Watcher observes.
type WatchSet struct {
	// Dirs are watched recursively.
	Dirs []string
	// Files are watched through their parent directory.
	Files []string
	// Ignore prunes subtrees, typically the output directory.
	Ignore []string
}

// Watcher reports source changes through a debounced callback.
type Watcher struct {
	fw     *fsnotify.Watcher
	set    WatchSet
	delay  time.Duration
	logger *slog.Logger
}

// NewWatcher registers every directory in set. Directories that do not
// exist yet are skipped.
func NewWatcher(set WatchSet, delay time.Duration, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if delay <= 0 {
		delay = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "create file watcher").Build()
	}
	w := &Watcher{fw: fw, set: clean(set), delay: delay, logger: logger}
	for _, dir := range w.set.Dirs {
		w.addRecursive(dir)
	}
	for _, f := range w.set.Files {
		if err := fw.Add(filepath.Dir(f)); err != nil {
			logger.Warn("Watch add failed", logfields.Path(filepath.Dir(f)), logfields.Error(err))
		}
	}
	return w, nil
}

func clean(set WatchSet) WatchSet {
	c := func(in []string) []string {
		out := make([]string, 0, len(in))
		for _, p := range in {
			if p != "" {
				out = append(out, filepath.Clean(p))
			}
		}
		return out
	}
	return WatchSet{Dirs: c(set.Dirs), Files: c(set.Files), Ignore: c(set.Ignore)}
}

func (w *Watcher) addRecursive(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.ignored(path) || (path != root && strings.HasPrefix(d.Name(), ".")) {
			return filepath.SkipDir
		}
		if err := w.fw.Add(path); err != nil {
			w.logger.Warn("Watch add failed", logfields.Path(path), logfields.Error(err))
		}
		return nil
	})
}

// Run delivers debounced change notifications to onChange until ctx ends.
func (w *Watcher) Run(ctx context.Context, onChange func()) error {
	trigger, stop := debounce(w.delay, onChange)
	defer stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev.Name) {
				continue
			}
			if ev.Op.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					w.addRecursive(ev.Name)
				}
			}
			w.logger.Debug("File change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
			trigger()
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", logfields.Error(err))
		}
	}
}

// Close releases the underlying watcher.
func (w *Watcher) Close() error {
	return w.fw.Close()
}

// relevant reports whether a change at path should trigger a rebuild.
func (w *Watcher) relevant(path string) bool {
	path = filepath.Clean(path)
	if w.ignored(path) || ignoreName(filepath.Base(path)) {
		return false
	}
	for _, f := range w.set.Files {
		if f == path {
			return true
		}
	}
	for _, d := range w.set.Dirs {
		if within(d, path) {
			return true
		}
	}
	return false
}

func (w *Watcher) ignored(path string) bool {
	for _, ig := range w.set.Ignore {
		if within(ig, path) {
			return true
		}
	}
	return false
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ignoreName filters hidden files, editor swap files and OS litter.
func ignoreName(base string) bool {
	switch {
	case strings.HasPrefix(base, "."):
		return true
	case strings.HasSuffix(base, "~"), strings.HasSuffix(base, ".swp"), strings.HasSuffix(base, ".swx"):
		return true
	case strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"):
		return true
	case base == "Thumbs.db":
		return true
	}
	return false
}

// debounce returns a trigger that calls fn once triggers stop arriving for d.
// stop cancels a pending call.
func debounce(d time.Duration, fn func()) (trigger func(), stop func()) {
	var mu sync.Mutex
	var timer *time.Timer
	trigger = func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(d, fn)
	}
	stop = func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
	}
	return trigger, stop
}
