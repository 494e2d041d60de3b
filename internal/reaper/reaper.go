// Package reaper reconciles the output tree with the current target set by
// deleting files no task claims. Directories are never removed.
package reaper

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
	"git.home.luguber.info/inful/sitegen/internal/logfields"
	"git.home.luguber.info/inful/sitegen/internal/util/sets"
)

// Result lists what a reap pass did.
type Result struct {
	Removed []string
	// Errors holds per-file deletion failures; the pass continues past them.
	Errors []error
}

// Orphans returns the regular files under root that are not in expected.
// Paths in expected are compared after filepath.Clean. A missing root has no
// orphans.
func Orphans(root string, expected sets.Set[string]) ([]string, error) {
	keep := sets.New[string]()
	for p := range expected {
		keep.Add(filepath.Clean(p))
	}

	var orphans []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() || (!d.Type().IsRegular() && d.Type()&fs.ModeSymlink == 0) {
			return nil
		}
		if !keep.Has(filepath.Clean(path)) {
			orphans = append(orphans, path)
		}
		return nil
	})
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "walk output directory").
			WithContext("path", root).Build()
	}
	return orphans, nil
}

// Reap deletes every orphan under root. Deletion failures are collected and
// returned in Result.Errors; the returned error is set only when the tree
// could not be walked.
func Reap(root string, expected sets.Set[string], logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	orphans, err := Orphans(root, expected)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for _, path := range orphans {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			res.Errors = append(res.Errors, ferrors.WrapError(err, ferrors.CategoryFileSystem, "remove orphan").
				WithContext("path", path).Build())
			continue
		}
		res.Removed = append(res.Removed, path)
		logger.Info("Removed orphan", logfields.Path(path))
	}
	return res, nil
}
