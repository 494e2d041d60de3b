package site

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
)

// DiscoverMedia lists every regular file under the media directory in
// lexical order. A missing media directory yields no files.
func DiscoverMedia(l Layout) ([]MediaFile, error) {
	if l.MediaDir == "" {
		return nil, nil
	}
	if _, err := os.Stat(l.MediaDir); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	var files []MediaFile
	err := filepath.WalkDir(l.MediaDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != l.MediaDir && filepath.Clean(path) == filepath.Clean(l.OutputDir) {
				return filepath.SkipDir
			}
			return nil
		}
		if !isRegular(path, d) {
			return nil
		}
		out, err := l.MediaOutputPath(path)
		if err != nil {
			return err
		}
		files = append(files, MediaFile{SourcePath: path, OutputPath: out})
		return nil
	})
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "scan media directory").
			Fatal().WithContext("path", l.MediaDir).Build()
	}
	return files, nil
}

// isRegular follows symlinks so linked assets are copied like plain files.
func isRegular(path string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
