package scaffold

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
	"git.home.luguber.info/inful/sitegen/internal/logfields"
)

// EnvDataDir names the environment variable pointing at a directory whose
// files replace the built-in defaults, matched by relative path.
const EnvDataDir = "SITEGEN_DATA"

// Result reports what Materialize did.
type Result struct {
	Created []string
	// Existing files were left untouched.
	Existing []string
}

// Options tunes Materialize.
type Options struct {
	// DataDir overrides file contents; see EnvDataDir.
	DataDir string
	Logger  *slog.Logger
}

// Targets returns the absolute file paths materializing tree under root
// may create.
func Targets(root string, tree Dir) ([]string, error) {
	rels, err := Files(tree)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rels))
	for _, rel := range rels {
		out = append(out, filepath.Join(root, filepath.FromSlash(rel)))
	}
	return out, nil
}

// Materialize writes tree under root. Existing files are never overwritten
// and existing directories are reused.
func Materialize(root string, tree Dir, opts Options) (Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var res Result
	err := Walk(tree, func(rel string, n Node) error {
		target := filepath.Join(root, filepath.FromSlash(rel))
		switch node := n.(type) {
		case Dir:
			if err := os.MkdirAll(target, 0o750); err != nil {
				return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create directory").
					WithContext("path", target).Build()
			}
		case File:
			content, err := contentFor(rel, node, opts.DataDir)
			if err != nil {
				return err
			}
			created, err := writeNew(target, content)
			if err != nil {
				return err
			}
			if created {
				res.Created = append(res.Created, target)
				logger.Info("Created", logfields.Path(target))
			} else {
				res.Existing = append(res.Existing, target)
				logger.Debug("Exists, left untouched", logfields.Path(target))
			}
		}
		return nil
	})
	return res, err
}

func contentFor(rel string, f File, dataDir string) ([]byte, error) {
	if dataDir == "" {
		return f.Content, nil
	}
	override := filepath.Join(dataDir, filepath.FromSlash(rel))
	// #nosec G304 -- override is a fixed scaffold path under the user's data directory.
	data, err := os.ReadFile(override)
	switch {
	case err == nil:
		return data, nil
	case errors.Is(err, fs.ErrNotExist):
		return f.Content, nil
	default:
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "read scaffold override").
			WithContext("path", override).Build()
	}
}

// writeNew creates target with content unless it already exists.
func writeNew(target string, content []byte) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return false, ferrors.WrapError(err, ferrors.CategoryFileSystem, "create directory").
			WithContext("path", filepath.Dir(target)).Build()
	}

	// #nosec G304 -- target is a scaffold path under the site root.
	file, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, ferrors.WrapError(err, ferrors.CategoryFileSystem, "create file").
			WithContext("path", target).Build()
	}
	if _, err := file.Write(content); err != nil {
		_ = file.Close()
		return false, ferrors.WrapError(err, ferrors.CategoryFileSystem, "write file").
			WithContext("path", target).Build()
	}
	if err := file.Close(); err != nil {
		return false, fmt.Errorf("close %s: %w", target, err)
	}
	return true, nil
}
