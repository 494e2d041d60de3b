package site

import (
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/sitegen/internal/config"
	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
)

// Layout is the subset of configuration the path mapper depends on.
type Layout struct {
	InputDir  string
	InputExt  string
	OutputDir string
	OutputExt string
	MediaDir  string
}

// LayoutOf extracts the Layout from a loaded configuration.
func LayoutOf(cfg *config.Config) Layout {
	return Layout{
		InputDir:  cfg.Input.Dir,
		InputExt:  cfg.Input.Ext,
		OutputDir: cfg.Output.Dir,
		OutputExt: cfg.Output.Ext,
		MediaDir:  cfg.Media.Dir,
	}
}

// PageName returns the page identity for a source path: its path relative to
// the input directory without the input extension, using forward slashes.
func (l Layout) PageName(sourcePath string) (string, error) {
	rel, err := relativeTo(l.InputDir, sourcePath)
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(rel, l.InputExt) {
		return "", ferrors.ValidationError("source path does not carry the input extension").
			WithContext("path", sourcePath).WithContext("ext", l.InputExt).Build()
	}
	name := strings.TrimSuffix(rel, l.InputExt)
	if name == "" || strings.HasSuffix(name, "/") {
		return "", ferrors.ValidationError("source path has an empty page name").
			WithContext("path", sourcePath).Build()
	}
	return name, nil
}

// PageOutputPath maps a page source file to its rendered output file.
func (l Layout) PageOutputPath(sourcePath string) (string, error) {
	name, err := l.PageName(sourcePath)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.OutputDir, filepath.FromSlash(name)+l.OutputExt), nil
}

// PageSourcePath is the inverse of PageName for explicitly listed pages.
func (l Layout) PageSourcePath(slug string) string {
	return filepath.Join(l.InputDir, filepath.FromSlash(slug)+l.InputExt)
}

// MediaOutputPath reparents a media file from the media root to the output root.
func (l Layout) MediaOutputPath(sourcePath string) (string, error) {
	rel, err := relativeTo(l.MediaDir, sourcePath)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.OutputDir, filepath.FromSlash(rel)), nil
}

// RootPrefix returns the relative prefix that leads from outputPath's directory
// back to the output root: "" at the top level, "../" one level down.
func (l Layout) RootPrefix(outputPath string) string {
	rel, err := filepath.Rel(filepath.Dir(outputPath), l.OutputDir)
	if err != nil || rel == "." {
		return ""
	}
	return filepath.ToSlash(rel) + "/"
}

func relativeTo(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryValidation, "path is not relative to its root").
			WithContext("path", path).WithContext("root", root).Build()
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", ferrors.ValidationError("path lies outside its root").
			WithContext("path", path).WithContext("root", root).Build()
	}
	return rel, nil
}
