package pipeline

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"

	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
	"git.home.luguber.info/inful/sitegen/internal/frontmatter"
	"git.home.luguber.info/inful/sitegen/internal/reaper"
	"git.home.luguber.info/inful/sitegen/internal/site"
	"git.home.luguber.info/inful/sitegen/internal/task"
	"git.home.luguber.info/inful/sitegen/internal/templates"
	"git.home.luguber.info/inful/sitegen/internal/textenc"
)

func (r *run) loadTemplate(context.Context, task.Deps) (any, error) {
	cfg := r.bc.Config
	return templates.Load(cfg.Template.Path, cfg.Input.Enc)
}

func (r *run) publishMenu(context.Context, task.Deps) (any, error) {
	return r.bc.Menu, nil
}

func (r *run) renderPage(p site.Page) task.Action {
	return func(_ context.Context, deps task.Deps) (any, error) {
		if p.Err != nil {
			return nil, p.Err
		}
		tpl, err := task.Value[*templates.Template](deps, TaskLoadTemplate)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryInternal, "template unavailable").Build()
		}
		menu, err := task.Value[*site.Menu](deps, TaskMenu)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryInternal, "menu unavailable").Build()
		}

		cfg := r.bc.Config
		// #nosec G304 -- source paths come from the resolved page list.
		raw, err := os.ReadFile(p.SourcePath)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "read page source").
				WithContext("path", p.SourcePath).Build()
		}
		text, err := textenc.Decode(cfg.Input.Enc, raw)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "decode page source").
				WithContext("path", p.SourcePath).Build()
		}
		body, err := r.converter.Convert(frontmatter.Body(text))
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryRender, "convert markup").
				WithContext("path", p.SourcePath).Build()
		}

		html, err := tpl.Render(templates.PageContext{
			Site:    templates.SiteInfo{Title: cfg.Site.Title, Params: cfg.Site.Params},
			Name:    p.Name,
			Title:   p.Title,
			Body:    template.HTML(body), // #nosec G203 -- produced by the markdown converter
			Menu:    menu.Links(p),
			Root:    r.bc.Layout.RootPrefix(p.OutputPath),
			Charset: r.charset,
		})
		if err != nil {
			return nil, err
		}
		encoded, err := textenc.Encode(cfg.Output.Enc, html)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryRender, "encode output").
				WithContext("path", p.OutputPath).Build()
		}
		return nil, writeFileAtomic(p.OutputPath, func(w io.Writer) error {
			_, err := w.Write(encoded)
			return err
		})
	}
}

func (r *run) copyMedia(m site.MediaFile) task.Action {
	return func(context.Context, task.Deps) (any, error) {
		// #nosec G304 -- media paths come from walking the media directory.
		src, err := os.Open(m.SourcePath)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "open media file").
				WithContext("path", m.SourcePath).Build()
		}
		defer func() { _ = src.Close() }()

		return nil, writeFileAtomic(m.OutputPath, func(w io.Writer) error {
			_, err := io.Copy(w, src)
			return err
		})
	}
}

func (r *run) reap(g *task.Graph) task.Action {
	return func(context.Context, task.Deps) (any, error) {
		res, err := reaper.Reap(r.bc.Config.Output.Dir, expectedOutputs(g, r.bc.Config), r.logger)
		if err != nil {
			return nil, err
		}
		r.removed = res.Removed
		r.recorder.AddOrphansRemoved(len(res.Removed))
		if len(res.Errors) > 0 {
			return nil, errors.Join(res.Errors...)
		}
		return res, nil
	}
}

// writeFileAtomic writes through a temporary file in the target directory
// and renames it into place, so readers never observe a partial file.
// Concurrent creation of the same parent directory is harmless.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create output directory").
			WithContext("path", dir).Build()
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create temporary file").
			WithContext("path", path).Build()
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		cleanup()
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "write output").
			WithContext("path", path).Build()
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "close output").
			WithContext("path", path).Build()
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		cleanup()
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "replace output").
			WithContext("path", path).Build()
	}
	return nil
}
