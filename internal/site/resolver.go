package site

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"git.home.luguber.info/inful/sitegen/internal/config"
	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
	"git.home.luguber.info/inful/sitegen/internal/frontmatter"
	"git.home.luguber.info/inful/sitegen/internal/logfields"
	"git.home.luguber.info/inful/sitegen/internal/textenc"
)

// DefaultHeaderCacheSize bounds the number of parsed metadata headers kept
// between resolutions.
const DefaultHeaderCacheSize = 1024

// Resolver produces the ordered page list for a build, either from an
// explicit menu or by scanning the input directory.
//
// A Resolver may be reused across builds (serve mode); scanned headers are
// cached keyed by path and invalidated by size or modification time.
type Resolver struct {
	layout  Layout
	enc     string
	skip    []string
	headers *lru.Cache[string, cachedHeader]
	logger  *slog.Logger
}

type cachedHeader struct {
	modTime time.Time
	size    int64
	header  frontmatter.Header
	err     error
}

// ResolverOption customizes a Resolver.
type ResolverOption func(*Resolver)

// WithHeaderCache sets the header cache size; n <= 0 disables caching.
func WithHeaderCache(n int) ResolverOption {
	return func(r *Resolver) {
		if n <= 0 {
			r.headers = nil
			return
		}
		c, err := lru.New[string, cachedHeader](n)
		if err == nil {
			r.headers = c
		}
	}
}

// WithLogger sets the logger used for per-page diagnostics.
func WithLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver returns a Resolver for layout. enc names the source encoding.
func NewResolver(layout Layout, enc string, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		layout: layout,
		enc:    enc,
		skip:   []string{layout.OutputDir, layout.MediaDir},
		logger: slog.Default(),
	}
	WithHeaderCache(DefaultHeaderCacheSize)(r)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the pages in navigation order. With a non-empty menu the
// order is the declaration order; otherwise pages are scanned and ordered by
// header weight, then by name.
//
// A page whose header cannot be read is returned with Err set rather than
// failing the resolution.
func (r *Resolver) Resolve(menu []config.MenuEntry) ([]Page, error) {
	if len(menu) > 0 {
		return r.fromMenu(menu)
	}
	return r.scan()
}

func (r *Resolver) fromMenu(menu []config.MenuEntry) ([]Page, error) {
	pages := make([]Page, 0, len(menu))
	for _, entry := range menu {
		src := r.layout.PageSourcePath(entry.Slug)
		out, err := r.layout.PageOutputPath(src)
		if err != nil {
			return nil, err
		}
		pages = append(pages, Page{
			Name:       strings.Trim(filepath.ToSlash(entry.Slug), "/"),
			Title:      entry.Title,
			SourcePath: src,
			OutputPath: out,
		})
	}
	return pages, nil
}

func (r *Resolver) scan() ([]Page, error) {
	var pages []Page
	err := filepath.WalkDir(r.layout.InputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != r.layout.InputDir && (hidden(d.Name()) || r.skipped(path)) {
				return filepath.SkipDir
			}
			return nil
		}
		if hidden(d.Name()) || !strings.HasSuffix(d.Name(), r.layout.InputExt) {
			return nil
		}
		page, err := r.scanPage(path, d)
		if err != nil {
			return err
		}
		pages = append(pages, page)
		return nil
	})
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "scan input directory").
			Fatal().WithContext("path", r.layout.InputDir).Build()
	}

	sort.SliceStable(pages, func(i, j int) bool {
		if pages[i].Weight != pages[j].Weight {
			return pages[i].Weight < pages[j].Weight
		}
		return pages[i].Name < pages[j].Name
	})
	return pages, nil
}

func (r *Resolver) scanPage(path string, d fs.DirEntry) (Page, error) {
	name, err := r.layout.PageName(path)
	if err != nil {
		return Page{}, err
	}
	out, err := r.layout.PageOutputPath(path)
	if err != nil {
		return Page{}, err
	}
	page := Page{Name: name, SourcePath: path, OutputPath: out}

	header, err := r.header(path, d)
	if err != nil {
		page.Err = err
		r.logger.Debug("Page metadata unavailable", logfields.Page(name), logfields.Error(err))
		return page, nil
	}
	page.Title = header.Title
	page.Weight = header.Weight
	return page, nil
}

func (r *Resolver) header(path string, d fs.DirEntry) (frontmatter.Header, error) {
	info, statErr := d.Info()
	if statErr == nil && r.headers != nil {
		if c, ok := r.headers.Get(path); ok && c.size == info.Size() && c.modTime.Equal(info.ModTime()) {
			return c.header, c.err
		}
	}

	header, err := r.readHeader(path)
	if statErr == nil && r.headers != nil {
		r.headers.Add(path, cachedHeader{modTime: info.ModTime(), size: info.Size(), header: header, err: err})
	}
	return header, err
}

func (r *Resolver) readHeader(path string) (frontmatter.Header, error) {
	// #nosec G304 -- path comes from walking the configured input directory.
	raw, err := os.ReadFile(path)
	if err != nil {
		return frontmatter.Header{}, ferrors.WrapError(err, ferrors.CategoryFileSystem, "read page source").
			WithContext("path", path).Build()
	}
	text, err := textenc.Decode(r.enc, raw)
	if err != nil {
		return frontmatter.Header{}, ferrors.WrapError(err, ferrors.CategoryFileSystem, "decode page source").
			WithContext("path", path).Build()
	}
	header, _, err := frontmatter.Parse(text)
	if err != nil {
		msg := "invalid metadata header"
		if errors.Is(err, frontmatter.ErrNoHeader) || errors.Is(err, frontmatter.ErrNoTitle) {
			msg = "missing metadata header"
		}
		return header, ferrors.WrapError(err, ferrors.CategoryMetadata, msg).
			WithContext("path", path).Build()
	}
	return header, nil
}

func (r *Resolver) skipped(dir string) bool {
	for _, s := range r.skip {
		if s != "" && filepath.Clean(s) == filepath.Clean(dir) {
			return true
		}
	}
	return false
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
