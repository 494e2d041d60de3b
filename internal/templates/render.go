// Package templates loads the page template and renders pages through it.
//
// The template is parsed once per build by a setup task and then shared
// read-only by every page task; Render is safe for concurrent use.
package templates

import (
	"bytes"
	"html/template"
	"os"
	"strings"

	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
	"git.home.luguber.info/inful/sitegen/internal/site"
	"git.home.luguber.info/inful/sitegen/internal/textenc"
)

// SiteInfo carries site-wide values from configuration.
type SiteInfo struct {
	Title  string
	Params map[string]any
}

// PageContext is the data a page template is executed with.
type PageContext struct {
	Site  SiteInfo
	Name  string
	Title string
	Body  template.HTML
	Menu  []site.Link
	// Root leads back to the output root from the page ("" or "../" etc.).
	Root string
	// Charset is the canonical name of the output encoding.
	Charset string
}

// Template is a parsed page template.
type Template struct {
	path string
	tpl  *template.Template
}

// Load reads the template at path, decoding it from enc, and parses it.
// A missing or unreadable file is a filesystem error; a syntax error is a
// render error.
func Load(path, enc string) (*Template, error) {
	// #nosec G304 -- path comes from the validated configuration.
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "read template").
			WithContext("path", path).Build()
	}
	text, err := textenc.Decode(enc, raw)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "decode template").
			WithContext("path", path).Build()
	}
	t, err := Parse(path, string(text))
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Parse parses template text. name identifies it in error messages.
func Parse(name, text string) (*Template, error) {
	tpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRender, "parse template").
			WithContext("path", name).Build()
	}
	return &Template{path: name, tpl: tpl}, nil
}

// Path returns the file the template was loaded from.
func (t *Template) Path() string { return t.path }

// Render executes the template for one page.
func (t *Template) Render(ctx PageContext) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, ctx); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRender, "render template").
			WithContext("path", t.path).WithContext("page", ctx.Name).Build()
	}
	return buf.Bytes(), nil
}

var funcs = template.FuncMap{
	"lower": strings.ToLower,
	"upper": strings.ToUpper,
	"param": func(s SiteInfo, key string) any {
		if s.Params == nil {
			return ""
		}
		if v, ok := s.Params[key]; ok {
			return v
		}
		return ""
	},
}
