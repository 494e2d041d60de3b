// Package markdown converts page bodies to HTML fragments.
package markdown

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
)

// Options controls the converter. The zero value renders CommonMark plus
// GitHub flavored extensions and escapes raw HTML.
type Options struct {
	// AllowRawHTML passes inline HTML in page sources through untouched.
	AllowRawHTML bool
	// HeadingIDs adds generated id attributes to headings.
	HeadingIDs bool
}

// Converter turns Markdown into HTML. It is safe for concurrent use.
type Converter struct {
	md goldmark.Markdown
}

// New returns a Converter configured by opts.
func New(opts Options) *Converter {
	var rendererOpts []goldmark.Option
	htmlOpts := []renderer.Option{html.WithXHTML()}
	if opts.AllowRawHTML {
		htmlOpts = append(htmlOpts, html.WithUnsafe())
	}
	rendererOpts = append(rendererOpts, goldmark.WithRendererOptions(htmlOpts...))

	var parserOpts []parser.Option
	if opts.HeadingIDs {
		parserOpts = append(parserOpts, parser.WithAutoHeadingID())
	}

	md := goldmark.New(append(rendererOpts,
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parserOpts...),
	)...)
	return &Converter{md: md}
}

// Convert renders body (metadata header already removed) to HTML.
func (c *Converter) Convert(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.md.Convert(body, &buf); err != nil {
		return nil, fmt.Errorf("convert markdown: %w", err)
	}
	return buf.Bytes(), nil
}
