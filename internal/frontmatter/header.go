package frontmatter

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrNoHeader is returned when a page has no metadata header at all.
	ErrNoHeader = errors.New("page has no metadata header")
	// ErrNoTitle is returned when the header exists but carries no title.
	ErrNoTitle = errors.New("metadata header has no title")
)

// Header is the typed view of a page metadata header.
type Header struct {
	Title  string
	Weight int
	Fields map[string]any
}

// Parse extracts the header from content and returns it with the
// remaining body. Pages discovered by scanning must carry a title.
func Parse(content []byte) (Header, []byte, error) {
	raw, body, had, err := Split(content)
	if err != nil {
		return Header{}, content, err
	}
	if !had {
		return Header{}, body, ErrNoHeader
	}

	fields, err := ParseYAML(raw)
	if err != nil {
		return Header{}, body, fmt.Errorf("parse metadata header: %w", err)
	}

	h := Header{Fields: fields}
	if title, ok := fields["title"].(string); ok {
		h.Title = strings.TrimSpace(title)
	}
	if w, ok := fields["weight"].(int); ok {
		h.Weight = w
	}
	if h.Title == "" {
		return h, body, ErrNoTitle
	}
	return h, body, nil
}

// Body strips a header if present and returns the rest of the page.
// Malformed headers are left in place and become part of the body.
func Body(content []byte) []byte {
	_, body, had, err := Split(content)
	if err != nil || !had {
		return content
	}
	return body
}

// Format renders fields as a delimited header followed by body.
// Keys are emitted in sorted order.
func Format(fields map[string]any, body string) ([]byte, error) {
	if len(fields) == 0 {
		return []byte(body), nil
	}
	out, err := yaml.Marshal(fields)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString(delimiter + "\n")
	b.Write(out)
	b.WriteString(delimiter + "\n")
	b.WriteString(body)
	return []byte(b.String()), nil
}
