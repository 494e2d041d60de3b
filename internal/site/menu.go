package site

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

// Link is one navigation entry as seen from a particular page.
type Link struct {
	Name  string
	Title string
	// Href is relative to the page the link is rendered on.
	Href    string
	Current bool
}

// Menu is the resolved navigation, shared read-only by every page task.
type Menu struct {
	layout  Layout
	entries []Page
	sig     string
}

// NewMenu builds the navigation from pages in order, leaving out pages
// that failed to resolve.
func NewMenu(l Layout, pages []Page) *Menu {
	m := &Menu{layout: l}
	h := sha256.New()
	for _, p := range pages {
		if p.Err != nil {
			continue
		}
		m.entries = append(m.entries, p)
		h.Write([]byte(p.Name))
		h.Write([]byte{0})
		h.Write([]byte(p.Title))
		h.Write([]byte{0})
		h.Write([]byte(filepath.ToSlash(p.OutputPath)))
		h.Write([]byte{'\n'})
	}
	m.sig = hex.EncodeToString(h.Sum(nil))
	return m
}

// Len returns the number of navigation entries.
func (m *Menu) Len() int { return len(m.entries) }

// Signature changes whenever an entry is added, removed, retitled or moved.
func (m *Menu) Signature() string { return m.sig }

// Links returns the navigation as rendered on current.
func (m *Menu) Links(current Page) []Link {
	links := make([]Link, 0, len(m.entries))
	from := filepath.Dir(current.OutputPath)
	for _, p := range m.entries {
		href, err := filepath.Rel(from, p.OutputPath)
		if err != nil {
			href, _ = filepath.Rel(m.layout.OutputDir, p.OutputPath)
		}
		links = append(links, Link{
			Name:    p.Name,
			Title:   p.Title,
			Href:    filepath.ToSlash(href),
			Current: p.Name == current.Name,
		})
	}
	return links
}
