package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// MenuEntry is one explicitly declared page: its slug (source path relative
// to the input dir, without extension) and navigation title.
//
// Both `{slug: about, title: About}` and the short `{about: About}` forms are accepted.
type MenuEntry struct {
	Slug  string `yaml:"slug"`
	Title string `yaml:"title"`
}

// UnmarshalYAML accepts the long and the single-key short form.
func (m *MenuEntry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: menu entry must be a mapping", node.Line)
	}
	if len(node.Content) == 2 && node.Content[0].Value != "slug" && node.Content[0].Value != "title" {
		m.Slug = node.Content[0].Value
		m.Title = node.Content[1].Value
		return nil
	}
	type plain MenuEntry
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*m = MenuEntry(p)
	return nil
}
