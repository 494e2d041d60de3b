// Package scaffold creates the skeleton of a new site.
//
// A site skeleton is a tree of File and Dir nodes. One walker serves both
// target enumeration and materialization, so the files a create run claims
// are exactly the files it may write.
package scaffold

import (
	"errors"
	"path"
	"slices"
	"strings"
)

// Node is either a File or a Dir.
type Node interface {
	node()
}

// File is a leaf with its default content.
type File struct {
	Content []byte
}

// Dir maps entry names to child nodes. An empty Dir is created as an empty
// directory.
type Dir map[string]Node

func (File) node() {}
func (Dir) node()  {}

// Visitor is called for every node with its slash-separated path relative to
// the tree root.
type Visitor func(rel string, n Node) error

// Walk visits nodes depth first, directories before their children and
// entries in lexical order.
func Walk(root Dir, fn Visitor) error {
	return walk("", root, fn)
}

func walk(prefix string, dir Dir, fn Visitor) error {
	names := make([]string, 0, len(dir))
	for name := range dir {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
			return errors.New("scaffold entry names must be plain file names: " + name)
		}
		rel := path.Join(prefix, name)
		child := dir[name]
		if err := fn(rel, child); err != nil {
			return err
		}
		if sub, ok := child.(Dir); ok {
			if err := walk(rel, sub, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Files returns the relative paths of every File in the tree.
func Files(root Dir) ([]string, error) {
	var out []string
	err := Walk(root, func(rel string, n Node) error {
		if _, ok := n.(File); ok {
			out = append(out, rel)
		}
		return nil
	})
	return out, err
}
