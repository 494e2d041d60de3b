package scaffold

import (
	"embed"
	"io/fs"
	"path"
	"strings"

	"git.home.luguber.info/inful/sitegen/internal/config"
	"git.home.luguber.info/inful/sitegen/internal/frontmatter"
)

//go:embed defaults
var defaults embed.FS

// ConfigFile is the name of the configuration file a new site starts with.
const ConfigFile = "config.yaml"

const indexBody = `# Welcome

This page lives in ` + "`pages/index.md`" + `. Edit it, then run ` + "`sitegen gen`" + `.
`

// Skeleton returns the default site tree: the configuration file, a starter
// page, the default stylesheet and template, and an empty output directory.
func Skeleton() (Dir, error) {
	root := Dir{}
	err := fs.WalkDir(defaults, "defaults", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := defaults.ReadFile(p)
		if err != nil {
			return err
		}
		rel, _ := strings.CutPrefix(p, "defaults/")
		insert(root, rel, File{Content: data})
		return nil
	})
	if err != nil {
		return nil, err
	}

	index, err := frontmatter.Format(map[string]any{"title": "Home"}, indexBody)
	if err != nil {
		return nil, err
	}
	insert(root, path.Join(config.DefaultInputDir, "index"+config.DefaultInputExt), File{Content: index})
	root[config.DefaultOutputDir] = Dir{}
	return root, nil
}

// insert places n at the slash path rel, creating intermediate Dirs.
func insert(root Dir, rel string, n Node) {
	dir := root
	parent, name := path.Split(rel)
	if parent != "" {
		for _, part := range strings.Split(path.Clean(parent), "/") {
			next, ok := dir[part].(Dir)
			if !ok {
				next = Dir{}
				dir[part] = next
			}
			dir = next
		}
	}
	dir[name] = n
}
