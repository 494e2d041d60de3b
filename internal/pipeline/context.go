// Package pipeline assembles and runs a site build.
//
// Each invocation resolves pages and media into an immutable BuildContext,
// registers one task per unit of work and hands the graph to the executor.
// Setup tasks publish the parsed template and the menu; page and media tasks
// render and copy; the clean task reaps orphans once every group has settled.
package pipeline

import (
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/sitegen/internal/config"
	"git.home.luguber.info/inful/sitegen/internal/site"
	"git.home.luguber.info/inful/sitegen/internal/task"
	"git.home.luguber.info/inful/sitegen/internal/util/sets"
)

// Well-known task ids.
const (
	TaskLoadTemplate = "load_template"
	TaskMenu         = "menu"
	TaskClean        = "clean"
	TaskCreate       = "create"
	GroupPages       = "pages"
	GroupMedia       = "media"
)

// PageTaskID returns the id of the task rendering the named page.
func PageTaskID(name string) string { return "page:" + name }

// MediaTaskID returns the id of the task copying a media file.
func MediaTaskID(rel string) string { return "media:" + rel }

// BuildContext is everything a build knows before any task runs. It is
// built once per invocation and never mutated.
type BuildContext struct {
	RunID  string
	Config *config.Config
	Layout site.Layout
	Pages  []site.Page
	Media  []site.MediaFile
	Menu   *site.Menu
}

// register builds the task graph for bc.
func (r *run) register() (*task.Graph, error) {
	bc := r.bc
	g := task.NewGraph()

	err := g.Add(task.Task{
		ID:     TaskLoadTemplate,
		Kind:   task.KindSetup,
		Doc:    "load " + bc.Config.Template.Path,
		Action: r.loadTemplate,
	})
	if err != nil {
		return nil, err
	}
	if err := g.Add(task.Task{
		ID:     TaskMenu,
		Kind:   task.KindSetup,
		Doc:    "publish the resolved menu",
		Action: r.publishMenu,
	}); err != nil {
		return nil, err
	}

	pageIDs := make([]string, 0, len(bc.Pages))
	for _, p := range bc.Pages {
		id := PageTaskID(p.Name)
		if err := g.Add(task.Task{
			ID:        id,
			Kind:      task.KindLeaf,
			Doc:       "render " + p.Name,
			Action:    r.renderPage(p),
			FileDeps:  pageDeps(p, bc.Config),
			Targets:   []string{p.OutputPath},
			Setup:     []string{TaskLoadTemplate, TaskMenu},
			Signature: bc.Menu.Signature(),
		}); err != nil {
			return nil, err
		}
		pageIDs = append(pageIDs, id)
	}

	mediaIDs := make([]string, 0, len(bc.Media))
	for _, m := range bc.Media {
		id := MediaTaskID(m.Name(bc.Layout))
		if err := g.Add(task.Task{
			ID:       id,
			Kind:     task.KindLeaf,
			Doc:      "copy " + m.Name(bc.Layout),
			Action:   r.copyMedia(m),
			FileDeps: []string{m.SourcePath},
			Targets:  []string{m.OutputPath},
		}); err != nil {
			return nil, err
		}
		mediaIDs = append(mediaIDs, id)
	}

	if err := g.Add(task.Task{ID: GroupPages, Kind: task.KindGroup, Doc: "all pages", Members: pageIDs}); err != nil {
		return nil, err
	}
	if err := g.Add(task.Task{ID: GroupMedia, Kind: task.KindGroup, Doc: "all media", Members: mediaIDs}); err != nil {
		return nil, err
	}
	if err := g.Add(task.Task{
		ID:     TaskClean,
		Kind:   task.KindCleanup,
		Doc:    "remove orphaned output files",
		Action: r.reap(g),
	}); err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// expectedOutputs is the set the reaper keeps: every registered target plus
// the run history when it is stored inside the output directory.
func expectedOutputs(g *task.Graph, cfg *config.Config) sets.Set[string] {
	keep := g.Targets()
	hist := filepath.Clean(cfg.Build.History.Path)
	rel, err := filepath.Rel(cfg.Output.Dir, hist)
	if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		for _, suffix := range []string{"", ".tmp", "-journal", "-wal", "-shm"} {
			keep.Add(hist + suffix)
		}
	}
	return keep
}

// pageDeps lists the source, the shared template and the config file.
func pageDeps(p site.Page, cfg *config.Config) []string {
	deps := []string{p.SourcePath, cfg.Template.Path}
	if cfg.Path() != "" {
		deps = append(deps, cfg.Path())
	}
	return deps
}
