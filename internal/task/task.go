// Package task holds the declarative description of every unit of build work
// and the graph that relates them.
//
// Tasks are registered once per build and are immutable afterwards. Setup
// tasks produce shared values (the parsed template, the resolved menu) that
// leaf tasks receive through Deps; group tasks aggregate leaves; cleanup tasks
// run after every requested group has been evaluated.
package task

import (
	"context"
	"fmt"
)

// Kind distinguishes the roles a task can play in the graph.
type Kind string

const (
	KindSetup   Kind = "setup"
	KindLeaf    Kind = "leaf"
	KindGroup   Kind = "group"
	KindCleanup Kind = "cleanup"
)

// Action performs the work of a task. The returned value is only kept for
// setup tasks, where it becomes available to dependents through Deps.
type Action func(ctx context.Context, deps Deps) (any, error)

// Task describes one unit of work.
type Task struct {
	ID   string
	Kind Kind
	// Doc is a one-line human description shown by dry runs.
	Doc    string
	Action Action

	// FileDeps are the files whose modification invalidates Targets.
	FileDeps []string
	// Targets are the files the action produces. A task without targets is
	// always considered dirty.
	Targets []string
	// Setup names setup tasks that must succeed before this task may run.
	Setup []string
	// Members lists the leaf tasks a group aggregates.
	Members []string
	// RunOnce tasks execute until one run succeeds. Completion is read from
	// the history store, so it lasts as long as the store does.
	RunOnce bool
	// Signature is an opaque value dependency; a change from the recorded
	// value makes the task dirty.
	Signature string
}

func (t *Task) String() string {
	return fmt.Sprintf("%s(%s)", t.ID, t.Kind)
}

// Deps carries the outputs of a task's setup prerequisites, keyed by setup id.
type Deps struct {
	values map[string]any
}

// NewDeps builds a Deps from setup outputs.
func NewDeps(values map[string]any) Deps {
	return Deps{values: values}
}

// Get returns the output of setup task id.
func (d Deps) Get(id string) (any, bool) {
	v, ok := d.values[id]
	return v, ok
}

// Value returns setup output id as a T.
func Value[T any](d Deps, id string) (T, error) {
	var zero T
	v, ok := d.Get(id)
	if !ok {
		return zero, fmt.Errorf("setup %q did not provide a value", id)
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("setup %q provided %T, want %T", id, v, zero)
	}
	return typed, nil
}
