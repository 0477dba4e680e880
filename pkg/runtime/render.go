package runtime

import (
	"errors"

	"github.com/chazu/reflow/pkg/dom"
	"github.com/chazu/reflow/pkg/program"
	"github.com/chazu/reflow/pkg/reference"
	"github.com/chazu/reflow/pkg/tags"
)

// Result is one live render: the output bounds plus the retained updater
// tree. Revalidate brings the output back in sync with the inputs after
// external data changed; Destroy tears the render down.
type Result struct {
	env  *Environment
	prog *program.Program
	root *blockUpdater

	// Regions that failed on the previous pass, re-dirtied before the next
	// one so their enclosing cache groups revisit them.
	retries []*tags.UpdatableTag
}

// Render executes a program against a root value, appending output under
// parent.
func Render(env *Environment, prog *program.Program, self reference.Reference, parent *dom.Element) (*Result, error) {
	return RenderBefore(env, prog, self, parent, nil)
}

// RenderBefore is Render at an explicit position: output is inserted under
// parent just before the given sibling.
func RenderBefore(env *Environment, prog *program.Program, self reference.Reference, parent *dom.Element, before dom.Node) (*Result, error) {
	if err := prog.Validate(); err != nil {
		return nil, err
	}

	scope := NewScope(prog.Symbols.Size, self)
	b := dom.NewBuilderBefore(parent, before)
	root, err := newExec(env, prog, b).execBlock(scope, 0, prog.End())
	if err != nil {
		return nil, err
	}
	env.Logger.Debugf("rendered program %s", prog.ID)
	return &Result{env: env, prog: prog, root: root}, nil
}

// Bounds returns the extent of the rendered output.
func (r *Result) Bounds() dom.Bounds {
	return r.root.bounds
}

// Revalidate walks the updater tree, patching whatever no longer validates.
// Regions whose inputs are unchanged are skipped wholesale. A failing
// region keeps its previous output and is reported without stopping its
// siblings; the returned error joins every regional failure, and the failed
// regions are retried on the next pass.
func (r *Result) Revalidate() (UpdateStats, error) {
	vm := &UpdateVM{env: r.env}
	for _, tag := range r.retries {
		tag.Dirty()
	}
	r.retries = nil
	if err := r.root.update(vm); err != nil {
		vm.fail(err, r.root.tag)
	}
	r.retries = vm.retries
	return vm.stats, errors.Join(vm.errs...)
}

// Destroy runs every retained destructor and removes the rendered output
// from the tree.
func (r *Result) Destroy() {
	r.root.destroy()
	dom.Clear(r.root.bounds)
}
