package runtime

import (
	"fmt"

	"github.com/chazu/reflow/pkg/dom"
	"github.com/chazu/reflow/pkg/program"
	"github.com/chazu/reflow/pkg/reference"
	"github.com/chazu/reflow/pkg/tags"
)

// UpdateStats counts the work one revalidation pass actually did. A pass
// over unchanged inputs reports all zeros.
type UpdateStats struct {
	TextPatches    int
	AttrPatches    int
	BlockRerenders int
	ListSyncs      int
	ManagerUpdates int
}

// UpdateVM carries the shared state of one revalidation pass.
type UpdateVM struct {
	env     *Environment
	stats   UpdateStats
	errs    []error
	retries []*tags.UpdatableTag
}

// fail logs a failed region and records the error. The pass continues with
// unaffected siblings; the failed region keeps its previous output. The
// enclosing region's tag is re-dirtied before the next pass, so the cache
// groups above the failure cannot validate away the retry.
func (vm *UpdateVM) fail(err error, enclosing *tags.UpdatableTag) {
	vm.env.Logger.Errorf("update failed: %s", err.Error())
	vm.errs = append(vm.errs, err)
	if enclosing != nil {
		vm.retries = append(vm.retries, enclosing)
	}
}

// updater is one retained updating opcode. Each updater validates its own
// tag against the revision captured on its last run and does nothing when
// the tag still validates.
type updater interface {
	update(vm *UpdateVM) error
	updaterTag() tags.Tag
	destroy()
}

// textUpdater patches one text node in place.
type textUpdater struct {
	node *dom.Text
	ref  reference.Reference
	last string
	rev  tags.Revision
}

func (u *textUpdater) updaterTag() tags.Tag { return u.ref.Tag() }
func (u *textUpdater) destroy()             {}

func (u *textUpdater) update(vm *UpdateVM) error {
	if tags.Validate(u.ref.Tag(), u.rev) {
		return nil
	}
	s := contentString(u.ref.Value())
	if s != u.last {
		u.node.Data = s
		u.last = s
		vm.stats.TextPatches++
	}
	u.rev = u.ref.Tag().Value()
	return nil
}

// attrUpdater patches one element attribute in place.
type attrUpdater struct {
	el   *dom.Element
	name string
	ref  reference.Reference
	last string
	rev  tags.Revision
}

func (u *attrUpdater) updaterTag() tags.Tag { return u.ref.Tag() }
func (u *attrUpdater) destroy()             {}

func (u *attrUpdater) update(vm *UpdateVM) error {
	if tags.Validate(u.ref.Tag(), u.rev) {
		return nil
	}
	s := contentString(u.ref.Value())
	if s != u.last {
		u.el.SetAttribute(u.name, s)
		u.last = s
		vm.stats.AttrPatches++
	}
	u.rev = u.ref.Tag().Value()
	return nil
}

// blockUpdater retains one tracked region: its instruction range, the scope
// it ran under, its output bounds and its child updaters. The combined
// child tag makes the whole region one cache group: when it validates, the
// subtree is skipped without visiting a single child.
//
// A conditional region additionally holds its condition; when the boolean
// flips, the region's output is cleared and the range re-executes in place.
type blockUpdater struct {
	env  *Environment
	prog *program.Program

	scope      *Scope
	begin, end int32
	bounds     *dom.BlockBounds

	cond      *reference.ConditionalReference
	lastTruth bool

	children []updater
	tag      *tags.UpdatableTag
	rev      tags.Revision
}

func (u *blockUpdater) updaterTag() tags.Tag { return u.tag }

func (u *blockUpdater) destroy() {
	for _, ch := range u.children {
		ch.destroy()
	}
}

func (u *blockUpdater) combinedTag() tags.Tag {
	ts := make([]tags.Tag, 0, len(u.children)+1)
	if u.cond != nil {
		ts = append(ts, u.cond.Tag())
	}
	for _, ch := range u.children {
		ts = append(ts, ch.updaterTag())
	}
	return tags.Combine(u.env.Clock, ts...)
}

func (u *blockUpdater) finalize() {
	u.tag = tags.NewUpdatable(u.env.Clock, u.combinedTag())
	u.rev = u.tag.Value()
}

func (u *blockUpdater) update(vm *UpdateVM) error {
	if tags.Validate(u.tag, u.rev) {
		return nil
	}
	if u.cond != nil {
		if truth := u.cond.Bool(); truth != u.lastTruth {
			return u.rerender(vm)
		}
	}
	for _, ch := range u.children {
		if err := ch.update(vm); err != nil {
			vm.fail(err, u.tag)
		}
	}
	u.rev = u.tag.Value()
	return nil
}

// rerender discards the region's output and updaters and re-executes its
// instruction range at the same tree position under the retained scope. The
// region's bounds object is adopted in place so enclosing regions stay
// valid without re-running.
func (u *blockUpdater) rerender(vm *UpdateVM) error {
	for _, ch := range u.children {
		ch.destroy()
	}
	next := dom.Clear(u.bounds)
	b := dom.NewBuilderBefore(u.bounds.BoundsParent(), next)
	fresh, err := newExec(u.env, u.prog, b).execBlock(u.scope, u.begin, u.end)
	if err != nil {
		return err
	}
	*u.bounds = *fresh.bounds
	u.children = fresh.children
	u.cond = fresh.cond
	u.lastTruth = fresh.lastTruth
	u.tag.Update(u.combinedTag())
	u.rev = u.tag.Value()
	vm.stats.BlockRerenders++
	return nil
}

// componentUpdater retains one manager-created instance.
type componentUpdater struct {
	mgr      Manager
	instance any
	tag      tags.Tag
	rev      tags.Revision
}

func newComponentUpdater(mgr Manager, instance any) *componentUpdater {
	tag := mgr.Tag(instance)
	if tag == nil {
		tag = tags.Const
	}
	return &componentUpdater{mgr: mgr, instance: instance, tag: tag, rev: tag.Value()}
}

func (u *componentUpdater) updaterTag() tags.Tag { return u.tag }

func (u *componentUpdater) destroy() {
	if d := u.mgr.Destructor(u.instance); d != nil {
		d()
	}
}

func (u *componentUpdater) update(vm *UpdateVM) error {
	if tags.Validate(u.tag, u.rev) {
		return nil
	}
	if err := u.mgr.Update(u.instance); err != nil {
		return err
	}
	u.rev = u.tag.Value()
	vm.stats.ManagerUpdates++
	return nil
}

// contentString renders a reference value as text content.
func contentString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprintf("%v", x)
	}
}
