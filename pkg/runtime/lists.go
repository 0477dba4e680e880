package runtime

import (
	"errors"

	"github.com/chazu/reflow/pkg/dom"
	"github.com/chazu/reflow/pkg/list"
	"github.com/chazu/reflow/pkg/program"
	"github.com/chazu/reflow/pkg/reference"
	"github.com/chazu/reflow/pkg/tags"
)

// listUpdater retains one rendered keyed list: the iteration snapshot, one
// block updater per live item, and the region bounds. Structural changes
// (item appears, disappears, reorders) resynchronize the snapshot and move
// whole item regions by identity; per-item content changes flow through the
// retained item blocks without touching structure.
type listUpdater struct {
	env  *Environment
	prog *program.Program

	scope *Scope
	blk   program.BlockInfo

	listRef reference.Reference
	keyFn   list.KeyFunc

	artifacts *list.Artifacts
	items     map[string]*blockUpdater
	bounds    *dom.BlockBounds

	// anchor holds the region's position while the list is empty.
	anchor *dom.Comment

	tag     *tags.UpdatableTag
	rev     tags.Revision
	listRev tags.Revision
}

func (u *listUpdater) updaterTag() tags.Tag { return u.tag }

func (u *listUpdater) destroy() {
	for _, blk := range u.items {
		blk.destroy()
	}
}

func (u *listUpdater) combinedTag() tags.Tag {
	ts := make([]tags.Tag, 0, len(u.items)+1)
	ts = append(ts, u.listRef.Tag())
	for it := u.artifacts.First(); it != nil; it = it.Next() {
		if blk := u.items[it.Key]; blk != nil {
			ts = append(ts, blk.updaterTag())
		}
	}
	return tags.Combine(u.env.Clock, ts...)
}

func (u *listUpdater) finalize() {
	u.tag = tags.NewUpdatable(u.env.Clock, u.combinedTag())
	u.rev = u.tag.Value()
}

func (u *listUpdater) update(vm *UpdateVM) error {
	if tags.Validate(u.tag, u.rev) {
		return nil
	}
	if !tags.Validate(u.listRef.Tag(), u.listRev) {
		if err := u.resync(vm); err != nil {
			// A failed synchronization leaves the snapshot and the tree
			// consistent; the stale list revision makes the next pass retry.
			return err
		}
	}
	for it := u.artifacts.First(); it != nil; it = it.Next() {
		if blk := u.items[it.Key]; blk != nil {
			if err := blk.update(vm); err != nil {
				vm.fail(err, u.tag)
			}
		}
	}
	u.rev = u.tag.Value()
	return nil
}

// resync reconciles the rendered items against a fresh iteration of the
// source sequence, then rebuilds the region bounds from the surviving item
// order. Items whose render failed are dropped from the snapshot again, so
// the snapshot always matches the tree and the next pass re-issues their
// inserts.
func (u *listUpdater) resync(vm *UpdateVM) error {
	parent := u.bounds.BoundsParent()
	tail := u.bounds.LastNode().NextSibling()

	tgt := &updateTarget{lu: u, tail: tail}
	iter := list.IteratorFor(u.listRef.Value(), u.keyFn)
	if err := list.Sync(u.artifacts, iter, tgt); err != nil {
		return err
	}
	for _, it := range tgt.failed {
		u.artifacts.Remove(it)
	}
	u.recomputeBounds(parent, tail)
	u.tag.Update(u.combinedTag())
	vm.stats.ListSyncs++
	if err := errors.Join(tgt.errs...); err != nil {
		return err
	}
	u.listRev = u.listRef.Tag().Value()
	u.rev = u.tag.Value()
	return nil
}

// renderItem executes the list body for one item, with the item's value and
// memo references bound to the block parameter slots.
func (u *listUpdater) renderItem(b *dom.Builder, item *list.Item) (*blockUpdater, error) {
	scope := u.scope.Child()
	if u.blk.ValueSlot >= 0 {
		scope.Set(u.blk.ValueSlot, item.Value)
	}
	if u.blk.MemoSlot >= 0 {
		scope.Set(u.blk.MemoSlot, item.Memo)
	}
	return newExec(u.env, u.prog, b).execBlock(scope, u.blk.Begin, u.blk.End)
}

// insertionRef computes the node a new or moved item region must land in
// front of. Items without a rendered block (a previously failed insert) are
// skipped over; tail is the node just past the region, captured before the
// sync started. A nil result appends at the parent's end.
func (u *listUpdater) insertionRef(item *list.Item, before *list.Item, tail dom.Node) dom.Node {
	if before != nil {
		if blk := u.items[before.Key]; blk != nil {
			return blk.bounds.FirstNode()
		}
	}
	for prev := item.Prev(); prev != nil; prev = prev.Prev() {
		if blk := u.items[prev.Key]; blk != nil {
			return blk.bounds.LastNode().NextSibling()
		}
	}
	if u.anchor != nil {
		return u.anchor
	}
	return tail
}

// recomputeBounds rebuilds the region's extent from the current item order.
// An emptied list gets a comment anchor at the region position; a list that
// regrew drops it.
func (u *listUpdater) recomputeBounds(parent *dom.Element, tail dom.Node) {
	u.bounds.Reset()
	if u.artifacts.Len() == 0 {
		if u.anchor == nil {
			u.anchor = dom.NewComment("")
			parent.InsertBefore(u.anchor, tail)
		}
		u.bounds.DidAppend(dom.SingleNodeBounds(parent, u.anchor))
		return
	}
	if u.anchor != nil {
		parent.RemoveChild(u.anchor)
		u.anchor = nil
	}
	u.bounds.DidAppend(u.items[u.artifacts.First().Key].bounds)
	u.bounds.DidAppend(u.items[u.artifacts.Last().Key].bounds)
}

// buildTarget renders the initial population of a list: every operation is
// an insert at the builder's current position.
type buildTarget struct {
	vm  *ExecVM
	lu  *listUpdater
	err error
}

func (t *buildTarget) Retain(*list.Item)           {}
func (t *buildTarget) Move(*list.Item, *list.Item) {}
func (t *buildTarget) Delete(*list.Item)           {}

func (t *buildTarget) Insert(item *list.Item, _ *list.Item) {
	if t.err != nil {
		return
	}
	blk, err := t.lu.renderItem(t.vm.builder, item)
	if err != nil {
		t.err = err
		return
	}
	t.lu.items[item.Key] = blk
}

// updateTarget maps reconciliation operations onto the live tree: retained
// items are left alone, moved items relocate their whole region, inserts
// render the body in place, deletes clear the region and run destructors.
// A failed insert removes its partial output and is recorded for rollback,
// so the region only ever holds whole items.
type updateTarget struct {
	lu   *listUpdater
	tail dom.Node

	failed []*list.Item
	errs   []error
}

func (t *updateTarget) Retain(*list.Item) {}

func (t *updateTarget) Insert(item *list.Item, before *list.Item) {
	parent := t.lu.bounds.BoundsParent()
	ref := t.lu.insertionRef(item, before, t.tail)
	mark := parent.LastChild()
	if ref != nil {
		mark = ref.PrevSibling()
	}
	blk, err := t.lu.renderItem(dom.NewBuilderBefore(parent, ref), item)
	if err != nil {
		removeBetween(parent, mark, ref)
		t.failed = append(t.failed, item)
		t.errs = append(t.errs, err)
		return
	}
	t.lu.items[item.Key] = blk
}

func (t *updateTarget) Move(item *list.Item, before *list.Item) {
	blk := t.lu.items[item.Key]
	if blk == nil {
		return
	}
	parent := t.lu.bounds.BoundsParent()
	dom.MoveRange(blk.bounds, parent, t.lu.insertionRef(item, before, t.tail))
}

func (t *updateTarget) Delete(item *list.Item) {
	blk := t.lu.items[item.Key]
	if blk == nil {
		return
	}
	blk.destroy()
	dom.Clear(blk.bounds)
	delete(t.lu.items, item.Key)
}

// removeBetween detaches the children strictly between mark and ref. A nil
// mark starts at the parent's first child; a nil ref runs to the end.
func removeBetween(parent *dom.Element, mark, ref dom.Node) {
	start := parent.FirstChild()
	if mark != nil {
		start = mark.NextSibling()
	}
	for n := start; n != nil && n != ref; {
		next := n.NextSibling()
		parent.RemoveChild(n)
		n = next
	}
}
