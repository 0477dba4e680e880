// Package list implements keyed iteration snapshots and the reconciliation
// algorithm that keeps a rendered list in sync with its source sequence.
//
// An Artifacts value is the retained snapshot of the previous iteration: an
// ordered set of keyed items. Synchronizing a fresh sequence against it
// yields the minimal retain/move/insert/delete operations for the common
// cases (static, appended, prepended, truncated lists) while remaining
// correct for arbitrary reorders.
package list

import (
	"github.com/chazu/reflow/pkg/reference"
	"github.com/chazu/reflow/pkg/tags"
)

// Item is one keyed entry of an iteration snapshot. Value carries the item
// payload, Memo the positional payload (index for slices, key for maps).
// Items live on an intrusive doubly-linked list so reordering and pruning
// splice in O(1).
type Item struct {
	Key   string
	Value *reference.RootReference
	Memo  *reference.RootReference

	prev, next *Item
	seen       bool
}

// Next returns the following item in iteration order, or nil.
func (it *Item) Next() *Item { return it.next }

// Prev returns the preceding item in iteration order, or nil.
func (it *Item) Prev() *Item { return it.prev }

// Artifacts is the ordered, keyed snapshot of one rendered sequence.
type Artifacts struct {
	clock *tags.Clock
	head  *Item
	tail  *Item
	byKey map[string]*Item
}

// NewArtifacts returns an empty snapshot bound to the given clock.
func NewArtifacts(clock *tags.Clock) *Artifacts {
	return &Artifacts{clock: clock, byKey: make(map[string]*Item)}
}

// First returns the first item, or nil when empty.
func (a *Artifacts) First() *Item { return a.head }

// Last returns the last item, or nil when empty.
func (a *Artifacts) Last() *Item { return a.tail }

// Len returns the number of items.
func (a *Artifacts) Len() int { return len(a.byKey) }

// Has reports whether an item with the key exists.
func (a *Artifacts) Has(key string) bool {
	_, ok := a.byKey[key]
	return ok
}

// Get returns the item for key, or nil.
func (a *Artifacts) Get(key string) *Item { return a.byKey[key] }

// Insert creates a new item for key and links it before ref (nil appends).
func (a *Artifacts) Insert(key string, value, memo any, ref *Item) *Item {
	it := &Item{
		Key:   key,
		Value: reference.NewRoot(a.clock, value),
		Memo:  reference.NewRoot(a.clock, memo),
	}
	a.byKey[key] = it
	a.link(it, ref)
	return it
}

// Move relinks an existing item to sit before ref (nil moves to the end).
func (a *Artifacts) Move(it *Item, ref *Item) {
	if it == ref || (ref == nil && a.tail == it) {
		return
	}
	a.unlink(it)
	a.link(it, ref)
}

// Remove unlinks the item and forgets its key.
func (a *Artifacts) Remove(it *Item) {
	a.unlink(it)
	delete(a.byKey, it.Key)
	it.prev, it.next = nil, nil
}

// Keys returns the keys in iteration order. For tests and diagnostics.
func (a *Artifacts) Keys() []string {
	keys := make([]string, 0, len(a.byKey))
	for it := a.head; it != nil; it = it.next {
		keys = append(keys, it.Key)
	}
	return keys
}

func (a *Artifacts) link(it *Item, before *Item) {
	if before == nil {
		it.prev = a.tail
		it.next = nil
		if a.tail != nil {
			a.tail.next = it
		} else {
			a.head = it
		}
		a.tail = it
		return
	}
	it.next = before
	it.prev = before.prev
	if before.prev != nil {
		before.prev.next = it
	} else {
		a.head = it
	}
	before.prev = it
}

func (a *Artifacts) unlink(it *Item) {
	if it.prev != nil {
		it.prev.next = it.next
	} else if a.head == it {
		a.head = it.next
	}
	if it.next != nil {
		it.next.prev = it.prev
	} else if a.tail == it {
		a.tail = it.prev
	}
}
