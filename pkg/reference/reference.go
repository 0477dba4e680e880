// Package reference implements lazily-evaluated, memoized value accessors.
//
// A Reference pairs a value computation with a tag describing when that value
// last changed. Reading a reference twice without an intervening revision
// change returns the identical cached result without recomputation. Path
// references chain, so a reference for a.b.c is three single-property
// references, each revalidating only its own segment.
package reference

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/chazu/reflow/pkg/tags"
)

// Reference is a cached reader of a value. Tag must be stable for the
// lifetime of the reference.
type Reference interface {
	Tag() tags.Tag
	Value() any
}

// PathReference is a reference that can derive child references for named
// properties.
type PathReference interface {
	Reference
	Get(property string) PathReference
}

// PropertySource lets host record types expose named fields to property
// lookup without reflection.
type PropertySource interface {
	GetProperty(name string) (any, bool)
}

// Cached is a single-entry memo: a (revision, value) pair. Zero value is
// ready for use.
type Cached struct {
	lastRevision tags.Revision
	lastValue    any
	valid        bool
}

// Get returns the cached value if tag still validates against the revision
// captured at the previous compute, otherwise recomputes and recaptures.
func (c *Cached) Get(t tags.Tag, compute func() any) any {
	if c.valid && tags.Validate(t, c.lastRevision) {
		return c.lastValue
	}
	c.lastValue = compute()
	c.lastRevision = t.Value()
	c.valid = true
	return c.lastValue
}

// Invalidate discards the memo so the next Get recomputes.
func (c *Cached) Invalidate() {
	c.valid = false
}

// GetProperty reads a named property from an arbitrary base value. Supported
// bases: PropertySource, map[string]any, and []any with a decimal index.
// Anything else (including nil) yields nil.
func GetProperty(base any, name string) any {
	switch b := base.(type) {
	case nil:
		return nil
	case PropertySource:
		v, _ := b.GetProperty(name)
		return v
	case map[string]any:
		return b[name]
	case []any:
		idx, err := strconv.Atoi(name)
		if err != nil || idx < 0 || idx >= len(b) {
			return nil
		}
		return b[idx]
	default:
		return nil
	}
}

// RootReference is a mutable root of a reference chain, typically the model
// behind a render. Writes advance its tag; external data arrival calls Set
// (or Dirty for in-place mutation) and then revalidates the render.
type RootReference struct {
	clock    *tags.Clock
	tag      *tags.UpdatableTag
	value    any
	children map[string]*PropertyReference
}

// NewRoot returns a root reference holding value.
func NewRoot(clock *tags.Clock, value any) *RootReference {
	return &RootReference{
		clock: clock,
		tag:   tags.NewUpdatable(clock, nil),
		value: value,
	}
}

func (r *RootReference) Tag() tags.Tag { return r.tag }

func (r *RootReference) Value() any { return r.value }

// Set replaces the held value and marks the reference dirty.
func (r *RootReference) Set(value any) {
	r.value = value
	r.tag.Dirty()
}

// Update replaces the held value only if it differs from the current one,
// leaving the tag untouched for equal comparable values.
func (r *RootReference) Update(value any) {
	if sameValue(r.value, value) {
		return
	}
	r.Set(value)
}

// Dirty marks the reference changed without replacing the value. Used after
// mutating the held value in place.
func (r *RootReference) Dirty() {
	r.tag.Dirty()
}

// Get returns the child reference for a property, creating and caching it on
// first use so repeated path walks share memos.
func (r *RootReference) Get(property string) PathReference {
	if r.children == nil {
		r.children = make(map[string]*PropertyReference)
	}
	if ch, ok := r.children[property]; ok {
		return ch
	}
	ch := newProperty(r.clock, r, property)
	r.children[property] = ch
	return ch
}

// PropertyReference reads one property off a parent reference. Its tag is
// the parent's tag: the segment changes when anything upstream changes.
type PropertyReference struct {
	clock    *tags.Clock
	parent   Reference
	name     string
	cache    Cached
	children map[string]*PropertyReference
}

func newProperty(clock *tags.Clock, parent Reference, name string) *PropertyReference {
	return &PropertyReference{clock: clock, parent: parent, name: name}
}

func (r *PropertyReference) Tag() tags.Tag { return r.parent.Tag() }

func (r *PropertyReference) Value() any {
	return r.cache.Get(r.Tag(), func() any {
		return GetProperty(r.parent.Value(), r.name)
	})
}

func (r *PropertyReference) Get(property string) PathReference {
	if r.children == nil {
		r.children = make(map[string]*PropertyReference)
	}
	if ch, ok := r.children[property]; ok {
		return ch
	}
	ch := newProperty(r.clock, r, property)
	r.children[property] = ch
	return ch
}

// Path walks a property path from a reference. If base does not implement
// PathReference the segments are composed with plain property references.
func Path(clock *tags.Clock, base Reference, segments []string) Reference {
	cur := base
	for _, seg := range segments {
		if pr, ok := cur.(PathReference); ok {
			cur = pr.Get(seg)
		} else {
			cur = newProperty(clock, cur, seg)
		}
	}
	return cur
}

// ConstReference holds a value that never changes.
type ConstReference struct {
	value any
}

// NewConst returns a constant reference.
func NewConst(value any) *ConstReference {
	return &ConstReference{value: value}
}

func (r *ConstReference) Tag() tags.Tag { return tags.Const }
func (r *ConstReference) Value() any    { return r.value }

// FuncReference computes its value on every read. Its tag is volatile, so
// consumers never cache across passes.
type FuncReference struct {
	compute func() any
}

// NewFunc returns a volatile computed reference.
func NewFunc(compute func() any) *FuncReference {
	return &FuncReference{compute: compute}
}

func (r *FuncReference) Tag() tags.Tag { return tags.Volatile }
func (r *FuncReference) Value() any    { return r.compute() }

// sameValue reports equality for comparable dynamic types; values of
// uncomparable types are never considered equal.
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if !reflect.TypeOf(a).Comparable() || !reflect.TypeOf(b).Comparable() {
		return false
	}
	return a == b
}

// Describe renders a reference value for diagnostics.
func Describe(r Reference) string {
	return fmt.Sprintf("%v (rev %d)", r.Value(), r.Tag().Value())
}
