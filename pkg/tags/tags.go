// Package tags implements revision-based dependency invalidation.
//
// A Tag reports the revision at which the value observable through it last
// changed. Consumers capture a tag's revision after reading a value and later
// call Validate to find out, in O(1), whether a recompute is needed. Tags
// compose: Combine builds a tag that invalidates when any child invalidates.
//
// Revisions come from a Clock. The clock is injected rather than held in
// package state so tests and multiple independent render trees can each run
// their own timeline.
package tags

// Revision is a point on a clock's timeline. Revisions only ever increase.
type Revision uint64

const (
	// ConstRevision is reported by tags whose value can never change.
	ConstRevision Revision = 0

	// InitialRevision is the revision a fresh clock starts at.
	InitialRevision Revision = 1

	// VolatileRevision is reported by tags whose value must be treated as
	// changed on every validation.
	VolatileRevision Revision = ^Revision(0)
)

// Clock is a monotonically increasing revision counter. One clock governs one
// render tree; it is never reset outside test harnesses.
type Clock struct {
	rev Revision
}

// NewClock returns a clock positioned at InitialRevision.
func NewClock() *Clock {
	return &Clock{rev: InitialRevision}
}

// Current returns the clock's revision without advancing it.
func (c *Clock) Current() Revision {
	return c.rev
}

// Advance moves the clock forward one revision and returns the new value.
func (c *Clock) Advance() Revision {
	c.rev++
	return c.rev
}

// Tag reports the revision at which the state observable through it last
// changed. Value must be pure and O(1) amortized.
type Tag interface {
	Value() Revision
}

// Validate reports whether nothing observable through t has changed since
// lastSeen was captured via t.Value(). A volatile tag never validates.
func Validate(t Tag, lastSeen Revision) bool {
	v := t.Value()
	if v == VolatileRevision {
		return false
	}
	return v <= lastSeen
}

type constTag struct{}

func (constTag) Value() Revision { return ConstRevision }

// Const is the tag of values that never change. It validates against any
// captured revision.
var Const Tag = constTag{}

type volatileTag struct{}

func (volatileTag) Value() Revision { return VolatileRevision }

// Volatile is the tag of values that must be recomputed on every pass.
var Volatile Tag = volatileTag{}

// DirtyableTag is a caller-mutated tag. Dirty bumps it to the clock's next
// revision, invalidating every consumer that captured an earlier one.
type DirtyableTag struct {
	clock *Clock
	rev   Revision
}

// NewDirtyable returns a dirtyable tag positioned at the clock's current
// revision.
func NewDirtyable(clock *Clock) *DirtyableTag {
	return &DirtyableTag{clock: clock, rev: clock.Current()}
}

// Value returns the revision of the last Dirty call.
func (t *DirtyableTag) Value() Revision {
	return t.rev
}

// Dirty advances the clock and moves the tag to the new revision.
func (t *DirtyableTag) Dirty() {
	t.rev = t.clock.Advance()
}

// UpdatableTag wraps another tag that may be swapped out over time. Swapping
// marks the tag dirty, so consumers see the change even if the new inner tag
// reports an old revision.
type UpdatableTag struct {
	own   DirtyableTag
	inner Tag
}

// NewUpdatable returns an updatable tag wrapping inner. A nil inner behaves
// like Const.
func NewUpdatable(clock *Clock, inner Tag) *UpdatableTag {
	return &UpdatableTag{
		own:   DirtyableTag{clock: clock, rev: clock.Current()},
		inner: inner,
	}
}

// Value returns the most recent of the tag's own revision and the wrapped
// tag's revision.
func (t *UpdatableTag) Value() Revision {
	v := t.own.rev
	if t.inner != nil {
		if iv := t.inner.Value(); iv > v {
			v = iv
		}
	}
	return v
}

// Update swaps the wrapped tag and marks the updatable tag dirty.
func (t *UpdatableTag) Update(inner Tag) {
	t.inner = inner
	t.own.Dirty()
}

// Dirty marks the tag dirty without swapping the wrapped tag.
func (t *UpdatableTag) Dirty() {
	t.own.Dirty()
}

// combinatorTag reports the maximum revision of a fixed set of children. The
// maximum is cached per clock tick, so repeated validation within one pass
// costs O(1) regardless of fan-in.
type combinatorTag struct {
	clock    *Clock
	children []Tag
	cachedAt Revision
	cached   Revision
	valid    bool
}

// Combine returns a tag that invalidates when any child invalidates. Nil
// children are ignored. Zero children yields Const; one child is returned
// as-is.
func Combine(clock *Clock, children ...Tag) Tag {
	kept := make([]Tag, 0, len(children))
	for _, ch := range children {
		if ch == nil || ch == Const {
			continue
		}
		kept = append(kept, ch)
	}
	switch len(kept) {
	case 0:
		return Const
	case 1:
		return kept[0]
	}
	return &combinatorTag{clock: clock, children: kept}
}

func (t *combinatorTag) Value() Revision {
	now := t.clock.Current()
	if t.valid && t.cachedAt == now {
		return t.cached
	}
	var max Revision
	for _, ch := range t.children {
		if v := ch.Value(); v > max {
			max = v
		}
	}
	t.cachedAt = now
	t.cached = max
	t.valid = true
	return max
}
