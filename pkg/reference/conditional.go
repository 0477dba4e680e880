package reference

import (
	"reflect"

	"github.com/chazu/reflow/pkg/tags"
)

// TruthyFunc converts an arbitrary value to a boolean for conditional
// rendering. The function must be total: any value maps to exactly one of
// true or false.
type TruthyFunc func(any) bool

// Truthy is the default truthiness policy: nil, false, empty strings,
// numeric zero, and empty slices/arrays/maps are falsy; everything else,
// including a non-nil pointer to a zero value, is truthy.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case int:
		return x != 0
	case int8:
		return x != 0
	case int16:
		return x != 0
	case int32:
		return x != 0
	case int64:
		return x != 0
	case uint:
		return x != 0
	case uint8:
		return x != 0
	case uint16:
		return x != 0
	case uint32:
		return x != 0
	case uint64:
		return x != 0
	case float32:
		return x != 0
	case float64:
		return x != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() > 0
	case reflect.Ptr, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

// StrictTruthy treats only bool false and nil as falsy. Selected by the
// manifest's strict-bool mode for hosts that want no coercion surprises.
func StrictTruthy(v any) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

// ConditionalReference converts an inner reference's value to a boolean.
// It carries a secondary tag that is dirtied when the boolean flips, so a
// consumer can observe "was truthy, is no longer" without recomputing the
// underlying value itself.
type ConditionalReference struct {
	inner  Reference
	truthy TruthyFunc
	flip   *tags.DirtyableTag
	tag    tags.Tag
	cache  Cached
	last   bool
	seeded bool
}

// NewConditional wraps inner with the given truthiness policy. A nil policy
// selects the default Truthy.
func NewConditional(clock *tags.Clock, inner Reference, truthy TruthyFunc) *ConditionalReference {
	if truthy == nil {
		truthy = Truthy
	}
	flip := tags.NewDirtyable(clock)
	return &ConditionalReference{
		inner:  inner,
		truthy: truthy,
		flip:   flip,
		tag:    tags.Combine(clock, inner.Tag(), flip),
	}
}

// Tag combines the inner tag with the flip tag.
func (r *ConditionalReference) Tag() tags.Tag { return r.tag }

// Value returns the boolean for the inner value, memoized on the combined
// tag.
func (r *ConditionalReference) Value() any {
	return r.cache.Get(r.tag, func() any {
		b := r.truthy(r.inner.Value())
		if r.seeded && b != r.last {
			r.flip.Dirty()
		}
		r.last = b
		r.seeded = true
		return b
	})
}

// Bool is Value without the interface round trip.
func (r *ConditionalReference) Bool() bool {
	return r.Value().(bool)
}

// ChoiceReference selects between two references on a condition's truth.
// Its tag validates while the truth holds and both branches are unchanged,
// so a consumer holding a rendered node patches it in place on a flip
// instead of rebuilding.
type ChoiceReference struct {
	cond  *ConditionalReference
	then  Reference
	els   Reference
	tag   tags.Tag
	cache Cached
}

// NewChoice wraps cond with the given truthiness policy and selects between
// then and els. A nil policy selects the default Truthy.
func NewChoice(clock *tags.Clock, cond, then, els Reference, truthy TruthyFunc) *ChoiceReference {
	c := NewConditional(clock, cond, truthy)
	return &ChoiceReference{
		cond: c,
		then: then,
		els:  els,
		tag:  tags.Combine(clock, c.Tag(), then.Tag(), els.Tag()),
	}
}

// Tag combines the flip tag with both branch tags.
func (r *ChoiceReference) Tag() tags.Tag { return r.tag }

// Value returns the selected branch's value, memoized on the combined tag.
func (r *ChoiceReference) Value() any {
	return r.cache.Get(r.tag, func() any {
		if r.cond.Bool() {
			return r.then.Value()
		}
		return r.els.Value()
	})
}
