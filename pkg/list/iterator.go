package list

import (
	"fmt"
	"sort"

	"github.com/chazu/reflow/pkg/reference"
)

// Result is one produced entry of a fresh iteration: the identity key, the
// item payload and the positional payload.
type Result struct {
	Key   string
	Value any
	Memo  any
}

// Iterator produces the keyed entries of the current sequence in order.
// Next returns nil when the sequence is exhausted.
type Iterator interface {
	Next() *Result
}

// KeyFunc derives the identity key for an entry from its value and memo.
type KeyFunc func(value, memo any) string

// KeyByIndex keys entries by position. Only suitable for lists that never
// reorder: identity follows the slot, not the item.
func KeyByIndex(_, memo any) string {
	return fmt.Sprintf("%v", memo)
}

// KeyByProperty keys entries by a property of the value, e.g. an id field.
func KeyByProperty(name string) KeyFunc {
	return func(value, _ any) string {
		return fmt.Sprintf("%v", reference.GetProperty(value, name))
	}
}

type sliceIterator struct {
	items []any
	pos   int
	key   KeyFunc
}

func (it *sliceIterator) Next() *Result {
	if it.pos >= len(it.items) {
		return nil
	}
	v := it.items[it.pos]
	memo := it.pos
	it.pos++
	return &Result{Key: it.key(v, memo), Value: v, Memo: memo}
}

type mapIterator struct {
	keys   []string
	values map[string]any
	pos    int
	key    KeyFunc
}

func (it *mapIterator) Next() *Result {
	if it.pos >= len(it.keys) {
		return nil
	}
	k := it.keys[it.pos]
	it.pos++
	v := it.values[k]
	return &Result{Key: it.key(v, k), Value: v, Memo: k}
}

type emptyIterator struct{}

func (emptyIterator) Next() *Result { return nil }

// IteratorFor adapts a produced Go value to an Iterator. Slices iterate in
// order with the index as memo; maps iterate in sorted key order (for
// determinism) with the key as memo. A nil keyFor uses the memo as the
// identity key. Nil and unsupported values iterate as empty.
func IteratorFor(value any, keyFor KeyFunc) Iterator {
	if keyFor == nil {
		keyFor = KeyByIndex
	}
	switch v := value.(type) {
	case nil:
		return emptyIterator{}
	case []any:
		return &sliceIterator{items: v, key: keyFor}
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return &mapIterator{keys: keys, values: v, key: keyFor}
	case Iterator:
		return v
	default:
		return emptyIterator{}
	}
}
