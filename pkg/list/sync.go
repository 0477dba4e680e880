package list

import "fmt"

// DuplicateKeyError reports a sequence that produced the same identity key
// twice. Proceeding would corrupt identity-preserving updates for unrelated
// siblings, so synchronization fails fast before any operation is emitted.
type DuplicateKeyError struct {
	Key string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("list: duplicate iteration key %q", e.Key)
}

// Target receives the reconciliation operations in order. Retain and Move
// refer to items that survive from the previous snapshot; Insert introduces
// a freshly created item. The before argument is the item the subject must
// end up in front of; nil means the end of the list.
type Target interface {
	Retain(item *Item)
	Insert(item *Item, before *Item)
	Move(item *Item, before *Item)
	Delete(item *Item)
}

// Sync transforms artifacts into the sequence produced by iter, emitting the
// operations against target. Item identity is preserved by key: an entry
// whose key reappears keeps its Item (and therefore its rendered output),
// with its value and memo references updated in place.
//
// Two phases. The append phase walks the new sequence with a cursor over the
// old order: a cursor hit is a retain, a key found elsewhere is a move to
// just before the cursor, an unknown key is an insert. Old items whose keys
// no longer occur at all are stepped over rather than moved around. The
// prune phase then deletes every old entry the append phase never saw.
// A static, appended, prepended or truncated sequence therefore costs O(n)
// with zero moves; arbitrary reorders stay correct at the cost of one move
// per out-of-order item.
func Sync(artifacts *Artifacts, iter Iterator, target Target) error {
	// Drain the iterator up front so duplicate keys are rejected before any
	// operation mutates the snapshot, and so the append phase can tell a
	// removed cursor item from a moved one.
	var results []*Result
	wanted := make(map[string]struct{})
	for {
		res := iter.Next()
		if res == nil {
			break
		}
		if _, dup := wanted[res.Key]; dup {
			return &DuplicateKeyError{Key: res.Key}
		}
		wanted[res.Key] = struct{}{}
		results = append(results, res)
	}

	cursor := artifacts.First()
	for _, res := range results {
		// Step over old items that are gone from the new sequence; the
		// prune phase collects them.
		for cursor != nil && cursor.Key != res.Key {
			if _, stillWanted := wanted[cursor.Key]; stillWanted {
				break
			}
			cursor = cursor.Next()
		}

		switch {
		case cursor != nil && cursor.Key == res.Key:
			item := cursor
			cursor = cursor.Next()
			item.seen = true
			item.Value.Update(res.Value)
			item.Memo.Update(res.Memo)
			target.Retain(item)

		case artifacts.Has(res.Key):
			item := artifacts.Get(res.Key)
			item.seen = true
			item.Value.Update(res.Value)
			item.Memo.Update(res.Memo)
			artifacts.Move(item, cursor)
			target.Move(item, cursor)

		default:
			item := artifacts.Insert(res.Key, res.Value, res.Memo, cursor)
			item.seen = true
			target.Insert(item, cursor)
		}
	}

	// Prune phase: anything not seen during append is gone from the new
	// sequence. Seen flags are reset so the next pass starts clean.
	for it := artifacts.First(); it != nil; {
		next := it.Next()
		if it.seen {
			it.seen = false
		} else {
			artifacts.Remove(it)
			target.Delete(it)
		}
		it = next
	}
	return nil
}
