package dom

// Bounds locates a contiguous run of sibling nodes. A rendered region keeps
// its bounds so it can later be cleared and re-rendered in place.
type Bounds interface {
	BoundsParent() *Element
	FirstNode() Node
	LastNode() Node
}

// ConcreteBounds is a fixed first/last pair under one parent.
type ConcreteBounds struct {
	parent *Element
	first  Node
	last   Node
}

// NewConcreteBounds captures the range [first, last] under parent. Both ends
// may be the same node for a single-node range.
func NewConcreteBounds(parent *Element, first, last Node) *ConcreteBounds {
	return &ConcreteBounds{parent: parent, first: first, last: last}
}

func (b *ConcreteBounds) BoundsParent() *Element { return b.parent }
func (b *ConcreteBounds) FirstNode() Node        { return b.first }
func (b *ConcreteBounds) LastNode() Node         { return b.last }

// SingleNodeBounds bounds exactly one node.
func SingleNodeBounds(parent *Element, node Node) *ConcreteBounds {
	return NewConcreteBounds(parent, node, node)
}

// Clear removes every node inside bounds from its parent and returns the
// sibling that followed the range, which is where replacement content
// belongs.
func Clear(b Bounds) Node {
	parent := b.BoundsParent()
	first, last := b.FirstNode(), b.LastNode()
	if first == nil {
		return nil
	}
	next := last.NextSibling()
	node := first
	for {
		after := node.NextSibling()
		parent.RemoveChild(node)
		if node == last {
			break
		}
		node = after
	}
	return next
}

// MoveRange relinks every node of bounds, in order, to sit under parent
// just before ref. Node identity is preserved.
func MoveRange(b Bounds, parent *Element, ref Node) {
	first, last := b.FirstNode(), b.LastNode()
	if first == nil {
		return
	}
	node := first
	for {
		next := node.NextSibling()
		node.Parent().RemoveChild(node)
		parent.InsertBefore(node, ref)
		if node == last {
			break
		}
		node = next
	}
}

// BlockBounds tracks the extent of a live rendered region. Nested regions
// contribute their own bounds as sources, so a nested re-render that swaps
// nodes keeps the enclosing extent valid without the parent re-running.
type BlockBounds struct {
	parent      *Element
	firstSource Bounds
	lastSource  Bounds
}

func (b *BlockBounds) BoundsParent() *Element { return b.parent }

func (b *BlockBounds) FirstNode() Node {
	if b.firstSource == nil {
		return nil
	}
	return b.firstSource.FirstNode()
}

func (b *BlockBounds) LastNode() Node {
	if b.lastSource == nil {
		return nil
	}
	return b.lastSource.LastNode()
}

// HasContent reports whether the region produced any nodes.
func (b *BlockBounds) HasContent() bool { return b.firstSource != nil }

// DidAppend records bounds for content appended to the region. The first
// recorded source pins the start; every later one advances the end.
func (b *BlockBounds) DidAppend(source Bounds) {
	if b.firstSource == nil {
		b.firstSource = source
	}
	b.lastSource = source
}

// Reset forgets the region's content, keeping its parent.
func (b *BlockBounds) Reset() {
	b.firstSource = nil
	b.lastSource = nil
}
