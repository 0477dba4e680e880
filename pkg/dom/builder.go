package dom

// cursor is one insertion point: new nodes go under parent, just before
// before (nil means append).
type cursor struct {
	parent *Element
	before Node
}

// trackerEntry pairs a block's bounds with the cursor depth it was opened
// at. Only appends at that depth extend the block directly; deeper appends
// are covered by their enclosing element's bounds.
type trackerEntry struct {
	bounds *BlockBounds
	depth  int
}

// Builder constructs tree content at a movable insertion point. Elements
// open, take attributes, flush, and close; blocks open and close to produce
// tracked bounds for the content rendered between them.
type Builder struct {
	cursors      []cursor
	blocks       []trackerEntry
	constructing *Element
}

// NewBuilder returns a builder appending to parent.
func NewBuilder(parent *Element) *Builder {
	return NewBuilderBefore(parent, nil)
}

// NewBuilderBefore returns a builder inserting under parent just before the
// given sibling. Used to re-render a cleared region in place.
func NewBuilderBefore(parent *Element, before Node) *Builder {
	return &Builder{cursors: []cursor{{parent: parent, before: before}}}
}

func (b *Builder) cursor() cursor { return b.cursors[len(b.cursors)-1] }

// CurrentParent returns the element new nodes are inserted under.
func (b *Builder) CurrentParent() *Element { return b.cursor().parent }

// CurrentBefore returns the sibling new nodes are inserted before, or nil.
func (b *Builder) CurrentBefore() Node { return b.cursor().before }

func (b *Builder) insert(node Node) {
	c := b.cursor()
	c.parent.InsertBefore(node, c.before)
	b.recordAppend(SingleNodeBounds(c.parent, node))
}

// recordAppend extends the innermost block, but only when that block was
// opened at the current insertion depth. Deeper content is spanned by the
// element append that introduced the depth.
func (b *Builder) recordAppend(bounds Bounds) {
	if len(b.blocks) == 0 {
		return
	}
	top := &b.blocks[len(b.blocks)-1]
	if top.depth == len(b.cursors)-1 {
		top.bounds.DidAppend(bounds)
	}
}

// AppendText inserts a text node at the insertion point.
func (b *Builder) AppendText(data string) *Text {
	node := NewText(data)
	b.insert(node)
	return node
}

// AppendComment inserts a comment node at the insertion point.
func (b *Builder) AppendComment(data string) *Comment {
	node := NewComment(data)
	b.insert(node)
	return node
}

// OpenElement begins constructing an element. Attributes may be set until
// FlushElement attaches it.
func (b *Builder) OpenElement(tag string) *Element {
	if b.constructing != nil {
		panic("dom: OpenElement before previous element was flushed")
	}
	b.constructing = NewElement(tag)
	return b.constructing
}

// SetAttribute sets an attribute on the element under construction.
func (b *Builder) SetAttribute(name, value string) {
	if b.constructing == nil {
		panic("dom: SetAttribute with no element under construction")
	}
	b.constructing.SetAttribute(name, value)
}

// FlushElement attaches the element under construction and descends into it:
// subsequent appends become its children until CloseElement.
func (b *Builder) FlushElement() *Element {
	if b.constructing == nil {
		panic("dom: FlushElement with no element under construction")
	}
	el := b.constructing
	b.constructing = nil
	b.insert(el)
	b.cursors = append(b.cursors, cursor{parent: el, before: nil})
	return el
}

// CloseElement ends the current element's children and returns to its
// parent's insertion point.
func (b *Builder) CloseElement() {
	if len(b.cursors) <= 1 {
		panic("dom: CloseElement with no open element")
	}
	b.cursors = b.cursors[:len(b.cursors)-1]
}

// PushBlock begins a tracked region at the insertion point.
func (b *Builder) PushBlock() *BlockBounds {
	bounds := &BlockBounds{parent: b.cursor().parent}
	b.blocks = append(b.blocks, trackerEntry{bounds: bounds, depth: len(b.cursors) - 1})
	return bounds
}

// PopBlock ends the innermost tracked region and returns its bounds. A
// region that produced no nodes gets a comment anchor so it still occupies a
// stable position among its siblings.
func (b *Builder) PopBlock() *BlockBounds {
	if len(b.blocks) == 0 {
		panic("dom: PopBlock with no open block")
	}
	entry := b.blocks[len(b.blocks)-1]
	if !entry.bounds.HasContent() {
		b.AppendComment("")
	}
	b.blocks = b.blocks[:len(b.blocks)-1]
	b.recordAppend(entry.bounds)
	return entry.bounds
}

// PushCursor moves the insertion point to an arbitrary position. Paired
// with PopCursor.
func (b *Builder) PushCursor(parent *Element, before Node) {
	b.cursors = append(b.cursors, cursor{parent: parent, before: before})
}

// PopCursor restores the insertion point saved by PushCursor.
func (b *Builder) PopCursor() {
	if len(b.cursors) <= 1 {
		panic("dom: PopCursor with no pushed cursor")
	}
	b.cursors = b.cursors[:len(b.cursors)-1]
}
