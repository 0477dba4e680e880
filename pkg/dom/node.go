// Package dom provides the abstract ordered output tree the engine renders
// into, plus the builder that constructs it incrementally and the bounds
// bookkeeping that lets a rendered region be located and replaced without
// touching its siblings.
//
// The tree is deliberately platform-neutral: nodes, sibling links, and
// insert/remove-range operations. Hosts bridge it to a concrete target
// (markup serialization, a UI toolkit) outside the engine.
package dom

import (
	"fmt"
	"strings"
)

// Node is one node of the output tree.
type Node interface {
	Parent() *Element
	NextSibling() Node
	PrevSibling() Node

	setParent(*Element)
	setNext(Node)
	setPrev(Node)
}

type baseNode struct {
	parent *Element
	prev   Node
	next   Node
}

func (n *baseNode) Parent() *Element  { return n.parent }
func (n *baseNode) NextSibling() Node { return n.next }
func (n *baseNode) PrevSibling() Node { return n.prev }

func (n *baseNode) setParent(e *Element) { n.parent = e }
func (n *baseNode) setNext(next Node)    { n.next = next }
func (n *baseNode) setPrev(prev Node)    { n.prev = prev }

// Attr is one element attribute. Order of setting is preserved.
type Attr struct {
	Name  string
	Value string
}

// Element is an interior node with a tag name, attributes and children.
type Element struct {
	baseNode
	TagName string

	attrs      []Attr
	firstChild Node
	lastChild  Node
}

// NewElement returns a detached element.
func NewElement(tag string) *Element {
	return &Element{TagName: tag}
}

// Text is a leaf carrying character data.
type Text struct {
	baseNode
	Data string
}

// NewText returns a detached text node.
func NewText(data string) *Text {
	return &Text{Data: data}
}

// Comment is a leaf carrying annotation data. Comments double as anchors for
// regions that rendered no nodes.
type Comment struct {
	baseNode
	Data string
}

// NewComment returns a detached comment node.
func NewComment(data string) *Comment {
	return &Comment{Data: data}
}

// FirstChild returns the element's first child, or nil.
func (e *Element) FirstChild() Node { return e.firstChild }

// LastChild returns the element's last child, or nil.
func (e *Element) LastChild() Node { return e.lastChild }

// SetAttribute sets or replaces an attribute.
func (e *Element) SetAttribute(name, value string) {
	for i := range e.attrs {
		if e.attrs[i].Name == name {
			e.attrs[i].Value = value
			return
		}
	}
	e.attrs = append(e.attrs, Attr{Name: name, Value: value})
}

// Attribute returns an attribute value and whether it is set.
func (e *Element) Attribute(name string) (string, bool) {
	for _, a := range e.attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Attributes returns the attributes in set order.
func (e *Element) Attributes() []Attr { return e.attrs }

// InsertBefore links node into e's children just before ref. A nil ref
// appends. The node must be detached.
func (e *Element) InsertBefore(node Node, ref Node) {
	if node.Parent() != nil {
		panic("dom: inserting an attached node")
	}
	node.setParent(e)
	if ref == nil {
		node.setPrev(e.lastChild)
		node.setNext(nil)
		if e.lastChild != nil {
			e.lastChild.setNext(node)
		} else {
			e.firstChild = node
		}
		e.lastChild = node
		return
	}
	if ref.Parent() != e {
		panic("dom: reference node is not a child")
	}
	node.setNext(ref)
	node.setPrev(ref.PrevSibling())
	if prev := ref.PrevSibling(); prev != nil {
		prev.setNext(node)
	} else {
		e.firstChild = node
	}
	ref.setPrev(node)
}

// AppendChild links node as e's last child.
func (e *Element) AppendChild(node Node) {
	e.InsertBefore(node, nil)
}

// RemoveChild unlinks node from e's children.
func (e *Element) RemoveChild(node Node) {
	if node.Parent() != e {
		panic("dom: removing a node that is not a child")
	}
	prev, next := node.PrevSibling(), node.NextSibling()
	if prev != nil {
		prev.setNext(next)
	} else {
		e.firstChild = next
	}
	if next != nil {
		next.setPrev(prev)
	} else {
		e.lastChild = prev
	}
	node.setParent(nil)
	node.setPrev(nil)
	node.setNext(nil)
}

// ChildCount returns the number of direct children.
func (e *Element) ChildCount() int {
	n := 0
	for c := e.firstChild; c != nil; c = c.NextSibling() {
		n++
	}
	return n
}

// ToMarkup serializes a node as HTML-flavored markup. Diagnostic and test
// aid; not an output target.
func ToMarkup(n Node) string {
	var sb strings.Builder
	writeMarkup(&sb, n)
	return sb.String()
}

// InnerMarkup serializes an element's children.
func InnerMarkup(e *Element) string {
	var sb strings.Builder
	for c := e.FirstChild(); c != nil; c = c.NextSibling() {
		writeMarkup(&sb, c)
	}
	return sb.String()
}

func writeMarkup(sb *strings.Builder, n Node) {
	switch node := n.(type) {
	case *Text:
		sb.WriteString(node.Data)
	case *Comment:
		sb.WriteString("<!--")
		sb.WriteString(node.Data)
		sb.WriteString("-->")
	case *Element:
		sb.WriteString("<")
		sb.WriteString(node.TagName)
		for _, a := range node.attrs {
			fmt.Fprintf(sb, " %s=%q", a.Name, a.Value)
		}
		sb.WriteString(">")
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			writeMarkup(sb, c)
		}
		sb.WriteString("</")
		sb.WriteString(node.TagName)
		sb.WriteString(">")
	}
}
