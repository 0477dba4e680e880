package program

// The builder consumes a parsed, already-specialized statement tree. The
// types below are that tree: the engine never sees template source text,
// only these statements, so front ends (or hosts building trees directly)
// stay decoupled from the instruction format.

// Statement is one node of the input tree.
type Statement interface {
	stmt()
}

// Expression is a value-producing node referenced by statements.
type Expression interface {
	expr()
}

// PathExpression reads a property path. The first segment may name a block
// parameter (an Each value/memo name); otherwise the path is rooted at self.
type PathExpression struct {
	Segments []string
}

// StringLiteral is a constant string expression.
type StringLiteral struct {
	Value string
}

// IfExpression chooses between two result expressions on a condition's
// truth. Appended as content, a flip patches the existing node in place;
// only a block If replaces nodes.
type IfExpression struct {
	Cond Expression
	Then Expression
	Else Expression
}

func (*PathExpression) expr() {}
func (*StringLiteral) expr()  {}
func (*IfExpression) expr()   {}

// Text appends static text.
type Text struct {
	Content string
}

// Comment appends a comment node.
type Comment struct {
	Content string
}

// Append renders an expression's value as content. A string literal folds
// into plain text at build time. KnownText marks expressions the host
// guarantees always yield plain text, selecting the optimized in-place
// patch; otherwise the cautious form is emitted, which re-renders the
// enclosing region if the value's shape changes.
type Append struct {
	Expr      Expression
	KnownText bool
}

// OpenElement begins an element with the given tag name.
type OpenElement struct {
	Tag string
}

// StaticAttr sets a fixed attribute on the constructing element.
type StaticAttr struct {
	Name  string
	Value string
}

// DynamicAttr sets a reactive attribute from an expression.
type DynamicAttr struct {
	Name string
	Expr Expression
}

// FlushElement inserts the constructing element into the tree.
type FlushElement struct{}

// CloseElement ends the current element.
type CloseElement struct{}

// If renders Then when Cond is truthy, otherwise Else. Either branch may be
// empty.
type If struct {
	Cond Expression
	Then []Statement
	Else []Statement
}

// Each renders Body once per entry of the sequence produced by List,
// preserving entry identity by key. KeyPath names the value property used as
// the identity key; empty selects key-by-index. ValueName and MemoName bind
// the entry payloads as block parameters visible to Body's paths.
type Each struct {
	List      Expression
	KeyPath   string
	ValueName string
	MemoName  string
	Body      []Statement
}

// Component invokes a capability manager registered under Kind. Args are
// evaluated lazily; the manager receives them as references.
type Component struct {
	Kind string
	Args []NamedArg
}

// NamedArg is one named component argument.
type NamedArg struct {
	Name string
	Expr Expression
}

func (*Text) stmt()         {}
func (*Comment) stmt()      {}
func (*Append) stmt()       {}
func (*OpenElement) stmt()  {}
func (*StaticAttr) stmt()   {}
func (*DynamicAttr) stmt()  {}
func (*FlushElement) stmt() {}
func (*CloseElement) stmt() {}
func (*If) stmt()           {}
func (*Each) stmt()         {}
func (*Component) stmt()    {}
