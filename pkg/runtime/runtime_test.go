package runtime

import (
	"errors"
	"testing"

	"github.com/chazu/reflow/pkg/dom"
	"github.com/chazu/reflow/pkg/list"
	"github.com/chazu/reflow/pkg/program"
	"github.com/chazu/reflow/pkg/reference"
	"github.com/chazu/reflow/pkg/tags"
)

func compile(t *testing.T, stmts []program.Statement) *program.Program {
	t.Helper()
	prog, err := program.Compile("test", stmts)
	if err != nil {
		t.Fatalf("compile: %s", err)
	}
	return prog
}

func path(segments ...string) *program.PathExpression {
	return &program.PathExpression{Segments: segments}
}

type fixture struct {
	env  *Environment
	self *reference.RootReference
	root *dom.Element
	res  *Result
}

func render(t *testing.T, stmts []program.Statement, model any) *fixture {
	t.Helper()
	env := NewEnvironment()
	self := reference.NewRoot(env.Clock, model)
	root := dom.NewElement("main")
	res, err := Render(env, compile(t, stmts), self, root)
	if err != nil {
		t.Fatalf("render: %s", err)
	}
	return &fixture{env: env, self: self, root: root, res: res}
}

func (f *fixture) revalidate(t *testing.T) UpdateStats {
	t.Helper()
	stats, err := f.res.Revalidate()
	if err != nil {
		t.Fatalf("revalidate: %s", err)
	}
	return stats
}

func (f *fixture) markup() string {
	return dom.InnerMarkup(f.root)
}

func TestStaticRender(t *testing.T) {
	f := render(t, []program.Statement{
		&program.OpenElement{Tag: "p"},
		&program.StaticAttr{Name: "class", Value: "note"},
		&program.FlushElement{},
		&program.Text{Content: "hello"},
		&program.CloseElement{},
	}, nil)

	if got := f.markup(); got != `<p class="note">hello</p>` {
		t.Fatalf("unexpected markup %q", got)
	}
}

func TestRevalidateUnchangedDoesNothing(t *testing.T) {
	f := render(t, []program.Statement{
		&program.OpenElement{Tag: "p"},
		&program.FlushElement{},
		&program.Append{Expr: path("name"), KnownText: true},
		&program.CloseElement{},
	}, map[string]any{"name": "alice"})

	stats := f.revalidate(t)
	if stats != (UpdateStats{}) {
		t.Fatalf("unchanged input did work: %+v", stats)
	}
}

func TestTextPatchedInPlace(t *testing.T) {
	f := render(t, []program.Statement{
		&program.OpenElement{Tag: "p"},
		&program.FlushElement{},
		&program.Append{Expr: path("name"), KnownText: true},
		&program.CloseElement{},
	}, map[string]any{"name": "alice"})

	p := f.root.FirstChild().(*dom.Element)
	node := p.FirstChild()

	f.self.Set(map[string]any{"name": "bob"})
	stats := f.revalidate(t)

	if stats.TextPatches != 1 {
		t.Errorf("expected 1 text patch, got %+v", stats)
	}
	if got := f.markup(); got != "<p>bob</p>" {
		t.Fatalf("unexpected markup %q", got)
	}
	if p.FirstChild() != node {
		t.Errorf("text node was replaced instead of patched")
	}
}

func TestAttributePatchedInPlace(t *testing.T) {
	f := render(t, []program.Statement{
		&program.OpenElement{Tag: "a"},
		&program.DynamicAttr{Name: "href", Expr: path("url")},
		&program.FlushElement{},
		&program.CloseElement{},
	}, map[string]any{"url": "/home"})

	el := f.root.FirstChild().(*dom.Element)

	f.self.Set(map[string]any{"url": "/away"})
	stats := f.revalidate(t)

	if stats.AttrPatches != 1 {
		t.Errorf("expected 1 attr patch, got %+v", stats)
	}
	if v, _ := el.Attribute("href"); v != "/away" {
		t.Errorf("expected patched href, got %q", v)
	}
	if f.root.FirstChild() != el {
		t.Errorf("element was replaced instead of patched")
	}
}

func TestConditionalFlipRendersOtherBranch(t *testing.T) {
	f := render(t, []program.Statement{
		&program.If{
			Cond: path("active"),
			Then: []program.Statement{&program.Text{Content: "on"}},
			Else: []program.Statement{&program.Text{Content: "off"}},
		},
	}, map[string]any{"active": true})

	if got := f.markup(); got != "on" {
		t.Fatalf("expected on, got %q", got)
	}

	f.self.Set(map[string]any{"active": false})
	stats := f.revalidate(t)

	if stats.BlockRerenders != 1 {
		t.Errorf("expected 1 block re-execution, got %+v", stats)
	}
	if got := f.markup(); got != "off" {
		t.Fatalf("expected off, got %q", got)
	}

	// Nothing changed since; the whole tree validates.
	if stats := f.revalidate(t); stats != (UpdateStats{}) {
		t.Errorf("settled tree did work: %+v", stats)
	}
}

func TestConditionalSameTruthPatchesInside(t *testing.T) {
	f := render(t, []program.Statement{
		&program.If{
			Cond: path("user"),
			Then: []program.Statement{&program.Append{Expr: path("user", "name"), KnownText: true}},
			Else: []program.Statement{&program.Text{Content: "anonymous"}},
		},
	}, map[string]any{"user": map[string]any{"name": "alice"}})

	f.self.Set(map[string]any{"user": map[string]any{"name": "bob"}})
	stats := f.revalidate(t)

	// Still truthy: the branch must not re-execute, only its text patches.
	if stats.BlockRerenders != 0 || stats.TextPatches != 1 {
		t.Errorf("expected a lone text patch, got %+v", stats)
	}
	if got := f.markup(); got != "bob" {
		t.Fatalf("expected bob, got %q", got)
	}
}

func TestInlineConditionalPatchesTextInPlace(t *testing.T) {
	f := render(t, []program.Statement{
		&program.OpenElement{Tag: "p"},
		&program.FlushElement{},
		&program.Append{
			Expr: &program.IfExpression{
				Cond: path("active"),
				Then: &program.StringLiteral{Value: "A"},
				Else: &program.StringLiteral{Value: "B"},
			},
			KnownText: true,
		},
		&program.CloseElement{},
	}, map[string]any{"active": true})

	p := f.root.FirstChild().(*dom.Element)
	node := p.FirstChild()
	if got := f.markup(); got != "<p>A</p>" {
		t.Fatalf("unexpected markup %q", got)
	}

	f.self.Set(map[string]any{"active": false})
	stats := f.revalidate(t)

	// The flip patches the rendered text node; no nodes are created or
	// destroyed and no region re-executes.
	if stats.TextPatches != 1 || stats.BlockRerenders != 0 {
		t.Errorf("expected a lone text patch, got %+v", stats)
	}
	if got := f.markup(); got != "<p>B</p>" {
		t.Fatalf("unexpected markup %q", got)
	}
	if p.FirstChild() != node {
		t.Errorf("text node was replaced instead of patched")
	}
}

func TestSiblingBlockSkipped(t *testing.T) {
	f := render(t, []program.Statement{
		&program.If{
			Cond: path("left"),
			Then: []program.Statement{&program.Text{Content: "L"}},
		},
		&program.If{
			Cond: path("right"),
			Then: []program.Statement{&program.Text{Content: "R"}},
		},
	}, map[string]any{"left": true, "right": true})

	if got := f.markup(); got != "LR" {
		t.Fatalf("expected LR, got %q", got)
	}

	f.self.Set(map[string]any{"left": false, "right": true})
	stats := f.revalidate(t)

	if stats.BlockRerenders != 1 {
		t.Errorf("flipping one sibling re-executed %d blocks", stats.BlockRerenders)
	}
	if got := f.markup(); got != "<!---->R" {
		t.Fatalf("unexpected markup %q", got)
	}
}

func itemModel(pairs ...[2]string) map[string]any {
	items := make([]any, 0, len(pairs))
	for _, p := range pairs {
		items = append(items, map[string]any{"id": p[0], "name": p[1]})
	}
	return map[string]any{"items": items}
}

func listStatements() []program.Statement {
	return []program.Statement{
		&program.OpenElement{Tag: "ul"},
		&program.FlushElement{},
		&program.Each{
			List:      path("items"),
			KeyPath:   "id",
			ValueName: "item",
			Body: []program.Statement{
				&program.OpenElement{Tag: "li"},
				&program.FlushElement{},
				&program.Append{Expr: path("item", "name"), KnownText: true},
				&program.CloseElement{},
			},
		},
		&program.CloseElement{},
	}
}

func listItems(f *fixture) []*dom.Element {
	ul := f.root.FirstChild().(*dom.Element)
	var lis []*dom.Element
	for c := ul.FirstChild(); c != nil; c = c.NextSibling() {
		if el, ok := c.(*dom.Element); ok {
			lis = append(lis, el)
		}
	}
	return lis
}

func TestKeyedListInitialRender(t *testing.T) {
	f := render(t, listStatements(), itemModel(
		[2]string{"1", "one"}, [2]string{"2", "two"}, [2]string{"3", "three"},
	))

	want := "<ul><li>one</li><li>two</li><li>three</li></ul>"
	if got := f.markup(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestKeyedListReorderPreservesIdentity(t *testing.T) {
	f := render(t, listStatements(), itemModel(
		[2]string{"1", "one"}, [2]string{"2", "two"}, [2]string{"3", "three"},
	))
	before := listItems(f)

	f.self.Set(itemModel(
		[2]string{"2", "two"}, [2]string{"1", "one"}, [2]string{"3", "three"}, [2]string{"4", "four"},
	))
	stats := f.revalidate(t)

	if stats.ListSyncs != 1 {
		t.Errorf("expected 1 list sync, got %+v", stats)
	}
	want := "<ul><li>two</li><li>one</li><li>three</li><li>four</li></ul>"
	if got := f.markup(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	after := listItems(f)
	if len(after) != 4 {
		t.Fatalf("expected 4 items, got %d", len(after))
	}
	// Surviving entries keep their rendered elements.
	if after[0] != before[1] || after[1] != before[0] || after[2] != before[2] {
		t.Errorf("reorder replaced nodes instead of moving them")
	}
}

func TestKeyedListRemoval(t *testing.T) {
	f := render(t, listStatements(), itemModel(
		[2]string{"1", "one"}, [2]string{"2", "two"}, [2]string{"3", "three"},
	))
	before := listItems(f)

	f.self.Set(itemModel([2]string{"1", "one"}, [2]string{"3", "three"}))
	f.revalidate(t)

	want := "<ul><li>one</li><li>three</li></ul>"
	if got := f.markup(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	after := listItems(f)
	if after[0] != before[0] || after[1] != before[2] {
		t.Errorf("removal disturbed surviving nodes")
	}
}

func TestKeyedListEmptyTransitions(t *testing.T) {
	f := render(t, listStatements(), itemModel())

	if got := f.markup(); got != "<ul><!----></ul>" {
		t.Fatalf("empty list should render an anchor, got %q", got)
	}

	f.self.Set(itemModel([2]string{"1", "one"}, [2]string{"2", "two"}))
	f.revalidate(t)
	if got := f.markup(); got != "<ul><li>one</li><li>two</li></ul>" {
		t.Fatalf("population failed, got %q", got)
	}

	f.self.Set(itemModel())
	f.revalidate(t)
	if got := f.markup(); got != "<ul><!----></ul>" {
		t.Fatalf("emptying should restore the anchor, got %q", got)
	}
}

func TestKeyedListItemContentPatches(t *testing.T) {
	f := render(t, listStatements(), itemModel(
		[2]string{"1", "one"}, [2]string{"2", "two"},
	))
	before := listItems(f)

	f.self.Set(itemModel([2]string{"1", "uno"}, [2]string{"2", "two"}))
	stats := f.revalidate(t)

	if stats.TextPatches != 1 {
		t.Errorf("expected 1 text patch, got %+v", stats)
	}
	if got := f.markup(); got != "<ul><li>uno</li><li>two</li></ul>" {
		t.Fatalf("unexpected markup %q", got)
	}
	if after := listItems(f); after[0] != before[0] {
		t.Errorf("content change replaced the item element")
	}
}

func TestDuplicateKeyFailsListButNotSiblings(t *testing.T) {
	stmts := append(listStatements(),
		&program.OpenElement{Tag: "p"},
		&program.FlushElement{},
		&program.Append{Expr: path("status"), KnownText: true},
		&program.CloseElement{},
	)
	model := itemModel([2]string{"1", "one"}, [2]string{"2", "two"})
	model["status"] = "ok"
	f := render(t, stmts, model)

	bad := itemModel([2]string{"1", "one"}, [2]string{"1", "again"})
	bad["status"] = "changed"
	f.self.Set(bad)

	stats, err := f.res.Revalidate()
	var dup *list.DuplicateKeyError
	if !errors.As(err, &dup) {
		t.Fatalf("expected a duplicate key error, got %v", err)
	}
	// The list kept its previous output; the sibling still updated.
	if got := f.markup(); got != "<ul><li>one</li><li>two</li></ul><p>changed</p>" {
		t.Fatalf("unexpected markup %q", got)
	}
	if stats.TextPatches != 1 {
		t.Errorf("sibling patch missing: %+v", stats)
	}
}

type widgetManager struct {
	tag       *tags.DirtyableTag
	node      *dom.Text
	label     reference.Reference
	creates   int
	updates   int
	destroyed bool
}

func (m *widgetManager) Create(env *Environment, kind string, args map[string]reference.Reference, b *dom.Builder) (any, error) {
	m.creates++
	m.label = args["label"]
	m.node = b.AppendText("[" + contentString(m.label.Value()) + "]")
	return m, nil
}

func (m *widgetManager) Update(instance any) error {
	m.updates++
	m.node.Data = "[" + contentString(m.label.Value()) + "]"
	return nil
}

func (m *widgetManager) Tag(instance any) tags.Tag { return m.tag }

func (m *widgetManager) Destructor(instance any) func() {
	return func() { m.destroyed = true }
}

func TestManagerLifecycle(t *testing.T) {
	env := NewEnvironment()
	mgr := &widgetManager{tag: tags.NewDirtyable(env.Clock)}
	if err := env.RegisterManager("widget", mgr); err != nil {
		t.Fatalf("register: %s", err)
	}
	if err := env.RegisterManager("widget", mgr); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}

	self := reference.NewRoot(env.Clock, map[string]any{"title": "hi"})
	root := dom.NewElement("main")
	prog := compile(t, []program.Statement{
		&program.Component{Kind: "widget", Args: []program.NamedArg{
			{Name: "label", Expr: path("title")},
		}},
	})
	res, err := Render(env, prog, self, root)
	if err != nil {
		t.Fatalf("render: %s", err)
	}

	if mgr.creates != 1 {
		t.Errorf("expected one create, got %d", mgr.creates)
	}
	if got := dom.InnerMarkup(root); got != "[hi]" {
		t.Fatalf("unexpected markup %q", got)
	}

	self.Set(map[string]any{"title": "bye"})
	mgr.tag.Dirty()
	stats, err := res.Revalidate()
	if err != nil {
		t.Fatalf("revalidate: %s", err)
	}
	if stats.ManagerUpdates != 1 || mgr.updates != 1 {
		t.Errorf("expected one manager update, got stats %+v, updates %d", stats, mgr.updates)
	}
	if got := dom.InnerMarkup(root); got != "[bye]" {
		t.Fatalf("unexpected markup %q", got)
	}

	res.Destroy()
	if !mgr.destroyed {
		t.Errorf("destructor did not run")
	}
	if got := dom.InnerMarkup(root); got != "" {
		t.Errorf("destroy left output behind: %q", got)
	}
}

func TestMissingManagerFailsRender(t *testing.T) {
	env := NewEnvironment()
	self := reference.NewRoot(env.Clock, nil)
	prog := compile(t, []program.Statement{
		&program.Component{Kind: "nope"},
	})
	if _, err := Render(env, prog, self, dom.NewElement("main")); err == nil {
		t.Fatalf("expected render to fail for an unregistered manager")
	}
}

// flakyManager fails Create while fail is set, to exercise recovery after
// a contained item render failure.
type flakyManager struct {
	fail    bool
	creates int
}

func (m *flakyManager) Create(env *Environment, kind string, args map[string]reference.Reference, b *dom.Builder) (any, error) {
	m.creates++
	if m.fail {
		return nil, errors.New("widget backend unavailable")
	}
	b.AppendText("[" + contentString(args["label"].Value()) + "]")
	return m, nil
}

func (m *flakyManager) Update(instance any) error      { return nil }
func (m *flakyManager) Tag(instance any) tags.Tag      { return nil }
func (m *flakyManager) Destructor(instance any) func() { return nil }

func TestListItemRenderFailureRetries(t *testing.T) {
	env := NewEnvironment()
	mgr := &flakyManager{}
	if err := env.RegisterManager("widget", mgr); err != nil {
		t.Fatalf("register: %s", err)
	}

	stmts := []program.Statement{
		&program.OpenElement{Tag: "ul"},
		&program.FlushElement{},
		&program.Each{
			List:      path("items"),
			KeyPath:   "id",
			ValueName: "item",
			Body: []program.Statement{
				&program.OpenElement{Tag: "li"},
				&program.FlushElement{},
				&program.Component{Kind: "widget", Args: []program.NamedArg{
					{Name: "label", Expr: path("item", "name")},
				}},
				&program.CloseElement{},
			},
		},
		&program.CloseElement{},
	}
	self := reference.NewRoot(env.Clock, itemModel([2]string{"a", "alpha"}))
	root := dom.NewElement("main")
	res, err := Render(env, compile(t, stmts), self, root)
	if err != nil {
		t.Fatalf("render: %s", err)
	}
	if got := dom.InnerMarkup(root); got != "<ul><li>[alpha]</li></ul>" {
		t.Fatalf("unexpected markup %q", got)
	}

	mgr.fail = true
	self.Set(itemModel([2]string{"a", "alpha"}, [2]string{"b", "beta"}))
	if _, err := res.Revalidate(); err == nil {
		t.Fatal("expected the failed item render to surface an error")
	}
	// The failed item left nothing behind; the surviving item is intact.
	if got := dom.InnerMarkup(root); got != "<ul><li>[alpha]</li></ul>" {
		t.Fatalf("failure pass disturbed the region: %q", got)
	}

	// Fault cleared: the next pass renders the missing item unprompted.
	mgr.fail = false
	stats, err := res.Revalidate()
	if err != nil {
		t.Fatalf("retry pass: %s", err)
	}
	if stats.ListSyncs != 1 {
		t.Errorf("expected 1 list sync on retry, got %+v", stats)
	}
	if got := dom.InnerMarkup(root); got != "<ul><li>[alpha]</li><li>[beta]</li></ul>" {
		t.Fatalf("retry did not render the failed item: %q", got)
	}

	// And a further failure-free pass settles.
	stats, err = res.Revalidate()
	if err != nil {
		t.Fatalf("settle pass: %s", err)
	}
	if stats != (UpdateStats{}) {
		t.Errorf("settled tree did work: %+v", stats)
	}
}

func TestStrictTruthyOption(t *testing.T) {
	env := NewEnvironment(WithTruthy(reference.StrictTruthy))
	self := reference.NewRoot(env.Clock, map[string]any{"label": ""})
	root := dom.NewElement("main")
	prog := compile(t, []program.Statement{
		&program.If{
			Cond: path("label"),
			Then: []program.Statement{&program.Text{Content: "set"}},
			Else: []program.Statement{&program.Text{Content: "unset"}},
		},
	})
	if _, err := Render(env, prog, self, root); err != nil {
		t.Fatalf("render: %s", err)
	}
	// Under the strict policy an empty string is still truthy.
	if got := dom.InnerMarkup(root); got != "set" {
		t.Fatalf("expected set, got %q", got)
	}
}
