package program

import (
	"bytes"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

func compiledFixture(t *testing.T, id string) *Program {
	t.Helper()
	p, err := Compile(id, []Statement{
		&OpenElement{Tag: "ul"},
		&FlushElement{},
		&Each{
			List:      &PathExpression{Segments: []string{"items"}},
			KeyPath:   "id",
			ValueName: "item",
			Body: []Statement{
				&OpenElement{Tag: "li"},
				&FlushElement{},
				&Append{Expr: &PathExpression{Segments: []string{"item", "label"}}, KnownText: true},
				&CloseElement{},
			},
		},
		&CloseElement{},
	})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return p
}

func TestWireRoundTrip(t *testing.T) {
	p := compiledFixture(t, "t/wire")

	data, err := Marshal(p)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !bytes.HasPrefix(data, WireMagic) {
		t.Error("wire bytes missing magic")
	}

	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !reflect.DeepEqual(got, p) {
		t.Error("round-tripped program differs from original")
	}
}

func TestWireIsDeterministic(t *testing.T) {
	a, err := Marshal(compiledFixture(t, "t/det"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Marshal(compiledFixture(t, "t/det"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("equal programs produced different wire bytes")
	}
}

func TestUnmarshalRejectsBadInput(t *testing.T) {
	if _, err := Unmarshal([]byte("nope")); err == nil {
		t.Error("bad magic accepted")
	}
	if _, err := Unmarshal(append(append([]byte{}, WireMagic...), 0xFF, 0x00)); err == nil {
		t.Error("truncated body accepted")
	}
}

func TestCachePutGet(t *testing.T) {
	cache, err := OpenCache(filepath.Join(t.TempDir(), "programs.db"))
	if err != nil {
		t.Fatalf("OpenCache failed: %v", err)
	}
	defer cache.Close()

	p := compiledFixture(t, "t/cache")
	hash, err := cache.Put(p)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if hash == "" {
		t.Fatal("empty content hash")
	}

	got, err := cache.Get("t/cache")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !reflect.DeepEqual(got, p) {
		t.Error("cached program differs from original")
	}

	if _, err := cache.GetIfHash("t/cache", hash); err != nil {
		t.Errorf("GetIfHash with matching hash failed: %v", err)
	}
	if _, err := cache.GetIfHash("t/cache", "stale"); !errors.Is(err, ErrProgramNotFound) {
		t.Errorf("GetIfHash with stale hash: err = %v, want ErrProgramNotFound", err)
	}
}

func TestCacheMissAndEvict(t *testing.T) {
	cache, err := OpenCache(filepath.Join(t.TempDir(), "programs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	if _, err := cache.Get("t/absent"); !errors.Is(err, ErrProgramNotFound) {
		t.Errorf("miss: err = %v, want ErrProgramNotFound", err)
	}

	p := compiledFixture(t, "t/evict")
	if _, err := cache.Put(p); err != nil {
		t.Fatal(err)
	}
	entries, err := cache.List()
	if err != nil || len(entries) != 1 {
		t.Fatalf("List = %v, %v", entries, err)
	}
	if entries[0].ID != "t/evict" || entries[0].Size == 0 {
		t.Errorf("entry = %+v", entries[0])
	}

	if err := cache.Evict("t/evict"); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.Get("t/evict"); !errors.Is(err, ErrProgramNotFound) {
		t.Error("program still present after Evict")
	}
}

func TestUnmarshalStatementsJSON(t *testing.T) {
	src := `[
		{"type": "open", "tag": "p"},
		{"type": "attr", "name": "class", "value": "note"},
		{"type": "flush"},
		{"type": "if", "expr": "$visible",
			"then": [{"type": "append", "expr": "$message", "knownText": true}],
			"else": [{"type": "text", "content": "hidden"}]},
		{"type": "choose", "expr": "$on", "value": "yes", "alt": "no", "knownText": true},
		{"type": "close"}
	]`
	stmts, err := UnmarshalStatements([]byte(src))
	if err != nil {
		t.Fatalf("UnmarshalStatements failed: %v", err)
	}
	if len(stmts) != 6 {
		t.Fatalf("statement count = %d, want 6", len(stmts))
	}
	ifStmt, ok := stmts[3].(*If)
	if !ok {
		t.Fatalf("statement 3 is %T, want *If", stmts[3])
	}
	cond, ok := ifStmt.Cond.(*PathExpression)
	if !ok || len(cond.Segments) != 1 || cond.Segments[0] != "visible" {
		t.Errorf("condition = %#v", ifStmt.Cond)
	}
	choose, ok := stmts[4].(*Append)
	if !ok {
		t.Fatalf("statement 4 is %T, want *Append", stmts[4])
	}
	ce, ok := choose.Expr.(*IfExpression)
	if !ok {
		t.Fatalf("choose expr is %T, want *IfExpression", choose.Expr)
	}
	if lit, ok := ce.Then.(*StringLiteral); !ok || lit.Value != "yes" {
		t.Errorf("choose then = %#v", ce.Then)
	}
	if lit, ok := ce.Else.(*StringLiteral); !ok || lit.Value != "no" {
		t.Errorf("choose else = %#v", ce.Else)
	}

	if _, err := UnmarshalStatements([]byte(`[{"type": "bogus"}]`)); err == nil {
		t.Error("unknown statement type accepted")
	}
}
