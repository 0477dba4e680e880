package runtime

import (
	"fmt"
	"testing"

	"github.com/chazu/reflow/pkg/dom"
	"github.com/chazu/reflow/pkg/program"
	"github.com/chazu/reflow/pkg/reference"
)

func benchModel(n int) map[string]any {
	items := make([]any, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, map[string]any{
			"id":   fmt.Sprintf("%d", i),
			"name": fmt.Sprintf("item %d", i),
		})
	}
	return map[string]any{"items": items}
}

func BenchmarkInitialRender(b *testing.B) {
	env := NewEnvironment()
	prog, err := program.Compile("bench", listStatements())
	if err != nil {
		b.Fatal(err)
	}
	model := benchModel(100)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		self := reference.NewRoot(env.Clock, model)
		if _, err := Render(env, prog, self, dom.NewElement("main")); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRevalidateUnchanged(b *testing.B) {
	env := NewEnvironment()
	prog, err := program.Compile("bench", listStatements())
	if err != nil {
		b.Fatal(err)
	}
	self := reference.NewRoot(env.Clock, benchModel(100))
	res, err := Render(env, prog, self, dom.NewElement("main"))
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := res.Revalidate(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRevalidateOneItemChanged(b *testing.B) {
	env := NewEnvironment()
	prog, err := program.Compile("bench", listStatements())
	if err != nil {
		b.Fatal(err)
	}
	self := reference.NewRoot(env.Clock, benchModel(100))
	res, err := Render(env, prog, self, dom.NewElement("main"))
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		model := benchModel(100)
		model["items"].([]any)[50].(map[string]any)["name"] = fmt.Sprintf("changed %d", i)
		self.Set(model)
		if _, err := res.Revalidate(); err != nil {
			b.Fatal(err)
		}
	}
}
