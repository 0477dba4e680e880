package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadManifest(t *testing.T) {
	// Create a temporary directory with a reflow.toml
	dir := t.TempDir()
	tomlContent := `
[project]
name = "test-app"
version = "0.1.0"

[templates]
dirs = ["views", "partials"]

[cache]
path = "build/programs.db"

[runtime]
truthiness = "strict"
verbosity = 2
`
	if err := os.WriteFile(filepath.Join(dir, "reflow.toml"), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "test-app" {
		t.Errorf("project name = %q, want test-app", m.Project.Name)
	}
	if m.Project.Version != "0.1.0" {
		t.Errorf("project version = %q, want 0.1.0", m.Project.Version)
	}
	if len(m.Templates.Dirs) != 2 {
		t.Errorf("template dirs count = %d, want 2", len(m.Templates.Dirs))
	}
	if m.Runtime.Truthiness != "strict" {
		t.Errorf("truthiness = %q, want strict", m.Runtime.Truthiness)
	}
	if m.Runtime.Verbosity != 2 {
		t.Errorf("verbosity = %d, want 2", m.Runtime.Verbosity)
	}
	if got, want := m.CachePath(), filepath.Join(m.Dir, "build", "programs.db"); got != want {
		t.Errorf("cache path = %q, want %q", got, want)
	}
	if _, err := m.TruthyFunc(); err != nil {
		t.Errorf("TruthyFunc failed: %v", err)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[project]
name = "minimal"
`
	if err := os.WriteFile(filepath.Join(dir, "reflow.toml"), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(m.Templates.Dirs) != 1 || m.Templates.Dirs[0] != "templates" {
		t.Errorf("template dirs = %v, want [templates]", m.Templates.Dirs)
	}
	if m.Runtime.Truthiness != "default" {
		t.Errorf("truthiness = %q, want default", m.Runtime.Truthiness)
	}
	if got, want := m.CachePath(), filepath.Join(m.Dir, ".reflow", "programs.db"); got != want {
		t.Errorf("cache path = %q, want %q", got, want)
	}
}

func TestLoadManifestMissing(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("expected error for missing reflow.toml")
	}
}

func TestUnknownTruthiness(t *testing.T) {
	m := &Manifest{Runtime: Runtime{Truthiness: "fuzzy"}}
	if _, err := m.TruthyFunc(); err == nil {
		t.Fatal("expected error for unknown truthiness policy")
	}
}

func TestFindAndLoadWalksUp(t *testing.T) {
	root := t.TempDir()
	tomlContent := `
[project]
name = "nested"
`
	if err := os.WriteFile(filepath.Join(root, "reflow.toml"), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil || m.Project.Name != "nested" {
		t.Fatalf("expected nested manifest, got %+v", m)
	}

	// No manifest anywhere above an isolated directory: nil, no error.
	none, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if none != nil {
		t.Errorf("expected nil manifest, got %+v", none)
	}
}
