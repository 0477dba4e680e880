// Package manifest handles reflow.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/reflow/pkg/reference"
)

// Manifest represents a reflow.toml project configuration.
type Manifest struct {
	Project   Project   `toml:"project"`
	Templates Templates `toml:"templates"`
	Cache     Cache     `toml:"cache"`
	Runtime   Runtime   `toml:"runtime"`

	// Dir is the directory containing the reflow.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Templates configures template statement file locations.
type Templates struct {
	Dirs []string `toml:"dirs"`
}

// Cache configures the compiled program cache.
type Cache struct {
	Path string `toml:"path"`
}

// Runtime configures rendering behavior.
type Runtime struct {
	// Truthiness selects the conditional coercion policy: "default" or
	// "strict".
	Truthiness string `toml:"truthiness"`

	// Verbosity is the log verbosity passed to the logging backend.
	Verbosity int `toml:"verbosity"`
}

// Load parses a reflow.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "reflow.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if len(m.Templates.Dirs) == 0 {
		m.Templates.Dirs = []string{"templates"}
	}
	if m.Cache.Path == "" {
		m.Cache.Path = filepath.Join(".reflow", "programs.db")
	}
	if m.Runtime.Truthiness == "" {
		m.Runtime.Truthiness = "default"
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a reflow.toml file, then loads
// and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "reflow.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// TemplateDirPaths returns absolute paths for the configured template
// directories.
func (m *Manifest) TemplateDirPaths() []string {
	var paths []string
	for _, d := range m.Templates.Dirs {
		paths = append(paths, filepath.Join(m.Dir, d))
	}
	return paths
}

// CachePath returns the absolute path of the compiled program cache.
func (m *Manifest) CachePath() string {
	if filepath.IsAbs(m.Cache.Path) {
		return m.Cache.Path
	}
	return filepath.Join(m.Dir, m.Cache.Path)
}

// TruthyFunc returns the truthiness policy selected by the manifest.
func (m *Manifest) TruthyFunc() (reference.TruthyFunc, error) {
	switch m.Runtime.Truthiness {
	case "", "default":
		return reference.Truthy, nil
	case "strict":
		return reference.StrictTruthy, nil
	default:
		return nil, fmt.Errorf("unknown truthiness policy %q", m.Runtime.Truthiness)
	}
}
