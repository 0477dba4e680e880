package main

import (
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/reflow/pkg/program"
)

// runCompile compiles every template statement file under the given paths
// (or, with no paths, the manifest's template directories) and stores the
// results in the program cache.
func runCompile(args []string) error {
	flags := flag.NewFlagSet("compile", flag.ExitOnError)
	verbose := flags.Bool("v", false, "Verbose output")
	flags.Parse(args)

	m, err := loadManifest()
	if err != nil {
		return err
	}

	roots := flags.Args()
	if len(roots) == 0 {
		roots = m.TemplateDirPaths()
	}

	cache, err := program.OpenCache(m.CachePath())
	if err != nil {
		return err
	}
	defer cache.Close()

	total := 0
	for _, root := range roots {
		n, err := compilePath(cache, root, *verbose)
		if err != nil {
			return err
		}
		total += n
	}
	if *verbose {
		fmt.Printf("Compiled %d programs\n", total)
	}
	return nil
}

// compilePath compiles one file, or every .json file under one directory.
func compilePath(cache *program.Cache, root string, verbose bool) (int, error) {
	info, err := os.Stat(root)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		if err := compileFile(cache, root, programID(filepath.Dir(root), root), verbose); err != nil {
			return 0, err
		}
		return 1, nil
	}

	count := 0
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		if err := compileFile(cache, path, programID(root, path), verbose); err != nil {
			return err
		}
		count++
		return nil
	})
	return count, err
}

// programID derives a program's identity from its path relative to the
// template root, without the extension.
func programID(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	return filepath.ToSlash(rel)
}

func compileFile(cache *program.Cache, path, id string, verbose bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	stmts, err := program.UnmarshalStatements(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	prog, err := program.Compile(id, stmts)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	hash, err := cache.Put(prog)
	if err != nil {
		return err
	}
	if verbose {
		fmt.Printf("%s -> %s (%d instructions, %s)\n", path, id, prog.Len(), hash[:12])
	}
	return nil
}
