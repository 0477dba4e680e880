// Reflow CLI - compiles template statement files and manages the program cache
package main

import (
	"flag"
	"fmt"
	"os"

	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/reflow/manifest"
	"github.com/chazu/reflow/pkg/program"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: reflow <command> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  compile [paths...]   Compile template files into the program cache\n")
		fmt.Fprintf(os.Stderr, "  disasm <id>          Print the disassembly of a cached program\n")
		fmt.Fprintf(os.Stderr, "  cache list           List cached programs\n")
		fmt.Fprintf(os.Stderr, "  cache evict <id>     Remove a program from the cache\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  reflow compile                 # Compile the manifest's template dirs\n")
		fmt.Fprintf(os.Stderr, "  reflow compile ./views -v      # Compile one directory, verbose\n")
		fmt.Fprintf(os.Stderr, "  reflow disasm views/index      # Show compiled instructions\n")
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "compile":
		err = runCompile(args[1:])
	case "disasm":
		err = runDisasm(args[1:])
	case "cache":
		err = runCache(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", args[0])
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadManifest finds the enclosing reflow.toml; a missing manifest yields
// defaults rooted at the working directory.
func loadManifest() (*manifest.Manifest, error) {
	m, err := manifest.FindAndLoad(".")
	if err != nil {
		return nil, err
	}
	if m == nil {
		dir, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		m = &manifest.Manifest{Dir: dir}
		m.Templates.Dirs = []string{"templates"}
		m.Cache.Path = ".reflow/programs.db"
	}
	return m, nil
}

func openCache() (*program.Cache, error) {
	m, err := loadManifest()
	if err != nil {
		return nil, err
	}
	return program.OpenCache(m.CachePath())
}

func runDisasm(args []string) error {
	fs := flag.NewFlagSet("disasm", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: reflow disasm <id>")
	}

	cache, err := openCache()
	if err != nil {
		return err
	}
	defer cache.Close()

	prog, err := cache.Get(fs.Arg(0))
	if err != nil {
		return err
	}
	fmt.Print(prog.Disassemble())
	return nil
}

func runCache(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: reflow cache <list|evict>")
	}

	cache, err := openCache()
	if err != nil {
		return err
	}
	defer cache.Close()

	switch args[0] {
	case "list":
		entries, err := cache.List()
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%-40s %8d bytes  %s\n", e.ID, e.Size, e.Hash[:12])
		}
		return nil

	case "evict":
		if len(args) != 2 {
			return fmt.Errorf("usage: reflow cache evict <id>")
		}
		return cache.Evict(args[1])

	default:
		return fmt.Errorf("unknown cache subcommand %q", args[0])
	}
}
