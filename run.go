package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Tommy-ASD/tracegen/internal/gencfg"
	"github.com/Tommy-ASD/tracegen/internal/report"
	"github.com/Tommy-ASD/tracegen/internal/rewrite"
)

func runGen(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	write, err := cmd.Flags().GetBool("write")
	if err != nil {
		return err
	}
	list, err := cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	markerOverride, err := cmd.Flags().GetString("marker")
	if err != nil {
		return err
	}
	colorMode, err := cmd.Flags().GetString("color")
	if err != nil {
		return err
	}

	switch colorMode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "auto":
	default:
		return fmt.Errorf("unsupported color mode %q", colorMode)
	}

	cfg := gencfg.Default()
	if configPath != "" {
		cfg, err = gencfg.Load(configPath)
		if err != nil {
			return err
		}
	}
	if markerOverride != "" {
		cfg.Marker = markerOverride
	}

	files, err := collectGoFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no Go files found under %s", strings.Join(args, ", "))
	}

	var rep report.Reporter
	engine := rewrite.New(cfg, &rep)

	if list {
		err = listSites(engine, files)
	} else {
		err = rewriteFiles(engine, files, write)
	}
	if err != nil {
		return err
	}

	renderDiagnostics(&rep)
	if rep.HasErrors() {
		return fmt.Errorf("rewriting failed with diagnostics")
	}

	return nil
}

func rewriteFiles(engine *rewrite.Engine, files []string, write bool) error {
	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read source file: %w", err)
		}

		res, err := engine.RewriteFile(file, src)
		if err != nil {
			return err
		}

		if !write {
			if _, err := os.Stdout.Write(res.Output); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			continue
		}

		if !res.Changed {
			continue
		}

		info, err := os.Stat(file)
		if err != nil {
			return fmt.Errorf("stat source file: %w", err)
		}
		if err := os.WriteFile(file, res.Output, info.Mode().Perm()); err != nil {
			return fmt.Errorf("write rewritten file: %w", err)
		}
	}

	return nil
}

func listSites(engine *rewrite.Engine, files []string) error {
	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read source file: %w", err)
		}

		sites, err := engine.ListSites(file, src)
		if err != nil {
			return err
		}

		for _, site := range sites {
			fmt.Printf("%s:%d\t%s\t%s\n", file, site.Line, site.Function, site.Kind)
		}
	}

	return nil
}

// collectGoFiles expands the given paths into Go source files. Directories
// are walked recursively, skipping hidden and underscore-prefixed entries
// and vendor trees.
func collectGoFiles(paths []string) ([]string, error) {
	var out []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat input path: %w", err)
		}

		if !info.IsDir() {
			if !strings.HasSuffix(path, ".go") {
				return nil, fmt.Errorf("%s is not a Go file", path)
			}
			out = append(out, path)
			continue
		}

		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			name := d.Name()
			if d.IsDir() {
				if p != path && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor") {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.HasSuffix(name, ".go") {
				out = append(out, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", path, err)
		}
	}

	return out, nil
}

func renderDiagnostics(rep *report.Reporter) {
	errLabel := color.New(color.FgRed).SprintFunc()
	noteLabel := color.New(color.FgYellow).SprintFunc()

	for _, d := range rep.Diagnostics() {
		label := errLabel("error")
		if d.Code.Informational() {
			label = noteLabel("note")
		}
		fmt.Fprintf(os.Stderr, "%s:%d: %s: [%s] %s\n",
			d.Pos.Filename, d.Pos.Line, label, d.Code, d.Message)
	}
}
