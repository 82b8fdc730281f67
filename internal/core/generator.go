// Package core runs the attrimap pipeline: load, scan, resolve, group, emit
// and write.
package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/tools/go/packages"

	"github.com/origadmin/attrimap/internal/analyzer"
	"github.com/origadmin/attrimap/internal/ast"
	"github.com/origadmin/attrimap/internal/config"
	"github.com/origadmin/attrimap/internal/diagnostic"
	"github.com/origadmin/attrimap/internal/generator"
	"github.com/origadmin/attrimap/internal/model"
	"github.com/origadmin/attrimap/internal/resolver"
	"github.com/origadmin/attrimap/internal/sink"
)

// Result is the outcome of one run.
type Result struct {
	Groups []*model.Group
	Files  []*generator.File
	// Stale lists the generated files, relative to the root, of packages that
	// no longer produce output.
	Stale       []string
	Diagnostics []diagnostic.Diagnostic
}

// HasErrors reports whether an error diagnostic was produced.
func (r *Result) HasErrors() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == diagnostic.SeverityError {
			return true
		}
	}
	return false
}

// Path returns the path of f relative to the root of the run.
func (r *Result) Path(root string, f *generator.File) (string, error) {
	return relPath(root, filepath.Join(f.Dir, f.Name))
}

// Generator drives a generation run rooted at a directory.
type Generator struct {
	root string
	cfg  *config.Config
	sink sink.OutputSink
}

// NewGenerator creates a Generator loading packages relative to root and
// writing to out. A nil cfg uses the defaults; a nil out writes below root.
func NewGenerator(root string, cfg *config.Config, out sink.OutputSink) (*Generator, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %s: %w", root, err)
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if out == nil {
		out = sink.NewFilesystemSink(abs)
	}
	return &Generator{root: abs, cfg: cfg, sink: out}, nil
}

// Root returns the absolute root directory.
func (g *Generator) Root() string {
	return g.root
}

// Run analyzes the packages matched by patterns and renders the output
// without writing it. Diagnostics never abort a run; loading failures do.
func (g *Generator) Run(ctx context.Context, patterns ...string) (*Result, error) {
	walker := analyzer.NewPackageWalker(g.root, g.cfg.BuildTag)
	pkgs, err := walker.Load(ctx, patterns...)
	if err != nil {
		return nil, err
	}

	homes, err := g.preparePackages(walker, pkgs)
	if err != nil {
		return nil, err
	}
	if err := walker.LoadAliases(ctx); err != nil {
		return nil, err
	}

	collector := diagnostic.NewCollector()
	var scanner model.Scanner = ast.NewWalker(collector)
	var occs []*model.Occurrence
	for _, pkg := range pkgs {
		occs = append(occs, scanner.Scan(pkg)...)
	}
	slog.Info("Scanned annotations", "packages", len(pkgs), "occurrences", len(occs))

	var res model.Resolver = resolver.NewResolver(walker, collector)
	descs, err := res.ResolveAll(ctx, occs)
	if err != nil {
		return nil, err
	}

	gen := generator.NewGenerator(g.cfg.BuildTag, collector, walker)
	groups := gen.GroupDescriptors(descs)
	files, err := gen.Generate(groups, homes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}

	stale, err := g.staleFiles(homes, files)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Groups:      groups,
		Files:       files,
		Stale:       stale,
		Diagnostics: collector.Diagnostics(),
	}
	for _, d := range result.Diagnostics {
		if d.Severity == diagnostic.SeverityError {
			slog.Error("Annotation rejected", "diagnostic", d.String())
		} else {
			slog.Warn("Annotation warning", "diagnostic", d.String())
		}
	}
	return result, nil
}

// Generate runs the pipeline and writes its output, removing stale files.
// Files are written even when diagnostics were produced.
func (g *Generator) Generate(ctx context.Context, patterns ...string) (*Result, error) {
	result, err := g.Run(ctx, patterns...)
	if err != nil {
		return nil, err
	}
	for _, f := range result.Files {
		path, err := result.Path(g.root, f)
		if err != nil {
			return nil, err
		}
		slog.Info("Writing generated file", "file", path, "funcs", len(f.Funcs))
		if err := g.sink.WriteFile(ctx, path, f.Content); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	for _, path := range result.Stale {
		slog.Info("Removing stale generated file", "file", path)
		if err := g.sink.RemoveFile(ctx, path); err != nil {
			return nil, fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return result, nil
}

// preparePackages reads the package directives, registers their aliases and
// returns the packages that can receive output.
func (g *Generator) preparePackages(walker *analyzer.PackageWalker, pkgs []*packages.Package) ([]*generator.Package, error) {
	walker.RegisterAliases(analyzer.GlobalScope, g.cfg.Aliases)

	parser := config.NewParser()
	homes := make([]*generator.Package, 0, len(pkgs))
	for _, pkg := range pkgs {
		dirs, err := parser.ParsePackage(pkg)
		if err != nil {
			return nil, fmt.Errorf("invalid directive in %s: %w", pkg.PkgPath, err)
		}
		walker.RegisterAliases(pkg.PkgPath, dirs.AliasMap())

		opts := g.cfg.ForPackage(dirs.Options)
		if err := opts.Validate(); err != nil {
			return nil, fmt.Errorf("invalid options in %s: %w", pkg.PkgPath, err)
		}
		homes = append(homes, &generator.Package{
			Path:     pkg.PkgPath,
			Name:     pkg.Name,
			Dir:      analyzer.PackageDir(pkg),
			Declared: analyzer.DeclaredNames(pkg),
			Options:  opts,
		})
	}
	return homes, nil
}

// staleFiles finds generated files of homes that receive no output in this
// run. Files without the generated header are never reported.
func (g *Generator) staleFiles(homes []*generator.Package, files []*generator.File) ([]string, error) {
	produced := make(map[string]bool, len(files))
	for _, f := range files {
		produced[f.PkgPath] = true
	}
	var stale []string
	for _, home := range homes {
		if produced[home.Path] || home.Dir == "" {
			continue
		}
		full := filepath.Join(home.Dir, home.Options.Output)
		content, err := os.ReadFile(full)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read %s: %w", full, err)
		}
		if !IsGenerated(content) {
			slog.Debug("Keeping file without generated header", "file", full)
			continue
		}
		path, err := relPath(g.root, full)
		if err != nil {
			return nil, err
		}
		stale = append(stale, path)
	}
	sort.Strings(stale)
	return stale, nil
}

// IsGenerated reports whether content carries the attrimap header.
func IsGenerated(content []byte) bool {
	for _, line := range bytes.SplitN(content, []byte("\n"), 8) {
		if string(bytes.TrimSpace(line)) == config.GeneratedHeader {
			return true
		}
	}
	return false
}

func relPath(root, full string) (string, error) {
	rel, err := filepath.Rel(root, full)
	if err != nil {
		return "", fmt.Errorf("failed to make %s relative to %s: %w", full, root, err)
	}
	rel = filepath.ToSlash(rel)
	if err := sink.ValidatePath(rel); err != nil {
		return "", fmt.Errorf("output %s is outside of %s: %w", full, root, err)
	}
	return rel, nil
}
