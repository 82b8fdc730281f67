// Package analyzer loads the packages to scan and answers the package lookups
// the resolver needs.
package analyzer

import (
	"context"
	"fmt"
	gotypes "go/types"
	"log/slog"
	"path/filepath"
	"sort"

	"golang.org/x/tools/go/packages"
)

// GlobalScope keys aliases that apply to every scanned package.
const GlobalScope = ""

// PackageWalker loads packages, keeps the package graph they reference and
// resolves the package aliases declared by directives or configuration.
type PackageWalker struct {
	dir         string
	buildTag    string
	pkgs        []*packages.Package
	known       map[string]*gotypes.Package
	aliases     map[string]map[string]string
	imports     map[string]map[string]bool // package path -> directly imported paths
	failedLoads map[string]bool            // Tracks packages that failed to load to prevent retries
}

// NewPackageWalker creates a PackageWalker loading relative to dir. A
// non-empty buildTag is set while loading.
func NewPackageWalker(dir, buildTag string) *PackageWalker {
	return &PackageWalker{
		dir:         dir,
		buildTag:    buildTag,
		known:       make(map[string]*gotypes.Package),
		aliases:     make(map[string]map[string]string),
		imports:     make(map[string]map[string]bool),
		failedLoads: make(map[string]bool),
	}
}

const (
	loadMode = packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles | packages.NeedSyntax |
		packages.NeedTypes | packages.NeedTypesInfo | packages.NeedImports
	// graphMode lists the whole dependency graph without parsing it.
	graphMode = packages.NeedName | packages.NeedImports | packages.NeedDeps
)

func (w *PackageWalker) config(ctx context.Context, mode packages.LoadMode) *packages.Config {
	cfg := &packages.Config{
		Context: ctx,
		Mode:    mode,
		Dir:     w.dir,
		Tests:   false,
	}
	if w.buildTag != "" {
		cfg.BuildFlags = []string{"-tags=" + w.buildTag}
	}
	return cfg
}

// Load loads the packages matched by patterns with full type information.
// Packages are returned sorted by import path.
func (w *PackageWalker) Load(ctx context.Context, patterns ...string) ([]*packages.Package, error) {
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}
	slog.Info("Loading packages", "dir", w.dir, "patterns", patterns)
	pkgs, err := packages.Load(w.config(ctx, loadMode), patterns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load packages: %w", err)
	}
	errorCount := 0
	packages.Visit(pkgs, nil, func(pkg *packages.Package) {
		for _, pkgErr := range pkg.Errors {
			slog.Error("Package contains errors", "pkg", pkg.PkgPath, "error", pkgErr.Msg, "pos", pkgErr.Pos)
			errorCount++
		}
	})
	if errorCount > 0 {
		return nil, fmt.Errorf("loaded packages contain %d errors", errorCount)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages found for %v in %s", patterns, w.dir)
	}
	w.AddPackages(pkgs...)

	graph, err := packages.Load(w.config(ctx, graphMode), patterns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load the import graph: %w", err)
	}
	w.addImports(graph)
	return w.pkgs, nil
}

// addImports records the import edges of pkgs and their dependencies.
func (w *PackageWalker) addImports(pkgs []*packages.Package) {
	packages.Visit(pkgs, nil, func(pkg *packages.Package) {
		for _, imp := range pkg.Imports {
			path := imp.PkgPath
			if path == "" {
				path = imp.ID
			}
			w.addImport(pkg.PkgPath, path)
		}
	})
}

func (w *PackageWalker) addImport(from, to string) {
	m, ok := w.imports[from]
	if !ok {
		m = make(map[string]bool)
		w.imports[from] = m
	}
	m[to] = true
}

// Imports reports whether package from depends on package to, directly or
// through other packages.
func (w *PackageWalker) Imports(from, to string) bool {
	seen := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for next := range w.imports[cur] {
			if next == to {
				return true
			}
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// AddPackages registers already loaded packages together with everything
// they import.
func (w *PackageWalker) AddPackages(pkgs ...*packages.Package) {
	existing := make(map[string]bool, len(w.pkgs))
	for _, p := range w.pkgs {
		existing[p.PkgPath] = true
	}
	for _, pkg := range pkgs {
		if existing[pkg.PkgPath] {
			continue
		}
		existing[pkg.PkgPath] = true
		w.pkgs = append(w.pkgs, pkg)
		w.index(pkg.Types)
		w.addImports([]*packages.Package{pkg})
	}
	sort.Slice(w.pkgs, func(i, j int) bool { return w.pkgs[i].PkgPath < w.pkgs[j].PkgPath })
}

func (w *PackageWalker) index(pkg *gotypes.Package) {
	if pkg == nil {
		return
	}
	if _, ok := w.known[pkg.Path()]; ok {
		return
	}
	w.known[pkg.Path()] = pkg
	for _, imp := range pkg.Imports() {
		w.addImport(pkg.Path(), imp.Path())
		w.index(imp)
	}
}

// Packages returns the scanned packages sorted by import path.
func (w *PackageWalker) Packages() []*packages.Package {
	return w.pkgs
}

// IsScanned reports whether pkgPath is one of the scanned packages.
func (w *PackageWalker) IsScanned(pkgPath string) bool {
	for _, p := range w.pkgs {
		if p.PkgPath == pkgPath {
			return true
		}
	}
	return false
}

// RegisterAliases adds aliases visible to annotations of the package scope,
// or to every package when scope is GlobalScope.
func (w *PackageWalker) RegisterAliases(scope string, aliases map[string]string) {
	if len(aliases) == 0 {
		return
	}
	m, ok := w.aliases[scope]
	if !ok {
		m = make(map[string]string, len(aliases))
		w.aliases[scope] = m
	}
	for alias, path := range aliases {
		m[alias] = path
		slog.Debug("Registered package alias", "scope", scope, "alias", alias, "path", path)
	}
}

// LoadAliases loads the aliased packages that are not part of the known
// graph. A package that fails to load is logged; annotations using it fail
// to resolve later.
func (w *PackageWalker) LoadAliases(ctx context.Context) error {
	var paths []string
	seen := make(map[string]bool)
	for _, m := range w.aliases {
		for _, path := range m {
			if !seen[path] {
				seen[path] = true
				paths = append(paths, path)
			}
		}
	}
	sort.Strings(paths)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.loadMissingPackage(ctx, path); err != nil {
			slog.Warn("Failed to load aliased package", "path", path, "error", err)
		}
	}
	return nil
}

// loadMissingPackage dynamically loads a package that hasn't been loaded yet.
func (w *PackageWalker) loadMissingPackage(ctx context.Context, pkgPath string) error {
	if _, ok := w.known[pkgPath]; ok {
		return nil
	}
	if w.failedLoads[pkgPath] {
		return fmt.Errorf("package %q previously failed to load", pkgPath)
	}

	slog.Debug("Dynamically loading missing package", "path", pkgPath)
	cfg := w.config(ctx, packages.NeedName|packages.NeedTypes|packages.NeedImports|packages.NeedDeps)

	pkgs, err := packages.Load(cfg, pkgPath)
	if err != nil {
		w.failedLoads[pkgPath] = true
		return fmt.Errorf("failed to load package %q: %w", pkgPath, err)
	}
	if len(pkgs) == 0 || pkgs[0].Types == nil {
		w.failedLoads[pkgPath] = true
		return fmt.Errorf("no package found for import path %q", pkgPath)
	}
	if n := len(pkgs[0].Errors); n > 0 {
		w.failedLoads[pkgPath] = true
		return fmt.Errorf("package %q loaded with %d errors: %v", pkgPath, n, pkgs[0].Errors[0])
	}

	w.index(pkgs[0].Types)
	w.addImports(pkgs)
	slog.Debug("Successfully loaded missing package", "path", pkgPath)
	return nil
}

// FailedPackagesCount returns the count of failed package loads.
func (w *PackageWalker) FailedPackagesCount() int {
	return len(w.failedLoads)
}

// LookupPackage resolves alias as seen from the package from. Package scoped
// aliases take precedence over global ones.
func (w *PackageWalker) LookupPackage(from *gotypes.Package, alias string) (*gotypes.Package, bool) {
	var scopes []string
	if from != nil {
		scopes = append(scopes, from.Path())
	}
	scopes = append(scopes, GlobalScope)
	for _, scope := range scopes {
		if path, ok := w.aliases[scope][alias]; ok {
			pkg, ok := w.known[path]
			return pkg, ok
		}
	}
	return nil, false
}

// DeclaredNames returns the package level names of pkg. Generated files are
// excluded by the build tag at load time, so earlier output is not included.
func DeclaredNames(pkg *packages.Package) map[string]bool {
	names := make(map[string]bool)
	if pkg.Types == nil {
		return names
	}
	for _, name := range pkg.Types.Scope().Names() {
		names[name] = true
	}
	return names
}

// PackageDir returns the directory holding the sources of pkg.
func PackageDir(pkg *packages.Package) string {
	if pkg.Dir != "" {
		return pkg.Dir
	}
	if len(pkg.GoFiles) > 0 {
		return filepath.Dir(pkg.GoFiles[0])
	}
	return ""
}
