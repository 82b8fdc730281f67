// Package testutil builds type-checked packages from in-memory sources for
// unit tests.
package testutil

import (
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"path"
	"sort"
	"testing"

	"golang.org/x/tools/go/packages"
)

// Universe type-checks a set of in-memory packages that may import each other
// and the standard library.
type Universe struct {
	t     testing.TB
	fset  *token.FileSet
	std   types.Importer
	srcs  map[string]map[string]string
	pkgs  map[string]*packages.Package
	order []string
}

// NewUniverse creates an empty Universe.
func NewUniverse(t testing.TB) *Universe {
	fset := token.NewFileSet()
	return &Universe{
		t:    t,
		fset: fset,
		std:  importer.ForCompiler(fset, "source", nil),
		srcs: make(map[string]map[string]string),
		pkgs: make(map[string]*packages.Package),
	}
}

// Add registers the files of the package with import path pkgPath.
func (u *Universe) Add(pkgPath string, files map[string]string) *Universe {
	u.srcs[pkgPath] = files
	u.order = append(u.order, pkgPath)
	return u
}

// Package type-checks pkgPath and its in-memory dependencies.
func (u *Universe) Package(pkgPath string) *packages.Package {
	u.t.Helper()
	if pkg, ok := u.pkgs[pkgPath]; ok {
		return pkg
	}
	files, ok := u.srcs[pkgPath]
	if !ok {
		u.t.Fatalf("unknown package %s", pkgPath)
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var syntax []*ast.File
	var goFiles []string
	for _, name := range names {
		filename := path.Join("/src", pkgPath, name)
		f, err := parser.ParseFile(u.fset, filename, files[name], parser.ParseComments)
		if err != nil {
			u.t.Fatalf("parse %s: %v", filename, err)
		}
		syntax = append(syntax, f)
		goFiles = append(goFiles, filename)
	}

	info := &types.Info{
		Types:      make(map[ast.Expr]types.TypeAndValue),
		Defs:       make(map[*ast.Ident]types.Object),
		Uses:       make(map[*ast.Ident]types.Object),
		Implicits:  make(map[ast.Node]types.Object),
		Scopes:     make(map[ast.Node]*types.Scope),
		Selections: make(map[*ast.SelectorExpr]*types.Selection),
	}
	conf := types.Config{Importer: importerFunc(func(p string) (*types.Package, error) {
		if _, ok := u.srcs[p]; ok {
			return u.Package(p).Types, nil
		}
		return u.std.Import(p)
	})}
	tpkg, err := conf.Check(pkgPath, u.fset, syntax, info)
	if err != nil {
		u.t.Fatalf("type-check %s: %v", pkgPath, err)
	}

	pkg := &packages.Package{
		ID:              pkgPath,
		Name:            tpkg.Name(),
		PkgPath:         pkgPath,
		GoFiles:         goFiles,
		CompiledGoFiles: goFiles,
		Fset:            u.fset,
		Syntax:          syntax,
		Types:           tpkg,
		TypesInfo:       info,
	}
	u.pkgs[pkgPath] = pkg
	return pkg
}

// Packages type-checks every registered package in registration order.
func (u *Universe) Packages() []*packages.Package {
	u.t.Helper()
	out := make([]*packages.Package, 0, len(u.order))
	for _, p := range u.order {
		out = append(out, u.Package(p))
	}
	return out
}

type importerFunc func(path string) (*types.Package, error)

func (f importerFunc) Import(path string) (*types.Package, error) { return f(path) }
