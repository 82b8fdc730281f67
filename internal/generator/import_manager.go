package generator

import (
	"fmt"
	"path"
	"sort"
	"strconv"
)

// ImportManager manages imports for generated code.
type ImportManager struct {
	imports  map[string]string // import path -> alias
	names    map[string]string // import path -> package name
	reserved map[string]bool
}

// NewImportManager creates a new ImportManager. Reserved names are never
// used as aliases.
func NewImportManager(reserved ...string) *ImportManager {
	im := &ImportManager{
		imports:  make(map[string]string),
		names:    make(map[string]string),
		reserved: make(map[string]bool, len(reserved)),
	}
	for _, name := range reserved {
		im.reserved[name] = true
	}
	return im
}

// Reserve prevents name from being used as an alias.
func (im *ImportManager) Reserve(names ...string) {
	for _, name := range names {
		im.reserved[name] = true
	}
}

// Add adds an import and returns the alias to use. The package name is the
// preferred alias; conflicts are numbered.
func (im *ImportManager) Add(importPath, pkgName string) string {
	if alias, exists := im.imports[importPath]; exists {
		return alias
	}

	alias := pkgName
	conflictCounter := 1
	for im.taken(alias) {
		alias = fmt.Sprintf("%s%d", pkgName, conflictCounter)
		conflictCounter++
	}

	im.imports[importPath] = alias
	im.names[importPath] = pkgName
	return alias
}

func (im *ImportManager) taken(alias string) bool {
	if im.reserved[alias] {
		return true
	}
	for _, existing := range im.imports {
		if existing == alias {
			return true
		}
	}
	return false
}

// GetAlias returns the alias for an import path.
func (im *ImportManager) GetAlias(importPath string) (string, bool) {
	alias, ok := im.imports[importPath]
	return alias, ok
}

// GetAllImports returns all import paths sorted.
func (im *ImportManager) GetAllImports() []string {
	paths := make([]string, 0, len(im.imports))
	for p := range im.imports {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Specs renders the import specs sorted by path. The alias is omitted when
// it equals both the package name and the last path element.
func (im *ImportManager) Specs() []string {
	paths := im.GetAllImports()
	specs := make([]string, 0, len(paths))
	for _, p := range paths {
		if alias := im.imports[p]; alias != im.names[p] || alias != path.Base(p) {
			specs = append(specs, alias+" "+strconv.Quote(p))
		} else {
			specs = append(specs, strconv.Quote(p))
		}
	}
	return specs
}
