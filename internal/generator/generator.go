// Package generator groups mapping descriptors and emits one Go file per
// receiving package.
package generator

import (
	"fmt"
	"go/token"
	"log/slog"
	"sort"

	"github.com/origadmin/attrimap/internal/config"
	"github.com/origadmin/attrimap/internal/diagnostic"
	"github.com/origadmin/attrimap/internal/model"
	"github.com/origadmin/attrimap/internal/template"
)

// sourceParam is the parameter name of every generated function.
const sourceParam = "source"

// Package is a scanned package that can receive generated code.
type Package struct {
	Path string
	Name string
	Dir  string
	// Declared holds the package level names outside of generated files.
	Declared map[string]bool
	Options  config.Options
}

// File is one generated output unit.
type File struct {
	PkgPath string
	Dir     string
	Name    string
	Content []byte
	// Funcs lists the generated function names in file order.
	Funcs []string
}

// ImportGraph answers dependency questions about loaded packages.
type ImportGraph interface {
	// Imports reports whether from depends on to, directly or not.
	Imports(from, to string) bool
}

// Generator turns descriptors into source files.
type Generator struct {
	buildTag string
	reporter diagnostic.Reporter
	graph    ImportGraph
	tmpl     *template.Manager
}

// NewGenerator creates a Generator. buildTag is negated in the build
// constraint of every file; empty omits the constraint. A nil graph is an
// empty one.
func NewGenerator(buildTag string, reporter diagnostic.Reporter, graph ImportGraph) *Generator {
	return &Generator{
		buildTag: buildTag,
		reporter: reporter,
		graph:    graph,
		tmpl:     template.NewManager(),
	}
}

// GroupDescriptors groups descs by key. Groups are ordered by first
// occurrence and keep descriptor order. A second descriptor for an already
// mapped target member is reported and dropped.
func (g *Generator) GroupDescriptors(descs []model.Descriptor) []*model.Group {
	var groups []*model.Group
	byKey := make(map[string]*model.Group)
	mapped := make(map[string]bool)
	for _, d := range descs {
		grp, ok := byKey[d.GroupKey]
		if !ok {
			grp = &model.Group{Key: d.GroupKey, Source: d.Source, Target: d.Target}
			byKey[d.GroupKey] = grp
			groups = append(groups, grp)
		}
		memberKey := d.GroupKey + "." + d.TargetMember
		if mapped[memberKey] {
			slog.Warn("Duplicate mapping ignored", "pos", d.Pos, "source", d.SourceMember, "target", d.Target.FullName()+"."+d.TargetMember)
			g.reporter.ReportDuplicateMapping(d.Pos, d.Source.FullName(), d.SourceMember.Name, d.Target.FullName())
			continue
		}
		mapped[memberKey] = true
		grp.Descriptors = append(grp.Descriptors, d)
	}
	return groups
}

// Generate emits a file for every package of pkgs that receives at least one
// group. Files are ordered by package path.
func (g *Generator) Generate(groups []*model.Group, pkgs []*Package) ([]*File, error) {
	byPath := make(map[string]*Package, len(pkgs))
	for _, p := range pkgs {
		byPath[p.Path] = p
	}

	homes := make(map[string][]*model.Group)
	for _, grp := range groups {
		home, err := g.homeOf(grp, byPath)
		if err != nil {
			slog.Debug("No home for group", "source", grp.Source.FullName(), "target", grp.Target.FullName(), "error", err)
			g.reporter.Report(err.Diagnostic())
			continue
		}
		if grp = g.visible(grp, home.Path); len(grp.Descriptors) == 0 {
			continue
		}
		homes[home.Path] = append(homes[home.Path], grp)
	}

	paths := make([]string, 0, len(homes))
	for p := range homes {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	files := make([]*File, 0, len(paths))
	for _, p := range paths {
		file, err := g.emit(byPath[p], homes[p])
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, nil
}

// homeOf picks the package of the source type, falling back to the package
// the first annotation was declared in. A candidate must be scanned, must not
// be imported by any package the generated code refers to, and must see the
// source and target types. Among usable candidates the first one that sees
// every member and transformer wins.
func (g *Generator) homeOf(grp *model.Group, byPath map[string]*Package) (*Package, *diagnostic.Error) {
	d := grp.Descriptors[0]
	site := d.Source
	if d.Family == model.MapFrom {
		site = d.Target
	}

	var (
		fallback *Package
		reason   = "neither the source package nor the declaring package is being generated"
	)
	candidates := []string{grp.Source.Namespace()}
	if site.Namespace() != grp.Source.Namespace() {
		candidates = append(candidates, site.Namespace())
	}
	for _, path := range candidates {
		home, ok := byPath[path]
		if !ok {
			continue
		}
		if why := g.conflict(grp, path); why != "" {
			reason = why
			continue
		}
		if hiddenCount(grp, path) == 0 {
			return home, nil
		}
		if fallback == nil {
			fallback = home
		}
	}
	if fallback != nil {
		return fallback, nil
	}
	return nil, diagnostic.Errorf(diagnostic.UnsupportedType, d.Pos, grp.Source.FullName(), reason)
}

// conflict explains why code for grp cannot live in package home.
func (g *Generator) conflict(grp *model.Group, home string) string {
	for _, ref := range []model.TypeRef{grp.Source, grp.Target} {
		if ref.PkgPath != home && !token.IsExported(ref.Name) {
			return fmt.Sprintf("%s is not exported and cannot be named from %s", ref.FullName(), home)
		}
	}
	for _, path := range referencedPackages(grp) {
		if path != home && g.graph != nil && g.graph.Imports(path, home) {
			return fmt.Sprintf("importing %s from %s would create an import cycle", path, home)
		}
	}
	return ""
}

func referencedPackages(grp *model.Group) []string {
	paths := []string{grp.Source.PkgPath, grp.Target.PkgPath}
	for _, d := range grp.Descriptors {
		if d.Transformer.Receiverless() {
			paths = append(paths, d.Transformer.Declaring.PkgPath)
		}
	}
	return paths
}

// hidden returns the reason d cannot be emitted in package home, or nil.
func hidden(d model.Descriptor, home string) *diagnostic.Error {
	switch {
	case d.Target.PkgPath != home && !token.IsExported(d.TargetMember):
		return diagnostic.Errorf(diagnostic.UnknownMember, d.Pos, d.Target.FullName(), d.TargetMember,
			"unexported member cannot be set from "+home)
	case d.Source.PkgPath != home && !token.IsExported(d.SourceMember.Name):
		return diagnostic.Errorf(diagnostic.UnknownMember, d.Pos, d.Source.FullName(), d.SourceMember.Name,
			"unexported member cannot be read from "+home)
	case d.Transformer.Receiverless() && d.Transformer.Declaring.PkgPath != home && !token.IsExported(d.Transformer.Name):
		return diagnostic.Errorf(diagnostic.UnsupportedType, d.Pos, d.Transformer.Declaring.PkgPath+"."+d.Transformer.Name,
			"unexported transformer cannot be called from "+home)
	}
	return nil
}

func hiddenCount(grp *model.Group, home string) int {
	n := 0
	for _, d := range grp.Descriptors {
		if hidden(d, home) != nil {
			n++
		}
	}
	return n
}

// visible returns grp without the descriptors home cannot access. Dropped
// descriptors are reported.
func (g *Generator) visible(grp *model.Group, home string) *model.Group {
	if hiddenCount(grp, home) == 0 {
		return grp
	}
	out := &model.Group{Key: grp.Key, Source: grp.Source, Target: grp.Target}
	for _, d := range grp.Descriptors {
		if err := hidden(d, home); err != nil {
			g.reporter.Report(err.Diagnostic())
			continue
		}
		out.Descriptors = append(out.Descriptors, d)
	}
	return out
}

func (g *Generator) emit(pkg *Package, groups []*model.Group) (*File, error) {
	names := FuncNames(pkg.Options.Prefix, groups, pkg.Declared)

	reserved := []string{sourceParam}
	for name := range pkg.Declared {
		reserved = append(reserved, name)
	}
	reserved = append(reserved, names...)
	e := &emitter{home: pkg, imports: NewImportManager(reserved...)}

	data := &template.Data{
		BuildTag:    g.buildTag,
		PackagePath: pkg.Path,
		PackageName: pkg.Name,
	}
	for i, grp := range groups {
		data.Funcs = append(data.Funcs, e.function(names[i], grp))
	}
	data.Imports = e.imports.Specs()

	content, err := g.tmpl.RenderFile(data)
	if err != nil {
		return nil, err
	}
	slog.Debug("Generated file", "package", pkg.Path, "file", pkg.Options.Output, "funcs", len(names))
	return &File{
		PkgPath: pkg.Path,
		Dir:     pkg.Dir,
		Name:    pkg.Options.Output,
		Content: content,
		Funcs:   names,
	}, nil
}

// emitter renders the functions of one file.
type emitter struct {
	home    *Package
	imports *ImportManager
}

func (e *emitter) qualify(ref model.TypeRef, name string) string {
	if ref.PkgPath == e.home.Path || ref.PkgPath == "" {
		return name
	}
	return e.imports.Add(ref.PkgPath, ref.PkgName) + "." + name
}

func (e *emitter) function(name string, grp *model.Group) *template.Function {
	source := e.qualify(grp.Source, grp.Source.Name)
	target := e.qualify(grp.Target, grp.Target.Name)
	fn := &template.Function{
		Name:       name,
		SourceFull: grp.Source.FullName(),
		TargetFull: grp.Target.FullName(),
		Param:      source,
		Result:     target,
		Construct:  target,
	}
	if e.home.Options.Pointers {
		if grp.Source.Kind == model.KindStruct {
			fn.Param = "*" + source
		}
		fn.Result = "*" + target
		fn.Construct = "&" + target
		fn.NilCheck = true
	}
	for _, d := range grp.Descriptors {
		fn.Assignments = append(fn.Assignments, template.Assignment{
			Member: d.TargetMember,
			Value:  e.value(d),
		})
	}
	return fn
}

func (e *emitter) value(d model.Descriptor) string {
	read := d.SourceMember.Expr(sourceParam)
	t := d.Transformer
	switch {
	case t.IsZero():
		return read
	case t.Receiverless():
		return fmt.Sprintf("%s(%s)", e.qualify(t.Declaring, t.Name), read)
	default:
		return fmt.Sprintf("%s.%s(%s)", sourceParam, t.Name, read)
	}
}
