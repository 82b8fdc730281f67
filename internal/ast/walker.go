// Package ast discovers mapping annotations in type-checked packages.
//
// Discovery runs in two phases. A cheap textual filter keeps the members that
// carry a comment starting with one of the known annotation prefixes; only
// those candidates are parsed and bound to their declared symbols.
package ast

import (
	"fmt"
	goast "go/ast"
	"go/parser"
	"go/token"
	gotypes "go/types"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/tools/go/packages"

	"github.com/origadmin/attrimap/internal/config"
	"github.com/origadmin/attrimap/internal/diagnostic"
	"github.com/origadmin/attrimap/internal/model"
)

// knownPrefixes cover the generic and non-generic forms of both families.
var knownPrefixes = []string{
	config.DirectivePrefix + "MapTo",
	config.DirectivePrefix + "MapFrom",
}

// Candidate is a member that passed the textual filter.
type Candidate struct {
	File     *goast.File
	Spec     *goast.TypeSpec
	Field    *goast.Field
	Comments []*goast.Comment
}

// Walker scans packages for mapping annotations.
type Walker struct {
	reporter diagnostic.Reporter
}

var _ model.Scanner = (*Walker)(nil)

// NewWalker creates a Walker reporting malformed annotations to reporter.
func NewWalker(reporter diagnostic.Reporter) *Walker {
	return &Walker{reporter: reporter}
}

// Scan returns the confirmed occurrences of pkg in file and declaration order.
func (w *Walker) Scan(pkg *packages.Package) []*model.Occurrence {
	var occs []*model.Occurrence
	for _, c := range w.Candidates(pkg) {
		occs = append(occs, w.Confirm(pkg, c)...)
	}
	slog.Debug("Scanned package", "package", pkg.PkgPath, "occurrences", len(occs))
	return occs
}

// Candidates runs the textual filter over the struct and interface
// declarations of pkg.
func (w *Walker) Candidates(pkg *packages.Package) []Candidate {
	var out []Candidate
	for _, file := range sortedFiles(pkg) {
		if goast.IsGenerated(file) {
			slog.Debug("Skipping generated file", "file", pkg.Fset.File(file.Pos()).Name())
			continue
		}
		for _, decl := range file.Decls {
			gen, ok := decl.(*goast.GenDecl)
			if !ok || gen.Tok != token.TYPE {
				continue
			}
			for _, spec := range gen.Specs {
				ts := spec.(*goast.TypeSpec)
				for _, field := range memberFields(ts) {
					if comments := CandidateComments(field); len(comments) > 0 {
						out = append(out, Candidate{File: file, Spec: ts, Field: field, Comments: comments})
					}
				}
			}
		}
	}
	return out
}

// HasCandidate reports whether field carries a comment that may be a mapping
// annotation.
func HasCandidate(field *goast.Field) bool {
	return len(CandidateComments(field)) > 0
}

// CandidateComments returns the comments of field that start with a known
// annotation prefix, doc comment first.
func CandidateComments(field *goast.Field) []*goast.Comment {
	var out []*goast.Comment
	for _, group := range []*goast.CommentGroup{field.Doc, field.Comment} {
		if group == nil {
			continue
		}
		for _, c := range group.List {
			for _, prefix := range knownPrefixes {
				if strings.HasPrefix(c.Text, prefix) {
					out = append(out, c)
					break
				}
			}
		}
	}
	return out
}

// Confirm binds a candidate to its declared symbols and parses its
// annotations. Comments that turn out not to be annotations are dropped
// silently; malformed annotations are reported.
func (w *Walker) Confirm(pkg *packages.Package, c Candidate) []*model.Occurrence {
	if c.Spec.TypeParams != nil || c.Spec.Assign.IsValid() {
		slog.Debug("Skipping generic or alias type", "type", c.Spec.Name.Name)
		return nil
	}
	ownerObj, ok := pkg.TypesInfo.Defs[c.Spec.Name].(*gotypes.TypeName)
	if !ok {
		return nil
	}
	owner := model.NewTypeRef(ownerObj)
	scope := pkg.TypesInfo.Scopes[c.File]

	var occs []*model.Occurrence
	for _, name := range c.Field.Names {
		member, err := memberOf(pkg, owner, name)
		if err != nil {
			diagnostic.Report(w.reporter, pkg.Fset.Position(name.Pos()), err)
			continue
		}
		for _, comment := range c.Comments {
			site := model.Site{
				Pos:    pkg.Fset.Position(comment.Slash),
				Text:   comment.Text,
				Member: member,
				Owner:  ownerObj,
				Scope:  scope,
			}
			occ, err := ParseAnnotation(site)
			if err != nil {
				w.reporter.Report(diagnostic.Errorf(diagnostic.MalformedAnnotation, site.Pos, comment.Text, err.Error()).Diagnostic())
				continue
			}
			if occ == nil {
				slog.Debug("Dropping comment that is not an annotation", "pos", site.Pos, "text", comment.Text)
				continue
			}
			occs = append(occs, occ)
		}
	}
	return occs
}

// ParseAnnotation parses site.Text. It returns nil without an error when the
// text does not name one of the annotation families.
func ParseAnnotation(site model.Site) (*model.Occurrence, error) {
	text := strings.TrimPrefix(site.Text, config.DirectivePrefix)
	if i := strings.Index(text, " //"); i >= 0 {
		text = text[:i]
	}
	text = strings.TrimSpace(text)

	expr, err := parser.ParseExpr(text)
	if err != nil {
		if _, ok := model.ParseFamily(leadingIdent(text)); ok {
			return nil, fmt.Errorf("invalid syntax: %w", err)
		}
		return nil, nil
	}

	callee := expr
	var args []goast.Expr
	variadic := false
	if call, ok := expr.(*goast.CallExpr); ok {
		callee, args, variadic = call.Fun, call.Args, call.Ellipsis.IsValid()
	}

	var typeArg goast.Expr
	switch x := callee.(type) {
	case *goast.IndexExpr:
		callee, typeArg = x.X, x.Index
	case *goast.IndexListExpr:
		if _, ok := familyOf(x.X); ok {
			return nil, fmt.Errorf("expected one type argument, got %d", len(x.Indices))
		}
		return nil, nil
	}
	family, ok := familyOf(callee)
	if !ok {
		return nil, nil
	}
	if variadic {
		return nil, fmt.Errorf("variadic arguments are not allowed")
	}
	if typeArg != nil {
		return model.NewTypeParamOccurrence(site, family, typeArg, args)
	}
	return model.NewPositionalOccurrence(site, family, args)
}

func familyOf(expr goast.Expr) (model.Family, bool) {
	ident, ok := expr.(*goast.Ident)
	if !ok {
		return 0, false
	}
	return model.ParseFamily(ident.Name)
}

func leadingIdent(s string) string {
	for i, r := range s {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || i > 0 && r >= '0' && r <= '9') {
			return s[:i]
		}
	}
	return s
}

// memberOf binds a field or interface method name to a MemberRef.
func memberOf(pkg *packages.Package, owner model.TypeRef, name *goast.Ident) (model.MemberRef, error) {
	ref := model.MemberRef{Owner: owner, Name: name.Name}
	switch obj := pkg.TypesInfo.Defs[name].(type) {
	case *gotypes.Var:
		ref.Access = model.AccessField
		return ref, nil
	case *gotypes.Func:
		sig := obj.Type().(*gotypes.Signature)
		if sig.Params().Len() != 0 || sig.Results().Len() != 1 {
			return ref, diagnostic.Errorf(diagnostic.UnsupportedType, pkg.Fset.Position(name.Pos()),
				ref.String(), "an annotated method must take no parameters and return one value")
		}
		ref.Access = model.AccessGetter
		return ref, nil
	}
	return ref, diagnostic.Errorf(diagnostic.UnsupportedType, pkg.Fset.Position(name.Pos()),
		ref.String(), "not a field or method")
}

// memberFields returns the named members of a struct or interface type spec.
func memberFields(ts *goast.TypeSpec) []*goast.Field {
	var list *goast.FieldList
	switch t := ts.Type.(type) {
	case *goast.StructType:
		list = t.Fields
	case *goast.InterfaceType:
		list = t.Methods
	}
	if list == nil {
		return nil
	}
	var out []*goast.Field
	for _, f := range list.List {
		if len(f.Names) > 0 {
			out = append(out, f)
		}
	}
	return out
}

func sortedFiles(pkg *packages.Package) []*goast.File {
	files := append([]*goast.File(nil), pkg.Syntax...)
	sort.SliceStable(files, func(i, j int) bool {
		return pkg.Fset.File(files[i].Pos()).Name() < pkg.Fset.File(files[j].Pos()).Name()
	})
	return files
}
