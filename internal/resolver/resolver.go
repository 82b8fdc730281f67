// Package resolver turns annotation occurrences into mapping descriptors.
package resolver

import (
	"context"
	"go/ast"
	"go/token"
	"go/types"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/origadmin/attrimap/internal/diagnostic"
	"github.com/origadmin/attrimap/internal/groupkey"
	"github.com/origadmin/attrimap/internal/model"
)

// PackageLookup resolves package aliases declared outside of Go imports.
type PackageLookup interface {
	LookupPackage(from *types.Package, alias string) (*types.Package, bool)
}

// Resolver implements model.Resolver.
type Resolver struct {
	packages PackageLookup
	reporter diagnostic.Reporter
	workers  int
}

var _ model.Resolver = (*Resolver)(nil)

// NewResolver creates a Resolver. lookup may be nil when no aliases exist.
func NewResolver(lookup PackageLookup, reporter diagnostic.Reporter) *Resolver {
	return &Resolver{
		packages: lookup,
		reporter: reporter,
		workers:  runtime.GOMAXPROCS(0),
	}
}

// ResolveAll resolves occs concurrently. The result keeps the order of occs.
// Occurrences that fail are reported, in input order, and left out.
func (r *Resolver) ResolveAll(ctx context.Context, occs []*model.Occurrence) ([]model.Descriptor, error) {
	results := make([]model.Descriptor, len(occs))
	errs := make([]error, len(occs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, occ := range occs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i], errs[i] = r.Resolve(occ)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	descs := make([]model.Descriptor, 0, len(occs))
	for i, occ := range occs {
		if errs[i] != nil {
			slog.Debug("Skipping unresolved annotation", "pos", occ.Pos, "error", errs[i])
			diagnostic.Report(r.reporter, occ.Pos, errs[i])
			continue
		}
		descs = append(descs, results[i])
	}
	slog.Debug("Resolved annotations", "occurrences", len(occs), "descriptors", len(descs))
	return descs, nil
}

// Resolve resolves a single occurrence. Failures are *diagnostic.Error values.
func (r *Resolver) Resolve(occ *model.Occurrence) (model.Descriptor, error) {
	counterpart, err := r.resolveType(occ)
	if err != nil {
		return model.Descriptor{}, err
	}

	var (
		source, target *types.TypeName
		sourceMember   model.MemberRef
		targetMember   string
	)
	switch occ.Family {
	case model.MapTo:
		source, target = occ.Owner, counterpart
		sourceMember, targetMember = occ.Member, occ.MemberName()
	case model.MapFrom:
		source, target = counterpart, occ.Owner
		targetMember = occ.Member.Name
	}

	if err := checkTarget(target, targetMember, occ.Pos); err != nil {
		return model.Descriptor{}, err
	}
	if occ.Family == model.MapFrom {
		if sourceMember, err = lookupSourceMember(source, occ.MemberName(), occ.Pos); err != nil {
			return model.Descriptor{}, err
		}
	}

	var transformer model.TransformerRef
	if occ.Transformer != "" {
		if transformer, err = resolveTransformer(occ); err != nil {
			return model.Descriptor{}, err
		}
	}
	return newDescriptor(source, sourceMember, target, targetMember, transformer, occ), nil
}

// newDescriptor is shared by both families so that equivalent annotations
// produce equal descriptors.
func newDescriptor(source *types.TypeName, sourceMember model.MemberRef, target *types.TypeName,
	targetMember string, transformer model.TransformerRef, occ *model.Occurrence) model.Descriptor {
	src, tgt := model.NewTypeRef(source), model.NewTypeRef(target)
	sourceMember.Owner = src
	return model.Descriptor{
		GroupKey:     groupkey.Hash(src.FullName(), tgt.FullName()),
		Source:       src,
		SourceMember: sourceMember,
		Target:       tgt,
		TargetMember: targetMember,
		Transformer:  transformer,
		Family:       occ.Family,
		Pos:          occ.Pos,
	}
}

// resolveType resolves the counterpart expression to a named, non-generic type.
func (r *Resolver) resolveType(occ *model.Occurrence) (*types.TypeName, error) {
	expr := occ.Counterpart
	if expr == nil {
		return nil, diagnostic.Errorf(diagnostic.UnresolvedType, occ.Pos, "<none>", "the annotation does not name a type")
	}
	text := types.ExprString(expr)

	var obj types.Object
	switch e := expr.(type) {
	case *ast.Ident:
		obj = r.lookupName(occ, e.Name)
	case *ast.SelectorExpr:
		x, ok := e.X.(*ast.Ident)
		if !ok {
			return nil, diagnostic.Errorf(diagnostic.UnresolvedType, occ.Pos, text, "expected pkg.Name")
		}
		pkg := r.lookupPackage(occ, x.Name)
		if pkg == nil {
			return nil, diagnostic.Errorf(diagnostic.UnresolvedType, occ.Pos, text, "unknown package "+x.Name)
		}
		obj = pkg.Scope().Lookup(e.Sel.Name)
	case *ast.StarExpr:
		return nil, diagnostic.Errorf(diagnostic.UnresolvedType, occ.Pos, text, "pointer types are not supported")
	default:
		return nil, diagnostic.Errorf(diagnostic.UnresolvedType, occ.Pos, text, "not a type name")
	}

	tn, ok := obj.(*types.TypeName)
	if !ok {
		return nil, diagnostic.Errorf(diagnostic.UnresolvedType, occ.Pos, text, "no such type")
	}
	named, ok := types.Unalias(tn.Type()).(*types.Named)
	if !ok {
		return nil, diagnostic.Errorf(diagnostic.UnresolvedType, occ.Pos, text, "not a named type")
	}
	if named.TypeParams().Len() > 0 {
		return nil, diagnostic.Errorf(diagnostic.UnresolvedType, occ.Pos, text, "generic types are not supported")
	}
	return named.Obj(), nil
}

func (r *Resolver) lookupName(occ *model.Occurrence, name string) types.Object {
	if occ.Scope != nil {
		_, obj := occ.Scope.LookupParent(name, token.NoPos)
		return obj
	}
	if pkg := occ.Owner.Pkg(); pkg != nil {
		return pkg.Scope().Lookup(name)
	}
	return nil
}

// lookupPackage prefers the imports of the annotated file over aliases.
func (r *Resolver) lookupPackage(occ *model.Occurrence, name string) *types.Package {
	if pn, ok := r.lookupName(occ, name).(*types.PkgName); ok {
		return pn.Imported()
	}
	if r.packages == nil {
		return nil
	}
	if pkg, ok := r.packages.LookupPackage(occ.Owner.Pkg(), name); ok {
		return pkg
	}
	return nil
}

// checkTarget requires a direct field of a struct type, which is what a
// composite literal can set.
func checkTarget(target *types.TypeName, member string, pos token.Position) error {
	ref := model.NewTypeRef(target)
	if ref.Kind != model.KindStruct {
		return diagnostic.Errorf(diagnostic.UnsupportedType, pos, ref.FullName(), "a mapping target must be a struct type")
	}
	obj, index, _ := types.LookupFieldOrMethod(target.Type(), false, target.Pkg(), member)
	v, ok := obj.(*types.Var)
	if !ok || !v.IsField() {
		return diagnostic.Errorf(diagnostic.UnknownMember, pos, ref.FullName(), member, "no such field")
	}
	if len(index) != 1 {
		return diagnostic.Errorf(diagnostic.UnknownMember, pos, ref.FullName(), member, "promoted fields cannot be set")
	}
	return nil
}

// lookupSourceMember accepts fields, promoted fields and getters.
func lookupSourceMember(source *types.TypeName, member string, pos token.Position) (model.MemberRef, error) {
	ref := model.MemberRef{Owner: model.NewTypeRef(source), Name: member}
	obj, _, _ := types.LookupFieldOrMethod(source.Type(), true, source.Pkg(), member)
	switch o := obj.(type) {
	case *types.Var:
		if o.IsField() {
			ref.Access = model.AccessField
			return ref, nil
		}
	case *types.Func:
		sig := o.Type().(*types.Signature)
		if sig.Params().Len() == 0 && sig.Results().Len() == 1 {
			ref.Access = model.AccessGetter
			return ref, nil
		}
		return ref, diagnostic.Errorf(diagnostic.UnknownMember, pos, ref.Owner.FullName(), member,
			"a method must take no parameters and return one value")
	}
	return ref, diagnostic.Errorf(diagnostic.UnknownMember, pos, ref.Owner.FullName(), member, "no such field or method")
}
