package resolver

import (
	"go/types"

	"github.com/origadmin/attrimap/internal/diagnostic"
	"github.com/origadmin/attrimap/internal/model"
)

// resolveTransformer looks the transformer up on the declaration site type:
// a method of that type first, then a function of its package.
func resolveTransformer(occ *model.Occurrence) (model.TransformerRef, error) {
	owner := occ.Owner
	ref := model.TransformerRef{Declaring: model.NewTypeRef(owner), Name: occ.Transformer}

	obj, _, _ := types.LookupFieldOrMethod(owner.Type(), true, owner.Pkg(), ref.Name)
	if fn, ok := obj.(*types.Func); ok && convertible(fn) {
		if occ.Family == model.MapFrom {
			// The generated function only has the source value, not a target
			// to call the method on.
			return model.TransformerRef{}, diagnostic.Errorf(diagnostic.ReceiverTransformer, occ.Pos,
				ref.Declaring.FullName(), ref.Name, ref.Declaring.Name)
		}
		ref.Kind = model.TransformerMethod
		return ref, nil
	}

	if pkg := owner.Pkg(); pkg != nil {
		if fn, ok := pkg.Scope().Lookup(ref.Name).(*types.Func); ok && convertible(fn) {
			ref.Kind = model.TransformerFunc
			return ref, nil
		}
	}
	return model.TransformerRef{}, diagnostic.Errorf(diagnostic.MissingTransformer, occ.Pos, ref.Name, ref.Declaring.FullName())
}

// convertible accepts non-generic functions of one parameter and one result.
func convertible(fn *types.Func) bool {
	sig, ok := fn.Type().(*types.Signature)
	if !ok || sig.TypeParams().Len() > 0 {
		return false
	}
	return sig.Params().Len() == 1 && sig.Results().Len() == 1
}
