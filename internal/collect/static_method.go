package collect

import (
	"polyty/internal/ast"
	"polyty/internal/types"
)

// makeStaticMethodTy gives a static trait method a scheme that quantifies
// over Self. For trait Tr<T0..Tn-1> and method m<M0..Mk-1> the scheme is
//
//	<T0..Tn-1, Self: Tr<T0..Tn-1>, M0..Mk-1> fty
//
// with Self as parameter n and the method's parameters shifted to n+1+i.
func (c *Collector) makeStaticMethodTy(td *types.TraitDef, m *types.Method) error {
	in := c.cx.Types
	n := len(td.Generics.TypeParams)

	s := &types.Substs{
		Self:  in.Intern(types.MakeParam(paramIndex(n), ast.NoDefID)),
		Types: make([]types.TypeID, 0, n+len(m.Generics.TypeParams)),
	}
	for i, tp := range td.Generics.TypeParams {
		s.Types = append(s.Types, in.Intern(types.MakeParam(paramIndex(i), tp.Def)))
	}
	for i, tp := range m.Generics.TypeParams {
		s.Types = append(s.Types, in.Intern(types.MakeParam(paramIndex(n+1+i), tp.Def)))
	}
	regions := combineGenerics(&td.Generics, &m.Generics).RegionParams
	for _, rp := range regions {
		s.Regions = append(s.Regions, types.EarlyBound(rp.Def, rp.Index, rp.Name))
	}

	params := make([]types.TypeParameterDef, 0, n+1+len(m.Generics.TypeParams))
	params = append(params, in.SubstTypeParamDefs(s, td.Generics.TypeParams)...)
	params = append(params, types.TypeParameterDef{
		Ident: c.selfName,
		Def:   ast.NoDefID,
		Index: paramIndex(n),
		Bounds: &types.ParamBounds{
			Traits: []*types.TraitRef{in.SubstTraitRef(s, td.TraitRef)},
		},
	})
	for i, d := range in.SubstTypeParamDefs(s, m.Generics.TypeParams) {
		d.Index = paramIndex(n + 1 + i)
		params = append(params, d)
	}

	return c.cx.TCache.Insert(m.Def, &types.PolyType{
		Generics: types.Generics{TypeParams: params, RegionParams: regions},
		Ty:       in.Subst(s, m.Fty),
	})
}
