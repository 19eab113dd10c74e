package collect

import (
	"context"
	"fmt"

	"fortio.org/safecast"

	"polyty/internal/ast"
	"polyty/internal/diag"
	"polyty/internal/source"
	"polyty/internal/types"
)

// tyGenericsForType builds the generics of a struct, enum, alias, trait or
// impl: every declared lifetime is early-bound.
func (c *Collector) tyGenericsForType(ctx context.Context, g *ast.Generics) (types.Generics, error) {
	return c.tyGenerics(ctx, g.Lifetimes, g.TyParams, 0)
}

// tyGenericsForFnOrMethod keeps only the lifetimes that appear in bounds;
// the rest stay late-bound in the signature. Type parameters are numbered
// from base.
func (c *Collector) tyGenericsForFnOrMethod(ctx context.Context, g *ast.Generics, base uint32) (types.Generics, error) {
	return c.tyGenerics(ctx, c.res.EarlyBoundLifetimes(g), g.TyParams, base)
}

func (c *Collector) tyGenerics(ctx context.Context, lifetimes []ast.Lifetime, params []ast.TyParam, base uint32) (types.Generics, error) {
	var out types.Generics
	if len(lifetimes) > 0 {
		out.RegionParams = make([]types.RegionParameterDef, len(lifetimes))
		for i, lt := range lifetimes {
			out.RegionParams[i] = types.RegionParameterDef{
				Name:  lt.Name,
				Def:   ast.LocalDef(lt.ID),
				Index: paramIndex(i),
			}
		}
	}
	if len(params) > 0 {
		out.TypeParams = make([]types.TypeParameterDef, len(params))
		for i := range params {
			d, err := c.tyParamDef(ctx, &params[i], base+paramIndex(i))
			if err != nil {
				return types.Generics{}, err
			}
			out.TypeParams[i] = d
		}
	}
	return out, nil
}

// tyParamDef computes a type parameter once; its bounds may demand other
// items, so it goes through the query engine.
func (c *Collector) tyParamDef(ctx context.Context, p *ast.TyParam, index uint32) (types.TypeParameterDef, error) {
	if d, ok := c.cx.TyParamDefs.Lookup(p.ID); ok {
		return d, nil
	}
	def := ast.LocalDef(p.ID)
	err := c.query(ctx, queryKey(keyParam, def), p.Span, func(ctx context.Context) error {
		bounds, err := c.computeBounds(ctx, index, def, p.Bounds)
		if err != nil {
			return err
		}
		d := types.TypeParameterDef{Ident: p.Ident.Name, Def: def, Index: index, Bounds: bounds}
		if p.Default != nil {
			t, err := c.astToTy(ctx, explicitRscope{}, p.Default)
			if err != nil {
				return err
			}
			if maxIdx, ok := c.cx.Types.MaxParamIndex(t); ok && maxIdx >= index {
				c.errorf(p.Default.Span, diag.CollectForwardDefault,
					"type parameters with a default cannot use forward declared identifiers")
			}
			d.Default = t
		}
		return c.cx.TyParamDefs.Insert(p.ID, d)
	})
	if err != nil {
		return types.TypeParameterDef{}, err
	}
	d, ok := c.cx.TyParamDefs.Lookup(p.ID)
	if !ok {
		return types.TypeParameterDef{}, c.bug(p.Span, "type parameter %s not recorded", def)
	}
	return d, nil
}

// computeBounds splits declared bounds into builtin capabilities and user
// trait references whose Self is the parameter itself.
func (c *Collector) computeBounds(ctx context.Context, index uint32, def ast.DefID, bounds []ast.TyParamBound) (*types.ParamBounds, error) {
	pb := &types.ParamBounds{}
	paramTy := c.cx.Types.Intern(types.MakeParam(index, def))
	for i := range bounds {
		b := &bounds[i]
		switch b.Kind {
		case ast.BoundStaticRegion:
			pb.Builtin.Add(types.BoundStatic)
		case ast.BoundTrait:
			tr, err := c.instantiateTraitRef(ctx, b.Trait, paramTy)
			if err != nil {
				return nil, err
			}
			if tr == nil {
				continue
			}
			if !c.cx.Lang.TryAddBuiltinTrait(tr.Def, &pb.Builtin) {
				pb.Traits = append(pb.Traits, tr)
			}
		}
	}
	return pb, nil
}

// ensureNoTyParamBounds rejects bounds on parameters of data types.
func (c *Collector) ensureNoTyParamBounds(g *ast.Generics, thing string) {
	for _, p := range g.TyParams {
		if len(p.Bounds) == 0 {
			continue
		}
		c.errorf(p.Span, diag.CollectBoundsNotAllowed, "trait bounds are not allowed in %s definitions", thing)
	}
}

// ensureGenericsABI rejects type parameters on fns with a foreign ABI.
func (c *Collector) ensureGenericsABI(sp source.Span, abi ast.ABI, g *ast.Generics) {
	if g.IsTypeParameterized() && !abi.IsRustLike() {
		c.errorf(sp, diag.CollectForeignGenerics, "foreign functions may not use type parameters")
	}
}

// combineGenerics appends a method's own generics to its container's.
// Method region parameters are renumbered after the container's, matching
// the indices the resolver gave their uses.
func combineGenerics(outer, own *types.Generics) types.Generics {
	out := types.Generics{
		TypeParams:   make([]types.TypeParameterDef, 0, len(outer.TypeParams)+len(own.TypeParams)),
		RegionParams: make([]types.RegionParameterDef, 0, len(outer.RegionParams)+len(own.RegionParams)),
	}
	out.TypeParams = append(out.TypeParams, outer.TypeParams...)
	out.TypeParams = append(out.TypeParams, own.TypeParams...)
	out.RegionParams = append(out.RegionParams, outer.RegionParams...)
	base := paramIndex(len(outer.RegionParams))
	for _, rp := range own.RegionParams {
		rp.Index += base
		out.RegionParams = append(out.RegionParams, rp)
	}
	return out
}

// paramIndex converts a position in a generics list to a parameter index.
func paramIndex(i int) uint32 {
	idx, err := safecast.Conv[uint32](i)
	if err != nil {
		panic(fmt.Errorf("parameter index overflow: %w", err))
	}
	return idx
}
