package collect

import (
	"context"

	"polyty/internal/ast"
	"polyty/internal/diag"
	"polyty/internal/source"
	"polyty/internal/symbols"
	"polyty/internal/types"
)

// regionScope decides what an elided lifetime means.
type regionScope interface {
	// anonRegions returns n regions for elided lifetimes; ok=false means
	// elision is not allowed here.
	anonRegions(sp source.Span, n int) ([]types.Region, bool)
}

// explicitRscope is used in item positions: every lifetime must be written.
type explicitRscope struct{}

func (explicitRscope) anonRegions(source.Span, int) ([]types.Region, bool) {
	return nil, false
}

// bindingRscope hands out fresh late-bound regions owned by one signature.
type bindingRscope struct {
	binder ast.DefID
	next   uint32
}

func (b *bindingRscope) anonRegions(_ source.Span, n int) ([]types.Region, bool) {
	out := make([]types.Region, n)
	for i := range out {
		b.next++
		out[i] = types.FreshLateBound(b.binder, b.next)
	}
	return out, true
}

func (c *Collector) astRegionToRegion(lt *ast.Lifetime) types.Region {
	nr, ok := c.res.ResolveLifetime(lt.ID)
	if !ok {
		// резолвер уже сообщил об ошибке
		return types.Static
	}
	switch nr.Kind {
	case symbols.LifetimeEarly:
		return types.EarlyBound(nr.Decl, nr.Index, nr.Name)
	case symbols.LifetimeLate:
		return types.LateBound(nr.Binder, nr.Decl, nr.Name)
	default:
		return types.Static
	}
}

func (c *Collector) optRegion(rs regionScope, sp source.Span, lt *ast.Lifetime) types.Region {
	if lt != nil {
		return c.astRegionToRegion(lt)
	}
	if rs, ok := rs.anonRegions(sp, 1); ok {
		return rs[0]
	}
	c.errorf(sp, diag.CollectMissingLifetime, "missing lifetime specifier")
	return types.Static
}

// astToTy converts a surface type. Recoverable problems are reported and
// yield the error type; only fatal ones come back as error.
func (c *Collector) astToTy(ctx context.Context, rs regionScope, t *ast.Ty) (types.TypeID, error) {
	in := c.cx.Types
	b := in.Builtins()
	if t == nil {
		return b.Nil, nil
	}
	switch t.Kind {
	case ast.TyNil:
		return b.Nil, nil
	case ast.TyBot:
		return b.Bot, nil
	case ast.TyInfer:
		c.errorf(t.Span, diag.CollectTypePlaceholder,
			"the type placeholder `_` is not allowed within types on item signatures")
		return b.Err, nil
	case ast.TyUniq, ast.TyVec, ast.TyPtr:
		elem, err := c.astToTy(ctx, rs, t.Elem)
		if err != nil {
			return types.NoTypeID, err
		}
		switch t.Kind {
		case ast.TyUniq:
			return in.Intern(types.MakeUniq(elem)), nil
		case ast.TyVec:
			return in.Intern(types.MakeVec(elem)), nil
		default:
			return in.Intern(types.MakePtr(elem, t.Mutable)), nil
		}
	case ast.TyRptr:
		r := c.optRegion(rs, t.Span, t.Lifetime)
		elem, err := c.astToTy(ctx, rs, t.Elem)
		if err != nil {
			return types.NoTypeID, err
		}
		return in.Intern(types.MakeRptr(r, elem, t.Mutable)), nil
	case ast.TyTup:
		elems := make([]types.TypeID, len(t.Elems))
		for i, e := range t.Elems {
			et, err := c.astToTy(ctx, rs, e)
			if err != nil {
				return types.NoTypeID, err
			}
			elems[i] = et
		}
		return in.RegisterTuple(elems), nil
	case ast.TyBareFn:
		sig, err := c.tyOfFnDecl(ctx, ast.LocalDef(t.ID), t.Fn.Style, t.Fn.ABI, t.Fn.Decl, nil)
		if err != nil {
			return types.NoTypeID, err
		}
		return in.RegisterFn(sig), nil
	case ast.TyPath:
		return c.astPathToTy(ctx, rs, t)
	default:
		return types.NoTypeID, c.bug(t.Span, "unknown type form %d", t.Kind)
	}
}

func (c *Collector) astPathToTy(ctx context.Context, rs regionScope, t *ast.Ty) (types.TypeID, error) {
	in := c.cx.Types
	errTy := in.Builtins().Err
	def, ok := c.res.ResolveReference(t.ID)
	if !ok {
		return types.NoTypeID, c.bug(t.Span, "unresolved type path `%s`", c.pathString(t.Path))
	}
	switch def.Kind {
	case symbols.DefErr:
		return errTy, nil
	case symbols.DefPrimTy:
		c.checkNoPathArgs(t.Path, "primitive types")
		return in.Prim(def.Prim), nil
	case symbols.DefTyParam:
		c.checkNoPathArgs(t.Path, "type parameters")
		return in.Intern(types.MakeParam(def.Index, def.ID)), nil
	case symbols.DefSelfTy:
		c.checkNoPathArgs(t.Path, "`Self`")
		if c.isTrait(def.Owner) {
			return in.Intern(types.MakeSelf(def.Owner)), nil
		}
		tpt, err := c.getItemType(ctx, def.Owner, t.Span)
		if err != nil {
			return types.NoTypeID, err
		}
		return tpt.Ty, nil
	case symbols.DefStruct, symbols.DefEnum, symbols.DefTyAlias:
		tpt, err := c.getItemType(ctx, def.ID, t.Span)
		if err != nil {
			return types.NoTypeID, err
		}
		substs, err := c.astPathSubsts(ctx, rs, &tpt.Generics, types.NoTypeID, t.Path)
		if err != nil {
			return types.NoTypeID, err
		}
		switch def.Kind {
		case symbols.DefStruct:
			return in.RegisterStruct(def.ID, substs), nil
		case symbols.DefEnum:
			return in.RegisterEnum(def.ID, substs), nil
		default:
			return in.Subst(substs, tpt.Ty), nil
		}
	case symbols.DefTrait:
		name := c.pathString(t.Path)
		c.errorf(t.Span, diag.CollectTraitAsType,
			"reference to trait `%s` where a type is expected; try `~%s` or `&%s`", name, name, name)
		return errTy, nil
	default:
		c.errorf(t.Span, diag.CollectNotAType, "found %s `%s` used as a type", def.Kind, c.pathString(t.Path))
		return errTy, nil
	}
}

func (c *Collector) checkNoPathArgs(p *ast.Path, what string) {
	for _, seg := range p.Segments {
		if len(seg.Types) > 0 {
			c.errorf(p.Span, diag.CollectWrongTypeArgCount, "type parameters are not allowed on %s", what)
			return
		}
		if len(seg.Lifetimes) > 0 {
			c.errorf(p.Span, diag.CollectWrongLifetimeArgCount, "region parameters are not allowed on %s", what)
			return
		}
	}
}

func (c *Collector) isTrait(def ast.DefID) bool {
	if !def.IsLocal() {
		if c.cx.Extern == nil {
			return false
		}
		_, ok := c.cx.Extern.TraitDef(def)
		return ok
	}
	it, ok := c.cx.Map.Item(def.Node)
	if !ok {
		return false
	}
	_, ok = it.Kind.(*ast.ItemTrait)
	return ok
}

// astPathSubsts builds the substitution for a path naming something with
// generics g. Argument count mismatches are reported and padded with the
// error type; omitted defaulted parameters take their defaults.
func (c *Collector) astPathSubsts(ctx context.Context, rs regionScope, g *types.Generics, self types.TypeID, p *ast.Path) (*types.Substs, error) {
	in := c.cx.Types
	errTy := in.Builtins().Err
	seg := p.Last()
	if seg == nil {
		return nil, c.bug(p.Span, "empty path")
	}
	s := &types.Substs{Self: self}

	want := len(g.RegionParams)
	switch {
	case len(seg.Lifetimes) == want:
		for i := range seg.Lifetimes {
			s.Regions = append(s.Regions, c.astRegionToRegion(&seg.Lifetimes[i]))
		}
	case len(seg.Lifetimes) == 0:
		if anon, ok := rs.anonRegions(p.Span, want); ok {
			s.Regions = anon
		} else {
			c.errorf(p.Span, diag.CollectMissingLifetime,
				"missing lifetime specifier: `%s` expects %d lifetime parameter(s)", c.pathString(p), want)
			s.Regions = staticRegions(want)
		}
	default:
		c.errorf(p.Span, diag.CollectWrongLifetimeArgCount,
			"wrong number of lifetime parameters: expected %d but found %d", want, len(seg.Lifetimes))
		s.Regions = staticRegions(want)
	}

	total := len(g.TypeParams)
	required := 0
	for _, tp := range g.TypeParams {
		if tp.Default == types.NoTypeID {
			required++
		}
	}
	supplied := len(seg.Types)
	if supplied < required || supplied > total {
		expected := "exactly"
		switch {
		case required != total && supplied < required:
			expected = "at least"
		case required != total:
			expected = "at most"
		}
		n := required
		if supplied > total {
			n = total
		}
		c.errorf(p.Span, diag.CollectWrongTypeArgCount,
			"wrong number of type arguments: expected %s %d but found %d", expected, n, supplied)
	}

	s.Types = make([]types.TypeID, 0, total)
	for i, tp := range g.TypeParams {
		switch {
		case i < supplied:
			t, err := c.astToTy(ctx, rs, seg.Types[i])
			if err != nil {
				return nil, err
			}
			s.Types = append(s.Types, t)
		case tp.Default != types.NoTypeID:
			s.Types = append(s.Types, c.substDefault(s, tp.Default))
		default:
			s.Types = append(s.Types, errTy)
		}
	}
	return s, nil
}

// substDefault instantiates a parameter default against the arguments
// gathered so far. A default that refers to a later parameter, or to Self
// where none is bound, was already reported and becomes the error type.
func (c *Collector) substDefault(s *types.Substs, def types.TypeID) types.TypeID {
	in := c.cx.Types
	if idx, ok := in.MaxParamIndex(def); ok && int(idx) >= len(s.Types) {
		return in.Builtins().Err
	}
	if in.Flags(def)&types.FlagHasSelf != 0 && s.Self == types.NoTypeID {
		return in.Builtins().Err
	}
	return in.Subst(s, def)
}

func staticRegions(n int) []types.Region {
	if n == 0 {
		return nil
	}
	out := make([]types.Region, n)
	for i := range out {
		out[i] = types.Static
	}
	return out
}

// instantiateTraitRef converts a trait reference with the given Self. A
// reference the resolver could not resolve yields nil without an error.
func (c *Collector) instantiateTraitRef(ctx context.Context, tr *ast.TraitRef, self types.TypeID) (*types.TraitRef, error) {
	def, ok := c.res.ResolveReference(tr.RefID)
	if !ok || def.Kind == symbols.DefErr {
		return nil, nil
	}
	if def.Kind != symbols.DefTrait {
		return nil, c.fatal(tr.Path.Span, diag.CollectNotATrait, "`%s` is not a trait", c.pathString(&tr.Path))
	}
	ref, err := c.astPathToTraitRef(ctx, explicitRscope{}, def.ID, self, &tr.Path)
	if err != nil {
		return nil, err
	}
	c.cx.TraitRefs.Overwrite(tr.RefID, ref)
	return ref, nil
}

func (c *Collector) astPathToTraitRef(ctx context.Context, rs regionScope, trait ast.DefID, self types.TypeID, p *ast.Path) (*types.TraitRef, error) {
	td, err := c.getTraitDef(ctx, trait, p.Span)
	if err != nil {
		return nil, err
	}
	substs, err := c.astPathSubsts(ctx, rs, &td.Generics, self, p)
	if err != nil {
		return nil, err
	}
	return &types.TraitRef{Def: trait, Substs: *substs}, nil
}

// receiver describes the implicit self argument of a method.
type receiver struct {
	untransformed types.TypeID
	explicit      ast.ExplicitSelf
}

// tyOfFnDecl converts a signature. Elided lifetimes become fresh regions
// bound by binder.
func (c *Collector) tyOfFnDecl(ctx context.Context, binder ast.DefID, style ast.FnStyle, abi ast.ABI, decl *ast.FnDecl, rcvr *receiver) (*types.FnSig, error) {
	in := c.cx.Types
	rs := &bindingRscope{binder: binder}
	sig := &types.FnSig{Binder: binder, Style: style, ABI: abi, Output: in.Builtins().Nil}
	if decl == nil {
		return sig, nil
	}
	sig.Variadic = decl.Variadic
	sig.Inputs = make([]types.TypeID, 0, len(decl.Inputs)+1)
	if rcvr != nil {
		if t, ok := c.transformSelf(rs, rcvr); ok {
			sig.Inputs = append(sig.Inputs, t)
		}
	}
	for _, a := range decl.Inputs {
		t, err := c.astToTy(ctx, rs, a.Ty)
		if err != nil {
			return nil, err
		}
		sig.Inputs = append(sig.Inputs, t)
	}
	if decl.Output != nil {
		out, err := c.astToTy(ctx, rs, decl.Output)
		if err != nil {
			return nil, err
		}
		sig.Output = out
	}
	return sig, nil
}

func (c *Collector) transformSelf(rs regionScope, rcvr *receiver) (types.TypeID, bool) {
	in := c.cx.Types
	es := rcvr.explicit
	switch es.Kind {
	case ast.SelfValue:
		return rcvr.untransformed, true
	case ast.SelfRegion:
		r := c.optRegion(rs, es.Span, es.Lifetime)
		return in.Intern(types.MakeRptr(r, rcvr.untransformed, es.Mutable)), true
	case ast.SelfUniq:
		return in.Intern(types.MakeUniq(rcvr.untransformed)), true
	default:
		return types.NoTypeID, false
	}
}
