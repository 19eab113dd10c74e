package collect

import (
	"context"

	"polyty/internal/ast"
	"polyty/internal/diag"
	"polyty/internal/source"
	"polyty/internal/types"
)

// getTraitDef returns the definition of a local or external trait.
func (c *Collector) getTraitDef(ctx context.Context, def ast.DefID, sp source.Span) (*types.TraitDef, error) {
	if td, ok := c.cx.TraitDefs.Lookup(def); ok {
		return td, nil
	}
	if !def.IsLocal() {
		if c.cx.Extern != nil {
			if td, ok := c.cx.Extern.TraitDef(def); ok {
				return td, nil
			}
		}
		return nil, c.fatal(sp, diag.MetaUnknownDef, "no trait information for external definition %s", def)
	}
	it, ok := c.cx.Map.Item(def.Node)
	if !ok {
		return nil, c.bug(sp, "trait definition %s is not an item", def)
	}
	return c.traitDefOfItem(ctx, it)
}

func (c *Collector) traitDefOfItem(ctx context.Context, it *ast.Item) (*types.TraitDef, error) {
	def := ast.LocalDef(it.ID)
	if td, ok := c.cx.TraitDefs.Lookup(def); ok {
		return td, nil
	}
	k, ok := it.Kind.(*ast.ItemTrait)
	if !ok {
		return nil, c.fatal(it.Span, diag.CollectNotATrait, "`%s` is not a trait", c.itemName(it))
	}
	err := c.query(ctx, queryKey(keyTrait, def), it.Span, func(ctx context.Context) error {
		in := c.cx.Types
		g, err := c.tyGenericsForType(ctx, &k.Generics)
		if err != nil {
			return err
		}
		bounds, err := c.ensureSupertraits(ctx, it, k.Supertraits)
		if err != nil {
			return err
		}
		self := in.Intern(types.MakeSelf(def))
		td := &types.TraitDef{
			Generics: g,
			Bounds:   bounds,
			TraitRef: &types.TraitRef{Def: def, Substs: *types.IdentitySubsts(in, &g, self)},
		}
		return c.cx.TraitDefs.Insert(def, td)
	})
	if err != nil {
		return nil, err
	}
	td, ok := c.cx.TraitDefs.Lookup(def)
	if !ok {
		return nil, c.bug(it.Span, "trait definition of `%s` not recorded", c.itemName(it))
	}
	return td, nil
}

// ensureSupertraits records the user supertraits of a trait and returns the
// builtin ones. A repeated supertrait stops processing of the list.
func (c *Collector) ensureSupertraits(ctx context.Context, it *ast.Item, supers []ast.TraitRef) (types.BuiltinBounds, error) {
	def := ast.LocalDef(it.ID)
	self := c.cx.Types.Intern(types.MakeSelf(def))
	var bounds types.BuiltinBounds
	refs := make([]*types.TraitRef, 0, len(supers))
	for i := range supers {
		tr, err := c.instantiateTraitRef(ctx, &supers[i], self)
		if err != nil {
			return 0, err
		}
		if tr == nil {
			continue
		}
		if c.cx.Lang.TryAddBuiltinTrait(tr.Def, &bounds) {
			continue
		}
		if containsTrait(refs, tr.Def) {
			c.errorf(supers[i].Path.Span, diag.CollectDuplicateSupertrait, "duplicate supertrait in trait declaration")
			break
		}
		refs = append(refs, tr)
	}
	return bounds, c.cx.Supertraits.Insert(def, refs)
}

func containsTrait(refs []*types.TraitRef, def ast.DefID) bool {
	for _, r := range refs {
		if r.Def == def {
			return true
		}
	}
	return false
}

func (c *Collector) convertTrait(ctx context.Context, it *ast.Item, k *ast.ItemTrait) error {
	td, err := c.traitDefOfItem(ctx, it)
	if err != nil {
		return err
	}
	c.checkDuplicateMethods(k.Methods, "trait")
	return c.ensureTraitMethods(ctx, it, k, td)
}

// ensureTraitMethods records every method declared by a trait, required and
// provided alike, and the ordered list of their ids. Static methods get a
// scheme that is callable without a receiver: see makeStaticMethodTy.
func (c *Collector) ensureTraitMethods(ctx context.Context, it *ast.Item, k *ast.ItemTrait, td *types.TraitDef) error {
	in := c.cx.Types
	def := ast.LocalDef(it.ID)
	container := types.Container{Kind: types.TraitContainer, Def: def}
	self := in.Intern(types.MakeSelf(def))
	ids := make([]ast.DefID, 0, len(k.Methods))
	for _, m := range k.Methods {
		meth, err := c.tyOfMethod(ctx, container, m, self, &td.Generics, ast.VisPublic)
		if err != nil {
			return err
		}
		c.writeTy(m.ID, meth.Fty)
		// default body lives in the trait itself
		if m.HasBody {
			meth.ProvidedSource = meth.Def
		}
		if meth.ExplicitSelf.Kind == ast.SelfStatic {
			err = c.makeStaticMethodTy(td, meth)
		} else {
			err = c.cx.TCache.Insert(meth.Def, &types.PolyType{
				Generics: combineGenerics(&td.Generics, &meth.Generics),
				Ty:       meth.Fty,
			})
		}
		if err != nil {
			return err
		}
		if err := c.cx.Methods.Insert(meth.Def, meth); err != nil {
			return err
		}
		ids = append(ids, meth.Def)
	}
	return c.cx.TraitMethodIDs.Insert(def, ids)
}
