package collect

import (
	"context"

	"polyty/internal/ast"
	"polyty/internal/diag"
	"polyty/internal/source"
	"polyty/internal/types"
)

func (c *Collector) convertImpl(ctx context.Context, it *ast.Item, k *ast.ItemImpl) error {
	tpt, err := c.tyOfItem(ctx, it)
	if err != nil {
		return err
	}
	c.writeTy(it.ID, tpt.Ty)

	// methods of a trait impl are as visible as the trait itself
	vis := it.Vis
	if k.Trait != nil {
		vis = ast.VisPublic
	}
	c.checkDuplicateMethods(k.Methods, "impl")
	container := types.Container{Kind: types.ImplContainer, Def: ast.LocalDef(it.ID)}
	if err := c.convertMethods(ctx, container, k.Methods, tpt.Ty, &tpt.Generics, vis); err != nil {
		return err
	}

	if k.Trait == nil {
		return nil
	}
	tr, err := c.instantiateTraitRef(ctx, k.Trait, tpt.Ty)
	if err != nil || tr == nil {
		return err
	}
	if _, builtin := c.cx.Lang.BuiltinBound(tr.Def); builtin {
		c.errorf(k.Trait.Path.Span, diag.CollectBuiltinKindImpl,
			"cannot provide an explicit implementation for a builtin kind")
	}
	return nil
}

// convertMethods records impl methods: each gets its Method entry and a
// scheme over the impl's generics followed by its own.
func (c *Collector) convertMethods(ctx context.Context, container types.Container, ms []*ast.Method,
	untransformed types.TypeID, rcvrGenerics *types.Generics, rcvrVis ast.Visibility) error {
	for _, m := range ms {
		meth, err := c.tyOfMethod(ctx, container, m, untransformed, rcvrGenerics, rcvrVis)
		if err != nil {
			return err
		}
		c.writeTy(m.ID, meth.Fty)
		if err := c.cx.TCache.Insert(meth.Def, &types.PolyType{
			Generics: combineGenerics(rcvrGenerics, &meth.Generics),
			Ty:       meth.Fty,
		}); err != nil {
			return err
		}
		if err := c.cx.Methods.Insert(meth.Def, meth); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collector) tyOfMethod(ctx context.Context, container types.Container, m *ast.Method,
	untransformed types.TypeID, rcvrGenerics *types.Generics, rcvrVis ast.Visibility) (*types.Method, error) {
	def := ast.LocalDef(m.ID)
	g, err := c.tyGenericsForFnOrMethod(ctx, &m.Generics, paramIndex(len(rcvrGenerics.TypeParams)))
	if err != nil {
		return nil, err
	}
	sig, err := c.tyOfFnDecl(ctx, def, m.Style, ast.ABIRust, m.Decl, &receiver{untransformed: untransformed, explicit: m.Self})
	if err != nil {
		return nil, err
	}
	return &types.Method{
		Ident:        m.Ident.Name,
		Generics:     g,
		Fty:          c.cx.Types.RegisterFn(sig),
		ExplicitSelf: types.ExplicitSelf{Kind: m.Self.Kind, Mutable: m.Self.Mutable},
		Vis:          m.Vis.InheritFrom(rcvrVis),
		Def:          def,
		Container:    container,
	}, nil
}

// checkDuplicateMethods reports every method whose name repeats an earlier
// one in the same trait or impl.
func (c *Collector) checkDuplicateMethods(ms []*ast.Method, where string) {
	seen := make(map[source.StringID]source.Span, len(ms))
	for _, m := range ms {
		if prev, dup := seen[m.Ident.Name]; dup {
			diag.ReportError(c.cx.Reporter, diag.CollectDuplicateMethod, m.Span,
				"duplicate method `%s` in %s", c.str(m.Ident.Name), where).
				WithNote(prev, "first declaration here").
				Emit()
			continue
		}
		seen[m.Ident.Name] = m.Span
	}
}
