package collect

import (
	"context"

	"polyty/internal/ast"
	"polyty/internal/diag"
	"polyty/internal/source"
	"polyty/internal/trace"
	"polyty/internal/types"
)

// convertItem records everything one item contributes. It runs at most once
// per item, however many workers or demands reach it.
func (c *Collector) convertItem(ctx context.Context, it *ast.Item) error {
	def := ast.LocalDef(it.ID)
	return c.query(ctx, queryKey(keyConvert, def), it.Span, func(ctx context.Context) error {
		ctx, span := trace.Start(ctx, trace.ScopeItem, c.itemName(it))
		err := c.convert(ctx, it)
		span.End(errDetail(err))
		return err
	})
}

func (c *Collector) convert(ctx context.Context, it *ast.Item) error {
	switch k := it.Kind.(type) {
	case *ast.ItemMod, *ast.ItemForeignMod, *ast.ItemExternCrate:
		// nothing to record; children are separate units
		return nil
	case *ast.ItemEnum:
		c.ensureNoTyParamBounds(&k.Generics, "enumeration")
		tpt, err := c.tyOfItem(ctx, it)
		if err != nil {
			return err
		}
		c.writeTy(it.ID, tpt.Ty)
		return c.getEnumVariantTypes(ctx, tpt, k.Def.Variants)
	case *ast.ItemStruct:
		c.ensureNoTyParamBounds(&k.Generics, "structure")
		return c.convertStructItem(ctx, it, k)
	case *ast.ItemTy:
		c.ensureNoTyParamBounds(&k.Generics, "type")
		return c.convertSimple(ctx, it)
	case *ast.ItemFn:
		c.ensureGenericsABI(it.Span, k.ABI, &k.Generics)
		return c.convertSimple(ctx, it)
	case *ast.ItemStatic:
		return c.convertSimple(ctx, it)
	case *ast.ItemImpl:
		return c.convertImpl(ctx, it, k)
	case *ast.ItemTrait:
		return c.convertTrait(ctx, it, k)
	default:
		return c.bug(it.Span, "unknown item kind %T", it.Kind)
	}
}

func (c *Collector) convertSimple(ctx context.Context, it *ast.Item) error {
	tpt, err := c.tyOfItem(ctx, it)
	if err != nil {
		return err
	}
	c.writeTy(it.ID, tpt.Ty)
	return nil
}

// getItemType returns the scheme of any definition that has one, computing
// it if needed. Members of a container are recorded by converting the
// container.
func (c *Collector) getItemType(ctx context.Context, def ast.DefID, sp source.Span) (*types.PolyType, error) {
	if tpt, ok := c.cx.TCache.Lookup(def); ok {
		return tpt, nil
	}
	if !def.IsLocal() {
		if c.cx.Extern != nil {
			if tpt, ok := c.cx.Extern.ItemType(def); ok {
				return tpt, nil
			}
		}
		return nil, c.fatal(sp, diag.MetaUnknownDef, "no type information for external definition %s", def)
	}
	node, ok := c.cx.Map.Find(def.Node)
	if !ok {
		return nil, c.bug(sp, "unexpected node %s in item type lookup", def)
	}
	switch node.Kind {
	case ast.NodeItem:
		return c.tyOfItem(ctx, node.Item)
	case ast.NodeForeignItem:
		return c.tyOfForeignItem(ctx, node.Foreign, node.ABI)
	case ast.NodeMethod, ast.NodeVariant, ast.NodeStructCtor, ast.NodeField:
		if err := c.convertItem(ctx, node.Parent); err != nil {
			return nil, err
		}
		if tpt, ok := c.cx.TCache.Lookup(def); ok {
			return tpt, nil
		}
		return nil, c.bug(sp, "no type recorded for %s %s", node.Kind, def)
	default:
		return nil, c.bug(sp, "unexpected node %s in item type lookup", def)
	}
}

// tyOfItem computes and caches the scheme of an item.
func (c *Collector) tyOfItem(ctx context.Context, it *ast.Item) (*types.PolyType, error) {
	def := ast.LocalDef(it.ID)
	if tpt, ok := c.cx.TCache.Lookup(def); ok {
		return tpt, nil
	}
	err := c.query(ctx, queryKey(keyType, def), it.Span, func(ctx context.Context) error {
		tpt, err := c.computeItemType(ctx, it)
		if err != nil {
			return err
		}
		return c.cx.TCache.Insert(def, tpt)
	})
	if err != nil {
		return nil, err
	}
	tpt, ok := c.cx.TCache.Lookup(def)
	if !ok {
		return nil, c.bug(it.Span, "type of `%s` not recorded", c.itemName(it))
	}
	return tpt, nil
}

func (c *Collector) computeItemType(ctx context.Context, it *ast.Item) (*types.PolyType, error) {
	in := c.cx.Types
	def := ast.LocalDef(it.ID)
	switch k := it.Kind.(type) {
	case *ast.ItemStatic:
		t, err := c.astToTy(ctx, explicitRscope{}, k.Ty)
		if err != nil {
			return nil, err
		}
		return types.NoParams(t), nil
	case *ast.ItemFn:
		g, err := c.tyGenericsForFnOrMethod(ctx, &k.Generics, 0)
		if err != nil {
			return nil, err
		}
		sig, err := c.tyOfFnDecl(ctx, def, k.Style, k.ABI, k.Decl, nil)
		if err != nil {
			return nil, err
		}
		return &types.PolyType{Generics: g, Ty: in.RegisterFn(sig)}, nil
	case *ast.ItemTy:
		g, err := c.tyGenericsForType(ctx, &k.Generics)
		if err != nil {
			return nil, err
		}
		t, err := c.astToTy(ctx, explicitRscope{}, k.Ty)
		if err != nil {
			return nil, err
		}
		return &types.PolyType{Generics: g, Ty: t}, nil
	case *ast.ItemEnum:
		g, err := c.tyGenericsForType(ctx, &k.Generics)
		if err != nil {
			return nil, err
		}
		return &types.PolyType{Generics: g, Ty: in.RegisterEnum(def, types.IdentitySubsts(in, &g, types.NoTypeID))}, nil
	case *ast.ItemStruct:
		g, err := c.tyGenericsForType(ctx, &k.Generics)
		if err != nil {
			return nil, err
		}
		return &types.PolyType{Generics: g, Ty: in.RegisterStruct(def, types.IdentitySubsts(in, &g, types.NoTypeID))}, nil
	case *ast.ItemImpl:
		g, err := c.tyGenericsForType(ctx, &k.Generics)
		if err != nil {
			return nil, err
		}
		self, err := c.astToTy(ctx, explicitRscope{}, k.SelfTy)
		if err != nil {
			return nil, err
		}
		return &types.PolyType{Generics: g, Ty: self}, nil
	case *ast.ItemTrait:
		return nil, c.fatal(it.Span, diag.CollectUnexpectedDef,
			"`%s` is a trait and has no type of its own", c.itemName(it))
	default:
		return nil, c.fatal(it.Span, diag.CollectUnexpectedDef,
			"`%s` does not have a type", c.itemName(it))
	}
}
