package collect

import (
	"context"

	"polyty/internal/ast"
	"polyty/internal/diag"
	"polyty/internal/trace"
	"polyty/internal/types"
)

func (c *Collector) convertForeign(ctx context.Context, fi *ast.ForeignItem, abi ast.ABI) error {
	def := ast.LocalDef(fi.ID)
	return c.query(ctx, queryKey(keyConvert, def), fi.Span, func(ctx context.Context) error {
		ctx, span := trace.Start(ctx, trace.ScopeItem, c.str(fi.Ident.Name))
		tpt, err := c.tyOfForeignItem(ctx, fi, abi)
		span.End(errDetail(err))
		if err != nil {
			return err
		}
		c.writeTy(fi.ID, tpt.Ty)
		return nil
	})
}

func (c *Collector) tyOfForeignItem(ctx context.Context, fi *ast.ForeignItem, abi ast.ABI) (*types.PolyType, error) {
	def := ast.LocalDef(fi.ID)
	if tpt, ok := c.cx.TCache.Lookup(def); ok {
		return tpt, nil
	}
	err := c.query(ctx, queryKey(keyType, def), fi.Span, func(ctx context.Context) error {
		var tpt *types.PolyType
		switch fi.Kind {
		case ast.ForeignFn:
			c.ensureGenericsABI(fi.Span, abi, &fi.Generics)
			var err error
			if tpt, err = c.tyOfForeignFnDecl(ctx, fi, abi); err != nil {
				return err
			}
		case ast.ForeignStatic:
			t, err := c.astToTy(ctx, explicitRscope{}, fi.Ty)
			if err != nil {
				return err
			}
			tpt = types.NoParams(t)
		default:
			return c.bug(fi.Span, "unknown foreign item kind %d", fi.Kind)
		}
		return c.cx.TCache.Insert(def, tpt)
	})
	if err != nil {
		return nil, err
	}
	tpt, ok := c.cx.TCache.Lookup(def)
	if !ok {
		return nil, c.bug(fi.Span, "type of foreign item %s not recorded", def)
	}
	return tpt, nil
}

// tyOfForeignFnDecl types a foreign fn: always unsafe, with the ABI of its
// block.
func (c *Collector) tyOfForeignFnDecl(ctx context.Context, fi *ast.ForeignItem, abi ast.ABI) (*types.PolyType, error) {
	def := ast.LocalDef(fi.ID)
	if fi.Decl != nil {
		for _, a := range fi.Decl.Inputs {
			if a.Pat == ast.PatOther {
				c.errorf(a.PatSpan, diag.CollectForeignPattern,
					"patterns aren't allowed in foreign function declarations")
			}
		}
	}
	g, err := c.tyGenericsForFnOrMethod(ctx, &fi.Generics, 0)
	if err != nil {
		return nil, err
	}
	sig, err := c.tyOfFnDecl(ctx, def, ast.UnsafeFn, abi, fi.Decl, nil)
	if err != nil {
		return nil, err
	}
	return &types.PolyType{Generics: g, Ty: c.cx.Types.RegisterFn(sig)}, nil
}
