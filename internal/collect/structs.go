package collect

import (
	"context"

	"polyty/internal/ast"
	"polyty/internal/diag"
	"polyty/internal/source"
	"polyty/internal/symbols"
	"polyty/internal/types"
)

func (c *Collector) convertStructItem(ctx context.Context, it *ast.Item, k *ast.ItemStruct) error {
	tpt, err := c.tyOfItem(ctx, it)
	if err != nil {
		return err
	}
	c.writeTy(it.ID, tpt.Ty)
	if k.Def.SuperStruct != nil {
		st, err := c.astToTy(ctx, explicitRscope{}, k.Def.SuperStruct)
		if err != nil {
			return err
		}
		c.writeTy(k.Def.SuperStruct.ID, st)
	}
	return c.convertStruct(ctx, k.Def, tpt, it.ID)
}

// convertStruct records the fields, superstruct and constructor of a struct
// or struct-like variant identified by id. tpt is the scheme of the
// enclosing type.
func (c *Collector) convertStruct(ctx context.Context, sd *ast.StructDef, tpt *types.PolyType, id ast.NodeID) error {
	def := ast.LocalDef(id)
	seen := make(map[source.StringID]source.Span, len(sd.Fields))
	fields := make([]types.FieldTy, 0, len(sd.Fields))
	for i := range sd.Fields {
		f := &sd.Fields[i]
		ft, err := c.convertField(ctx, &tpt.Generics, f, def)
		if err != nil {
			return err
		}
		if f.Kind == ast.NamedField {
			if prev, dup := seen[f.Ident.Name]; dup {
				diag.ReportError(c.cx.Reporter, diag.CollectDuplicateField, f.Span,
					"field `%s` is already declared", c.str(f.Ident.Name)).
					WithNote(prev, "previously declared here").
					Emit()
				continue
			}
			seen[f.Ident.Name] = f.Span
		}
		fields = append(fields, ft)
	}
	if err := c.cx.StructFields.Insert(def, fields); err != nil {
		return err
	}

	super := ast.NoDefID
	if sd.SuperStruct != nil && sd.SuperStruct.Kind == ast.TyPath {
		if d, ok := c.res.ResolveReference(sd.SuperStruct.ID); ok && d.Kind == symbols.DefStruct {
			if !c.isVirtualStruct(d.ID) {
				c.errorf(sd.SuperStruct.Span, diag.CollectNonVirtualSuperstruct,
					"struct inheritance is only allowed from virtual structs")
			}
			super = d.ID
		}
	}
	if err := c.cx.Superstructs.Insert(def, super); err != nil {
		return err
	}

	if !sd.CtorID.IsValid() {
		return nil
	}
	ctor := ast.LocalDef(sd.CtorID)
	switch {
	case len(sd.Fields) == 0:
		// unit struct: the constructor is a value of the struct type
		c.writeTy(sd.CtorID, tpt.Ty)
		return c.cx.TCache.Insert(ctor, tpt)
	case sd.Fields[0].Kind == ast.UnnamedField:
		inputs, err := c.fieldTypes(sd)
		if err != nil {
			return err
		}
		fn := c.cx.Types.RegisterCtorFn(ctor, inputs, tpt.Ty)
		c.writeTy(sd.CtorID, fn)
		return c.cx.TCache.Insert(ctor, &types.PolyType{Generics: tpt.Generics, Ty: fn})
	default:
		return nil
	}
}

func (c *Collector) convertField(ctx context.Context, g *types.Generics, f *ast.StructField, origin ast.DefID) (types.FieldTy, error) {
	t, err := c.astToTy(ctx, explicitRscope{}, f.Ty)
	if err != nil {
		return types.FieldTy{}, err
	}
	c.writeTy(f.ID, t)
	def := ast.LocalDef(f.ID)
	// поле наследует generics своей структуры
	if err := c.cx.TCache.Insert(def, &types.PolyType{Generics: *g, Ty: t}); err != nil {
		return types.FieldTy{}, err
	}
	ft := types.FieldTy{ID: def, Vis: f.Vis, Origin: origin}
	if f.Kind == ast.NamedField {
		ft.Name = f.Ident.Name
	}
	return ft, nil
}

// fieldTypes reads back the recorded types of every declared field.
func (c *Collector) fieldTypes(sd *ast.StructDef) ([]types.TypeID, error) {
	out := make([]types.TypeID, len(sd.Fields))
	for i, f := range sd.Fields {
		tpt, ok := c.cx.TCache.Lookup(ast.LocalDef(f.ID))
		if !ok {
			return nil, c.bug(f.Span, "field type not recorded")
		}
		out[i] = tpt.Ty
	}
	return out, nil
}

// isVirtualStruct reports whether def may be inherited from. Structs from
// other crates carry no such flag and are accepted.
func (c *Collector) isVirtualStruct(def ast.DefID) bool {
	if !def.IsLocal() {
		return true
	}
	it, ok := c.cx.Map.Item(def.Node)
	if !ok {
		return false
	}
	k, ok := it.Kind.(*ast.ItemStruct)
	return ok && k.Def.IsVirtual
}

// getEnumVariantTypes gives every variant a scheme over the enum's generics:
// nullary variants have the enum type, the others a constructor fn.
func (c *Collector) getEnumVariantTypes(ctx context.Context, tpt *types.PolyType, variants []*ast.Variant) error {
	in := c.cx.Types
	for _, v := range variants {
		vdef := ast.LocalDef(v.ID)
		var result types.TypeID
		switch v.Kind {
		case ast.TupleVariant:
			if len(v.Args) == 0 {
				result = tpt.Ty
				break
			}
			inputs := make([]types.TypeID, len(v.Args))
			for i, a := range v.Args {
				t, err := c.astToTy(ctx, explicitRscope{}, a.Ty)
				if err != nil {
					return err
				}
				inputs[i] = t
			}
			result = in.RegisterCtorFn(vdef, inputs, tpt.Ty)
		case ast.StructVariant:
			if err := c.convertStruct(ctx, v.Struct, tpt, v.ID); err != nil {
				return err
			}
			inputs, err := c.fieldTypes(v.Struct)
			if err != nil {
				return err
			}
			result = in.RegisterCtorFn(vdef, inputs, tpt.Ty)
		}
		c.writeTy(v.ID, result)
		if err := c.cx.TCache.Insert(vdef, &types.PolyType{Generics: tpt.Generics, Ty: result}); err != nil {
			return err
		}
	}
	return nil
}
