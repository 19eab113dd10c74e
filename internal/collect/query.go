package collect

import (
	"context"

	"polyty/internal/ast"
	"polyty/internal/diag"
	"polyty/internal/source"
	"polyty/internal/types"
)

// ItemType returns the scheme of def, converting whatever it depends on.
// It may be called before, during or after CollectItemTypes.
func (c *Collector) ItemType(ctx context.Context, def ast.DefID) (*types.PolyType, error) {
	return c.getItemType(ctx, def, source.NoSpan)
}

// TraitDef returns the collected definition of a trait.
func (c *Collector) TraitDef(ctx context.Context, def ast.DefID) (*types.TraitDef, error) {
	return c.getTraitDef(ctx, def, source.NoSpan)
}

// StructFields returns the fields of a struct or struct-like variant.
func (c *Collector) StructFields(ctx context.Context, def ast.DefID) ([]types.FieldTy, error) {
	if fields, ok := c.cx.StructFields.Lookup(def); ok {
		return fields, nil
	}
	if !def.IsLocal() {
		if c.cx.Extern != nil {
			if fields, ok := c.cx.Extern.StructFields(def); ok {
				return fields, nil
			}
		}
		return nil, c.fatal(source.NoSpan, diag.MetaUnknownDef, "no field information for external definition %s", def)
	}
	if err := c.convertOwner(ctx, def); err != nil {
		return nil, err
	}
	if fields, ok := c.cx.StructFields.Lookup(def); ok {
		return fields, nil
	}
	return nil, c.fatal(source.NoSpan, diag.CollectUnexpectedDef, "`%s` has no fields", c.res.Name(def))
}

// Superstruct returns the struct def inherits from, or NoDefID.
func (c *Collector) Superstruct(ctx context.Context, def ast.DefID) (ast.DefID, error) {
	if s, ok := c.cx.Superstructs.Lookup(def); ok {
		return s, nil
	}
	if !def.IsLocal() && c.cx.Extern != nil {
		if s, ok := c.cx.Extern.Superstruct(def); ok {
			return s, nil
		}
	}
	if _, err := c.StructFields(ctx, def); err != nil {
		return ast.NoDefID, err
	}
	s, _ := c.cx.Superstructs.Lookup(def)
	return s, nil
}

// Method returns the collected form of a trait or impl method.
func (c *Collector) Method(ctx context.Context, def ast.DefID) (*types.Method, error) {
	if m, ok := c.cx.Methods.Lookup(def); ok {
		return m, nil
	}
	if !def.IsLocal() {
		if c.cx.Extern != nil {
			if m, ok := c.cx.Extern.Method(def); ok {
				return m, nil
			}
		}
		return nil, c.fatal(source.NoSpan, diag.MetaUnknownDef, "no method information for external definition %s", def)
	}
	if err := c.convertOwner(ctx, def); err != nil {
		return nil, err
	}
	if m, ok := c.cx.Methods.Lookup(def); ok {
		return m, nil
	}
	return nil, c.fatal(source.NoSpan, diag.CollectUnexpectedDef, "`%s` is not a method", c.res.Name(def))
}

// TraitMethodIDs returns the methods of a trait in declaration order.
func (c *Collector) TraitMethodIDs(ctx context.Context, def ast.DefID) ([]ast.DefID, error) {
	if ids, ok := c.cx.TraitMethodIDs.Lookup(def); ok {
		return ids, nil
	}
	if !def.IsLocal() {
		if c.cx.Extern != nil {
			if ids, ok := c.cx.Extern.TraitMethodIDs(def); ok {
				return ids, nil
			}
		}
		return nil, c.fatal(source.NoSpan, diag.MetaUnknownDef, "no trait information for external definition %s", def)
	}
	if err := c.convertOwner(ctx, def); err != nil {
		return nil, err
	}
	if ids, ok := c.cx.TraitMethodIDs.Lookup(def); ok {
		return ids, nil
	}
	return nil, c.fatal(source.NoSpan, diag.CollectNotATrait, "`%s` is not a trait", c.res.Name(def))
}

// convertOwner converts the item that records def: the item itself or the
// item enclosing a member.
func (c *Collector) convertOwner(ctx context.Context, def ast.DefID) error {
	node, ok := c.cx.Map.Find(def.Node)
	if !ok {
		return c.fatal(source.NoSpan, diag.CollectUnexpectedDef, "unknown definition %s", def)
	}
	switch node.Kind {
	case ast.NodeItem:
		return c.convertItem(ctx, node.Item)
	case ast.NodeForeignItem:
		return c.convertForeign(ctx, node.Foreign, node.ABI)
	default:
		if node.Parent == nil {
			return c.bug(source.NoSpan, "member %s has no parent item", def)
		}
		return c.convertItem(ctx, node.Parent)
	}
}
