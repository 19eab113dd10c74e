package driver

import (
	"sort"

	"polyty/internal/ast"
	"polyty/internal/types"
)

// Scheme is one entry of the collected Type Cache, ready for printing.
type Scheme struct {
	Node     ast.NodeID
	Kind     string
	Name     string
	Generics string
	Type     string
}

func (s Scheme) String() string {
	return s.Kind + " " + s.Name + s.Generics + ": " + s.Type
}

// Printer renders types of this run, naming extern definitions through the
// loaded metadata.
func (r *Result) Printer() *types.Printer {
	return &types.Printer{Types: r.Types, Strings: r.Strings, DefName: r.defName}
}

func (r *Result) defName(def ast.DefID) string {
	if def.IsLocal() {
		if r.Symbols == nil {
			return ""
		}
		return r.Symbols.Name(def)
	}
	return r.Externs.DefName(def)
}

// Schemes lists the local schemes of the Type Cache sorted by node id.
func (r *Result) Schemes() []Scheme {
	if r.Ctxt == nil {
		return nil
	}
	pr := r.Printer()
	var out []Scheme
	r.Ctxt.TCache.Range(func(def ast.DefID, tpt *types.PolyType) bool {
		if !def.IsLocal() {
			return true
		}
		kind, name := r.describe(def.Node)
		out = append(out, Scheme{
			Node:     def.Node,
			Kind:     kind,
			Name:     name,
			Generics: pr.Generics(&tpt.Generics),
			Type:     pr.Type(tpt.Ty),
		})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Node < out[j].Node })
	return out
}

// describe names a Type Cache key the way it is written in source.
func (r *Result) describe(id ast.NodeID) (kind, name string) {
	name = r.defName(ast.LocalDef(id))
	n, ok := r.Ctxt.Map.Find(id)
	if !ok {
		return "def", name
	}
	switch n.Kind {
	case ast.NodeItem:
		kind = itemKind(n.Item.Kind)
	case ast.NodeForeignItem:
		kind = "extern fn"
		if n.Foreign.Kind == ast.ForeignStatic {
			kind = "extern static"
		}
	case ast.NodeMethod:
		kind = "fn"
	case ast.NodeVariant:
		kind = "variant"
	case ast.NodeStructCtor:
		kind = "ctor"
		if name == "" && n.Parent != nil {
			name = r.defName(ast.LocalDef(n.Parent.ID))
		}
	default:
		kind = n.Kind.String()
	}
	return kind, name
}

func itemKind(k ast.ItemKind) string {
	switch k.(type) {
	case *ast.ItemFn:
		return "fn"
	case *ast.ItemStatic:
		return "static"
	case *ast.ItemTy:
		return "type"
	case *ast.ItemEnum:
		return "enum"
	case *ast.ItemStruct:
		return "struct"
	case *ast.ItemTrait:
		return "trait"
	case *ast.ItemImpl:
		return "impl"
	default:
		return "item"
	}
}
