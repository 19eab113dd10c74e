package astfile

import (
	"strings"

	"gopkg.in/yaml.v3"

	"polyty/internal/ast"
	"polyty/internal/diag"
)

// itemKinds are the keys that name an item; every entry carries exactly one.
var itemKinds = []string{"struct", "enum", "type", "fn", "static", "trait", "impl", "mod", "extern", "extern_crate"}

var itemKeys = map[string][]string{
	"struct":       {"generics", "fields", "virtual", "super"},
	"enum":         {"generics", "variants"},
	"type":         {"generics", "is"},
	"fn":           {"generics", "sig", "abi", "unsafe"},
	"static":       {"ty", "mut"},
	"trait":        {"generics", "supertraits", "methods"},
	"impl":         {"generics", "methods"},
	"mod":          {"items"},
	"extern":       {"items"},
	"extern_crate": {"crate"},
}

func (l *loader) items(n *yaml.Node) []*ast.Item {
	var out []*ast.Item
	for _, e := range l.seq(n) {
		if it := l.item(e); it != nil {
			out = append(out, it)
		}
	}
	return out
}

// kindOf finds the item kind key of a mapping entry.
func (l *loader) kindOf(n *yaml.Node, kinds []string) (string, *yaml.Node) {
	if n.Kind != yaml.MappingNode {
		l.errorf(n, diag.InpBadDocument, "expected an item mapping")
		return "", nil
	}
	var kind string
	var val *yaml.Node
	for i := 0; i+1 < len(n.Content); i += 2 {
		k := n.Content[i].Value
		for _, want := range kinds {
			if k != want {
				continue
			}
			if kind != "" {
				l.errorf(n.Content[i], diag.InpUnknownItem, "item is both `%s` and `%s`", kind, k)
				return "", nil
			}
			kind, val = k, n.Content[i+1]
		}
	}
	if kind == "" {
		l.errorf(n, diag.InpUnknownItem, "item must be one of %s", strings.Join(kinds, ", "))
	}
	return kind, val
}

func (l *loader) item(n *yaml.Node) *ast.Item {
	kind, nameNode := l.kindOf(n, itemKinds)
	if kind == "" {
		return nil
	}
	keys := append([]string{kind, "vis", "lang"}, itemKeys[kind]...)
	f := l.fields(n, keys...)

	var it *ast.Item
	switch kind {
	case "struct":
		sd := l.structDef(f["fields"])
		if v, ok := f["virtual"]; ok {
			sd.IsVirtual = l.flag(v)
		}
		if s, ok := f["super"]; ok {
			sd.SuperStruct = l.ty(s)
		}
		g := l.generics(f["generics"])
		it = l.b.At(l.span(nameNode)).Struct(l.str(nameNode), g, sd)
	case "enum":
		g := l.generics(f["generics"])
		var variants []*ast.Variant
		if vs, ok := f["variants"]; ok {
			for _, v := range l.seq(vs) {
				if vr := l.variant(v); vr != nil {
					variants = append(variants, vr)
				}
			}
		}
		it = l.b.At(l.span(nameNode)).Enum(l.str(nameNode), g, variants...)
	case "type":
		g := l.generics(f["generics"])
		target, ok := f["is"]
		if !ok {
			l.errorf(nameNode, diag.InpMissingKey, "type alias `%s` needs `is`", nameNode.Value)
			return nil
		}
		it = l.b.At(l.span(nameNode)).TyAlias(l.str(nameNode), g, l.ty(target))
	case "fn":
		g := l.generics(f["generics"])
		sig, ok := f["sig"]
		if !ok {
			l.errorf(nameNode, diag.InpMissingKey, "function `%s` needs `sig`", nameNode.Value)
			return nil
		}
		decl, _ := l.decl(sig, false)
		fn := &ast.ItemFn{Decl: decl, ABI: l.abi(f["abi"]), Generics: g}
		if u, ok := f["unsafe"]; ok && l.flag(u) {
			fn.Style = ast.UnsafeFn
		}
		it = l.b.At(l.span(nameNode)).Item(l.str(nameNode), fn)
	case "static":
		tyNode, ok := f["ty"]
		if !ok {
			l.errorf(nameNode, diag.InpMissingKey, "static `%s` needs `ty`", nameNode.Value)
			return nil
		}
		st := &ast.ItemStatic{Ty: l.ty(tyNode)}
		if m, ok := f["mut"]; ok {
			st.Mutable = l.flag(m)
		}
		it = l.b.At(l.span(nameNode)).Item(l.str(nameNode), st)
	case "trait":
		g := l.generics(f["generics"])
		var supers []ast.TraitRef
		if ss, ok := f["supertraits"]; ok {
			for _, s := range l.seq(ss) {
				if tr, ok := l.traitRef(s); ok {
					supers = append(supers, tr)
				}
			}
		}
		methods := l.methods(f["methods"], true)
		it = l.b.At(l.span(nameNode)).Trait(l.str(nameNode), g, supers, methods...)
	case "impl":
		g := l.generics(f["generics"])
		var trait *ast.TraitRef
		var self *ast.Ty
		if !l.parse(nameNode, diag.InpBadType, func(p *parser) error {
			var err error
			trait, self, err = p.parseImplHeader()
			return err
		}) {
			return nil
		}
		methods := l.methods(f["methods"], false)
		it = l.b.At(l.span(nameNode)).Impl(g, trait, self, methods...)
	case "mod":
		var items []*ast.Item
		if is, ok := f["items"]; ok {
			items = l.items(is)
		}
		it = l.b.At(l.span(nameNode)).Mod(l.str(nameNode), items...)
	case "extern":
		abi := ast.ABIC
		if nameNode.Value != "" {
			abi = l.abi(nameNode)
		}
		var items []*ast.ForeignItem
		if is, ok := f["items"]; ok {
			for _, e := range l.seq(is) {
				if fi := l.foreignItem(e); fi != nil {
					items = append(items, fi)
				}
			}
		}
		it = l.b.At(l.span(nameNode)).ForeignMod(abi, items...)
	case "extern_crate":
		name := l.str(nameNode)
		crate := name
		if c, ok := f["crate"]; ok {
			crate = l.str(c)
		}
		it = l.b.At(l.span(nameNode)).ExternCrate(name, crate)
	}
	it.Span = l.span(n)
	if v, ok := f["vis"]; ok {
		it.Vis = l.vis(v)
	}
	if lg, ok := f["lang"]; ok {
		it.Attrs = append(it.Attrs, ast.Attr{Name: "lang", Value: l.str(lg), Span: l.span(lg)})
	}
	return it
}

// structDef reads named fields from a mapping, positional fields from a
// list, and no fields at all as a unit struct.
func (l *loader) structDef(n *yaml.Node) *ast.StructDef {
	return l.b.StructDef(l.structFields(n)...)
}

func (l *loader) structFields(n *yaml.Node) []ast.StructField {
	if n == nil {
		return nil
	}
	var fields []ast.StructField
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			vis := ast.VisInherited
			name := k.Value
			if rest, ok := strings.CutPrefix(name, "pub "); ok {
				vis, name = ast.VisPublic, strings.TrimSpace(rest)
			} else if rest, ok := strings.CutPrefix(name, "priv "); ok {
				vis, name = ast.VisPrivate, strings.TrimSpace(rest)
			}
			ty := l.ty(v)
			fd := l.b.At(l.span(k)).NamedField(name, ty)
			fd.Vis = vis
			fields = append(fields, fd)
		}
	case yaml.SequenceNode:
		for _, e := range n.Content {
			ty := l.ty(e)
			fields = append(fields, l.b.At(l.span(e)).UnnamedField(ty))
		}
	default:
		l.errorf(n, diag.InpBadDocument, "fields must be a mapping or a list")
	}
	return fields
}

// variant reads `Name`, `Name: [T, U]` or `Name: {x: T}`.
func (l *loader) variant(n *yaml.Node) *ast.Variant {
	switch n.Kind {
	case yaml.ScalarNode:
		return l.b.At(l.span(n)).TupleVariant(n.Value)
	case yaml.MappingNode:
		if len(n.Content) != 2 {
			l.errorf(n, diag.InpBadDocument, "a variant is a single `Name: fields` entry")
			return nil
		}
		k, v := n.Content[0], n.Content[1]
		switch v.Kind {
		case yaml.SequenceNode:
			args := make([]*ast.Ty, 0, len(v.Content))
			for _, e := range v.Content {
				args = append(args, l.ty(e))
			}
			return l.b.At(l.span(k)).TupleVariant(k.Value, args...)
		case yaml.MappingNode:
			fields := l.structFields(v)
			return l.b.At(l.span(k)).StructVariant(k.Value, fields...)
		}
		l.errorf(v, diag.InpBadDocument, "variant fields must be a mapping or a list")
		return nil
	default:
		l.errorf(n, diag.InpBadDocument, "expected a variant")
		return nil
	}
}

// methods reads trait or impl methods. Impl methods always have a body;
// trait methods have one when marked `provided`.
func (l *loader) methods(n *yaml.Node, inTrait bool) []*ast.Method {
	if n == nil {
		return nil
	}
	var out []*ast.Method
	for _, e := range l.seq(n) {
		kind, nameNode := l.kindOf(e, []string{"fn"})
		if kind == "" {
			continue
		}
		keys := []string{"fn", "generics", "sig", "unsafe", "vis"}
		if inTrait {
			keys = append(keys, "provided")
		}
		f := l.fields(e, keys...)
		sig, ok := f["sig"]
		if !ok {
			l.errorf(nameNode, diag.InpMissingKey, "method `%s` needs `sig`", nameNode.Value)
			continue
		}
		g := l.generics(f["generics"])
		decl, self := l.decl(sig, true)
		hasBody := !inTrait
		if p, ok := f["provided"]; ok {
			hasBody = l.flag(p)
		}
		m := l.b.At(l.span(nameNode)).Method(l.str(nameNode), self, g, decl, hasBody)
		m.Span = l.span(e)
		if u, ok := f["unsafe"]; ok && l.flag(u) {
			m.Style = ast.UnsafeFn
		}
		if v, ok := f["vis"]; ok {
			m.Vis = l.vis(v)
		}
		out = append(out, m)
	}
	return out
}

func (l *loader) foreignItem(n *yaml.Node) *ast.ForeignItem {
	kind, nameNode := l.kindOf(n, []string{"fn", "static"})
	if kind == "" {
		return nil
	}
	var fi *ast.ForeignItem
	if kind == "fn" {
		f := l.fields(n, "fn", "generics", "sig", "vis", "lang")
		sig, ok := f["sig"]
		if !ok {
			l.errorf(nameNode, diag.InpMissingKey, "foreign function `%s` needs `sig`", nameNode.Value)
			return nil
		}
		g := l.generics(f["generics"])
		decl, _ := l.decl(sig, false)
		fi = l.b.At(l.span(nameNode)).ForeignFn(l.str(nameNode), g, decl)
		l.itemAttrs(fi, f)
		return fi
	}
	f := l.fields(n, "static", "ty", "mut", "vis", "lang")
	tyNode, ok := f["ty"]
	if !ok {
		l.errorf(nameNode, diag.InpMissingKey, "foreign static `%s` needs `ty`", nameNode.Value)
		return nil
	}
	mut := false
	if m, ok := f["mut"]; ok {
		mut = l.flag(m)
	}
	fi = l.b.At(l.span(nameNode)).ForeignStatic(l.str(nameNode), l.ty(tyNode), mut)
	l.itemAttrs(fi, f)
	return fi
}

func (l *loader) itemAttrs(fi *ast.ForeignItem, f map[string]*yaml.Node) {
	if v, ok := f["vis"]; ok {
		fi.Vis = l.vis(v)
	}
	if lg, ok := f["lang"]; ok {
		fi.Attrs = append(fi.Attrs, ast.Attr{Name: "lang", Value: l.str(lg), Span: l.span(lg)})
	}
}
