package types

import (
	"fmt"
	"strings"

	"polyty/internal/ast"
	"polyty/internal/source"
)

// Printer renders types for diagnostics and dumps.
type Printer struct {
	Types   *Interner
	Strings *source.Interner
	// DefName names enums, structs and traits; nil falls back to the def id.
	DefName func(ast.DefID) string
}

func (p *Printer) name(id source.StringID) string {
	if p.Strings == nil {
		return ""
	}
	s, _ := p.Strings.Lookup(id)
	return s
}

func (p *Printer) defName(d ast.DefID) string {
	if p.DefName != nil {
		if s := p.DefName(d); s != "" {
			return s
		}
	}
	return "<" + d.String() + ">"
}

func (p *Printer) Type(id TypeID) string {
	var sb strings.Builder
	p.writeType(&sb, id)
	return sb.String()
}

func (p *Printer) writeType(sb *strings.Builder, id TypeID) {
	t, ok := p.Types.Lookup(id)
	if !ok {
		sb.WriteString("<none>")
		return
	}
	switch t.Kind {
	case KindNil:
		sb.WriteString("()")
	case KindBot:
		sb.WriteString("!")
	case KindBool, KindChar, KindStr:
		sb.WriteString(t.Kind.String())
	case KindInt, KindUint, KindFloat:
		sb.WriteString(numericName(t))
	case KindUniq:
		sb.WriteByte('~')
		p.writeType(sb, t.Elem)
	case KindPtr:
		sb.WriteByte('*')
		if t.Mutable {
			sb.WriteString("mut ")
		}
		p.writeType(sb, t.Elem)
	case KindRptr:
		sb.WriteByte('&')
		if r := p.Region(t.Region); r != "" {
			sb.WriteString(r)
			sb.WriteByte(' ')
		}
		if t.Mutable {
			sb.WriteString("mut ")
		}
		p.writeType(sb, t.Elem)
	case KindVec:
		sb.WriteByte('[')
		p.writeType(sb, t.Elem)
		sb.WriteByte(']')
	case KindTuple:
		elems, _ := p.Types.TupleElems(id)
		sb.WriteByte('(')
		p.writeList(sb, elems)
		if len(elems) == 1 {
			sb.WriteByte(',')
		}
		sb.WriteByte(')')
	case KindBareFn:
		sig, _ := p.Types.FnSig(id)
		if sig.Style == ast.UnsafeFn {
			sb.WriteString("unsafe ")
		}
		if sig.ABI != ast.ABIRust {
			fmt.Fprintf(sb, "extern %q ", sig.ABI.String())
		}
		sb.WriteString("fn(")
		p.writeList(sb, sig.Inputs)
		if sig.Variadic {
			sb.WriteString(", ...")
		}
		sb.WriteByte(')')
		if out, _ := p.Types.Lookup(sig.Output); out.Kind != KindNil {
			sb.WriteString(" -> ")
			p.writeType(sb, sig.Output)
		}
	case KindEnum, KindStruct:
		sb.WriteString(p.defName(t.Def))
		s, _ := p.Types.AdtSubsts(id)
		p.writeSubsts(sb, s)
	case KindParam:
		fmt.Fprintf(sb, "%s/#%d", p.paramName(t), t.Index)
	case KindSelf:
		sb.WriteString("Self")
	case KindErr:
		sb.WriteString("[type error]")
	default:
		sb.WriteString(t.Kind.String())
	}
}

func (p *Printer) paramName(t Type) string {
	if !t.Def.IsValid() {
		// synthetic Self of a static trait method
		return "Self"
	}
	if p.DefName != nil {
		if s := p.DefName(t.Def); s != "" {
			return s
		}
	}
	return "T"
}

func (p *Printer) writeList(sb *strings.Builder, ids []TypeID) {
	for i, e := range ids {
		if i > 0 {
			sb.WriteString(", ")
		}
		p.writeType(sb, e)
	}
}

func (p *Printer) writeSubsts(sb *strings.Builder, s *Substs) {
	if len(s.Regions) == 0 && len(s.Types) == 0 {
		return
	}
	sb.WriteByte('<')
	first := true
	for _, r := range s.Regions {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		sb.WriteString(p.Region(r))
	}
	for _, e := range s.Types {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		p.writeType(sb, e)
	}
	sb.WriteByte('>')
}

func numericName(t Type) string {
	prefix := map[Kind]string{KindInt: "i", KindUint: "u", KindFloat: "f"}[t.Kind]
	if t.Width == WidthAny {
		return t.Kind.String()
	}
	return fmt.Sprintf("%s%d", prefix, t.Width)
}

// Region renders a region; anonymous late-bound regions render as "".
func (p *Printer) Region(r Region) string {
	switch r.Kind {
	case ReStatic:
		return "'static"
	case ReEarlyBound:
		return p.name(r.Name)
	default:
		if r.Name != source.NoStringID {
			return p.name(r.Name)
		}
		return ""
	}
}

func (p *Printer) TraitRef(tr *TraitRef) string {
	if tr == nil {
		return "<none>"
	}
	var sb strings.Builder
	if tr.Substs.Self != NoTypeID {
		p.writeType(&sb, tr.Substs.Self)
		sb.WriteString(": ")
	}
	sb.WriteString(p.defName(tr.Def))
	p.writeSubsts(&sb, &tr.Substs)
	return sb.String()
}

func (p *Printer) Bounds(b *ParamBounds) string {
	if b == nil {
		return ""
	}
	var parts []string
	if !b.Builtin.IsEmpty() {
		parts = append(parts, b.Builtin.String())
	}
	for _, tr := range b.Traits {
		name := p.defName(tr.Def)
		var sb strings.Builder
		sb.WriteString(name)
		// Self of a bound is the bounded parameter itself
		p.writeSubsts(&sb, &tr.Substs)
		parts = append(parts, sb.String())
	}
	return strings.Join(parts, " + ")
}

func (p *Printer) Generics(g *Generics) string {
	if len(g.RegionParams) == 0 && len(g.TypeParams) == 0 {
		return ""
	}
	var parts []string
	for _, r := range g.RegionParams {
		parts = append(parts, p.name(r.Name))
	}
	for _, tp := range g.TypeParams {
		s := fmt.Sprintf("%s/#%d", p.name(tp.Ident), tp.Index)
		if b := p.Bounds(tp.Bounds); b != "" {
			s += ": " + b
		}
		if tp.Default != NoTypeID {
			s += " = " + p.Type(tp.Default)
		}
		parts = append(parts, s)
	}
	return "<" + strings.Join(parts, ", ") + ">"
}

// PolyType renders a scheme as `<params> type`.
func (p *Printer) PolyType(pt *PolyType) string {
	if pt == nil {
		return "<none>"
	}
	g := p.Generics(&pt.Generics)
	if g == "" {
		return p.Type(pt.Ty)
	}
	return g + " " + p.Type(pt.Ty)
}
