package ast

import (
	"strings"

	"polyty/internal/source"
)

// Builder allocates node ids and interns names while constructing a crate.
// Every node gets the span last set with At.
type Builder struct {
	Strings *source.Interner
	next    NodeID
	span    source.Span
}

// NewBuilder starts allocation at 1; NoNodeID stays reserved.
func NewBuilder(strings *source.Interner) *Builder {
	return &Builder{Strings: strings, next: 1}
}

// At sets the span attached to subsequently built nodes.
func (b *Builder) At(sp source.Span) *Builder {
	b.span = sp
	return b
}

func (b *Builder) Span() source.Span { return b.span }

func (b *Builder) NewID() NodeID {
	id := b.next
	b.next++
	return id
}

func (b *Builder) Ident(name string) Ident {
	return Ident{Name: b.Strings.Intern(name), Span: b.span}
}

// Lifetime expects the leading quote, e.g. "'a".
func (b *Builder) Lifetime(name string) Lifetime {
	return Lifetime{ID: b.NewID(), Name: b.Strings.Intern(name), Span: b.span}
}

func (b *Builder) lifetimes(names []string) []Lifetime {
	if len(names) == 0 {
		return nil
	}
	out := make([]Lifetime, 0, len(names))
	for _, n := range names {
		out = append(out, b.Lifetime(n))
	}
	return out
}

// Path splits name on "::"; lifetimes and args attach to the last segment.
func (b *Builder) Path(name string, lifetimes []string, args ...*Ty) Path {
	parts := strings.Split(name, "::")
	segs := make([]PathSegment, 0, len(parts))
	for _, p := range parts {
		segs = append(segs, PathSegment{Ident: b.Ident(p)})
	}
	last := &segs[len(segs)-1]
	last.Lifetimes = b.lifetimes(lifetimes)
	last.Types = args
	return Path{Span: b.span, Segments: segs}
}

func (b *Builder) ty(kind TyKind) *Ty {
	return &Ty{ID: b.NewID(), Span: b.span, Kind: kind}
}

func (b *Builder) PathTy(name string, args ...*Ty) *Ty {
	return b.PathTyLt(name, nil, args...)
}

func (b *Builder) PathTyLt(name string, lifetimes []string, args ...*Ty) *Ty {
	p := b.Path(name, lifetimes, args...)
	t := b.ty(TyPath)
	t.Path = &p
	return t
}

func (b *Builder) NilTy() *Ty   { return b.ty(TyNil) }
func (b *Builder) BotTy() *Ty   { return b.ty(TyBot) }
func (b *Builder) InferTy() *Ty { return b.ty(TyInfer) }

// Ref builds &'lt T; an empty lifetime is elided.
func (b *Builder) Ref(lifetime string, mutable bool, elem *Ty) *Ty {
	t := b.ty(TyRptr)
	if lifetime != "" {
		lt := b.Lifetime(lifetime)
		t.Lifetime = &lt
	}
	t.Mutable = mutable
	t.Elem = elem
	return t
}

func (b *Builder) Uniq(elem *Ty) *Ty {
	t := b.ty(TyUniq)
	t.Elem = elem
	return t
}

func (b *Builder) Ptr(mutable bool, elem *Ty) *Ty {
	t := b.ty(TyPtr)
	t.Mutable = mutable
	t.Elem = elem
	return t
}

func (b *Builder) Vec(elem *Ty) *Ty {
	t := b.ty(TyVec)
	t.Elem = elem
	return t
}

func (b *Builder) Tup(elems ...*Ty) *Ty {
	t := b.ty(TyTup)
	t.Elems = elems
	return t
}

func (b *Builder) BareFn(lifetimes []string, decl *FnDecl) *Ty {
	t := b.ty(TyBareFn)
	t.Fn = &BareFnTy{Lifetimes: b.lifetimes(lifetimes), Decl: decl}
	return t
}

func (b *Builder) TraitRef(name string, args ...*Ty) TraitRef {
	return b.TraitRefLt(name, nil, args...)
}

func (b *Builder) TraitRefLt(name string, lifetimes []string, args ...*Ty) TraitRef {
	p := b.Path(name, lifetimes, args...)
	return TraitRef{RefID: b.NewID(), Path: p}
}

func (b *Builder) TraitBound(name string, args ...*Ty) TyParamBound {
	return b.TraitBoundLt(name, nil, args...)
}

func (b *Builder) TraitBoundLt(name string, lifetimes []string, args ...*Ty) TyParamBound {
	tr := b.TraitRefLt(name, lifetimes, args...)
	return TyParamBound{Kind: BoundTrait, Trait: &tr, Span: b.span}
}

func (b *Builder) StaticBound() TyParamBound {
	return TyParamBound{Kind: BoundStaticRegion, Span: b.span}
}

func (b *Builder) TyParam(name string, bounds ...TyParamBound) TyParam {
	return TyParam{ID: b.NewID(), Ident: b.Ident(name), Bounds: bounds, Span: b.span}
}

func (b *Builder) TyParamDefault(name string, def *Ty, bounds ...TyParamBound) TyParam {
	p := b.TyParam(name, bounds...)
	p.Default = def
	return p
}

func (b *Builder) Generics(lifetimes []string, params ...TyParam) Generics {
	return Generics{Lifetimes: b.lifetimes(lifetimes), TyParams: params}
}

func (b *Builder) Arg(ty *Ty, pat PatKind) Arg {
	return Arg{ID: b.NewID(), Ty: ty, Pat: pat, PatSpan: b.span}
}

// Decl builds a signature with identifier patterns; nil output is unit.
func (b *Builder) Decl(output *Ty, inputs ...*Ty) *FnDecl {
	args := make([]Arg, 0, len(inputs))
	for _, in := range inputs {
		args = append(args, b.Arg(in, PatIdent))
	}
	return &FnDecl{Inputs: args, Output: output}
}

func (b *Builder) DeclArgs(output *Ty, args ...Arg) *FnDecl {
	return &FnDecl{Inputs: args, Output: output}
}

func (b *Builder) Item(name string, kind ItemKind) *Item {
	return &Item{ID: b.NewID(), Ident: b.Ident(name), Span: b.span, Kind: kind}
}

func (b *Builder) Fn(name string, g Generics, decl *FnDecl) *Item {
	return b.Item(name, &ItemFn{Decl: decl, Generics: g})
}

func (b *Builder) Static(name string, ty *Ty) *Item {
	return b.Item(name, &ItemStatic{Ty: ty})
}

func (b *Builder) TyAlias(name string, g Generics, ty *Ty) *Item {
	return b.Item(name, &ItemTy{Ty: ty, Generics: g})
}

func (b *Builder) Struct(name string, g Generics, def *StructDef) *Item {
	return b.Item(name, &ItemStruct{Def: def, Generics: g})
}

func (b *Builder) NamedField(name string, ty *Ty) StructField {
	return StructField{ID: b.NewID(), Kind: NamedField, Ident: b.Ident(name), Ty: ty, Span: b.span}
}

func (b *Builder) UnnamedField(ty *Ty) StructField {
	return StructField{ID: b.NewID(), Kind: UnnamedField, Ty: ty, Span: b.span}
}

// StructDef gives unit and tuple-like structs a constructor id.
func (b *Builder) StructDef(fields ...StructField) *StructDef {
	sd := &StructDef{Fields: fields}
	if len(fields) == 0 || fields[0].Kind == UnnamedField {
		sd.CtorID = b.NewID()
	}
	return sd
}

func (b *Builder) Enum(name string, g Generics, variants ...*Variant) *Item {
	return b.Item(name, &ItemEnum{Def: EnumDef{Variants: variants}, Generics: g})
}

func (b *Builder) TupleVariant(name string, args ...*Ty) *Variant {
	va := make([]VariantArg, 0, len(args))
	for _, a := range args {
		va = append(va, VariantArg{ID: b.NewID(), Ty: a})
	}
	return &Variant{ID: b.NewID(), Ident: b.Ident(name), Kind: TupleVariant, Args: va, Span: b.span}
}

func (b *Builder) StructVariant(name string, fields ...StructField) *Variant {
	return &Variant{
		ID:     b.NewID(),
		Ident:  b.Ident(name),
		Kind:   StructVariant,
		Struct: &StructDef{Fields: fields},
		Span:   b.span,
	}
}

func (b *Builder) Trait(name string, g Generics, supers []TraitRef, methods ...*Method) *Item {
	return b.Item(name, &ItemTrait{Generics: g, Supertraits: supers, Methods: methods})
}

func (b *Builder) Method(name string, self ExplicitSelf, g Generics, decl *FnDecl, hasBody bool) *Method {
	return &Method{
		ID:       b.NewID(),
		Ident:    b.Ident(name),
		Generics: g,
		Self:     self,
		Decl:     decl,
		HasBody:  hasBody,
		Span:     b.span,
	}
}

func (b *Builder) SelfStatic() ExplicitSelf { return ExplicitSelf{Kind: SelfStatic, Span: b.span} }
func (b *Builder) SelfValue() ExplicitSelf  { return ExplicitSelf{Kind: SelfValue, Span: b.span} }
func (b *Builder) SelfUniq() ExplicitSelf   { return ExplicitSelf{Kind: SelfUniq, Span: b.span} }

// SelfRef builds &'lt self; an empty lifetime is elided.
func (b *Builder) SelfRef(lifetime string, mutable bool) ExplicitSelf {
	es := ExplicitSelf{Kind: SelfRegion, Mutable: mutable, Span: b.span}
	if lifetime != "" {
		lt := b.Lifetime(lifetime)
		es.Lifetime = &lt
	}
	return es
}

func (b *Builder) Impl(g Generics, trait *TraitRef, selfTy *Ty, methods ...*Method) *Item {
	return b.Item("", &ItemImpl{Generics: g, Trait: trait, SelfTy: selfTy, Methods: methods})
}

func (b *Builder) Mod(name string, items ...*Item) *Item {
	return b.Item(name, &ItemMod{Items: items})
}

func (b *Builder) ForeignMod(abi ABI, items ...*ForeignItem) *Item {
	return b.Item("", &ItemForeignMod{ABI: abi, Items: items})
}

func (b *Builder) ForeignFn(name string, g Generics, decl *FnDecl) *ForeignItem {
	return &ForeignItem{
		ID:       b.NewID(),
		Ident:    b.Ident(name),
		Span:     b.span,
		Kind:     ForeignFn,
		Decl:     decl,
		Generics: g,
	}
}

func (b *Builder) ForeignStatic(name string, ty *Ty, mutable bool) *ForeignItem {
	return &ForeignItem{
		ID:      b.NewID(),
		Ident:   b.Ident(name),
		Span:    b.span,
		Kind:    ForeignStatic,
		Ty:      ty,
		Mutable: mutable,
	}
}

func (b *Builder) ExternCrate(name, crate string) *Item {
	return b.Item(name, &ItemExternCrate{Crate: crate})
}

// Lang tags an item with a `lang` attribute and returns it.
func (b *Builder) Lang(it *Item, value string) *Item {
	it.Attrs = append(it.Attrs, Attr{Name: "lang", Value: value, Span: b.span})
	return it
}

func (b *Builder) Crate(name string, items ...*Item) *Crate {
	return &Crate{Name: name, Module: ItemMod{Items: items}, Span: b.span, NextID: b.next}
}
