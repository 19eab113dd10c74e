package ast

import "polyty/internal/source"

// Attr is a `#[name = "value"]` attribute; only `lang` is interpreted.
type Attr struct {
	Name  string
	Value string
	Span  source.Span
}

// Item is a top-level or module-nested declaration.
type Item struct {
	ID    NodeID
	Ident Ident
	Attrs []Attr
	Vis   Visibility
	Span  source.Span
	Kind  ItemKind
}

// LangItem returns the value of the `lang` attribute, if any.
func (it *Item) LangItem() (string, bool) {
	return langAttr(it.Attrs)
}

func langAttr(attrs []Attr) (string, bool) {
	for _, a := range attrs {
		if a.Name == "lang" {
			return a.Value, true
		}
	}
	return "", false
}

// ItemKind is the closed set of item payloads.
type ItemKind interface {
	itemKind()
}

type ItemStatic struct {
	Ty      *Ty
	Mutable bool
}

type ItemFn struct {
	Decl     *FnDecl
	Style    FnStyle
	ABI      ABI
	Generics Generics
}

type ItemMod struct {
	Items []*Item
}

type ItemForeignMod struct {
	ABI   ABI
	Items []*ForeignItem
}

type ItemTy struct {
	Ty       *Ty
	Generics Generics
}

type ItemEnum struct {
	Def      EnumDef
	Generics Generics
}

type ItemStruct struct {
	Def      *StructDef
	Generics Generics
}

type ItemTrait struct {
	Generics    Generics
	Supertraits []TraitRef
	Methods     []*Method
}

type ItemImpl struct {
	Generics Generics
	Trait    *TraitRef
	SelfTy   *Ty
	Methods  []*Method
}

// ItemExternCrate binds the name of the item to an external crate.
type ItemExternCrate struct {
	Crate string
}

func (*ItemStatic) itemKind()      {}
func (*ItemFn) itemKind()          {}
func (*ItemMod) itemKind()         {}
func (*ItemForeignMod) itemKind()  {}
func (*ItemTy) itemKind()          {}
func (*ItemEnum) itemKind()        {}
func (*ItemStruct) itemKind()      {}
func (*ItemTrait) itemKind()       {}
func (*ItemImpl) itemKind()        {}
func (*ItemExternCrate) itemKind() {}

// Method is a method of a trait or impl. Trait methods without a body are required.
type Method struct {
	ID       NodeID
	Ident    Ident
	Generics Generics
	Self     ExplicitSelf
	Decl     *FnDecl
	Style    FnStyle
	Vis      Visibility
	HasBody  bool
	Span     source.Span
}

type StructFieldKind uint8

const (
	NamedField StructFieldKind = iota
	UnnamedField
)

type StructField struct {
	ID    NodeID
	Kind  StructFieldKind
	Ident Ident // NamedField only
	Vis   Visibility
	Ty    *Ty
	Span  source.Span
}

// StructDef describes fields; CtorID is set for tuple-like and unit structs.
type StructDef struct {
	Fields      []StructField
	CtorID      NodeID
	SuperStruct *Ty
	IsVirtual   bool
}

type VariantKind uint8

const (
	TupleVariant VariantKind = iota
	StructVariant
)

type VariantArg struct {
	ID NodeID
	Ty *Ty
}

type Variant struct {
	ID     NodeID
	Ident  Ident
	Kind   VariantKind
	Args   []VariantArg // TupleVariant
	Struct *StructDef   // StructVariant
	Vis    Visibility
	Span   source.Span
}

type EnumDef struct {
	Variants []*Variant
}

type ForeignItemKind uint8

const (
	ForeignFn ForeignItemKind = iota
	ForeignStatic
)

type ForeignItem struct {
	ID       NodeID
	Ident    Ident
	Attrs    []Attr
	Vis      Visibility
	Span     source.Span
	Kind     ForeignItemKind
	Decl     *FnDecl // ForeignFn
	Generics Generics
	Ty       *Ty // ForeignStatic
	Mutable  bool
}

func (fi *ForeignItem) LangItem() (string, bool) {
	return langAttr(fi.Attrs)
}

// Crate is the root module of a compilation unit.
type Crate struct {
	Name   string
	File   source.FileID
	Module ItemMod
	Span   source.Span
	// NextID is one past the largest node id allocated in the crate.
	NextID NodeID
}
