package ast

import "polyty/internal/source"

// Ident is a name together with the span it was written at.
type Ident struct {
	Name source.StringID
	Span source.Span
}

// Lifetime is a lifetime name at a use or declaration site.
type Lifetime struct {
	ID   NodeID
	Name source.StringID
	Span source.Span
}

// PathSegment carries explicit lifetime and type arguments for one segment.
type PathSegment struct {
	Ident     Ident
	Lifetimes []Lifetime
	Types     []*Ty
}

type Path struct {
	Span     source.Span
	Segments []PathSegment
}

// Last returns the final segment; nil for an empty path.
func (p *Path) Last() *PathSegment {
	if p == nil || len(p.Segments) == 0 {
		return nil
	}
	return &p.Segments[len(p.Segments)-1]
}

// TyKind enumerates surface type forms.
type TyKind uint8

const (
	TyNil TyKind = iota
	TyBot
	TyPath
	TyRptr
	TyUniq
	TyPtr
	TyVec
	TyTup
	TyBareFn
	TyInfer
)

// Ty is a type as written in source. Path types are resolved by Ty.ID.
type Ty struct {
	ID       NodeID
	Span     source.Span
	Kind     TyKind
	Path     *Path     // TyPath
	Lifetime *Lifetime // TyRptr; nil when elided
	Mutable  bool      // TyRptr, TyPtr
	Elem     *Ty       // TyRptr, TyUniq, TyPtr, TyVec
	Elems    []*Ty     // TyTup
	Fn       *BareFnTy // TyBareFn
}

// BareFnTy is `fn<'a>(A) -> B` written in type position.
type BareFnTy struct {
	Lifetimes []Lifetime
	Style     FnStyle
	ABI       ABI
	Decl      *FnDecl
}

// TraitRef names a trait; RefID keys both resolution and the trait-ref table.
type TraitRef struct {
	RefID NodeID
	Path  Path
}

type TyParamBoundKind uint8

const (
	BoundTrait TyParamBoundKind = iota
	BoundStaticRegion
)

type TyParamBound struct {
	Kind  TyParamBoundKind
	Trait *TraitRef
	Span  source.Span
}

type TyParam struct {
	ID      NodeID
	Ident   Ident
	Bounds  []TyParamBound
	Default *Ty
	Span    source.Span
}

// Generics lists declared lifetimes and type parameters in declaration order.
type Generics struct {
	Lifetimes []Lifetime
	TyParams  []TyParam
}

func (g *Generics) IsParameterized() bool {
	return g != nil && (len(g.Lifetimes) > 0 || len(g.TyParams) > 0)
}

func (g *Generics) IsTypeParameterized() bool {
	return g != nil && len(g.TyParams) > 0
}

type PatKind uint8

const (
	PatIdent PatKind = iota
	PatWild
	PatOther
)

type Arg struct {
	ID      NodeID
	Ty      *Ty
	Pat     PatKind
	PatSpan source.Span
}

// FnDecl is a signature; a nil Output means unit.
type FnDecl struct {
	Inputs   []Arg
	Output   *Ty
	Variadic bool
}

type ExplicitSelfKind uint8

const (
	SelfStatic ExplicitSelfKind = iota
	SelfValue
	SelfRegion
	SelfUniq
)

func (k ExplicitSelfKind) String() string {
	switch k {
	case SelfValue:
		return "self"
	case SelfRegion:
		return "&self"
	case SelfUniq:
		return "~self"
	default:
		return "static"
	}
}

// ExplicitSelf is the receiver declaration of a method.
type ExplicitSelf struct {
	Kind     ExplicitSelfKind
	Lifetime *Lifetime // SelfRegion; nil when elided
	Mutable  bool
	Span     source.Span
}
