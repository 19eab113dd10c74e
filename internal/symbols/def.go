package symbols

import (
	"polyty/internal/ast"
	"polyty/internal/source"
)

// DefKind enumerates what a resolved path can denote.
type DefKind uint8

const (
	DefErr DefKind = iota
	DefStruct
	DefEnum
	DefVariant
	DefTrait
	DefTyAlias
	DefFn
	DefStatic
	DefMod
	DefCrate
	DefPrimTy
	DefSelfTy
	DefTyParam
	DefForeignFn
	DefForeignStatic
	DefMethod
)

func (k DefKind) String() string {
	switch k {
	case DefStruct:
		return "struct"
	case DefEnum:
		return "enum"
	case DefVariant:
		return "variant"
	case DefTrait:
		return "trait"
	case DefTyAlias:
		return "type alias"
	case DefFn:
		return "function"
	case DefStatic:
		return "static"
	case DefMod:
		return "module"
	case DefCrate:
		return "crate"
	case DefPrimTy:
		return "primitive type"
	case DefSelfTy:
		return "Self"
	case DefTyParam:
		return "type parameter"
	case DefForeignFn:
		return "foreign function"
	case DefForeignStatic:
		return "foreign static"
	case DefMethod:
		return "method"
	default:
		return "error"
	}
}

// IsType reports whether the definition lives in the type namespace.
func (k DefKind) IsType() bool {
	switch k {
	case DefStruct, DefEnum, DefTrait, DefTyAlias, DefMod, DefCrate, DefPrimTy, DefSelfTy, DefTyParam:
		return true
	default:
		return false
	}
}

// Def is the target of a resolved path.
//   - DefPrimTy carries Prim.
//   - DefTyParam carries the absolute Index and the declaring TyParam in ID.
//   - DefSelfTy carries the enclosing trait or impl in Owner.
type Def struct {
	Kind  DefKind
	ID    ast.DefID
	Prim  ast.PrimTy
	Index uint32
	Owner ast.DefID
}

// LifetimeKind classifies a resolved lifetime.
type LifetimeKind uint8

const (
	LifetimeStatic LifetimeKind = iota
	LifetimeEarly
	LifetimeLate
)

// NamedRegion is the resolution of a lifetime use. Decl is the declaring
// lifetime; Binder is the fn, method or fn type that binds a late lifetime.
type NamedRegion struct {
	Kind   LifetimeKind
	Decl   ast.DefID
	Index  uint32
	Name   source.StringID
	Binder ast.DefID
}
