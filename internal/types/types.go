package types

import (
	"fmt"

	"polyty/internal/ast"
)

// TypeID uniquely identifies a type inside the interner.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// Kind enumerates all supported kinds of types.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindNil
	KindBot
	KindBool
	KindChar
	KindInt
	KindUint
	KindFloat
	KindStr
	KindUniq
	KindPtr
	KindRptr
	KindVec
	KindTuple
	KindBareFn
	KindEnum
	KindStruct
	KindParam
	KindSelf
	KindErr
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindNil:
		return "nil"
	case KindBot:
		return "bot"
	case KindBool:
		return "bool"
	case KindChar:
		return "char"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindStr:
		return "str"
	case KindUniq:
		return "uniq"
	case KindPtr:
		return "ptr"
	case KindRptr:
		return "rptr"
	case KindVec:
		return "vec"
	case KindTuple:
		return "tuple"
	case KindBareFn:
		return "bare fn"
	case KindEnum:
		return "enum"
	case KindStruct:
		return "struct"
	case KindParam:
		return "param"
	case KindSelf:
		return "self"
	case KindErr:
		return "error"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Width captures the precision of integers/floats.
type Width uint8

const (
	WidthAny Width = 0
	Width8   Width = 8
	Width16  Width = 16
	Width32  Width = 32
	Width64  Width = 64
)

// Type is a compact descriptor for any supported type.
// Payload indexes a side table: element list for tuples, signature for
// bare fns, substitution for enums and structs.
type Type struct {
	Kind    Kind
	Elem    TypeID
	Width   Width     // numeric primitives
	Mutable bool      // rptr, ptr
	Region  Region    // rptr
	Def     ast.DefID // enum, struct, self (trait), param (declaration)
	Index   uint32    // param
	Payload uint32
}

// Flags summarise what a type mentions; substitution skips types with none.
type Flags uint8

const (
	FlagHasParams Flags = 1 << iota
	FlagHasSelf
	FlagHasEarlyRegions
	FlagHasErr
)

const substFlags = FlagHasParams | FlagHasSelf | FlagHasEarlyRegions

// Descriptor helpers ---------------------------------------------------------

func MakeInt(width Width) Type   { return Type{Kind: KindInt, Width: width} }
func MakeUint(width Width) Type  { return Type{Kind: KindUint, Width: width} }
func MakeFloat(width Width) Type { return Type{Kind: KindFloat, Width: width} }

func MakeUniq(elem TypeID) Type { return Type{Kind: KindUniq, Elem: elem} }
func MakeVec(elem TypeID) Type  { return Type{Kind: KindVec, Elem: elem} }

func MakePtr(elem TypeID, mutable bool) Type {
	return Type{Kind: KindPtr, Elem: elem, Mutable: mutable}
}

// MakeRptr describes &'r T or &'r mut T.
func MakeRptr(r Region, elem TypeID, mutable bool) Type {
	return Type{Kind: KindRptr, Elem: elem, Region: r, Mutable: mutable}
}

// MakeParam describes a reference to the type parameter at index, declared by def.
func MakeParam(index uint32, def ast.DefID) Type {
	return Type{Kind: KindParam, Index: index, Def: def}
}

// MakeSelf describes the Self placeholder of the given trait.
func MakeSelf(trait ast.DefID) Type {
	return Type{Kind: KindSelf, Def: trait}
}

// FnSig is the signature of a bare fn type. Late-bound regions inside it
// refer to Binder.
type FnSig struct {
	Binder   ast.DefID
	Inputs   []TypeID
	Output   TypeID
	Variadic bool
	Style    ast.FnStyle
	ABI      ast.ABI
}

func (s *FnSig) clone() FnSig {
	out := *s
	out.Inputs = append([]TypeID(nil), s.Inputs...)
	return out
}
