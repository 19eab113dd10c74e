package ast

import "fmt"

// ABI names a calling convention.
type ABI uint8

const (
	ABIRust ABI = iota
	ABIRustIntrinsic
	ABIC
	ABIStdcall
	ABISystem
)

var abiNames = [...]string{
	ABIRust:          "Rust",
	ABIRustIntrinsic: "rust-intrinsic",
	ABIC:             "C",
	ABIStdcall:       "stdcall",
	ABISystem:        "system",
}

func (a ABI) String() string {
	if int(a) < len(abiNames) {
		return abiNames[a]
	}
	return fmt.Sprintf("ABI(%d)", a)
}

// IsRustLike reports whether generic parameters are permitted under this ABI.
func (a ABI) IsRustLike() bool {
	return a == ABIRust || a == ABIRustIntrinsic
}

// ParseABI maps the textual ABI name; an empty string means Rust.
func ParseABI(s string) (ABI, bool) {
	if s == "" {
		return ABIRust, true
	}
	for i, name := range abiNames {
		if name == s {
			return ABI(i), true
		}
	}
	return ABIRust, false
}

// FnStyle distinguishes unsafe functions.
type FnStyle uint8

const (
	NormalFn FnStyle = iota
	UnsafeFn
)

func (s FnStyle) String() string {
	if s == UnsafeFn {
		return "unsafe"
	}
	return "normal"
}

// PrimKind enumerates builtin scalar types.
type PrimKind uint8

const (
	PrimBool PrimKind = iota + 1
	PrimChar
	PrimInt
	PrimUint
	PrimFloat
	PrimStr
)

// PrimTy is a builtin scalar type; Width 0 means the pointer-sized variant.
type PrimTy struct {
	Kind  PrimKind
	Width uint8
}

var primNames = map[string]PrimTy{
	"bool":  {Kind: PrimBool},
	"char":  {Kind: PrimChar},
	"int":   {Kind: PrimInt},
	"i8":    {Kind: PrimInt, Width: 8},
	"i16":   {Kind: PrimInt, Width: 16},
	"i32":   {Kind: PrimInt, Width: 32},
	"i64":   {Kind: PrimInt, Width: 64},
	"uint":  {Kind: PrimUint},
	"u8":    {Kind: PrimUint, Width: 8},
	"u16":   {Kind: PrimUint, Width: 16},
	"u32":   {Kind: PrimUint, Width: 32},
	"u64":   {Kind: PrimUint, Width: 64},
	"f32":   {Kind: PrimFloat, Width: 32},
	"f64":   {Kind: PrimFloat, Width: 64},
	"float": {Kind: PrimFloat},
	"str":   {Kind: PrimStr},
}

// LookupPrim returns the builtin type named by s.
func LookupPrim(s string) (PrimTy, bool) {
	p, ok := primNames[s]
	return p, ok
}
