package types

import (
	"polyty/internal/ast"
	"polyty/internal/source"
)

// RegionKind classifies lifetimes.
type RegionKind uint8

const (
	ReStatic RegionKind = iota
	// ReEarlyBound is a lifetime parameter substituted positionally.
	ReEarlyBound
	// ReLateBound is bound by a function signature and never substituted.
	ReLateBound
)

// Region is a lifetime inside a type. Named late-bound regions keep the
// declaration in Def; anonymous ones carry a fresh Anon index.
type Region struct {
	Kind   RegionKind
	Def    ast.DefID
	Index  uint32
	Name   source.StringID
	Binder ast.DefID
	Anon   uint32
}

var Static = Region{Kind: ReStatic}

func EarlyBound(def ast.DefID, index uint32, name source.StringID) Region {
	return Region{Kind: ReEarlyBound, Def: def, Index: index, Name: name}
}

func LateBound(binder, def ast.DefID, name source.StringID) Region {
	return Region{Kind: ReLateBound, Binder: binder, Def: def, Name: name}
}

// FreshLateBound is the n-th anonymous region bound by binder.
func FreshLateBound(binder ast.DefID, n uint32) Region {
	return Region{Kind: ReLateBound, Binder: binder, Anon: n}
}

func (r Region) IsEarlyBound() bool { return r.Kind == ReEarlyBound }
