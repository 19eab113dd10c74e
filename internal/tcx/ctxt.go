// Package tcx holds the shared type context: the interner, the tables the
// collection pass fills, and the query engine that orders their computation.
package tcx

import (
	"slices"

	"polyty/internal/ast"
	"polyty/internal/diag"
	"polyty/internal/lang"
	"polyty/internal/source"
	"polyty/internal/types"
)

// ExternLoader serves collected artefacts of extern crates.
type ExternLoader interface {
	ItemType(def ast.DefID) (*types.PolyType, bool)
	TraitDef(def ast.DefID) (*types.TraitDef, bool)
	Method(def ast.DefID) (*types.Method, bool)
	TraitMethodIDs(def ast.DefID) ([]ast.DefID, bool)
	StructFields(def ast.DefID) ([]types.FieldTy, bool)
	// Superstruct reports ok=false for unknown defs; NoDefID means none.
	Superstruct(def ast.DefID) (ast.DefID, bool)
}

type Config struct {
	Types    *types.Interner
	Strings  *source.Interner
	Map      *ast.Map
	Lang     *lang.Items
	Extern   ExternLoader
	Reporter diag.Reporter
}

// Ctxt is shared by all workers of a collection run. Tables are safe for
// concurrent use; every key is written once.
type Ctxt struct {
	Types    *types.Interner
	Strings  *source.Interner
	Map      *ast.Map
	Lang     *lang.Items
	Extern   ExternLoader
	Reporter diag.Reporter
	Queries  *Engine

	TCache         *Table[ast.DefID, *types.PolyType]
	TraitDefs      *Table[ast.DefID, *types.TraitDef]
	Supertraits    *Table[ast.DefID, []*types.TraitRef]
	Methods        *Table[ast.DefID, *types.Method]
	TraitMethodIDs *Table[ast.DefID, []ast.DefID]
	StructFields   *Table[ast.DefID, []types.FieldTy]
	Superstructs   *Table[ast.DefID, ast.DefID]
	TyParamDefs    *Table[ast.NodeID, types.TypeParameterDef]
	TraitRefs      *Table[ast.NodeID, *types.TraitRef]
	NodeTypes      *Table[ast.NodeID, types.TypeID]
	Intrinsics     *Table[ast.DefID, types.TypeID]
}

func New(cfg Config) *Ctxt {
	if cfg.Types == nil {
		cfg.Types = types.NewInterner()
	}
	if cfg.Strings == nil {
		cfg.Strings = source.NewInterner()
	}
	if cfg.Lang == nil {
		cfg.Lang = lang.NewItems()
	}
	if cfg.Reporter == nil {
		cfg.Reporter = diag.NopReporter{}
	}
	return &Ctxt{
		Types:    cfg.Types,
		Strings:  cfg.Strings,
		Map:      cfg.Map,
		Lang:     cfg.Lang,
		Extern:   cfg.Extern,
		Reporter: cfg.Reporter,
		Queries:  NewEngine(),

		TCache:         NewTable[ast.DefID, *types.PolyType]("tcache", (*types.PolyType).Equal),
		TraitDefs:      NewTable[ast.DefID, *types.TraitDef]("trait_defs", (*types.TraitDef).Equal),
		Supertraits:    NewTable[ast.DefID, []*types.TraitRef]("supertraits", func(a, b []*types.TraitRef) bool { return slices.EqualFunc(a, b, (*types.TraitRef).Equal) }),
		Methods:        NewTable[ast.DefID, *types.Method]("methods", (*types.Method).Equal),
		TraitMethodIDs: NewTable[ast.DefID, []ast.DefID]("trait_method_def_ids", slices.Equal[[]ast.DefID]),
		StructFields:   NewTable[ast.DefID, []types.FieldTy]("struct_fields", slices.Equal[[]types.FieldTy]),
		Superstructs:   NewTable[ast.DefID, ast.DefID]("superstructs", eqComparable[ast.DefID]),
		TyParamDefs:    NewTable[ast.NodeID, types.TypeParameterDef]("ty_param_defs", func(a, b types.TypeParameterDef) bool { return a.Equal(&b) }),
		TraitRefs:      NewTable[ast.NodeID, *types.TraitRef]("trait_refs", (*types.TraitRef).Equal),
		NodeTypes:      NewTable[ast.NodeID, types.TypeID]("node_types", eqComparable[types.TypeID]),
		Intrinsics:     NewTable[ast.DefID, types.TypeID]("intrinsic_defs", eqComparable[types.TypeID]),
	}
}

func eqComparable[T comparable](a, b T) bool { return a == b }

// TableStat is the size of one table.
type TableStat struct {
	Name string
	Len  int
}

// Stats returns table sizes in a fixed order.
func (cx *Ctxt) Stats() []TableStat {
	return []TableStat{
		{cx.TCache.Name(), cx.TCache.Len()},
		{cx.TraitDefs.Name(), cx.TraitDefs.Len()},
		{cx.Supertraits.Name(), cx.Supertraits.Len()},
		{cx.Methods.Name(), cx.Methods.Len()},
		{cx.TraitMethodIDs.Name(), cx.TraitMethodIDs.Len()},
		{cx.StructFields.Name(), cx.StructFields.Len()},
		{cx.Superstructs.Name(), cx.Superstructs.Len()},
		{cx.TyParamDefs.Name(), cx.TyParamDefs.Len()},
		{cx.TraitRefs.Name(), cx.TraitRefs.Len()},
		{cx.NodeTypes.Name(), cx.NodeTypes.Len()},
		{cx.Intrinsics.Name(), cx.Intrinsics.Len()},
	}
}
