package metadata

import (
	"fmt"
	"io"
	"os"
	"sync"

	"polyty/internal/ast"
	"polyty/internal/source"
	"polyty/internal/symbols"
	"polyty/internal/types"
)

// Crates is the set of extern crates loaded for one compilation. Crate
// numbers are assigned in load order starting at 1. It serves name
// resolution (symbols.ExternCrates) and the collector (tcx.ExternLoader).
type Crates struct {
	mu      sync.RWMutex
	types   *types.Interner
	strings *source.Interner
	byName  map[string]*Crate
	byNum   map[ast.CrateNum]*Crate
	next    ast.CrateNum
}

func NewCrates(in *types.Interner, strs *source.Interner) *Crates {
	return &Crates{
		types:   in,
		strings: strs,
		byName:  make(map[string]*Crate),
		byNum:   make(map[ast.CrateNum]*Crate),
		next:    ast.LocalCrate + 1,
	}
}

// Load decodes a document and registers it under name. The document must
// describe a crate of that name; its dependencies must be loaded already.
func (cs *Crates) Load(name string, r io.Reader, constraint string) (*Crate, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if _, dup := cs.byName[name]; dup {
		return nil, fmt.Errorf("metadata: crate %q loaded twice", name)
	}
	c, err := Load(r, LoadOptions{
		Num:        cs.next,
		Constraint: constraint,
		Types:      cs.types,
		Strings:    cs.strings,
		Deps:       cs.numLocked,
	})
	if err != nil {
		return nil, err
	}
	if c.name != name {
		return nil, fmt.Errorf("metadata: document describes crate %q, not %q", c.name, name)
	}
	cs.byName[name] = c
	cs.byNum[c.num] = c
	cs.next++
	return c, nil
}

// LoadFile loads the metadata stored at path.
func (cs *Crates) LoadFile(name, path, constraint string) (*Crate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck
	c, err := cs.Load(name, f, constraint)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func (cs *Crates) numLocked(name string) (ast.CrateNum, bool) {
	c, ok := cs.byName[name]
	if !ok {
		return 0, false
	}
	return c.num, true
}

// Crate implements symbols.ExternCrates.
func (cs *Crates) Crate(name string) (symbols.ExternCrate, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	c, ok := cs.byName[name]
	if !ok {
		return nil, false
	}
	return c, true
}

// CrateName names a loaded crate number.
func (cs *Crates) CrateName(num ast.CrateNum) (string, bool) {
	c := cs.of(ast.DefID{Crate: num})
	if c == nil {
		return "", false
	}
	return c.name, true
}

// Len is the number of loaded crates.
func (cs *Crates) Len() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return len(cs.byNum)
}

func (cs *Crates) of(def ast.DefID) *Crate {
	if cs == nil {
		return nil
	}
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.byNum[def.Crate]
}

// DefName names a definition of any loaded crate, or "".
func (cs *Crates) DefName(def ast.DefID) string {
	if c := cs.of(def); c != nil {
		return c.DefName(def)
	}
	return ""
}

func (cs *Crates) ItemType(def ast.DefID) (*types.PolyType, bool) {
	if c := cs.of(def); c != nil {
		return c.ItemType(def)
	}
	return nil, false
}

func (cs *Crates) TraitDef(def ast.DefID) (*types.TraitDef, bool) {
	if c := cs.of(def); c != nil {
		return c.TraitDef(def)
	}
	return nil, false
}

func (cs *Crates) Method(def ast.DefID) (*types.Method, bool) {
	if c := cs.of(def); c != nil {
		return c.Method(def)
	}
	return nil, false
}

func (cs *Crates) TraitMethodIDs(def ast.DefID) ([]ast.DefID, bool) {
	if c := cs.of(def); c != nil {
		return c.TraitMethodIDs(def)
	}
	return nil, false
}

func (cs *Crates) StructFields(def ast.DefID) ([]types.FieldTy, bool) {
	if c := cs.of(def); c != nil {
		return c.StructFields(def)
	}
	return nil, false
}

func (cs *Crates) Superstruct(def ast.DefID) (ast.DefID, bool) {
	if c := cs.of(def); c != nil {
		return c.Superstruct(def)
	}
	return ast.NoDefID, false
}
