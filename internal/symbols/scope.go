package symbols

import (
	"fmt"

	"fortio.org/safecast"

	"polyty/internal/ast"
	"polyty/internal/source"
)

// ScopeID identifies a scope in the resolver arena.
type ScopeID uint32

const NoScopeID ScopeID = 0

func (id ScopeID) IsValid() bool { return id != NoScopeID }

// ScopeKind enumerates supported scope categories.
type ScopeKind uint8

const (
	ScopeInvalid  ScopeKind = iota
	ScopeModule             // items of a module
	ScopeGenerics           // type parameters, Self and lifetimes of an item
	ScopeBinder             // late-bound lifetimes of a fn type
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeModule:
		return "module"
	case ScopeGenerics:
		return "generics"
	case ScopeBinder:
		return "binder"
	default:
		return "invalid"
	}
}

// Scope models a lexical scope with a parent chain.
type Scope struct {
	Kind      ScopeKind
	Parent    ScopeID
	Owner     ast.NodeID
	Types     map[source.StringID]Def
	Values    map[source.StringID]Def
	Lifetimes map[source.StringID]NamedRegion
	// Declaration spans per namespace, for duplicate reports.
	TypeDecls  map[source.StringID]source.Span
	ValueDecls map[source.StringID]source.Span
}

// Scopes is a 1-based arena of scopes.
type Scopes struct {
	data []Scope
}

func NewScopes(capacity int) *Scopes {
	return &Scopes{data: make([]Scope, 1, capacity+1)}
}

func (s *Scopes) New(kind ScopeKind, parent ScopeID, owner ast.NodeID) ScopeID {
	s.data = append(s.data, Scope{
		Kind:      kind,
		Parent:    parent,
		Owner:     owner,
		Types:     make(map[source.StringID]Def),
		Values:    make(map[source.StringID]Def),
		Lifetimes: make(map[source.StringID]NamedRegion),
		TypeDecls:  make(map[source.StringID]source.Span),
		ValueDecls: make(map[source.StringID]source.Span),
	})
	id, err := safecast.Conv[uint32](len(s.data) - 1)
	if err != nil {
		panic(fmt.Errorf("scope arena overflow: %w", err))
	}
	return ScopeID(id)
}

func (s *Scopes) Get(id ScopeID) *Scope {
	if !id.IsValid() || int(id) >= len(s.data) {
		return nil
	}
	return &s.data[id]
}

func (s *Scopes) Len() int { return len(s.data) - 1 }
