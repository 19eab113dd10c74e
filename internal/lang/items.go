// Package lang tracks lang items: definitions the compiler treats specially,
// tagged with a `lang` attribute in the crate or in an extern crate.
package lang

import (
	"sort"

	"polyty/internal/ast"
	"polyty/internal/types"
)

const (
	Send   = "send"
	Sized  = "sized"
	Copy   = "copy"
	Share  = "share"
	TyDesc = "ty_desc"
	Opaque = "opaque"
)

var builtinKinds = map[string]types.BuiltinBound{
	Send:  types.BoundSend,
	Sized: types.BoundSized,
	Copy:  types.BoundCopy,
	Share: types.BoundShare,
}

// Intrinsics lists lang items whose types are recorded in the intrinsic table.
var Intrinsics = []string{TyDesc, Opaque}

// Items maps lang item names to definitions. Read-only after resolution.
type Items struct {
	byName map[string]ast.DefID
	byDef  map[ast.DefID]string
}

func NewItems() *Items {
	return &Items{
		byName: make(map[string]ast.DefID),
		byDef:  make(map[ast.DefID]string),
	}
}

// Set records name -> def; it refuses to replace an existing entry and
// returns the previous definition in that case.
func (it *Items) Set(name string, def ast.DefID) (ast.DefID, bool) {
	if prev, ok := it.byName[name]; ok {
		return prev, false
	}
	it.byName[name] = def
	it.byDef[def] = name
	return def, true
}

func (it *Items) Get(name string) (ast.DefID, bool) {
	if it == nil {
		return ast.NoDefID, false
	}
	d, ok := it.byName[name]
	return d, ok
}

// Names returns all recorded lang item names, sorted.
func (it *Items) Names() []string {
	out := make([]string, 0, len(it.byName))
	for n := range it.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// BuiltinBound maps a trait definition to the builtin capability it stands for.
func (it *Items) BuiltinBound(def ast.DefID) (types.BuiltinBound, bool) {
	if it == nil {
		return 0, false
	}
	name, ok := it.byDef[def]
	if !ok {
		return 0, false
	}
	b, ok := builtinKinds[name]
	return b, ok
}

// TryAddBuiltinTrait adds the capability for def to set when def is a
// builtin-kind trait.
func (it *Items) TryAddBuiltinTrait(def ast.DefID, set *types.BuiltinBounds) bool {
	b, ok := it.BuiltinBound(def)
	if !ok {
		return false
	}
	set.Add(b)
	return true
}
