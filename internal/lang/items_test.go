package lang

import (
	"testing"

	"polyty/internal/ast"
	"polyty/internal/types"
)

func TestTryAddBuiltinTrait(t *testing.T) {
	it := NewItems()
	send := ast.LocalDef(3)
	other := ast.LocalDef(4)
	it.Set(Send, send)
	it.Set(TyDesc, other)

	var set types.BuiltinBounds
	if !it.TryAddBuiltinTrait(send, &set) || !set.Contains(types.BoundSend) {
		t.Fatalf("send must map to BoundSend")
	}
	if it.TryAddBuiltinTrait(other, &set) {
		t.Fatalf("ty_desc is not a builtin kind")
	}
}

func TestSetKeepsFirst(t *testing.T) {
	it := NewItems()
	it.Set(Copy, ast.LocalDef(1))
	prev, ok := it.Set(Copy, ast.LocalDef(2))
	if ok || prev != ast.LocalDef(1) {
		t.Fatalf("second Set must be refused, got %v %v", prev, ok)
	}
	if got := it.Names(); len(got) != 1 || got[0] != Copy {
		t.Fatalf("Names() = %v", got)
	}
}
