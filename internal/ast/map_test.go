package ast

import (
	"testing"

	"polyty/internal/source"
)

func TestMapIndexesNestedNodes(t *testing.T) {
	b := NewBuilder(source.NewInterner())
	field := b.NamedField("x", b.PathTy("int"))
	variant := b.TupleVariant("A", b.PathTy("int"))
	meth := b.Method("m", b.SelfValue(), Generics{}, b.Decl(nil), true)
	ffn := b.ForeignFn("puts", Generics{}, b.Decl(nil))
	st := b.Struct("S", Generics{}, b.StructDef(field))
	en := b.Enum("E", Generics{}, variant)
	tr := b.Trait("T", Generics{}, nil, meth)
	fm := b.ForeignMod(ABIC, ffn)
	mod := b.Mod("inner", st, fm)
	crate := b.Crate("demo", mod, en, tr)

	m := NewMap(crate)
	if n := m.Get(field.ID); n.Kind != NodeField || n.Parent != st {
		t.Fatalf("field node = %+v", n)
	}
	if n := m.Get(variant.ID); n.Kind != NodeVariant || n.Parent != en {
		t.Fatalf("variant node = %+v", n)
	}
	if n := m.Get(meth.ID); n.Kind != NodeMethod || n.Parent != tr {
		t.Fatalf("method node = %+v", n)
	}
	if abi, ok := m.ForeignABI(ffn.ID); !ok || abi != ABIC {
		t.Fatalf("foreign abi = %v, %v", abi, ok)
	}
	if _, ok := m.Item(st.ID); !ok {
		t.Fatalf("nested struct not found")
	}
	if st.Kind.(*ItemStruct).Def.CtorID.IsValid() {
		t.Fatalf("named-field struct must not get a ctor")
	}
}

func TestUnitsFollowSourceOrder(t *testing.T) {
	b := NewBuilder(source.NewInterner())
	a := b.Static("A", b.PathTy("int"))
	ffn := b.ForeignStatic("errno", b.PathTy("int"), true)
	c := b.Static("C", b.PathTy("int"))
	crate := b.Crate("demo", a, b.Mod("m", b.ForeignMod(ABIC, ffn)), c)

	units := Units(crate)
	if len(units) != 5 {
		t.Fatalf("expected 5 units, got %d", len(units))
	}
	if units[0].Item != a || units[3].Foreign != ffn || units[4].Item != c {
		t.Fatalf("unexpected unit order")
	}
}

func TestDefIDRoundTrip(t *testing.T) {
	d := DefID{Crate: 3, Node: 42}
	got, err := ParseDefID(d.String())
	if err != nil || got != d {
		t.Fatalf("ParseDefID(%q) = %v, %v", d.String(), got, err)
	}
	if _, err := ParseDefID("nope"); err == nil {
		t.Fatalf("expected error for malformed id")
	}
}
