package metadata

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"polyty/internal/ast"
	"polyty/internal/collect"
	"polyty/internal/diag"
	"polyty/internal/source"
	"polyty/internal/symbols"
	"polyty/internal/tcx"
	"polyty/internal/types"
)

type compiled struct {
	crate *ast.Crate
	res   *symbols.Result
	cx    *tcx.Ctxt
	bag   *diag.Bag
}

// compile resolves and collects a crate against the given extern crates.
func compile(t *testing.T, name string, strs *source.Interner, in *types.Interner, externs *Crates, build func(b *ast.Builder) []*ast.Item) *compiled {
	t.Helper()
	b := ast.NewBuilder(strs)
	crate := b.Crate(name, build(b)...)
	bag := diag.NewBag(100)
	rep := diag.BagReporter{Bag: bag}
	opts := symbols.Options{Strings: strs, Reporter: rep}
	cfg := tcx.Config{Types: in, Strings: strs, Map: ast.NewMap(crate), Reporter: rep}
	if externs != nil {
		opts.Externs = externs
		cfg.Extern = externs
	}
	res := symbols.ResolveCrate(crate, opts)
	cfg.Lang = res.Lang
	cx := tcx.New(cfg)
	if err := collect.New(cx, res).CollectItemTypes(context.Background(), crate, collect.Options{}); err != nil {
		t.Fatalf("collect %s: %v (diagnostics: %v)", name, err, bag.Items())
	}
	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics in %s: %v", name, bag.Items())
	}
	return &compiled{crate: crate, res: res, cx: cx, bag: bag}
}

func (c *compiled) exports(externs *Crates) *Exports {
	ex := &Exports{Crate: c.crate.Name, Ctxt: c.cx, Exports: c.res.Exports, Name: c.res.Name}
	if externs != nil {
		ex.CrateName = externs.CrateName
	}
	return ex
}

func buildCore(b *ast.Builder) []*ast.Item {
	return []*ast.Item{
		b.Lang(b.Trait("Send", b.Generics(nil), nil), "send"),
		b.Struct("Box", b.Generics(nil, b.TyParam("T")), b.StructDef(b.NamedField("v", b.PathTy("T")))),
		b.Enum("Opt", b.Generics(nil, b.TyParam("T")), b.TupleVariant("None"), b.TupleVariant("Some", b.PathTy("T"))),
		b.Trait("Show", b.Generics(nil), nil,
			b.Method("show", b.SelfRef("", false), b.Generics(nil), b.Decl(b.PathTy("str")), false)),
		b.Fn("unwrap", b.Generics([]string{"'a"}, b.TyParam("T", b.TraitBound("Send"))),
			b.Decl(b.Ref("'a", false, b.PathTy("T")), b.Ref("'a", false, b.PathTy("Opt", b.PathTy("T"))))),
	}
}

func writeCore(t *testing.T) []byte {
	t.Helper()
	core := compile(t, "core", source.NewInterner(), types.NewInterner(), nil, buildCore)
	var buf bytes.Buffer
	if err := Write(&buf, core.exports(nil)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return buf.Bytes()
}

func TestRoundTripIntoFreshInterners(t *testing.T) {
	data := writeCore(t)

	strs := source.NewInterner()
	in := types.NewInterner()
	crates := NewCrates(in, strs)
	core, err := crates.Load("core", bytes.NewReader(data), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if core.Num() != 1 || core.Version().String() != FormatVersion {
		t.Fatalf("crate num %d, version %s", core.Num(), core.Version())
	}
	pr := &types.Printer{Types: in, Strings: strs, DefName: crates.DefName}

	want := map[string]string{
		"Box":    "<T/#0> core::Box<T/#0>",
		"Opt":    "<T/#0> core::Opt<T/#0>",
		"unwrap": "<T/#0: Send> fn(&'a core::Opt<T/#0>) -> &'a T/#0",
	}
	for name, scheme := range want {
		def, ok := core.Lookup([]string{name})
		if !ok {
			t.Fatalf("%s is not exported", name)
		}
		if def.ID.Crate != core.Num() {
			t.Fatalf("%s was not remapped: %s", name, def.ID)
		}
		tpt, ok := crates.ItemType(def.ID)
		if !ok {
			t.Fatalf("no scheme for %s", name)
		}
		if got := pr.PolyType(tpt); got != scheme {
			t.Fatalf("%s = %q, want %q", name, got, scheme)
		}
	}

	show, _ := core.Lookup([]string{"Show"})
	ids, ok := crates.TraitMethodIDs(show.ID)
	if !ok || len(ids) != 1 {
		t.Fatalf("trait method ids = %v", ids)
	}
	m, ok := crates.Method(ids[0])
	if !ok || m.Container.Def != show.ID || m.ExplicitSelf.Kind != ast.SelfRegion {
		t.Fatalf("method = %+v", m)
	}
	if s, _ := strs.Lookup(m.Ident); s != "show" {
		t.Fatalf("method name = %q", s)
	}

	box, _ := core.Lookup([]string{"Box"})
	fields, ok := crates.StructFields(box.ID)
	if !ok || len(fields) != 1 || fields[0].Origin != box.ID {
		t.Fatalf("fields = %+v", fields)
	}
	if sup, ok := crates.Superstruct(box.ID); !ok || sup != ast.NoDefID {
		t.Fatalf("superstruct = %v, %v", sup, ok)
	}
	if _, ok := core.LangItems()["send"]; !ok {
		t.Fatalf("lang items = %v", core.LangItems())
	}
}

func TestDependentCrateUsesExternSchemes(t *testing.T) {
	data := writeCore(t)

	strs := source.NewInterner()
	in := types.NewInterner()
	crates := NewCrates(in, strs)
	if _, err := crates.Load("core", bytes.NewReader(data), "^1"); err != nil {
		t.Fatalf("Load: %v", err)
	}

	var w, f, id *ast.Item
	app := compile(t, "app", strs, in, crates, func(b *ast.Builder) []*ast.Item {
		w = b.Struct("W", b.Generics(nil, b.TyParam("T")),
			b.StructDef(b.NamedField("b", b.PathTy("core::Box", b.PathTy("T")))))
		f = b.Fn("f", b.Generics(nil), b.Decl(b.PathTy("int"), b.PathTy("core::Opt", b.PathTy("int"))))
		id = b.Fn("id", b.Generics(nil, b.TyParam("T", b.TraitBound("core::Send"))), b.Decl(b.PathTy("T"), b.PathTy("T")))
		return []*ast.Item{b.ExternCrate("core", "core"), w, f, id}
	})
	pr := &types.Printer{Types: in, Strings: strs, DefName: func(d ast.DefID) string {
		if d.IsLocal() {
			return app.res.Name(d)
		}
		return crates.DefName(d)
	}}

	tpt, _ := app.cx.TCache.Lookup(ast.LocalDef(w.ID))
	if got := pr.PolyType(tpt); got != "<T/#0> W<T/#0>" {
		t.Fatalf("W = %q", got)
	}
	field := w.Kind.(*ast.ItemStruct).Def.Fields[0]
	tpt, _ = app.cx.TCache.Lookup(ast.LocalDef(field.ID))
	if got := pr.PolyType(tpt); got != "<T/#0> core::Box<T/#0>" {
		t.Fatalf("W.b = %q", got)
	}
	// lang item `send` of core turns the bound into a builtin one
	tpt, _ = app.cx.TCache.Lookup(ast.LocalDef(id.ID))
	if got := pr.PolyType(tpt); got != "<T/#0: Send> fn(T/#0) -> T/#0" {
		t.Fatalf("id = %q", got)
	}
	tpt, _ = app.cx.TCache.Lookup(ast.LocalDef(f.ID))
	if got := pr.PolyType(tpt); got != "fn(core::Opt<int>) -> int" {
		t.Fatalf("f = %q", got)
	}

	// app refers to core, so its metadata records the dependency by name
	var buf bytes.Buffer
	if err := Write(&buf, app.exports(crates)); err != nil {
		t.Fatalf("Write app: %v", err)
	}
	fresh := NewCrates(types.NewInterner(), source.NewInterner())
	_, err := fresh.Load("app", bytes.NewReader(buf.Bytes()), "")
	if err == nil || !strings.Contains(err.Error(), `depends on "core"`) {
		t.Fatalf("loading app without core: %v", err)
	}
	if _, err := fresh.Load("core", bytes.NewReader(data), ""); err != nil {
		t.Fatalf("Load core: %v", err)
	}
	loaded, err := fresh.Load("app", bytes.NewReader(buf.Bytes()), "")
	if err != nil {
		t.Fatalf("Load app: %v", err)
	}
	if loaded.Num() != 2 {
		t.Fatalf("app crate num = %d", loaded.Num())
	}
}

func TestLoadRejectsBadDocuments(t *testing.T) {
	data := writeCore(t)
	crates := NewCrates(types.NewInterner(), source.NewInterner())

	if _, err := crates.Load("core", bytes.NewReader(data), "^2.0"); !errors.Is(err, ErrVersion) {
		t.Fatalf("constraint ^2.0: %v", err)
	}
	if _, err := crates.Load("core", bytes.NewReader([]byte{0xc1}), ""); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("garbage: %v", err)
	}
	if _, err := crates.Load("std", bytes.NewReader(data), ""); err == nil {
		t.Fatalf("name mismatch must fail")
	}
	if crates.Len() != 0 {
		t.Fatalf("failed loads must not register crates")
	}
	if _, err := crates.Load("core", bytes.NewReader(data), ""); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := crates.Load("core", bytes.NewReader(data), ""); err == nil {
		t.Fatalf("second load of the same crate must fail")
	}
}
