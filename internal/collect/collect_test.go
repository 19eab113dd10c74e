package collect

import (
	"context"
	"errors"
	"testing"

	"polyty/internal/ast"
	"polyty/internal/diag"
	"polyty/internal/source"
	"polyty/internal/symbols"
	"polyty/internal/tcx"
	"polyty/internal/types"
)

type fixture struct {
	crate *ast.Crate
	res   *symbols.Result
	cx    *tcx.Ctxt
	col   *Collector
	bag   *diag.Bag
	pr    *types.Printer
}

func newFixture(t *testing.T, build func(b *ast.Builder) []*ast.Item) *fixture {
	t.Helper()
	strs := source.NewInterner()
	b := ast.NewBuilder(strs)
	crate := b.Crate("test", build(b)...)
	bag := diag.NewBag(100)
	rep := diag.BagReporter{Bag: bag}
	res := symbols.ResolveCrate(crate, symbols.Options{Strings: strs, Reporter: rep})
	cx := tcx.New(tcx.Config{Strings: strs, Map: ast.NewMap(crate), Lang: res.Lang, Reporter: rep})
	return &fixture{
		crate: crate,
		res:   res,
		cx:    cx,
		col:   New(cx, res),
		bag:   bag,
		pr:    &types.Printer{Types: cx.Types, Strings: strs, DefName: res.Name},
	}
}

func collectForTest(t *testing.T, jobs int, build func(b *ast.Builder) []*ast.Item) (*fixture, error) {
	t.Helper()
	f := newFixture(t, build)
	err := f.col.CollectItemTypes(context.Background(), f.crate, Options{Jobs: jobs})
	return f, err
}

func mustCollect(t *testing.T, build func(b *ast.Builder) []*ast.Item) *fixture {
	t.Helper()
	f, err := collectForTest(t, 1, build)
	if err != nil {
		t.Fatalf("collect failed: %v (diagnostics: %v)", err, f.bag.Items())
	}
	return f
}

func (f *fixture) expectClean(t *testing.T) {
	t.Helper()
	if f.bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", f.bag.Items())
	}
}

func (f *fixture) expectCount(t *testing.T, code diag.Code, want int) {
	t.Helper()
	if got := f.bag.Count(code); got != want {
		t.Fatalf("%s reported %d times, want %d (diagnostics: %v)", code.ID(), got, want, f.bag.Items())
	}
}

func (f *fixture) scheme(t *testing.T, id ast.NodeID) string {
	t.Helper()
	tpt, ok := f.cx.TCache.Lookup(ast.LocalDef(id))
	if !ok {
		t.Fatalf("no scheme recorded for node %d", id)
	}
	return f.pr.PolyType(tpt)
}

func expectScheme(t *testing.T, f *fixture, id ast.NodeID, want string) {
	t.Helper()
	if got := f.scheme(t, id); got != want {
		t.Fatalf("scheme = %q, want %q", got, want)
	}
}

func TestStructSchemeAndFields(t *testing.T) {
	var pair *ast.Item
	f := mustCollect(t, func(b *ast.Builder) []*ast.Item {
		pair = b.Struct("Pair", b.Generics(nil, b.TyParam("T")), b.StructDef(
			b.NamedField("a", b.PathTy("T")),
			b.NamedField("b", b.PathTy("int")),
		))
		return []*ast.Item{pair}
	})
	f.expectClean(t)
	expectScheme(t, f, pair.ID, "<T/#0> Pair<T/#0>")

	fields, ok := f.cx.StructFields.Lookup(ast.LocalDef(pair.ID))
	if !ok || len(fields) != 2 {
		t.Fatalf("fields = %v", fields)
	}
	sd := pair.Kind.(*ast.ItemStruct).Def
	expectScheme(t, f, sd.Fields[0].ID, "<T/#0> T/#0")
	expectScheme(t, f, sd.Fields[1].ID, "<T/#0> int")
	if fields[0].Origin != ast.LocalDef(pair.ID) {
		t.Fatalf("field origin = %s", fields[0].Origin)
	}
	if ty, ok := f.cx.NodeTypes.Lookup(pair.ID); !ok || f.pr.Type(ty) != "Pair<T/#0>" {
		t.Fatalf("node type of struct not recorded")
	}
}

func TestStructConstructors(t *testing.T) {
	var unit, tuple *ast.Item
	f := mustCollect(t, func(b *ast.Builder) []*ast.Item {
		unit = b.Struct("U", b.Generics(nil), b.StructDef())
		tuple = b.Struct("W", b.Generics(nil, b.TyParam("T")), b.StructDef(
			b.UnnamedField(b.PathTy("T")),
			b.UnnamedField(b.PathTy("bool")),
		))
		return []*ast.Item{unit, tuple}
	})
	f.expectClean(t)
	expectScheme(t, f, unit.Kind.(*ast.ItemStruct).Def.CtorID, "U")
	expectScheme(t, f, tuple.Kind.(*ast.ItemStruct).Def.CtorID, "<T/#0> fn(T/#0, bool) -> W<T/#0>")
}

func TestDuplicateFieldKeepsFirst(t *testing.T) {
	var dup *ast.Item
	f := mustCollect(t, func(b *ast.Builder) []*ast.Item {
		dup = b.Struct("D", b.Generics(nil), b.StructDef(
			b.NamedField("x", b.PathTy("int")),
			b.NamedField("x", b.PathTy("bool")),
		))
		return []*ast.Item{dup}
	})
	f.expectCount(t, diag.CollectDuplicateField, 1)
	fields, _ := f.cx.StructFields.Lookup(ast.LocalDef(dup.ID))
	if len(fields) != 1 {
		t.Fatalf("expected the duplicate to be dropped, got %d fields", len(fields))
	}
	sd := dup.Kind.(*ast.ItemStruct).Def
	if fields[0].ID != ast.LocalDef(sd.Fields[0].ID) {
		t.Fatalf("first declaration must win")
	}
	expectScheme(t, f, sd.Fields[1].ID, "bool")
}

func TestEnumVariantSchemes(t *testing.T) {
	var enum *ast.Item
	f := mustCollect(t, func(b *ast.Builder) []*ast.Item {
		enum = b.Enum("E", b.Generics(nil, b.TyParam("T")),
			b.TupleVariant("A"),
			b.TupleVariant("B", b.PathTy("T")),
			b.StructVariant("C", b.NamedField("x", b.PathTy("int"))),
		)
		return []*ast.Item{enum}
	})
	f.expectClean(t)
	vs := enum.Kind.(*ast.ItemEnum).Def.Variants
	expectScheme(t, f, vs[0].ID, "<T/#0> E<T/#0>")
	expectScheme(t, f, vs[1].ID, "<T/#0> fn(T/#0) -> E<T/#0>")
	expectScheme(t, f, vs[2].ID, "<T/#0> fn(int) -> E<T/#0>")

	fields, err := f.col.StructFields(context.Background(), ast.LocalDef(vs[2].ID))
	if err != nil || len(fields) != 1 {
		t.Fatalf("struct variant fields = %v, %v", fields, err)
	}
}

func TestForwardReferenceIsDemandDriven(t *testing.T) {
	var fn, s *ast.Item
	f := mustCollect(t, func(b *ast.Builder) []*ast.Item {
		fn = b.Fn("f", b.Generics(nil), b.Decl(b.PathTy("int"), b.PathTy("S")))
		s = b.Struct("S", b.Generics(nil), b.StructDef(b.NamedField("v", b.Uniq(b.PathTy("S")))))
		return []*ast.Item{fn, s}
	})
	f.expectClean(t)
	expectScheme(t, f, fn.ID, "fn(S) -> int")
	expectScheme(t, f, s.Kind.(*ast.ItemStruct).Def.Fields[0].ID, "~S")
}

func TestItemTypeBeforeCollection(t *testing.T) {
	var fn *ast.Item
	f := newFixture(t, func(b *ast.Builder) []*ast.Item {
		fn = b.Fn("f", b.Generics(nil), b.Decl(nil, b.PathTy("S")))
		return []*ast.Item{fn, b.Struct("S", b.Generics(nil), b.StructDef())}
	})
	tpt, err := f.col.ItemType(context.Background(), ast.LocalDef(fn.ID))
	if err != nil {
		t.Fatalf("ItemType: %v", err)
	}
	if got := f.pr.PolyType(tpt); got != "fn(S)" {
		t.Fatalf("scheme = %q", got)
	}
}

func TestAliasCycleIsFatal(t *testing.T) {
	f, err := collectForTest(t, 1, func(b *ast.Builder) []*ast.Item {
		return []*ast.Item{
			b.TyAlias("A", b.Generics(nil), b.PathTy("B")),
			b.TyAlias("B", b.Generics(nil), b.PathTy("A")),
		}
	})
	var fe *FatalError
	if !errors.As(err, &fe) || fe.Code != diag.CollectCycle {
		t.Fatalf("expected a cycle error, got %v", err)
	}
	var ce *tcx.CycleError
	if !errors.As(err, &ce) {
		t.Fatalf("fatal error must wrap the cycle")
	}
	f.expectCount(t, diag.CollectCycle, 1)
	if !f.bag.HasFatal() {
		t.Fatalf("cycle must be reported as fatal")
	}
}

func TestTypeAliasSubstitution(t *testing.T) {
	var alias, st *ast.Item
	f := mustCollect(t, func(b *ast.Builder) []*ast.Item {
		alias = b.TyAlias("Boxed", b.Generics(nil, b.TyParam("T")), b.Uniq(b.PathTy("T")))
		st = b.Static("X", b.PathTy("Boxed", b.PathTy("u8")))
		return []*ast.Item{alias, st}
	})
	f.expectClean(t)
	expectScheme(t, f, alias.ID, "<T/#0> ~T/#0")
	expectScheme(t, f, st.ID, "~u8")
}

func TestTypeArgumentCountsAndDefaults(t *testing.T) {
	var tooMany, tooFew, withDefault *ast.Item
	f := mustCollect(t, func(b *ast.Builder) []*ast.Item {
		p := b.Struct("P", b.Generics(nil, b.TyParam("T")), b.StructDef(b.NamedField("v", b.PathTy("T"))))
		h := b.Struct("H", b.Generics(nil, b.TyParam("T"), b.TyParamDefault("U", b.PathTy("T"))),
			b.StructDef(b.NamedField("u", b.PathTy("U"))))
		tooMany = b.Static("X", b.PathTy("P", b.PathTy("int"), b.PathTy("bool")))
		tooFew = b.Static("Y", b.PathTy("P"))
		withDefault = b.Static("Z", b.PathTy("H", b.PathTy("int")))
		return []*ast.Item{p, h, tooMany, tooFew, withDefault}
	})
	f.expectCount(t, diag.CollectWrongTypeArgCount, 2)
	expectScheme(t, f, tooMany.ID, "P<int>")
	expectScheme(t, f, tooFew.ID, "P<[type error]>")
	expectScheme(t, f, withDefault.ID, "H<int, int>")
}

func TestForwardDefaultReportedOnce(t *testing.T) {
	var use *ast.Item
	f := mustCollect(t, func(b *ast.Builder) []*ast.Item {
		fwd := b.Struct("F", b.Generics(nil,
			b.TyParamDefault("T", b.PathTy("U")),
			b.TyParamDefault("U", b.PathTy("int")),
		), b.StructDef())
		use = b.Static("FX", b.PathTy("F"))
		return []*ast.Item{fwd, use}
	})
	f.expectCount(t, diag.CollectForwardDefault, 1)
	expectScheme(t, f, use.ID, "F<[type error], int>")
}

func TestLifetimesInItemsAndSignatures(t *testing.T) {
	var bad, fn *ast.Item
	f := mustCollect(t, func(b *ast.Builder) []*ast.Item {
		r := b.Struct("R", b.Generics([]string{"'a"}), b.StructDef(b.NamedField("r", b.Ref("'a", false, b.PathTy("int")))))
		bad = b.Static("Z", b.PathTy("R"))
		fn = b.Fn("g", b.Generics([]string{"'b"}), b.Decl(b.Ref("'b", false, b.PathTy("int")), b.PathTy("R")))
		return []*ast.Item{r, bad, fn}
	})
	f.expectCount(t, diag.CollectMissingLifetime, 1)
	expectScheme(t, f, bad.ID, "R<'static>")

	tpt, _ := f.cx.TCache.Lookup(ast.LocalDef(fn.ID))
	if len(tpt.Generics.RegionParams) != 0 {
		t.Fatalf("'b is late-bound and must not be a region parameter")
	}
	sig, _ := f.cx.Types.FnSig(tpt.Ty)
	in := f.cx.Types.MustLookup(sig.Inputs[0])
	arg, _ := f.cx.Types.AdtSubsts(sig.Inputs[0])
	if in.Kind != types.KindStruct || arg.Regions[0].Kind != types.ReLateBound || arg.Regions[0].Binder != ast.LocalDef(fn.ID) {
		t.Fatalf("elided lifetime in fn signature must be late-bound by the fn, got %+v", arg.Regions)
	}
}

func TestSignatureErrors(t *testing.T) {
	f := mustCollect(t, func(b *ast.Builder) []*ast.Item {
		return []*ast.Item{
			b.Trait("Show", b.Generics(nil), nil),
			b.Static("T1", b.PathTy("Show")),
			b.Fn("p", b.Generics(nil), b.Decl(nil, b.InferTy())),
			b.Struct("B", b.Generics(nil, b.TyParam("T", b.TraitBound("Show"))), b.StructDef()),
		}
	})
	f.expectCount(t, diag.CollectTraitAsType, 1)
	f.expectCount(t, diag.CollectTypePlaceholder, 1)
	f.expectCount(t, diag.CollectBoundsNotAllowed, 1)
	if f.bag.HasFatal() {
		t.Fatalf("signature errors must not be fatal")
	}
}

func TestBoundOnNonTraitIsFatal(t *testing.T) {
	f, err := collectForTest(t, 1, func(b *ast.Builder) []*ast.Item {
		return []*ast.Item{
			b.Struct("S", b.Generics(nil), b.StructDef()),
			b.Fn("f", b.Generics(nil, b.TyParam("T", b.TraitBound("S"))), b.Decl(nil)),
		}
	})
	var fe *FatalError
	if !errors.As(err, &fe) || fe.Code != diag.CollectNotATrait {
		t.Fatalf("expected a fatal not-a-trait error, got %v", err)
	}
	f.expectCount(t, diag.CollectNotATrait, 1)
}

func TestIntrinsicTypesRecorded(t *testing.T) {
	var desc *ast.Item
	f := mustCollect(t, func(b *ast.Builder) []*ast.Item {
		desc = b.Lang(b.Struct("TyDesc", b.Generics(nil), b.StructDef(b.NamedField("size", b.PathTy("uint")))), "ty_desc")
		return []*ast.Item{desc}
	})
	f.expectClean(t)
	ty, ok := f.cx.Intrinsics.Lookup(ast.LocalDef(desc.ID))
	if !ok || f.pr.Type(ty) != "TyDesc" {
		t.Fatalf("intrinsic type not recorded")
	}
}

func TestSuperstructMustBeVirtual(t *testing.T) {
	var base, derived *ast.Item
	f := mustCollect(t, func(b *ast.Builder) []*ast.Item {
		base = b.Struct("Base", b.Generics(nil), b.StructDef(b.NamedField("x", b.PathTy("int"))))
		sd := b.StructDef(b.NamedField("y", b.PathTy("int")))
		sd.SuperStruct = b.PathTy("Base")
		derived = b.Struct("Derived", b.Generics(nil), sd)
		return []*ast.Item{base, derived}
	})
	f.expectCount(t, diag.CollectNonVirtualSuperstruct, 1)
	super, err := f.col.Superstruct(context.Background(), ast.LocalDef(derived.ID))
	if err != nil || super != ast.LocalDef(base.ID) {
		t.Fatalf("superstruct = %s, %v", super, err)
	}
	if s, _ := f.cx.Superstructs.Lookup(ast.LocalDef(base.ID)); s.IsValid() {
		t.Fatalf("base has no superstruct")
	}
}

func TestParamIndexRejectsNegative(t *testing.T) {
	if got := paramIndex(7); got != 7 {
		t.Fatalf("paramIndex(7) = %d", got)
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("paramIndex(-1) did not panic")
		}
	}()
	paramIndex(-1)
}
