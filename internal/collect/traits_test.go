package collect

import (
	"context"
	"testing"

	"polyty/internal/ast"
	"polyty/internal/diag"
	"polyty/internal/types"
)

func TestTraitMethodsAndStaticTransform(t *testing.T) {
	var trait *ast.Item
	var newM, getM, makeM *ast.Method
	f := mustCollect(t, func(b *ast.Builder) []*ast.Item {
		newM = b.Method("new", b.SelfStatic(), b.Generics(nil), b.Decl(b.PathTy("Self"), b.PathTy("T")), false)
		getM = b.Method("get", b.SelfRef("", false), b.Generics(nil), b.Decl(b.PathTy("T")), false)
		makeM = b.Method("make", b.SelfStatic(), b.Generics(nil, b.TyParam("U")), b.Decl(b.PathTy("Self"), b.PathTy("U")), true)
		trait = b.Trait("Tr", b.Generics(nil, b.TyParam("T")), nil, newM, getM, makeM)
		return []*ast.Item{trait}
	})
	f.expectClean(t)

	expectScheme(t, f, newM.ID, "<T/#0, Self/#1: Tr<T/#0>> fn(T/#0) -> Self/#1")
	expectScheme(t, f, getM.ID, "<T/#0> fn(&Self) -> T/#0")
	expectScheme(t, f, makeM.ID, "<T/#0, Self/#1: Tr<T/#0>, U/#2> fn(U/#2) -> Self/#1")

	ids, err := f.col.TraitMethodIDs(context.Background(), ast.LocalDef(trait.ID))
	if err != nil || len(ids) != 3 || ids[0] != ast.LocalDef(newM.ID) || ids[2] != ast.LocalDef(makeM.ID) {
		t.Fatalf("trait method ids = %v, %v", ids, err)
	}
	m, err := f.col.Method(context.Background(), ast.LocalDef(makeM.ID))
	if err != nil {
		t.Fatalf("Method: %v", err)
	}
	if len(m.Generics.TypeParams) != 1 || m.Generics.TypeParams[0].Index != 1 {
		t.Fatalf("method generics must hold only its own parameters, got %+v", m.Generics.TypeParams)
	}
	if m.Container.Kind != types.TraitContainer || m.Vis != ast.VisPublic {
		t.Fatalf("unexpected container or visibility: %+v", m)
	}
	if m.ProvidedSource != ast.LocalDef(makeM.ID) {
		t.Fatalf("provided method source = %v", m.ProvidedSource)
	}
	req, err := f.col.Method(context.Background(), ast.LocalDef(newM.ID))
	if err != nil {
		t.Fatalf("Method: %v", err)
	}
	if req.ProvidedSource != ast.NoDefID {
		t.Fatalf("required method has provided source %v", req.ProvidedSource)
	}

	td, err := f.col.TraitDef(context.Background(), ast.LocalDef(trait.ID))
	if err != nil {
		t.Fatalf("TraitDef: %v", err)
	}
	if got := f.pr.TraitRef(td.TraitRef); got != "Self: Tr<T/#0>" {
		t.Fatalf("trait ref = %q", got)
	}
}

func TestStaticMethodKeepsBoundsAndRegions(t *testing.T) {
	var mk *ast.Method
	f := mustCollect(t, func(b *ast.Builder) []*ast.Item {
		other := b.Trait("Other", b.Generics([]string{"'x"}, b.TyParam("X")), nil)
		mk = b.Method("mk", b.SelfStatic(), b.Generics([]string{"'b"},
			b.TyParam("U", b.TraitBoundLt("Other", []string{"'b"}, b.PathTy("T"))),
			b.TyParam("V", b.TraitBoundLt("Other", []string{"'a"}, b.PathTy("Self"))),
		), b.Decl(b.PathTy("Self"), b.PathTy("U"), b.PathTy("V")), false)
		tr := b.Trait("Tr", b.Generics([]string{"'a"}, b.TyParam("T")), nil, mk)
		return []*ast.Item{other, tr}
	})
	f.expectClean(t)
	expectScheme(t, f, mk.ID,
		"<'a, 'b, T/#0, Self/#1: Tr<'a, T/#0>, U/#2: Other<'b, T/#0>, V/#3: Other<'a, Self/#1>> fn(U/#2, V/#3) -> Self/#1")

	tpt, _ := f.cx.TCache.Lookup(ast.LocalDef(mk.ID))
	for i, tp := range tpt.Generics.TypeParams {
		if int(tp.Index) != i {
			t.Fatalf("param %d has index %d", i, tp.Index)
		}
	}
	if n := len(tpt.Generics.TypeParams[2].Bounds.Traits); n != 1 {
		t.Fatalf("U keeps %d trait bounds", n)
	}
}

func TestDuplicateSupertraitStopsProcessing(t *testing.T) {
	var c *ast.Item
	f := mustCollect(t, func(b *ast.Builder) []*ast.Item {
		a := b.Trait("A", b.Generics(nil), nil)
		bt := b.Trait("B", b.Generics(nil), nil)
		send := b.Lang(b.Trait("Send", b.Generics(nil), nil), "send")
		c = b.Trait("C", b.Generics(nil), []ast.TraitRef{
			b.TraitRef("Send"), b.TraitRef("A"), b.TraitRef("A"), b.TraitRef("B"),
		})
		return []*ast.Item{a, bt, send, c}
	})
	f.expectCount(t, diag.CollectDuplicateSupertrait, 1)
	supers, _ := f.cx.Supertraits.Lookup(ast.LocalDef(c.ID))
	if len(supers) != 1 || f.res.Name(supers[0].Def) != "A" {
		t.Fatalf("supertraits = %v", supers)
	}
	td, _ := f.cx.TraitDefs.Lookup(ast.LocalDef(c.ID))
	if !td.Bounds.Contains(types.BoundSend) {
		t.Fatalf("Send must be recorded as a builtin supertrait")
	}
}

func TestSupertraitCycleIsFatal(t *testing.T) {
	f, err := collectForTest(t, 1, func(b *ast.Builder) []*ast.Item {
		return []*ast.Item{
			b.Trait("A", b.Generics(nil), []ast.TraitRef{b.TraitRef("B")}),
			b.Trait("B", b.Generics(nil), []ast.TraitRef{b.TraitRef("A")}),
		}
	})
	if err == nil {
		t.Fatalf("expected a cycle")
	}
	f.expectCount(t, diag.CollectCycle, 1)
}

func TestParamBoundsSplitBuiltins(t *testing.T) {
	var fn *ast.Item
	var param ast.TyParam
	f := mustCollect(t, func(b *ast.Builder) []*ast.Item {
		send := b.Lang(b.Trait("Send", b.Generics(nil), nil), "send")
		tr := b.Trait("Tr", b.Generics(nil), nil)
		param = b.TyParam("T", b.TraitBound("Send"), b.TraitBound("Tr"), b.StaticBound())
		fn = b.Fn("f", b.Generics(nil, param), b.Decl(nil, b.PathTy("T")))
		return []*ast.Item{send, tr, fn}
	})
	f.expectClean(t)
	d, ok := f.cx.TyParamDefs.Lookup(param.ID)
	if !ok {
		t.Fatalf("type parameter not recorded")
	}
	if !d.Bounds.Builtin.Contains(types.BoundSend) || !d.Bounds.Builtin.Contains(types.BoundStatic) {
		t.Fatalf("builtin bounds = %v", d.Bounds.Builtin)
	}
	if len(d.Bounds.Traits) != 1 {
		t.Fatalf("trait bounds = %v", d.Bounds.Traits)
	}
	expectScheme(t, f, fn.ID, "<T/#0: 'static + Send + Tr> fn(T/#0)")
	if _, ok := f.cx.TraitRefs.Lookup(param.Bounds[1].Trait.RefID); !ok {
		t.Fatalf("trait ref of a bound must be recorded")
	}
}

func TestImplMethods(t *testing.T) {
	var impl *ast.Item
	var show *ast.Method
	f := mustCollect(t, func(b *ast.Builder) []*ast.Item {
		s := b.Struct("S", b.Generics(nil), b.StructDef())
		tr := b.Trait("Show", b.Generics(nil), nil,
			b.Method("show", b.SelfRef("", false), b.Generics(nil), b.Decl(b.PathTy("int")), false))
		show = b.Method("show", b.SelfRef("", false), b.Generics(nil), b.Decl(b.PathTy("int")), true)
		ref := b.TraitRef("Show")
		impl = b.Impl(b.Generics(nil), &ref, b.PathTy("S"), show)
		return []*ast.Item{s, tr, impl}
	})
	f.expectClean(t)
	expectScheme(t, f, impl.ID, "S")
	expectScheme(t, f, show.ID, "fn(&S) -> int")

	m, _ := f.cx.Methods.Lookup(ast.LocalDef(show.ID))
	if m.Vis != ast.VisPublic || m.Container.Kind != types.ImplContainer {
		t.Fatalf("trait impl methods are public and belong to the impl: %+v", m)
	}
	tr, ok := f.cx.TraitRefs.Lookup(impl.Kind.(*ast.ItemImpl).Trait.RefID)
	if !ok || f.pr.TraitRef(tr) != "S: Show" {
		t.Fatalf("impl trait ref not recorded")
	}
}

func TestImplMethodRegionsFollowImpl(t *testing.T) {
	var get *ast.Method
	f := mustCollect(t, func(b *ast.Builder) []*ast.Item {
		s := b.Struct("S", b.Generics([]string{"'a"}), b.StructDef(b.NamedField("r", b.Ref("'a", false, b.PathTy("int")))))
		tr := b.Trait("Tr", b.Generics([]string{"'x"}), nil)
		bound := b.TraitRefLt("Tr", []string{"'b"})
		get = b.Method("get", b.SelfRef("", false),
			b.Generics([]string{"'b"}, b.TyParam("T", ast.TyParamBound{Kind: ast.BoundTrait, Trait: &bound})),
			b.Decl(b.Ref("'a", false, b.PathTy("int")), b.Ref("'b", false, b.PathTy("T"))), true)
		impl := b.Impl(b.Generics([]string{"'a"}), nil, b.PathTyLt("S", []string{"'a"}), get)
		return []*ast.Item{s, tr, impl}
	})
	f.expectClean(t)

	tpt, _ := f.cx.TCache.Lookup(ast.LocalDef(get.ID))
	rps := tpt.Generics.RegionParams
	if len(rps) != 2 || rps[1].Index != 1 || f.pr.Region(types.EarlyBound(rps[1].Def, rps[1].Index, rps[1].Name)) != "'b" {
		t.Fatalf("combined region params = %+v", rps)
	}
	m, _ := f.cx.Methods.Lookup(ast.LocalDef(get.ID))
	if len(m.Generics.RegionParams) != 1 || m.Generics.RegionParams[0].Index != 0 {
		t.Fatalf("own region params = %+v", m.Generics.RegionParams)
	}
	sig, _ := f.cx.Types.FnSig(tpt.Ty)
	arg := f.cx.Types.MustLookup(sig.Inputs[1])
	if arg.Region.Kind != types.ReEarlyBound || arg.Region.Index != 1 {
		t.Fatalf("'b must be early-bound at index 1, got %+v", arg.Region)
	}
}

func TestImplProblems(t *testing.T) {
	f := mustCollect(t, func(b *ast.Builder) []*ast.Item {
		s := b.Struct("S", b.Generics(nil), b.StructDef())
		cp := b.Lang(b.Trait("Copy", b.Generics(nil), nil), "copy")
		ref := b.TraitRef("Copy")
		builtin := b.Impl(b.Generics(nil), &ref, b.PathTy("S"))
		dup := b.Impl(b.Generics(nil), nil, b.PathTy("S"),
			b.Method("a", b.SelfValue(), b.Generics(nil), b.Decl(nil), true),
			b.Method("a", b.SelfValue(), b.Generics(nil), b.Decl(nil), true),
		)
		return []*ast.Item{s, cp, builtin, dup}
	})
	f.expectCount(t, diag.CollectBuiltinKindImpl, 1)
	f.expectCount(t, diag.CollectDuplicateMethod, 1)
}
