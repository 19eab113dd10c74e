package astfile

import (
	"context"
	"testing"

	"polyty/internal/ast"
	"polyty/internal/collect"
	"polyty/internal/diag"
	"polyty/internal/source"
	"polyty/internal/symbols"
	"polyty/internal/tcx"
	"polyty/internal/types"
)

const demo = `crate: demo
items:
  - trait: Send
    lang: send
  - struct: Pair
    vis: pub
    generics: ["'a", T, "U = int"]
    fields:
      pub a: "&'a T"
      b: U
  - struct: Unit
  - struct: Wrap
    fields: [int, "~Wrap"]
  - enum: Opt
    generics: [T]
    variants:
      - None
      - Some: [T]
      - Rec: {x: T, y: "(T, int)"}
  - type: IntPair
    is: "Pair<'static, int>"
  - fn: swap
    generics: ["T: Send", U]
    sig: "(p: (T, U), _: &str) -> (U, T)"
  - static: COUNT
    ty: uint
    mut: true
  - trait: Show
    generics: [T]
    supertraits: [Send]
    methods:
      - fn: show
        sig: "(&self, x: T) -> str"
      - fn: make
        sig: "() -> Self"
        provided: true
  - impl: "Show<int> for Unit"
    methods:
      - fn: show
        sig: "(&self, x: int) -> str"
      - fn: make
        sig: "() -> Unit"
  - mod: inner
    items:
      - fn: f
        sig: "(cb: extern \"C\" fn(int) -> int)"
  - extern: C
    items:
      - fn: printf
        sig: "(fmt: *u8, ...) -> int"
      - static: errno
        ty: int
`

func load(t *testing.T, text string) (*ast.Crate, *source.FileSet, *source.Interner, *diag.Bag) {
	t.Helper()
	fs := source.NewFileSet()
	id := fs.AddVirtual("demo.yaml", []byte(text))
	strs := source.NewInterner()
	bag := diag.NewBag(100)
	crate, err := Load(fs, id, Options{Strings: strs, Reporter: diag.BagReporter{Bag: bag}})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return crate, fs, strs, bag
}

func findItem(t *testing.T, strs *source.Interner, items []*ast.Item, name string) *ast.Item {
	t.Helper()
	for _, it := range items {
		if s, _ := strs.Lookup(it.Ident.Name); s == name {
			return it
		}
	}
	t.Fatalf("no item %q", name)
	return nil
}

func TestLoadBuildsItems(t *testing.T) {
	crate, fs, strs, bag := load(t, demo)
	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", bag.Items())
	}
	if crate.Name != "demo" || len(crate.Module.Items) != 12 {
		t.Fatalf("crate %q with %d items", crate.Name, len(crate.Module.Items))
	}

	pair := findItem(t, strs, crate.Module.Items, "Pair")
	st := pair.Kind.(*ast.ItemStruct)
	if pair.Vis != ast.VisPublic || len(st.Generics.Lifetimes) != 1 || len(st.Generics.TyParams) != 2 {
		t.Fatalf("Pair generics = %+v", st.Generics)
	}
	if st.Generics.TyParams[1].Default == nil || len(st.Generics.TyParams[0].Bounds) != 0 {
		t.Fatalf("Pair params = %+v", st.Generics.TyParams)
	}
	if st.Def.CtorID != ast.NoNodeID || st.Def.Fields[0].Vis != ast.VisPublic {
		t.Fatalf("Pair fields = %+v", st.Def)
	}
	if a := st.Def.Fields[0].Ty; a.Kind != ast.TyRptr || a.Lifetime == nil {
		t.Fatalf("field a = %+v", a)
	}
	// the span of a field name points at the name in the file
	start, _ := fs.Resolve(st.Def.Fields[1].Span)
	if start.Line != 10 || start.Col != 7 {
		t.Fatalf("field b at %d:%d", start.Line, start.Col)
	}

	if wrap := findItem(t, strs, crate.Module.Items, "Wrap").Kind.(*ast.ItemStruct); wrap.Def.CtorID == ast.NoNodeID ||
		wrap.Def.Fields[1].Kind != ast.UnnamedField {
		t.Fatalf("tuple struct = %+v", wrap.Def)
	}

	opt := findItem(t, strs, crate.Module.Items, "Opt").Kind.(*ast.ItemEnum)
	if len(opt.Def.Variants) != 3 || opt.Def.Variants[2].Kind != ast.StructVariant || len(opt.Def.Variants[1].Args) != 1 {
		t.Fatalf("variants = %+v", opt.Def.Variants)
	}

	swap := findItem(t, strs, crate.Module.Items, "swap").Kind.(*ast.ItemFn)
	if len(swap.Decl.Inputs) != 2 || swap.Decl.Inputs[0].Pat != ast.PatIdent || swap.Decl.Inputs[1].Pat != ast.PatWild {
		t.Fatalf("swap args = %+v", swap.Decl.Inputs)
	}
	if len(swap.Generics.TyParams[0].Bounds) != 1 {
		t.Fatalf("swap generics = %+v", swap.Generics)
	}
	if swap.Decl.Output.Kind != ast.TyTup {
		t.Fatalf("swap output = %+v", swap.Decl.Output)
	}

	show := findItem(t, strs, crate.Module.Items, "Show").Kind.(*ast.ItemTrait)
	if len(show.Supertraits) != 1 || show.Methods[0].Self.Kind != ast.SelfRegion || show.Methods[0].HasBody ||
		show.Methods[1].Self.Kind != ast.SelfStatic || !show.Methods[1].HasBody {
		t.Fatalf("trait = %+v", show)
	}

	var impl *ast.ItemImpl
	var foreign *ast.ItemForeignMod
	for _, it := range crate.Module.Items {
		switch k := it.Kind.(type) {
		case *ast.ItemImpl:
			impl = k
		case *ast.ItemForeignMod:
			foreign = k
		}
	}
	if impl == nil || impl.Trait == nil || len(impl.Trait.Path.Last().Types) != 1 || !impl.Methods[0].HasBody {
		t.Fatalf("impl = %+v", impl)
	}
	if foreign == nil || foreign.ABI != ast.ABIC || !foreign.Items[0].Decl.Variadic || foreign.Items[1].Kind != ast.ForeignStatic {
		t.Fatalf("foreign mod = %+v", foreign)
	}

	inner := findItem(t, strs, crate.Module.Items, "inner").Kind.(*ast.ItemMod)
	cb := inner.Items[0].Kind.(*ast.ItemFn).Decl.Inputs[0].Ty
	if cb.Kind != ast.TyBareFn || cb.Fn.ABI != ast.ABIC {
		t.Fatalf("callback type = %+v", cb)
	}
}

func TestLoadedCrateCollects(t *testing.T) {
	crate, _, strs, bag := load(t, demo)
	rep := diag.BagReporter{Bag: bag}
	res := symbols.ResolveCrate(crate, symbols.Options{Strings: strs, Reporter: rep})
	cx := tcx.New(tcx.Config{Strings: strs, Map: ast.NewMap(crate), Lang: res.Lang, Reporter: rep})
	if err := collect.New(cx, res).CollectItemTypes(context.Background(), crate, collect.Options{Jobs: 4}); err != nil {
		t.Fatalf("collect: %v (%v)", err, bag.Items())
	}
	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", bag.Items())
	}
	pr := &types.Printer{Types: cx.Types, Strings: strs, DefName: res.Name}
	want := map[string]string{
		"Pair":    "<'a, T/#0, U/#1 = int> Pair<'a, T/#0, U/#1>",
		"IntPair": "Pair<'static, int, int>",
		"swap":    "<T/#0: Send, U/#1> fn((T/#0, U/#1), &str) -> (U/#1, T/#0)",
		"COUNT":   "uint",
	}
	for name, scheme := range want {
		it := findItem(t, strs, crate.Module.Items, name)
		tpt, ok := cx.TCache.Lookup(ast.LocalDef(it.ID))
		if !ok {
			t.Fatalf("no scheme for %s", name)
		}
		if got := pr.PolyType(tpt); got != scheme {
			t.Fatalf("%s = %q, want %q", name, got, scheme)
		}
	}
}

func TestBareFnArgumentNames(t *testing.T) {
	crate, _, strs, bag := load(t, `crate: cb
items:
  - fn: apply
    generics: ["'a", T]
    sig: "(f: fn(int, &'a T) -> int, g: fn(x: int, _: bool), h: fn((int, int), Vec<T>))"
`)
	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", bag.Items())
	}
	apply := findItem(t, strs, crate.Module.Items, "apply").Kind.(*ast.ItemFn)
	if len(apply.Decl.Inputs) != 3 {
		t.Fatalf("apply args = %+v", apply.Decl.Inputs)
	}
	cases := []struct {
		pats  []ast.PatKind
		kinds []ast.TyKind
	}{
		{[]ast.PatKind{ast.PatWild, ast.PatWild}, []ast.TyKind{ast.TyPath, ast.TyRptr}},
		{[]ast.PatKind{ast.PatIdent, ast.PatWild}, []ast.TyKind{ast.TyPath, ast.TyPath}},
		{[]ast.PatKind{ast.PatWild, ast.PatWild}, []ast.TyKind{ast.TyTup, ast.TyPath}},
	}
	for i, tc := range cases {
		ty := apply.Decl.Inputs[i].Ty
		if ty.Kind != ast.TyBareFn || len(ty.Fn.Decl.Inputs) != len(tc.pats) {
			t.Fatalf("arg %d = %+v", i, ty)
		}
		for j, in := range ty.Fn.Decl.Inputs {
			if in.Pat != tc.pats[j] || in.Ty.Kind != tc.kinds[j] {
				t.Fatalf("arg %d input %d: pat %d kind %d", i, j, in.Pat, in.Ty.Kind)
			}
		}
	}
	if out := apply.Decl.Inputs[0].Ty.Fn.Decl.Output; out == nil || out.Kind != ast.TyPath {
		t.Fatalf("fn(int, &'a T) output = %+v", out)
	}
}

func TestUnnamedArgumentOutsideFnType(t *testing.T) {
	_, _, _, bag := load(t, `crate: bad
items:
  - fn: f
    sig: "(int) -> int"
`)
	if bag.Count(diag.InpBadSignature) != 1 {
		t.Fatalf("diagnostics = %v", bag.Items())
	}
}

func TestSyntaxErrorsAreReported(t *testing.T) {
	_, fs, _, bag := load(t, `crate: bad
items:
  - fn: f
    sig: "(x: &&) -> int"
  - struct: S
    fields: {a: "Vec<int"}
  - type: A
  - widget: W
  - fn: g
    generics: ["T: 'a"]
    sig: "()"
`)
	for code, want := range map[diag.Code]int{
		diag.InpBadSignature: 1,
		diag.InpBadType:      1,
		diag.InpMissingKey:   1,
		diag.InpUnknownItem:  1,
		diag.InpBadGenerics:  1,
	} {
		if got := bag.Count(code); got != want {
			t.Fatalf("%s reported %d times, want %d: %v", code.ID(), got, want, bag.Items())
		}
	}
	for _, d := range bag.Items() {
		if d.Code == diag.InpBadSignature {
			start, _ := fs.Resolve(d.Primary)
			if start.Line != 4 {
				t.Fatalf("signature error at line %d", start.Line)
			}
		}
	}
}

func TestNotACrateDocument(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.AddVirtual("x.yaml", []byte("- just\n- a list\n"))
	bag := diag.NewBag(10)
	if _, err := Load(fs, id, Options{Reporter: diag.BagReporter{Bag: bag}}); err == nil {
		t.Fatalf("a list is not a crate description")
	}
	if bag.Count(diag.InpBadDocument) != 1 {
		t.Fatalf("diagnostics = %v", bag.Items())
	}
}
