package collect

import (
	"context"
	"testing"

	"polyty/internal/ast"
	"polyty/internal/diag"
)

func TestForeignItems(t *testing.T) {
	var puts, bad, errno *ast.ForeignItem
	var generic *ast.Item
	f := mustCollect(t, func(b *ast.Builder) []*ast.Item {
		puts = b.ForeignFn("puts", b.Generics(nil), b.Decl(b.PathTy("int"), b.Ptr(false, b.PathTy("u8"))))
		bad = b.ForeignFn("bad", b.Generics(nil, b.TyParam("T")),
			b.DeclArgs(nil, b.Arg(b.PathTy("T"), ast.PatOther)))
		errno = b.ForeignStatic("errno", b.PathTy("int"), true)
		generic = b.Item("cb", &ast.ItemFn{
			Decl:     b.Decl(nil, b.PathTy("T")),
			ABI:      ast.ABIC,
			Generics: b.Generics(nil, b.TyParam("T")),
		})
		return []*ast.Item{b.ForeignMod(ast.ABIC, puts, bad, errno), generic}
	})
	f.expectCount(t, diag.CollectForeignGenerics, 2)
	f.expectCount(t, diag.CollectForeignPattern, 1)

	expectScheme(t, f, puts.ID, `unsafe extern "C" fn(*u8) -> int`)
	expectScheme(t, f, errno.ID, "int")
	if ty, ok := f.cx.NodeTypes.Lookup(puts.ID); !ok || f.pr.Type(ty) != `unsafe extern "C" fn(*u8) -> int` {
		t.Fatalf("node type of foreign fn not recorded")
	}
}

func TestIntrinsicABIAllowsTypeParameters(t *testing.T) {
	var sizeOf *ast.ForeignItem
	f := mustCollect(t, func(b *ast.Builder) []*ast.Item {
		sizeOf = b.ForeignFn("size_of", b.Generics(nil, b.TyParam("T")), b.Decl(b.PathTy("uint")))
		return []*ast.Item{b.ForeignMod(ast.ABIRustIntrinsic, sizeOf)}
	})
	f.expectClean(t)
	tpt, err := f.col.ItemType(context.Background(), ast.LocalDef(sizeOf.ID))
	if err != nil || len(tpt.Generics.TypeParams) != 1 {
		t.Fatalf("size_of scheme = %v, %v", tpt, err)
	}
}
