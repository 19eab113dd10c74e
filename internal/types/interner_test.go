package types

import (
	"sync"
	"testing"

	"polyty/internal/ast"
)

func TestInternerBuiltins(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	if b.Nil == NoTypeID || b.Bool == NoTypeID || b.Err == NoTypeID {
		t.Fatalf("builtins not initialized")
	}
	nilTy, _ := in.Lookup(b.Nil)
	if nilTy.Kind != KindNil {
		t.Fatalf("expected nil kind, got %v", nilTy.Kind)
	}
	if in.Prim(ast.PrimTy{Kind: ast.PrimInt, Width: 32}) != b.I32 {
		t.Fatalf("i32 primitive not deduplicated with builtin")
	}
}

func TestInternerDeduplicatesDescriptors(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	def := ast.LocalDef(7)
	s1 := &Substs{Types: []TypeID{b.Int}}
	s2 := &Substs{Types: []TypeID{b.Int}}
	if in.RegisterStruct(def, s1) != in.RegisterStruct(def, s2) {
		t.Fatalf("struct types should be deduplicated")
	}
	if in.RegisterEnum(def, s1) == in.RegisterStruct(def, s1) {
		t.Fatalf("enum and struct with same def must differ")
	}
	tup1 := in.RegisterTuple([]TypeID{b.Int, b.Bool})
	tup2 := in.RegisterTuple([]TypeID{b.Int, b.Bool})
	if tup1 != tup2 {
		t.Fatalf("tuples should be deduplicated")
	}
	if in.RegisterTuple(nil) != b.Nil {
		t.Fatalf("empty tuple must be nil")
	}
}

func TestReferenceMutabilityAffectsIdentity(t *testing.T) {
	in := NewInterner()
	elem := in.Builtins().Int
	mut := in.Intern(MakeRptr(Static, elem, true))
	imm := in.Intern(MakeRptr(Static, elem, false))
	if mut == imm {
		t.Fatalf("mutable and immutable references must differ")
	}
}

func TestFnSigDistinguishesStyleAndABI(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	safe := in.RegisterFn(&FnSig{Inputs: []TypeID{b.Int}, Output: b.Nil})
	unsafeFn := in.RegisterFn(&FnSig{Inputs: []TypeID{b.Int}, Output: b.Nil, Style: ast.UnsafeFn})
	cFn := in.RegisterFn(&FnSig{Inputs: []TypeID{b.Int}, Output: b.Nil, ABI: ast.ABIC})
	if safe == unsafeFn || safe == cFn || unsafeFn == cFn {
		t.Fatalf("fn signatures must differ by style and abi")
	}
}

func TestInternerConcurrentUse(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	const workers = 8
	ids := make([]TypeID, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			vec := in.Intern(MakeVec(b.U8))
			ids[i] = in.RegisterTuple([]TypeID{vec, in.Intern(MakeUniq(vec))})
		}()
	}
	wg.Wait()
	for i := 1; i < workers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("worker %d got %d, want %d", i, ids[i], ids[0])
		}
	}
}

func TestFlagsPropagate(t *testing.T) {
	in := NewInterner()
	p := in.Intern(MakeParam(0, ast.LocalDef(3)))
	tup := in.RegisterTuple([]TypeID{in.Builtins().Int, in.Intern(MakeUniq(p))})
	if in.Flags(tup)&FlagHasParams == 0 {
		t.Fatalf("tuple containing a param must carry FlagHasParams")
	}
	r := in.Intern(MakeRptr(EarlyBound(ast.LocalDef(4), 0, 0), in.Builtins().Int, false))
	if in.Flags(r)&FlagHasEarlyRegions == 0 {
		t.Fatalf("early-bound region must be flagged")
	}
	if idx, ok := in.MaxParamIndex(tup); !ok || idx != 0 {
		t.Fatalf("MaxParamIndex = %d, %v", idx, ok)
	}
}
