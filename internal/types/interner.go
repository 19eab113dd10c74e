package types

import (
	"encoding/binary"
	"fmt"
	"sync"

	"fortio.org/safecast"

	"polyty/internal/ast"
)

// Builtins stores TypeIDs for common primitive types.
type Builtins struct {
	Invalid TypeID
	Nil     TypeID
	Bot     TypeID
	Bool    TypeID
	Char    TypeID
	Int     TypeID
	I8      TypeID
	I16     TypeID
	I32     TypeID
	I64     TypeID
	Uint    TypeID
	U8      TypeID
	U16     TypeID
	U32     TypeID
	U64     TypeID
	Float   TypeID
	F32     TypeID
	F64     TypeID
	Str     TypeID
	Err     TypeID
}

// Interner provides stable TypeIDs by hashing structural descriptors.
// Structurally equal types always receive the same id, so TypeID equality
// is type equality. Safe for concurrent use.
type Interner struct {
	mu    sync.RWMutex
	types []Type
	flags []Flags
	index map[Type]TypeID

	lists      [][]TypeID
	listIndex  map[string]uint32
	sigs       []FnSig
	sigIndex   map[string]uint32
	substs     []Substs
	substIndex map[string]uint32

	builtins Builtins
}

// NewInterner constructs an interner seeded with built-in primitives.
func NewInterner() *Interner {
	in := &Interner{
		index:      make(map[Type]TypeID, 64),
		listIndex:  make(map[string]uint32),
		sigIndex:   make(map[string]uint32),
		substIndex: make(map[string]uint32),
	}
	// slot 0 of every table is reserved as invalid sentinel
	in.types = append(in.types, Type{})
	in.flags = append(in.flags, 0)
	in.lists = append(in.lists, nil)
	in.sigs = append(in.sigs, FnSig{})
	in.substs = append(in.substs, Substs{})

	b := &in.builtins
	b.Nil = in.Intern(Type{Kind: KindNil})
	b.Bot = in.Intern(Type{Kind: KindBot})
	b.Bool = in.Intern(Type{Kind: KindBool})
	b.Char = in.Intern(Type{Kind: KindChar})
	b.Int = in.Intern(MakeInt(WidthAny))
	b.I8 = in.Intern(MakeInt(Width8))
	b.I16 = in.Intern(MakeInt(Width16))
	b.I32 = in.Intern(MakeInt(Width32))
	b.I64 = in.Intern(MakeInt(Width64))
	b.Uint = in.Intern(MakeUint(WidthAny))
	b.U8 = in.Intern(MakeUint(Width8))
	b.U16 = in.Intern(MakeUint(Width16))
	b.U32 = in.Intern(MakeUint(Width32))
	b.U64 = in.Intern(MakeUint(Width64))
	b.Float = in.Intern(MakeFloat(WidthAny))
	b.F32 = in.Intern(MakeFloat(Width32))
	b.F64 = in.Intern(MakeFloat(Width64))
	b.Str = in.Intern(Type{Kind: KindStr})
	b.Err = in.Intern(Type{Kind: KindErr})
	return in
}

// Builtins returns TypeIDs for primitive types.
func (in *Interner) Builtins() Builtins {
	return in.builtins
}

// Prim maps a builtin scalar to its TypeID.
func (in *Interner) Prim(p ast.PrimTy) TypeID {
	w := Width(p.Width)
	switch p.Kind {
	case ast.PrimBool:
		return in.builtins.Bool
	case ast.PrimChar:
		return in.builtins.Char
	case ast.PrimInt:
		return in.Intern(MakeInt(w))
	case ast.PrimUint:
		return in.Intern(MakeUint(w))
	case ast.PrimFloat:
		return in.Intern(MakeFloat(w))
	case ast.PrimStr:
		return in.builtins.Str
	default:
		return in.builtins.Err
	}
}

// Intern ensures the provided descriptor has a stable TypeID.
func (in *Interner) Intern(t Type) TypeID {
	if t.Kind == KindInvalid {
		return NoTypeID
	}
	in.mu.RLock()
	id, ok := in.index[t]
	in.mu.RUnlock()
	if ok {
		return id
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.internLocked(t)
}

func (in *Interner) internLocked(t Type) TypeID {
	if id, ok := in.index[t]; ok {
		return id
	}
	lenTypes, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	id := TypeID(lenTypes)
	in.types = append(in.types, t)
	in.flags = append(in.flags, in.computeFlagsLocked(t))
	in.index[t] = id
	return id
}

// RegisterTuple creates or finds a tuple type; the empty tuple is nil.
func (in *Interner) RegisterTuple(elems []TypeID) TypeID {
	if len(elems) == 0 {
		return in.builtins.Nil
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	slot := in.listSlotLocked(elems)
	return in.internLocked(Type{Kind: KindTuple, Payload: slot})
}

// RegisterFn creates or finds a bare fn type.
func (in *Interner) RegisterFn(sig *FnSig) TypeID {
	in.mu.Lock()
	defer in.mu.Unlock()
	slot := in.sigSlotLocked(sig)
	return in.internLocked(Type{Kind: KindBareFn, Payload: slot})
}

// RegisterCtorFn describes a constructor: a safe Rust fn from inputs to output.
func (in *Interner) RegisterCtorFn(binder ast.DefID, inputs []TypeID, output TypeID) TypeID {
	return in.RegisterFn(&FnSig{Binder: binder, Inputs: inputs, Output: output})
}

// RegisterEnum creates or finds the enum type def<substs>.
func (in *Interner) RegisterEnum(def ast.DefID, s *Substs) TypeID {
	return in.registerAdt(KindEnum, def, s)
}

// RegisterStruct creates or finds the struct type def<substs>.
func (in *Interner) RegisterStruct(def ast.DefID, s *Substs) TypeID {
	return in.registerAdt(KindStruct, def, s)
}

func (in *Interner) registerAdt(kind Kind, def ast.DefID, s *Substs) TypeID {
	in.mu.Lock()
	defer in.mu.Unlock()
	slot := in.substSlotLocked(s)
	return in.internLocked(Type{Kind: kind, Def: def, Payload: slot})
}

// Lookup returns the descriptor for a TypeID.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id TypeID) Type {
	tt, ok := in.Lookup(id)
	if !ok {
		panic("types: invalid TypeID")
	}
	return tt
}

// Flags reports what the type mentions.
func (in *Interner) Flags(id TypeID) Flags {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if int(id) >= len(in.flags) {
		return 0
	}
	return in.flags[id]
}

// Len returns the number of interned types including the sentinel.
func (in *Interner) Len() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.types)
}

// TupleElems returns a copy of the element list of a tuple type.
func (in *Interner) TupleElems(id TypeID) ([]TypeID, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if int(id) >= len(in.types) || in.types[id].Kind != KindTuple {
		return nil, false
	}
	return append([]TypeID(nil), in.lists[in.types[id].Payload]...), true
}

// FnSig returns a copy of the signature of a bare fn type.
func (in *Interner) FnSig(id TypeID) (FnSig, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if int(id) >= len(in.types) || in.types[id].Kind != KindBareFn {
		return FnSig{}, false
	}
	return in.sigs[in.types[id].Payload].clone(), true
}

// AdtSubsts returns a copy of the substitution of an enum or struct type.
func (in *Interner) AdtSubsts(id TypeID) (*Substs, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if int(id) >= len(in.types) {
		return nil, false
	}
	tt := in.types[id]
	if tt.Kind != KindEnum && tt.Kind != KindStruct {
		return nil, false
	}
	return in.substs[tt.Payload].Clone(), true
}

func (in *Interner) computeFlagsLocked(t Type) Flags {
	var f Flags
	switch t.Kind {
	case KindParam:
		f |= FlagHasParams
	case KindSelf:
		f |= FlagHasSelf
	case KindErr:
		f |= FlagHasErr
	case KindUniq, KindPtr, KindVec:
		f |= in.flags[t.Elem]
	case KindRptr:
		f |= in.flags[t.Elem] | regionFlags(t.Region)
	case KindTuple:
		for _, e := range in.lists[t.Payload] {
			f |= in.flags[e]
		}
	case KindBareFn:
		sig := &in.sigs[t.Payload]
		for _, e := range sig.Inputs {
			f |= in.flags[e]
		}
		f |= in.flags[sig.Output]
	case KindEnum, KindStruct:
		f |= in.substsFlagsLocked(&in.substs[t.Payload])
	}
	return f
}

func (in *Interner) substsFlagsLocked(s *Substs) Flags {
	var f Flags
	for _, r := range s.Regions {
		f |= regionFlags(r)
	}
	if s.Self != NoTypeID {
		f |= in.flags[s.Self]
	}
	for _, t := range s.Types {
		f |= in.flags[t]
	}
	return f
}

func regionFlags(r Region) Flags {
	if r.Kind == ReEarlyBound {
		return FlagHasEarlyRegions
	}
	return 0
}

func (in *Interner) listSlotLocked(elems []TypeID) uint32 {
	key := string(appendIDs(nil, elems))
	if slot, ok := in.listIndex[key]; ok {
		return slot
	}
	slot := mustSlot(len(in.lists))
	in.lists = append(in.lists, append([]TypeID(nil), elems...))
	in.listIndex[key] = slot
	return slot
}

func (in *Interner) sigSlotLocked(sig *FnSig) uint32 {
	buf := appendDef(nil, sig.Binder)
	buf = appendIDs(buf, sig.Inputs)
	buf = binary.AppendUvarint(buf, uint64(sig.Output))
	buf = append(buf, boolByte(sig.Variadic), byte(sig.Style), byte(sig.ABI))
	key := string(buf)
	if slot, ok := in.sigIndex[key]; ok {
		return slot
	}
	slot := mustSlot(len(in.sigs))
	in.sigs = append(in.sigs, sig.clone())
	in.sigIndex[key] = slot
	return slot
}

func (in *Interner) substSlotLocked(s *Substs) uint32 {
	key := string(s.appendKey(nil))
	if slot, ok := in.substIndex[key]; ok {
		return slot
	}
	slot := mustSlot(len(in.substs))
	in.substs = append(in.substs, *s.Clone())
	in.substIndex[key] = slot
	return slot
}

func mustSlot(n int) uint32 {
	slot, err := safecast.Conv[uint32](n)
	if err != nil {
		panic(fmt.Errorf("side table overflow: %w", err))
	}
	return slot
}

func appendIDs(buf []byte, ids []TypeID) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(ids)))
	for _, id := range ids {
		buf = binary.AppendUvarint(buf, uint64(id))
	}
	return buf
}

func appendDef(buf []byte, d ast.DefID) []byte {
	buf = binary.AppendUvarint(buf, uint64(d.Crate))
	return binary.AppendUvarint(buf, uint64(d.Node))
}

func appendRegion(buf []byte, r Region) []byte {
	buf = append(buf, byte(r.Kind))
	buf = appendDef(buf, r.Def)
	buf = binary.AppendUvarint(buf, uint64(r.Index))
	buf = binary.AppendUvarint(buf, uint64(r.Name))
	buf = appendDef(buf, r.Binder)
	return binary.AppendUvarint(buf, uint64(r.Anon))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
