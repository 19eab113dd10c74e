package types

import (
	"fmt"
	"slices"
)

// Substs maps a scheme's parameters positionally: Regions[i] replaces the
// early-bound region at index i, Types[i] the type parameter at index i,
// Self the Self placeholder (NoTypeID when the scheme has none).
type Substs struct {
	Regions []Region
	Self    TypeID
	Types   []TypeID
}

func (s *Substs) Clone() *Substs {
	if s == nil {
		return &Substs{}
	}
	return &Substs{
		Regions: slices.Clone(s.Regions),
		Self:    s.Self,
		Types:   slices.Clone(s.Types),
	}
}

func (s *Substs) Equal(o *Substs) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.Self == o.Self && slices.Equal(s.Regions, o.Regions) && slices.Equal(s.Types, o.Types)
}

func (s *Substs) appendKey(buf []byte) []byte {
	buf = appendIDs(buf, []TypeID{s.Self})
	buf = appendIDs(buf, s.Types)
	for _, r := range s.Regions {
		buf = appendRegion(buf, r)
	}
	return buf
}

// SubstError reports a substitution applied outside its contract. It is
// raised as a panic: a well-formed pass never produces one.
type SubstError struct {
	What  string
	Index uint32
	Len   int
}

func (e *SubstError) Error() string {
	if e.What == "self" {
		return "substitution has no self type"
	}
	return fmt.Sprintf("%s index %d out of range for substitution of length %d", e.What, e.Index, e.Len)
}

// IdentitySubsts maps every parameter of g to itself.
func IdentitySubsts(in *Interner, g *Generics, self TypeID) *Substs {
	s := &Substs{Self: self}
	if len(g.RegionParams) > 0 {
		s.Regions = make([]Region, 0, len(g.RegionParams))
		for _, rp := range g.RegionParams {
			s.Regions = append(s.Regions, EarlyBound(rp.Def, rp.Index, rp.Name))
		}
	}
	if len(g.TypeParams) > 0 {
		s.Types = make([]TypeID, 0, len(g.TypeParams))
		for _, tp := range g.TypeParams {
			s.Types = append(s.Types, in.Intern(MakeParam(tp.Index, tp.Def)))
		}
	}
	return s
}

// Subst replaces parameters, Self and early-bound regions in id.
func (in *Interner) Subst(s *Substs, id TypeID) TypeID {
	if id == NoTypeID || in.Flags(id)&substFlags == 0 {
		return id
	}
	t := in.MustLookup(id)
	switch t.Kind {
	case KindParam:
		if int(t.Index) >= len(s.Types) {
			panic(&SubstError{What: "type parameter", Index: t.Index, Len: len(s.Types)})
		}
		return s.Types[t.Index]
	case KindSelf:
		if s.Self == NoTypeID {
			panic(&SubstError{What: "self"})
		}
		return s.Self
	case KindUniq, KindPtr, KindVec:
		t.Elem = in.Subst(s, t.Elem)
		return in.Intern(t)
	case KindRptr:
		t.Region = in.SubstRegion(s, t.Region)
		t.Elem = in.Subst(s, t.Elem)
		return in.Intern(t)
	case KindTuple:
		elems, _ := in.TupleElems(id)
		return in.RegisterTuple(in.substList(s, elems))
	case KindBareFn:
		sig, _ := in.FnSig(id)
		sig.Inputs = in.substList(s, sig.Inputs)
		sig.Output = in.Subst(s, sig.Output)
		return in.RegisterFn(&sig)
	case KindEnum, KindStruct:
		inner, _ := in.AdtSubsts(id)
		return in.registerAdt(t.Kind, t.Def, in.SubstSubsts(s, inner))
	default:
		return id
	}
}

func (in *Interner) substList(s *Substs, ids []TypeID) []TypeID {
	out := make([]TypeID, len(ids))
	for i, e := range ids {
		out[i] = in.Subst(s, e)
	}
	return out
}

// SubstRegion replaces an early-bound region; other regions are unchanged.
func (in *Interner) SubstRegion(s *Substs, r Region) Region {
	if r.Kind != ReEarlyBound {
		return r
	}
	if int(r.Index) >= len(s.Regions) {
		panic(&SubstError{What: "region parameter", Index: r.Index, Len: len(s.Regions)})
	}
	return s.Regions[r.Index]
}

// SubstSubsts applies s to every component of inner.
func (in *Interner) SubstSubsts(s, inner *Substs) *Substs {
	out := &Substs{Self: NoTypeID}
	if inner.Self != NoTypeID {
		out.Self = in.Subst(s, inner.Self)
	}
	if len(inner.Regions) > 0 {
		out.Regions = make([]Region, len(inner.Regions))
		for i, r := range inner.Regions {
			out.Regions[i] = in.SubstRegion(s, r)
		}
	}
	if len(inner.Types) > 0 {
		out.Types = in.substList(s, inner.Types)
	}
	return out
}

func (in *Interner) SubstTraitRef(s *Substs, tr *TraitRef) *TraitRef {
	if tr == nil {
		return nil
	}
	return &TraitRef{Def: tr.Def, Substs: *in.SubstSubsts(s, &tr.Substs)}
}

func (in *Interner) SubstBounds(s *Substs, b *ParamBounds) *ParamBounds {
	if b == nil {
		return nil
	}
	out := &ParamBounds{Builtin: b.Builtin}
	if len(b.Traits) > 0 {
		out.Traits = make([]*TraitRef, len(b.Traits))
		for i, tr := range b.Traits {
			out.Traits[i] = in.SubstTraitRef(s, tr)
		}
	}
	return out
}

// SubstTypeParamDefs substitutes bounds and defaults; indices are kept.
func (in *Interner) SubstTypeParamDefs(s *Substs, defs []TypeParameterDef) []TypeParameterDef {
	out := make([]TypeParameterDef, len(defs))
	for i, d := range defs {
		out[i] = d
		out[i].Bounds = in.SubstBounds(s, d.Bounds)
		if d.Default != NoTypeID {
			out[i].Default = in.Subst(s, d.Default)
		}
	}
	return out
}
