package types

// Walk visits id and its components in pre-order; returning false from fn
// skips the components of the current type.
func (in *Interner) Walk(id TypeID, fn func(TypeID, Type) bool) {
	if id == NoTypeID {
		return
	}
	t := in.MustLookup(id)
	if !fn(id, t) {
		return
	}
	switch t.Kind {
	case KindUniq, KindPtr, KindRptr, KindVec:
		in.Walk(t.Elem, fn)
	case KindTuple:
		elems, _ := in.TupleElems(id)
		for _, e := range elems {
			in.Walk(e, fn)
		}
	case KindBareFn:
		sig, _ := in.FnSig(id)
		for _, e := range sig.Inputs {
			in.Walk(e, fn)
		}
		in.Walk(sig.Output, fn)
	case KindEnum, KindStruct:
		s, _ := in.AdtSubsts(id)
		if s.Self != NoTypeID {
			in.Walk(s.Self, fn)
		}
		for _, e := range s.Types {
			in.Walk(e, fn)
		}
	}
}

// MaxParamIndex returns the largest type-parameter index mentioned by id.
func (in *Interner) MaxParamIndex(id TypeID) (uint32, bool) {
	if in.Flags(id)&FlagHasParams == 0 {
		return 0, false
	}
	var (
		maxIdx uint32
		found  bool
	)
	in.Walk(id, func(_ TypeID, t Type) bool {
		if t.Kind == KindParam && (!found || t.Index > maxIdx) {
			maxIdx, found = t.Index, true
		}
		return true
	})
	return maxIdx, found
}
