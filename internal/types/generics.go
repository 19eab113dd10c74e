package types

import (
	"slices"
	"strings"

	"polyty/internal/ast"
	"polyty/internal/source"
)

// BuiltinBound is a capability the compiler knows natively.
type BuiltinBound uint8

const (
	BoundStatic BuiltinBound = iota
	BoundSend
	BoundSized
	BoundCopy
	BoundShare
)

var builtinBoundNames = [...]string{
	BoundStatic: "'static",
	BoundSend:   "Send",
	BoundSized:  "Sized",
	BoundCopy:   "Copy",
	BoundShare:  "Share",
}

func (b BuiltinBound) String() string {
	if int(b) < len(builtinBoundNames) {
		return builtinBoundNames[b]
	}
	return "?"
}

// BuiltinBounds is a set of builtin capabilities.
type BuiltinBounds uint8

func (s BuiltinBounds) Contains(b BuiltinBound) bool { return s&(1<<b) != 0 }
func (s *BuiltinBounds) Add(b BuiltinBound)          { *s |= 1 << b }
func (s BuiltinBounds) IsEmpty() bool                { return s == 0 }

// Each calls fn in declaration order of the builtin bounds.
func (s BuiltinBounds) Each(fn func(BuiltinBound)) {
	for b := BoundStatic; b <= BoundShare; b++ {
		if s.Contains(b) {
			fn(b)
		}
	}
}

func (s BuiltinBounds) String() string {
	var parts []string
	s.Each(func(b BuiltinBound) { parts = append(parts, b.String()) })
	return strings.Join(parts, " + ")
}

// TraitRef is a trait applied to a substitution whose Self is the
// implementing or bounded type.
type TraitRef struct {
	Def    ast.DefID
	Substs Substs
}

func (tr *TraitRef) Equal(o *TraitRef) bool {
	if tr == nil || o == nil {
		return tr == o
	}
	return tr.Def == o.Def && tr.Substs.Equal(&o.Substs)
}

// ParamBounds splits builtin capabilities from user trait bounds.
type ParamBounds struct {
	Builtin BuiltinBounds
	Traits  []*TraitRef
}

func (b *ParamBounds) Equal(o *ParamBounds) bool {
	if b == nil || o == nil {
		return b == o
	}
	return b.Builtin == o.Builtin && slices.EqualFunc(b.Traits, o.Traits, (*TraitRef).Equal)
}

// TypeParameterDef describes one type parameter; Index is absolute within
// the scheme that declares it.
type TypeParameterDef struct {
	Ident   source.StringID
	Def     ast.DefID
	Index   uint32
	Bounds  *ParamBounds
	Default TypeID
}

func (d *TypeParameterDef) Equal(o *TypeParameterDef) bool {
	return d.Ident == o.Ident && d.Def == o.Def && d.Index == o.Index &&
		d.Default == o.Default && d.Bounds.Equal(o.Bounds)
}

// RegionParameterDef describes an early-bound lifetime parameter.
type RegionParameterDef struct {
	Name  source.StringID
	Def   ast.DefID
	Index uint32
}

type Generics struct {
	TypeParams   []TypeParameterDef
	RegionParams []RegionParameterDef
}

func (g *Generics) HasTypeParams() bool { return len(g.TypeParams) > 0 }

func (g *Generics) Equal(o *Generics) bool {
	return slices.Equal(g.RegionParams, o.RegionParams) &&
		slices.EqualFunc(g.TypeParams, o.TypeParams, func(a, b TypeParameterDef) bool { return a.Equal(&b) })
}

// PolyType is a type scheme: a type closed over its generics.
type PolyType struct {
	Generics Generics
	Ty       TypeID
}

// NoParams wraps a monomorphic type.
func NoParams(t TypeID) *PolyType {
	return &PolyType{Ty: t}
}

func (p *PolyType) Equal(o *PolyType) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.Ty == o.Ty && p.Generics.Equal(&o.Generics)
}

// TraitDef is the collected form of a trait declaration.
type TraitDef struct {
	Generics Generics
	// Bounds are the builtin supertraits.
	Bounds   BuiltinBounds
	TraitRef *TraitRef
}

func (t *TraitDef) Equal(o *TraitDef) bool {
	if t == nil || o == nil {
		return t == o
	}
	return t.Bounds == o.Bounds && t.TraitRef.Equal(o.TraitRef) && t.Generics.Equal(&o.Generics)
}

type ContainerKind uint8

const (
	TraitContainer ContainerKind = iota
	ImplContainer
)

type Container struct {
	Kind ContainerKind
	Def  ast.DefID
}

// ReceiverMode is how a method takes self.
type ReceiverMode uint8

const (
	ReceiverStatic ReceiverMode = iota
	ReceiverByValue
	ReceiverByRef
	ReceiverByMutRef
	ReceiverByBox
)

// ExplicitSelf is the receiver of a method without its lifetime.
type ExplicitSelf struct {
	Kind    ast.ExplicitSelfKind
	Mutable bool
}

func (e ExplicitSelf) Mode() ReceiverMode {
	switch e.Kind {
	case ast.SelfValue:
		return ReceiverByValue
	case ast.SelfRegion:
		if e.Mutable {
			return ReceiverByMutRef
		}
		return ReceiverByRef
	case ast.SelfUniq:
		return ReceiverByBox
	default:
		return ReceiverStatic
	}
}

// Method is the collected form of a trait or impl method. Generics holds only
// the method's own parameters, indexed after the container's.
type Method struct {
	Ident          source.StringID
	Generics       Generics
	Fty            TypeID
	ExplicitSelf   ExplicitSelf
	Vis            ast.Visibility
	Def            ast.DefID
	Container      Container
	ProvidedSource ast.DefID
}

func (m *Method) Equal(o *Method) bool {
	if m == nil || o == nil {
		return m == o
	}
	return m.Ident == o.Ident && m.Fty == o.Fty && m.ExplicitSelf == o.ExplicitSelf &&
		m.Vis == o.Vis && m.Def == o.Def && m.Container == o.Container &&
		m.ProvidedSource == o.ProvidedSource && m.Generics.Equal(&o.Generics)
}

// FieldTy records one struct field; the field's type lives in the type cache
// under ID. Unnamed fields have NoStringID as name.
type FieldTy struct {
	Name   source.StringID
	ID     ast.DefID
	Vis    ast.Visibility
	Origin ast.DefID
}

// LookupField returns the first field with the given name.
func LookupField(fields []FieldTy, name source.StringID) (FieldTy, bool) {
	for _, f := range fields {
		if f.Name == name && name != source.NoStringID {
			return f, true
		}
	}
	return FieldTy{}, false
}
