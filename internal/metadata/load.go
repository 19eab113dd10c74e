package metadata

import (
	"fmt"
	"io"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/vmihailenco/msgpack/v5"

	"polyty/internal/ast"
	"polyty/internal/source"
	"polyty/internal/symbols"
	"polyty/internal/types"
)

// Crate is the loaded metadata of one extern crate, re-interned into the
// type and string interners of the crate being compiled. Read-only.
type Crate struct {
	name    string
	num     ast.CrateNum
	version *semver.Version

	schemes      map[ast.DefID]*types.PolyType
	traits       map[ast.DefID]*types.TraitDef
	supertraits  map[ast.DefID][]*types.TraitRef
	methodIDs    map[ast.DefID][]ast.DefID
	methods      map[ast.DefID]*types.Method
	fields       map[ast.DefID][]types.FieldTy
	superstructs map[ast.DefID]ast.DefID
	exports      map[string]symbols.Def
	lang         map[string]ast.DefID
	names        map[ast.DefID]string
	params       map[ast.DefID]string
}

// LoadOptions controls how a document is decoded.
type LoadOptions struct {
	// Num is the crate number assigned to the loaded crate.
	Num ast.CrateNum
	// Constraint restricts the accepted format versions; empty means DefaultConstraint.
	Constraint string
	Types      *types.Interner
	Strings    *source.Interner
	// Deps maps the names of crates the document refers to onto loaded crate numbers.
	Deps func(name string) (ast.CrateNum, bool)
}

// Load decodes a metadata document.
func Load(r io.Reader, opts LoadOptions) (*Crate, error) {
	var doc document
	if err := msgpack.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	ver, err := checkFormat(doc.Format, opts.Constraint)
	if err != nil {
		return nil, err
	}
	if opts.Types == nil || opts.Strings == nil {
		return nil, fmt.Errorf("metadata: load of %q needs type and string interners", doc.Crate)
	}
	l := &loader{opts: opts, doc: &doc, params: make(map[ast.DefID]string)}
	if err := l.mapCrates(); err != nil {
		return nil, err
	}
	if err := l.internTypes(); err != nil {
		return nil, err
	}
	c := l.build()
	c.version = ver
	if l.err != nil {
		return nil, l.err
	}
	return c, nil
}

func checkFormat(format, constraint string) (*semver.Version, error) {
	if constraint == "" {
		constraint = DefaultConstraint
	}
	con, err := semver.NewConstraint(constraint)
	if err != nil {
		return nil, fmt.Errorf("metadata: bad version constraint %q: %w", constraint, err)
	}
	ver, err := semver.NewVersion(format)
	if err != nil {
		return nil, fmt.Errorf("%w: format version %q: %w", ErrCorrupt, format, err)
	}
	if !con.Check(ver) {
		return nil, fmt.Errorf("%w: format %s does not satisfy %s", ErrVersion, ver, constraint)
	}
	return ver, nil
}

type loader struct {
	opts  LoadOptions
	doc   *document
	nums  []ast.CrateNum
	types  []types.TypeID
	params map[ast.DefID]string
	err    error
}

func (l *loader) fail(format string, args ...any) {
	if l.err == nil {
		l.err = fmt.Errorf("%w: crate %q: %s", ErrCorrupt, l.doc.Crate, fmt.Sprintf(format, args...))
	}
}

func (l *loader) mapCrates() error {
	if len(l.doc.Deps) == 0 || l.doc.Deps[0] != l.doc.Crate {
		return fmt.Errorf("%w: crate table of %q does not start with the crate itself", ErrCorrupt, l.doc.Crate)
	}
	l.nums = make([]ast.CrateNum, len(l.doc.Deps))
	l.nums[0] = l.opts.Num
	for i, name := range l.doc.Deps[1:] {
		var num ast.CrateNum
		ok := false
		if l.opts.Deps != nil {
			num, ok = l.opts.Deps(name)
		}
		if !ok {
			return fmt.Errorf("metadata: crate %q depends on %q, which is not loaded", l.doc.Crate, name)
		}
		l.nums[i+1] = num
	}
	return nil
}

func (l *loader) def(d wireDef) ast.DefID {
	if d.Node == 0 {
		return ast.NoDefID
	}
	if int(d.Crate) >= len(l.nums) {
		l.fail("crate index %d out of range", d.Crate)
		return ast.NoDefID
	}
	return ast.DefID{Crate: l.nums[d.Crate], Node: ast.NodeID(d.Node)}
}

func (l *loader) ty(ref uint32) types.TypeID {
	if ref == 0 {
		return types.NoTypeID
	}
	if int(ref) > len(l.types) {
		l.fail("type reference %d out of range", ref)
		return l.opts.Types.Builtins().Err
	}
	return l.types[ref-1]
}

func (l *loader) tys(refs []uint32) []types.TypeID {
	if len(refs) == 0 {
		return nil
	}
	out := make([]types.TypeID, len(refs))
	for i, r := range refs {
		out[i] = l.ty(r)
	}
	return out
}

func (l *loader) str(s string) source.StringID {
	if s == "" {
		return source.NoStringID
	}
	return l.opts.Strings.Intern(s)
}

func (l *loader) region(r wireRegion) types.Region {
	return types.Region{
		Kind:   types.RegionKind(r.Kind),
		Def:    l.def(r.Def),
		Index:  r.Index,
		Name:   l.str(r.Name),
		Binder: l.def(r.Binder),
		Anon:   r.Anon,
	}
}

func (l *loader) substs(s *wireSubsts) *types.Substs {
	out := &types.Substs{Self: l.ty(s.Self), Types: l.tys(s.Types)}
	for _, r := range s.Regions {
		out.Regions = append(out.Regions, l.region(r))
	}
	return out
}

func (l *loader) traitRef(tr *wireTraitRef) *types.TraitRef {
	return &types.TraitRef{Def: l.def(tr.Def), Substs: *l.substs(&tr.Substs)}
}

func (l *loader) generics(g *wireGenerics) types.Generics {
	var out types.Generics
	for i := range g.Types {
		wp := &g.Types[i]
		bounds := &types.ParamBounds{Builtin: types.BuiltinBounds(wp.Builtin)}
		def := l.def(wp.Def)
		l.params[def] = wp.Ident
		for j := range wp.Traits {
			bounds.Traits = append(bounds.Traits, l.traitRef(&wp.Traits[j]))
		}
		out.TypeParams = append(out.TypeParams, types.TypeParameterDef{
			Ident:   l.str(wp.Ident),
			Def:     def,
			Index:   wp.Index,
			Bounds:  bounds,
			Default: l.ty(wp.Default),
		})
	}
	for _, rp := range g.Regions {
		out.RegionParams = append(out.RegionParams, types.RegionParameterDef{Name: l.str(rp.Name), Def: l.def(rp.Def), Index: rp.Index})
	}
	return out
}

// internTypes re-interns the type table. Components precede the types
// that mention them, so every reference points backwards.
func (l *loader) internTypes() error {
	in := l.opts.Types
	l.types = make([]types.TypeID, 0, len(l.doc.Types))
	for i := range l.doc.Types {
		wt := &l.doc.Types[i]
		for _, ref := range typeRefs(wt) {
			if int(ref) > i {
				return fmt.Errorf("%w: crate %q: type %d refers forward to %d", ErrCorrupt, l.doc.Crate, i+1, ref)
			}
		}
		kind := types.Kind(wt.Kind)
		var id types.TypeID
		switch kind {
		case types.KindUniq, types.KindPtr, types.KindVec:
			id = in.Intern(types.Type{Kind: kind, Elem: l.ty(wt.Elem), Mutable: wt.Mutable})
		case types.KindRptr:
			if wt.Region == nil {
				return fmt.Errorf("%w: crate %q: reference type without region", ErrCorrupt, l.doc.Crate)
			}
			id = in.Intern(types.MakeRptr(l.region(*wt.Region), l.ty(wt.Elem), wt.Mutable))
		case types.KindTuple:
			id = in.RegisterTuple(l.tys(wt.Elems))
		case types.KindBareFn:
			if wt.Sig == nil {
				return fmt.Errorf("%w: crate %q: fn type without signature", ErrCorrupt, l.doc.Crate)
			}
			id = in.RegisterFn(&types.FnSig{
				Binder:   l.def(wt.Sig.Binder),
				Inputs:   l.tys(wt.Sig.Inputs),
				Output:   l.ty(wt.Sig.Output),
				Variadic: wt.Sig.Variadic,
				Style:    ast.FnStyle(wt.Sig.Style),
				ABI:      ast.ABI(wt.Sig.ABI),
			})
		case types.KindEnum, types.KindStruct:
			if wt.Def == nil || wt.Substs == nil {
				return fmt.Errorf("%w: crate %q: %s type without definition", ErrCorrupt, l.doc.Crate, kind)
			}
			if kind == types.KindEnum {
				id = in.RegisterEnum(l.def(*wt.Def), l.substs(wt.Substs))
			} else {
				id = in.RegisterStruct(l.def(*wt.Def), l.substs(wt.Substs))
			}
		case types.KindParam:
			var def ast.DefID
			if wt.Def != nil {
				def = l.def(*wt.Def)
			}
			id = in.Intern(types.MakeParam(wt.Index, def))
		case types.KindSelf:
			var def ast.DefID
			if wt.Def != nil {
				def = l.def(*wt.Def)
			}
			id = in.Intern(types.MakeSelf(def))
		case types.KindInvalid:
			return fmt.Errorf("%w: crate %q: invalid type in table", ErrCorrupt, l.doc.Crate)
		default:
			id = in.Intern(types.Type{Kind: kind, Width: types.Width(wt.Width)})
		}
		l.types = append(l.types, id)
	}
	return l.err
}

func typeRefs(wt *wireType) []uint32 {
	refs := []uint32{wt.Elem}
	refs = append(refs, wt.Elems...)
	if wt.Sig != nil {
		refs = append(refs, wt.Sig.Inputs...)
		refs = append(refs, wt.Sig.Output)
	}
	if wt.Substs != nil {
		refs = append(refs, wt.Substs.Self)
		refs = append(refs, wt.Substs.Types...)
	}
	return refs
}

func (l *loader) build() *Crate {
	doc := l.doc
	c := &Crate{
		name:         doc.Crate,
		num:          l.opts.Num,
		schemes:      make(map[ast.DefID]*types.PolyType, len(doc.Schemes)),
		traits:       make(map[ast.DefID]*types.TraitDef, len(doc.Traits)),
		supertraits:  make(map[ast.DefID][]*types.TraitRef),
		methodIDs:    make(map[ast.DefID][]ast.DefID),
		methods:      make(map[ast.DefID]*types.Method, len(doc.Methods)),
		fields:       make(map[ast.DefID][]types.FieldTy, len(doc.Structs)),
		superstructs: make(map[ast.DefID]ast.DefID),
		exports:      make(map[string]symbols.Def, len(doc.Exports)),
		lang:         make(map[string]ast.DefID, len(doc.Lang)),
		names:        make(map[ast.DefID]string, len(doc.Names)),
	}
	for i := range doc.Schemes {
		s := &doc.Schemes[i]
		c.schemes[l.def(s.Def)] = &types.PolyType{Generics: l.generics(&s.Generics), Ty: l.ty(s.Ty)}
	}
	for i := range doc.Traits {
		t := &doc.Traits[i]
		def := l.def(t.Def)
		c.traits[def] = &types.TraitDef{
			Generics: l.generics(&t.Generics),
			Bounds:   types.BuiltinBounds(t.Bounds),
			TraitRef: l.traitRef(&t.Ref),
		}
		supers := make([]*types.TraitRef, 0, len(t.Supertraits))
		for j := range t.Supertraits {
			supers = append(supers, l.traitRef(&t.Supertraits[j]))
		}
		c.supertraits[def] = supers
		ids := make([]ast.DefID, 0, len(t.Methods))
		for _, m := range t.Methods {
			ids = append(ids, l.def(m))
		}
		c.methodIDs[def] = ids
	}
	for i := range doc.Methods {
		m := &doc.Methods[i]
		def := l.def(m.Def)
		c.methods[def] = &types.Method{
			Ident:          l.str(m.Ident),
			Generics:       l.generics(&m.Generics),
			Fty:            l.ty(m.Fty),
			ExplicitSelf:   types.ExplicitSelf{Kind: ast.ExplicitSelfKind(m.SelfKind), Mutable: m.SelfMutable},
			Vis:            ast.Visibility(m.Vis),
			Def:            def,
			Container:      types.Container{Kind: types.ContainerKind(m.ContainerKind), Def: l.def(m.Container)},
			ProvidedSource: l.def(m.ProvidedSource),
		}
	}
	for i := range doc.Structs {
		s := &doc.Structs[i]
		def := l.def(s.Def)
		fields := make([]types.FieldTy, 0, len(s.Fields))
		for _, f := range s.Fields {
			fields = append(fields, types.FieldTy{Name: l.str(f.Name), ID: l.def(f.ID), Vis: ast.Visibility(f.Vis), Origin: l.def(f.Origin)})
		}
		c.fields[def] = fields
		c.superstructs[def] = l.def(s.Super)
	}
	for _, e := range doc.Exports {
		c.exports[e.Path] = symbols.Def{Kind: symbols.DefKind(e.Kind), ID: l.def(e.Def)}
	}
	for _, lg := range doc.Lang {
		c.lang[lg.Name] = l.def(lg.Def)
	}
	for _, n := range doc.Names {
		c.names[l.def(n.Def)] = n.Name
	}
	c.params = l.params
	return c
}

func (c *Crate) Name() string { return c.name }

func (c *Crate) Num() ast.CrateNum { return c.num }

// Version is the format version the crate was written with.
func (c *Crate) Version() *semver.Version { return c.version }

// Lookup resolves a path relative to the crate root.
func (c *Crate) Lookup(path []string) (symbols.Def, bool) {
	d, ok := c.exports[strings.Join(path, "::")]
	return d, ok
}

func (c *Crate) LangItems() map[string]ast.DefID { return c.lang }

// DefName returns the crate-qualified path of a definition, or the bare
// name of a type parameter.
func (c *Crate) DefName(def ast.DefID) string {
	if n, ok := c.params[def]; ok {
		return n
	}
	if n, ok := c.names[def]; ok {
		return c.name + "::" + n
	}
	return ""
}

func (c *Crate) ItemType(def ast.DefID) (*types.PolyType, bool) {
	tpt, ok := c.schemes[def]
	return tpt, ok
}

func (c *Crate) TraitDef(def ast.DefID) (*types.TraitDef, bool) {
	td, ok := c.traits[def]
	return td, ok
}

func (c *Crate) Supertraits(def ast.DefID) ([]*types.TraitRef, bool) {
	s, ok := c.supertraits[def]
	return s, ok
}

func (c *Crate) Method(def ast.DefID) (*types.Method, bool) {
	m, ok := c.methods[def]
	return m, ok
}

func (c *Crate) TraitMethodIDs(def ast.DefID) ([]ast.DefID, bool) {
	ids, ok := c.methodIDs[def]
	return ids, ok
}

func (c *Crate) StructFields(def ast.DefID) ([]types.FieldTy, bool) {
	f, ok := c.fields[def]
	return f, ok
}

func (c *Crate) Superstruct(def ast.DefID) (ast.DefID, bool) {
	s, ok := c.superstructs[def]
	return s, ok
}

// Len is the number of schemes in the crate.
func (c *Crate) Len() int { return len(c.schemes) }
