package symbols

import (
	"strings"

	"polyty/internal/ast"
	"polyty/internal/diag"
	"polyty/internal/lang"
	"polyty/internal/source"
)

// ExternCrate is a loaded external crate as seen by name resolution.
type ExternCrate interface {
	Num() ast.CrateNum
	Lookup(path []string) (Def, bool)
	LangItems() map[string]ast.DefID
}

// ExternCrates finds extern crates by name.
type ExternCrates interface {
	Crate(name string) (ExternCrate, bool)
}

// Options controls a resolve pass over one crate.
type Options struct {
	Strings  *source.Interner
	Reporter diag.Reporter
	Externs  ExternCrates
}

// Export is a crate-level path bound to a local definition.
type Export struct {
	Path string
	Def  Def
}

// Result captures resolve artefacts for one crate. Read-only once returned.
type Result struct {
	defs      map[ast.NodeID]Def
	lifetimes map[ast.NodeID]NamedRegion
	names     map[ast.DefID]string
	Lang      *lang.Items
	Exports   []Export
}

// ResolveReference returns the definition a path type or trait ref names.
func (r *Result) ResolveReference(id ast.NodeID) (Def, bool) {
	d, ok := r.defs[id]
	return d, ok
}

// ResolveLifetime returns the resolution of a lifetime use.
func (r *Result) ResolveLifetime(id ast.NodeID) (NamedRegion, bool) {
	nr, ok := r.lifetimes[id]
	return nr, ok
}

// EarlyBoundLifetimes is the subset of g's lifetimes mentioned in bounds.
func (r *Result) EarlyBoundLifetimes(g *ast.Generics) []ast.Lifetime {
	return EarlyBoundLifetimes(g)
}

// Name returns the crate-relative path of a local definition.
func (r *Result) Name(def ast.DefID) string {
	return r.names[def]
}

// ResolveCrate walks the crate and resolves every type path, trait ref and
// lifetime use it contains.
func ResolveCrate(c *ast.Crate, opts Options) *Result {
	if opts.Reporter == nil {
		opts.Reporter = diag.NopReporter{}
	}
	res := &Result{
		defs:      make(map[ast.NodeID]Def),
		lifetimes: make(map[ast.NodeID]NamedRegion),
		names:     make(map[ast.DefID]string),
		Lang:      lang.NewItems(),
	}
	r := &resolver{
		opts:       opts,
		res:        res,
		scopes:     NewScopes(16),
		modScopes:  make(map[ast.NodeID]ScopeID),
		crates:     make(map[ast.CrateNum]ExternCrate),
		staticName: opts.Strings.Intern("'static"),
		selfName:   opts.Strings.Intern("Self"),
	}
	r.root = r.scopes.New(ScopeModule, NoScopeID, ast.NoNodeID)
	r.declareItems(r.root, c.Module.Items, "")
	for _, ec := range r.crates {
		for name, def := range ec.LangItems() {
			res.Lang.Set(name, def)
		}
	}
	r.resolveItems(r.root, c.Module.Items)
	return res
}

type resolver struct {
	opts       Options
	res        *Result
	scopes     *Scopes
	root       ScopeID
	modScopes  map[ast.NodeID]ScopeID
	crates     map[ast.CrateNum]ExternCrate
	staticName source.StringID
	selfName   source.StringID
}

func (r *resolver) str(id source.StringID) string {
	s, _ := r.opts.Strings.Lookup(id)
	return s
}

// Declarations ---------------------------------------------------------------

func (r *resolver) declareItems(scope ScopeID, items []*ast.Item, prefix string) {
	for _, it := range items {
		def := ast.LocalDef(it.ID)
		path := prefix + r.str(it.Ident.Name)
		switch k := it.Kind.(type) {
		case *ast.ItemStruct:
			r.declareType(scope, it.Ident, Def{Kind: DefStruct, ID: def}, path)
			r.nameStructFields(k.Def, path)
		case *ast.ItemEnum:
			r.declareType(scope, it.Ident, Def{Kind: DefEnum, ID: def}, path)
			for _, v := range k.Def.Variants {
				vpath := path + "::" + r.str(v.Ident.Name)
				r.res.names[ast.LocalDef(v.ID)] = vpath
				if v.Struct != nil {
					r.nameStructFields(v.Struct, vpath)
				}
			}
		case *ast.ItemTrait:
			r.declareType(scope, it.Ident, Def{Kind: DefTrait, ID: def}, path)
			r.nameMethods(k.Methods, path)
		case *ast.ItemTy:
			r.declareType(scope, it.Ident, Def{Kind: DefTyAlias, ID: def}, path)
		case *ast.ItemMod:
			r.declareType(scope, it.Ident, Def{Kind: DefMod, ID: def}, path)
			child := r.scopes.New(ScopeModule, NoScopeID, it.ID)
			r.modScopes[it.ID] = child
			r.declareItems(child, k.Items, path+"::")
		case *ast.ItemExternCrate:
			r.declareExternCrate(scope, it, k)
		case *ast.ItemFn:
			r.declareValue(scope, it.Ident, Def{Kind: DefFn, ID: def}, path)
		case *ast.ItemStatic:
			r.declareValue(scope, it.Ident, Def{Kind: DefStatic, ID: def}, path)
		case *ast.ItemForeignMod:
			for _, fi := range k.Items {
				fdef := ast.LocalDef(fi.ID)
				kind := DefForeignFn
				if fi.Kind == ast.ForeignStatic {
					kind = DefForeignStatic
				}
				r.declareValue(scope, fi.Ident, Def{Kind: kind, ID: fdef}, prefix+r.str(fi.Ident.Name))
				if name, ok := fi.LangItem(); ok {
					r.declareLang(name, fdef, fi.Span)
				}
			}
		case *ast.ItemImpl:
			r.res.names[def] = prefix + "<impl>"
			r.nameMethods(k.Methods, prefix+"<impl>")
		}
		if name, ok := it.LangItem(); ok {
			r.declareLang(name, def, it.Span)
		}
	}
}

func (r *resolver) nameMethods(ms []*ast.Method, owner string) {
	for _, m := range ms {
		r.res.names[ast.LocalDef(m.ID)] = owner + "::" + r.str(m.Ident.Name)
	}
}

func (r *resolver) nameStructFields(sd *ast.StructDef, owner string) {
	for _, f := range sd.Fields {
		if f.Kind == ast.NamedField {
			r.res.names[ast.LocalDef(f.ID)] = owner + "." + r.str(f.Ident.Name)
		}
	}
}

func (r *resolver) declareType(scope ScopeID, ident ast.Ident, def Def, path string) {
	sc := r.scopes.Get(scope)
	if prev, ok := sc.TypeDecls[ident.Name]; ok {
		diag.ReportError(r.opts.Reporter, diag.ResDuplicateName, ident.Span,
			"duplicate definition of type or module `%s`", r.str(ident.Name)).
			WithNote(prev, "first definition here").
			Emit()
		return
	}
	sc.TypeDecls[ident.Name] = ident.Span
	sc.Types[ident.Name] = def
	r.res.names[def.ID] = path
	r.res.Exports = append(r.res.Exports, Export{Path: path, Def: def})
}

func (r *resolver) declareValue(scope ScopeID, ident ast.Ident, def Def, path string) {
	sc := r.scopes.Get(scope)
	if prev, ok := sc.ValueDecls[ident.Name]; ok {
		diag.ReportError(r.opts.Reporter, diag.ResDuplicateName, ident.Span,
			"duplicate definition of value `%s`", r.str(ident.Name)).
			WithNote(prev, "first definition here").
			Emit()
		return
	}
	sc.ValueDecls[ident.Name] = ident.Span
	sc.Values[ident.Name] = def
	r.res.names[def.ID] = path
	r.res.Exports = append(r.res.Exports, Export{Path: path, Def: def})
}

func (r *resolver) declareExternCrate(scope ScopeID, it *ast.Item, k *ast.ItemExternCrate) {
	if r.opts.Externs == nil {
		diag.ReportError(r.opts.Reporter, diag.ResUnknownCrate, it.Span, "can't find crate for `%s`", k.Crate).Emit()
		return
	}
	ec, ok := r.opts.Externs.Crate(k.Crate)
	if !ok {
		diag.ReportError(r.opts.Reporter, diag.ResUnknownCrate, it.Span, "can't find crate for `%s`", k.Crate).Emit()
		return
	}
	r.crates[ec.Num()] = ec
	sc := r.scopes.Get(scope)
	if prev, dup := sc.TypeDecls[it.Ident.Name]; dup {
		diag.ReportError(r.opts.Reporter, diag.ResDuplicateName, it.Ident.Span,
			"duplicate definition of type or module `%s`", r.str(it.Ident.Name)).
			WithNote(prev, "first definition here").
			Emit()
		return
	}
	sc.TypeDecls[it.Ident.Name] = it.Ident.Span
	sc.Types[it.Ident.Name] = Def{Kind: DefCrate, ID: ast.DefID{Crate: ec.Num()}}
}

func (r *resolver) declareLang(name string, def ast.DefID, sp source.Span) {
	if prev, ok := r.res.Lang.Set(name, def); !ok && prev != def {
		diag.ReportError(r.opts.Reporter, diag.ResDuplicateName, sp, "duplicate entry for lang item `%s`", name).Emit()
	}
}

// Resolution -----------------------------------------------------------------

func (r *resolver) resolveItems(scope ScopeID, items []*ast.Item) {
	for _, it := range items {
		def := ast.LocalDef(it.ID)
		switch k := it.Kind.(type) {
		case *ast.ItemStruct:
			g := r.pushGenerics(scope, it.ID, &k.Generics, genericsFrame{allEarly: true})
			r.resolveGenerics(g, &k.Generics)
			r.resolveStructDef(g, k.Def)
		case *ast.ItemEnum:
			g := r.pushGenerics(scope, it.ID, &k.Generics, genericsFrame{allEarly: true})
			r.resolveGenerics(g, &k.Generics)
			for _, v := range k.Def.Variants {
				for _, a := range v.Args {
					r.resolveTy(g, a.Ty)
				}
				if v.Struct != nil {
					r.resolveStructDef(g, v.Struct)
				}
			}
		case *ast.ItemTy:
			g := r.pushGenerics(scope, it.ID, &k.Generics, genericsFrame{allEarly: true})
			r.resolveGenerics(g, &k.Generics)
			r.resolveTy(g, k.Ty)
		case *ast.ItemTrait:
			g := r.pushGenerics(scope, it.ID, &k.Generics, genericsFrame{allEarly: true, self: def})
			r.resolveGenerics(g, &k.Generics)
			for i := range k.Supertraits {
				r.resolveTraitRef(g, &k.Supertraits[i])
			}
			r.resolveMethods(g, k.Methods, &k.Generics)
		case *ast.ItemImpl:
			g := r.pushGenerics(scope, it.ID, &k.Generics, genericsFrame{allEarly: true, self: def})
			r.resolveGenerics(g, &k.Generics)
			if k.Trait != nil {
				r.resolveTraitRef(g, k.Trait)
			}
			r.resolveTy(g, k.SelfTy)
			r.resolveMethods(g, k.Methods, &k.Generics)
		case *ast.ItemFn:
			g := r.pushGenerics(scope, it.ID, &k.Generics, genericsFrame{binder: def})
			r.resolveGenerics(g, &k.Generics)
			r.resolveDecl(g, k.Decl)
		case *ast.ItemStatic:
			r.resolveTy(scope, k.Ty)
		case *ast.ItemMod:
			r.resolveItems(r.modScopes[it.ID], k.Items)
		case *ast.ItemForeignMod:
			for _, fi := range k.Items {
				if fi.Kind == ast.ForeignStatic {
					r.resolveTy(scope, fi.Ty)
					continue
				}
				g := r.pushGenerics(scope, fi.ID, &fi.Generics, genericsFrame{binder: ast.LocalDef(fi.ID)})
				r.resolveGenerics(g, &fi.Generics)
				r.resolveDecl(g, fi.Decl)
			}
		}
	}
}

func (r *resolver) resolveStructDef(scope ScopeID, sd *ast.StructDef) {
	if sd == nil {
		return
	}
	for _, f := range sd.Fields {
		r.resolveTy(scope, f.Ty)
	}
	if sd.SuperStruct != nil {
		r.resolveTy(scope, sd.SuperStruct)
	}
}

func (r *resolver) resolveMethods(scope ScopeID, ms []*ast.Method, outer *ast.Generics) {
	for _, m := range ms {
		frame := genericsFrame{
			binder: ast.LocalDef(m.ID),
			tyBase: uint32(len(outer.TyParams)),
			ltBase: uint32(len(outer.Lifetimes)),
		}
		g := r.pushGenerics(scope, m.ID, &m.Generics, frame)
		r.resolveGenerics(g, &m.Generics)
		if m.Self.Lifetime != nil {
			r.resolveLifetime(g, m.Self.Lifetime)
		}
		r.resolveDecl(g, m.Decl)
	}
}

// genericsFrame describes how an item's parameters are numbered. Items bind
// every lifetime early; fns and methods bind only those used in bounds early
// and the rest late at binder.
type genericsFrame struct {
	allEarly bool
	self     ast.DefID
	binder   ast.DefID
	tyBase   uint32
	ltBase   uint32
}

func (r *resolver) pushGenerics(parent ScopeID, owner ast.NodeID, g *ast.Generics, f genericsFrame) ScopeID {
	s := r.scopes.New(ScopeGenerics, parent, owner)
	sc := r.scopes.Get(s)
	early := make(map[source.StringID]bool, len(g.Lifetimes))
	if f.allEarly {
		for _, lt := range g.Lifetimes {
			early[lt.Name] = true
		}
	} else {
		for _, lt := range EarlyBoundLifetimes(g) {
			early[lt.Name] = true
		}
	}
	idx := f.ltBase
	for _, lt := range g.Lifetimes {
		if _, dup := sc.Lifetimes[lt.Name]; dup {
			diag.ReportError(r.opts.Reporter, diag.ResDuplicateName, lt.Span,
				"lifetime name `%s` declared twice in the same scope", r.str(lt.Name)).Emit()
			continue
		}
		decl := ast.LocalDef(lt.ID)
		if early[lt.Name] {
			sc.Lifetimes[lt.Name] = NamedRegion{Kind: LifetimeEarly, Decl: decl, Index: idx, Name: lt.Name}
			idx++
		} else {
			sc.Lifetimes[lt.Name] = NamedRegion{Kind: LifetimeLate, Decl: decl, Name: lt.Name, Binder: f.binder}
		}
	}
	for i, p := range g.TyParams {
		if _, dup := sc.Types[p.Ident.Name]; dup {
			diag.ReportError(r.opts.Reporter, diag.ResDuplicateName, p.Ident.Span,
				"the name `%s` is already used for a type parameter in this type parameter list", r.str(p.Ident.Name)).Emit()
			continue
		}
		pdef := ast.LocalDef(p.ID)
		sc.Types[p.Ident.Name] = Def{Kind: DefTyParam, ID: pdef, Index: f.tyBase + uint32(i)}
		r.res.names[pdef] = r.str(p.Ident.Name)
	}
	if f.self.IsValid() {
		sc.Types[r.selfName] = Def{Kind: DefSelfTy, Owner: f.self}
	}
	return s
}

func (r *resolver) resolveGenerics(scope ScopeID, g *ast.Generics) {
	for i := range g.TyParams {
		p := &g.TyParams[i]
		for j := range p.Bounds {
			if b := &p.Bounds[j]; b.Kind == ast.BoundTrait && b.Trait != nil {
				r.resolveTraitRef(scope, b.Trait)
			}
		}
		if p.Default != nil {
			r.resolveTy(scope, p.Default)
		}
	}
}

func (r *resolver) resolveDecl(scope ScopeID, d *ast.FnDecl) {
	if d == nil {
		return
	}
	for _, a := range d.Inputs {
		r.resolveTy(scope, a.Ty)
	}
	if d.Output != nil {
		r.resolveTy(scope, d.Output)
	}
}

func (r *resolver) resolveTy(scope ScopeID, t *ast.Ty) {
	if t == nil {
		return
	}
	switch t.Kind {
	case ast.TyPath:
		r.res.defs[t.ID] = r.resolveTypePath(scope, t.Path)
		r.resolvePathArgs(scope, t.Path)
	case ast.TyRptr:
		if t.Lifetime != nil {
			r.resolveLifetime(scope, t.Lifetime)
		}
		r.resolveTy(scope, t.Elem)
	case ast.TyUniq, ast.TyPtr, ast.TyVec:
		r.resolveTy(scope, t.Elem)
	case ast.TyTup:
		for _, e := range t.Elems {
			r.resolveTy(scope, e)
		}
	case ast.TyBareFn:
		b := r.scopes.New(ScopeBinder, scope, t.ID)
		sc := r.scopes.Get(b)
		binder := ast.LocalDef(t.ID)
		for _, lt := range t.Fn.Lifetimes {
			sc.Lifetimes[lt.Name] = NamedRegion{Kind: LifetimeLate, Decl: ast.LocalDef(lt.ID), Name: lt.Name, Binder: binder}
		}
		r.resolveDecl(b, t.Fn.Decl)
	}
}

func (r *resolver) resolveTraitRef(scope ScopeID, tr *ast.TraitRef) {
	r.res.defs[tr.RefID] = r.resolveTypePath(scope, &tr.Path)
	r.resolvePathArgs(scope, &tr.Path)
}

func (r *resolver) resolvePathArgs(scope ScopeID, p *ast.Path) {
	for i := range p.Segments {
		seg := &p.Segments[i]
		for j := range seg.Lifetimes {
			r.resolveLifetime(scope, &seg.Lifetimes[j])
		}
		for _, t := range seg.Types {
			r.resolveTy(scope, t)
		}
	}
}

func (r *resolver) resolveLifetime(scope ScopeID, lt *ast.Lifetime) {
	if lt.Name == r.staticName {
		r.res.lifetimes[lt.ID] = NamedRegion{Kind: LifetimeStatic, Name: lt.Name}
		return
	}
	for cur := scope; cur.IsValid(); {
		sc := r.scopes.Get(cur)
		if sc.Kind == ScopeModule {
			break
		}
		if nr, ok := sc.Lifetimes[lt.Name]; ok {
			r.res.lifetimes[lt.ID] = nr
			return
		}
		cur = sc.Parent
	}
	diag.ReportError(r.opts.Reporter, diag.ResUnknownLifetime, lt.Span,
		"use of undeclared lifetime name `%s`", r.str(lt.Name)).Emit()
	r.res.lifetimes[lt.ID] = NamedRegion{Kind: LifetimeStatic, Name: lt.Name}
}

// lookupType searches the scope chain up to the enclosing module, then the
// crate root, then the primitive types.
func (r *resolver) lookupType(scope ScopeID, name source.StringID) (Def, bool) {
	cur := scope
	for cur.IsValid() {
		sc := r.scopes.Get(cur)
		if d, ok := sc.Types[name]; ok {
			return d, true
		}
		if sc.Kind == ScopeModule {
			break
		}
		cur = sc.Parent
	}
	if cur != r.root {
		if d, ok := r.scopes.Get(r.root).Types[name]; ok {
			return d, true
		}
	}
	if p, ok := ast.LookupPrim(r.str(name)); ok {
		return Def{Kind: DefPrimTy, Prim: p}, true
	}
	return Def{}, false
}

func (r *resolver) resolveTypePath(scope ScopeID, p *ast.Path) Def {
	if p == nil || len(p.Segments) == 0 {
		return Def{Kind: DefErr}
	}
	first, ok := r.lookupType(scope, p.Segments[0].Ident.Name)
	if ok && len(p.Segments) == 1 {
		return first
	}
	if ok {
		if d, ok := r.resolveQualified(first, p.Segments[1:]); ok {
			return d
		}
	}
	r.reportUnresolved(p)
	return Def{Kind: DefErr}
}

func (r *resolver) resolveQualified(head Def, rest []ast.PathSegment) (Def, bool) {
	switch head.Kind {
	case DefCrate:
		ec, ok := r.crates[head.ID.Crate]
		if !ok {
			return Def{}, false
		}
		names := make([]string, len(rest))
		for i, seg := range rest {
			names[i] = r.str(seg.Ident.Name)
		}
		return ec.Lookup(names)
	case DefMod:
		scope, ok := r.modScopes[head.ID.Node]
		if !ok {
			return Def{}, false
		}
		d, ok := r.scopes.Get(scope).Types[rest[0].Ident.Name]
		if !ok {
			return Def{}, false
		}
		if len(rest) == 1 {
			return d, true
		}
		return r.resolveQualified(d, rest[1:])
	default:
		return Def{}, false
	}
}

func (r *resolver) reportUnresolved(p *ast.Path) {
	parts := make([]string, len(p.Segments))
	for i, seg := range p.Segments {
		parts[i] = r.str(seg.Ident.Name)
	}
	if len(parts) == 1 {
		diag.ReportError(r.opts.Reporter, diag.ResUnresolved, p.Span, "use of undeclared type name `%s`", parts[0]).Emit()
		return
	}
	diag.ReportError(r.opts.Reporter, diag.ResUnresolved, p.Span, "failed to resolve path `%s`", strings.Join(parts, "::")).Emit()
}
