package metadata

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"fortio.org/safecast"
	"github.com/vmihailenco/msgpack/v5"

	"polyty/internal/ast"
	"polyty/internal/source"
	"polyty/internal/symbols"
	"polyty/internal/tcx"
	"polyty/internal/types"
)

// Exports is what a collected crate publishes.
type Exports struct {
	Crate   string
	Ctxt    *tcx.Ctxt
	Exports []symbols.Export
	// Name gives the path of a local definition; it is stored for printing.
	Name func(ast.DefID) string
	// CrateName names the extern crates local types refer to.
	CrateName func(ast.CrateNum) (string, bool)
}

// Write encodes every local entry of the collected tables.
func Write(w io.Writer, ex *Exports) error {
	doc, err := buildDocument(ex)
	if err != nil {
		return err
	}
	return msgpack.NewEncoder(w).Encode(doc)
}

// WriteFile writes the metadata to path, replacing it atomically.
func WriteFile(path string, ex *Exports) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "tmp-*.meta")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer os.Remove(tmp) //nolint:errcheck // после Rename файла уже нет
	if err := Write(f, ex); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

type writer struct {
	ex       *Exports
	in       *types.Interner
	strs     *source.Interner
	deps     []string
	depIndex map[ast.CrateNum]uint32

	types     []wireType
	typeIndex map[types.TypeID]uint32
	err       error
}

func buildDocument(ex *Exports) (*document, error) {
	if ex == nil || ex.Ctxt == nil {
		return nil, fmt.Errorf("metadata: nothing to write")
	}
	cx := ex.Ctxt
	w := &writer{
		ex:        ex,
		in:        cx.Types,
		strs:      cx.Strings,
		deps:      []string{ex.Crate},
		depIndex:  map[ast.CrateNum]uint32{ast.LocalCrate: 0},
		typeIndex: make(map[types.TypeID]uint32),
	}
	doc := &document{Format: FormatVersion, Crate: ex.Crate}

	cx.TCache.Range(func(def ast.DefID, tpt *types.PolyType) bool {
		if def.IsLocal() {
			doc.Schemes = append(doc.Schemes, wireScheme{Def: w.def(def), Generics: w.generics(&tpt.Generics), Ty: w.ty(tpt.Ty)})
		}
		return true
	})
	cx.TraitDefs.Range(func(def ast.DefID, td *types.TraitDef) bool {
		if !def.IsLocal() {
			return true
		}
		wt := wireTrait{
			Def:      w.def(def),
			Generics: w.generics(&td.Generics),
			Bounds:   uint8(td.Bounds),
			Ref:      w.traitRef(td.TraitRef),
		}
		if supers, ok := cx.Supertraits.Lookup(def); ok {
			for _, s := range supers {
				wt.Supertraits = append(wt.Supertraits, w.traitRef(s))
			}
		}
		if ids, ok := cx.TraitMethodIDs.Lookup(def); ok {
			for _, id := range ids {
				wt.Methods = append(wt.Methods, w.def(id))
			}
		}
		doc.Traits = append(doc.Traits, wt)
		return true
	})
	cx.Methods.Range(func(def ast.DefID, m *types.Method) bool {
		if def.IsLocal() {
			doc.Methods = append(doc.Methods, wireMethod{
				Def:            w.def(def),
				Ident:          w.str(m.Ident),
				Generics:       w.generics(&m.Generics),
				Fty:            w.ty(m.Fty),
				SelfKind:       uint8(m.ExplicitSelf.Kind),
				SelfMutable:    m.ExplicitSelf.Mutable,
				Vis:            uint8(m.Vis),
				ContainerKind:  uint8(m.Container.Kind),
				Container:      w.def(m.Container.Def),
				ProvidedSource: w.def(m.ProvidedSource),
			})
		}
		return true
	})
	cx.StructFields.Range(func(def ast.DefID, fields []types.FieldTy) bool {
		if !def.IsLocal() {
			return true
		}
		ws := wireStruct{Def: w.def(def)}
		for _, f := range fields {
			ws.Fields = append(ws.Fields, wireField{Name: w.str(f.Name), ID: w.def(f.ID), Vis: uint8(f.Vis), Origin: w.def(f.Origin)})
		}
		if s, ok := cx.Superstructs.Lookup(def); ok {
			ws.Super = w.def(s)
		}
		doc.Structs = append(doc.Structs, ws)
		return true
	})

	for _, e := range ex.Exports {
		if e.Def.ID.IsLocal() {
			doc.Exports = append(doc.Exports, wireExport{Path: e.Path, Kind: uint8(e.Def.Kind), Def: w.def(e.Def.ID)})
		}
	}
	for _, name := range cx.Lang.Names() {
		if def, ok := cx.Lang.Get(name); ok && def.IsLocal() {
			doc.Lang = append(doc.Lang, wireLang{Name: name, Def: w.def(def)})
		}
	}
	if ex.Name != nil {
		doc.Names = w.names(doc)
	}
	if w.err != nil {
		return nil, w.err
	}

	byDef := func(a, b wireDef) int { return cmp.Compare(a.Node, b.Node) }
	slices.SortFunc(doc.Schemes, func(a, b wireScheme) int { return byDef(a.Def, b.Def) })
	slices.SortFunc(doc.Traits, func(a, b wireTrait) int { return byDef(a.Def, b.Def) })
	slices.SortFunc(doc.Methods, func(a, b wireMethod) int { return byDef(a.Def, b.Def) })
	slices.SortFunc(doc.Structs, func(a, b wireStruct) int { return byDef(a.Def, b.Def) })
	slices.SortFunc(doc.Names, func(a, b wireName) int { return byDef(a.Def, b.Def) })

	doc.Deps = w.deps
	doc.Types = w.types
	return doc, nil
}

// names records the path of every local definition that has a table entry.
func (w *writer) names(doc *document) []wireName {
	seen := make(map[wireDef]bool)
	var out []wireName
	add := func(d wireDef) {
		if d.Crate != 0 || d.Node == 0 || seen[d] {
			return
		}
		seen[d] = true
		if n := w.ex.Name(ast.LocalDef(ast.NodeID(d.Node))); n != "" {
			out = append(out, wireName{Def: d, Name: n})
		}
	}
	for _, s := range doc.Schemes {
		add(s.Def)
	}
	for _, t := range doc.Traits {
		add(t.Def)
	}
	for _, e := range doc.Exports {
		add(e.Def)
	}
	return out
}

func (w *writer) str(id source.StringID) string {
	s, _ := w.strs.Lookup(id)
	return s
}

func (w *writer) def(d ast.DefID) wireDef {
	if d == ast.NoDefID {
		return wireDef{}
	}
	idx, ok := w.depIndex[d.Crate]
	if !ok {
		name, known := "", false
		if w.ex.CrateName != nil {
			name, known = w.ex.CrateName(d.Crate)
		}
		if !known {
			if w.err == nil {
				w.err = fmt.Errorf("metadata: definition %s belongs to an unknown crate", d)
			}
			return wireDef{}
		}
		n, err := safecast.Conv[uint32](len(w.deps))
		if err != nil {
			panic(fmt.Errorf("crate table overflow: %w", err))
		}
		idx = n
		w.deps = append(w.deps, name)
		w.depIndex[d.Crate] = idx
	}
	return wireDef{Crate: idx, Node: uint32(d.Node)}
}

func (w *writer) region(r types.Region) wireRegion {
	return wireRegion{
		Kind:   uint8(r.Kind),
		Def:    w.def(r.Def),
		Index:  r.Index,
		Name:   w.str(r.Name),
		Binder: w.def(r.Binder),
		Anon:   r.Anon,
	}
}

func (w *writer) substs(s *types.Substs) wireSubsts {
	var out wireSubsts
	if s == nil {
		return out
	}
	for _, r := range s.Regions {
		out.Regions = append(out.Regions, w.region(r))
	}
	out.Self = w.ty(s.Self)
	out.Types = w.tys(s.Types)
	return out
}

func (w *writer) traitRef(tr *types.TraitRef) wireTraitRef {
	if tr == nil {
		return wireTraitRef{}
	}
	return wireTraitRef{Def: w.def(tr.Def), Substs: w.substs(&tr.Substs)}
}

func (w *writer) generics(g *types.Generics) wireGenerics {
	var out wireGenerics
	for _, tp := range g.TypeParams {
		wp := wireTypeParam{Ident: w.str(tp.Ident), Def: w.def(tp.Def), Index: tp.Index, Default: w.ty(tp.Default)}
		if tp.Bounds != nil {
			wp.Builtin = uint8(tp.Bounds.Builtin)
			for _, tr := range tp.Bounds.Traits {
				wp.Traits = append(wp.Traits, w.traitRef(tr))
			}
		}
		out.Types = append(out.Types, wp)
	}
	for _, rp := range g.RegionParams {
		out.Regions = append(out.Regions, wireRegionParam{Name: w.str(rp.Name), Def: w.def(rp.Def), Index: rp.Index})
	}
	return out
}

func (w *writer) tys(ids []types.TypeID) []uint32 {
	if len(ids) == 0 {
		return nil
	}
	out := make([]uint32, len(ids))
	for i, id := range ids {
		out[i] = w.ty(id)
	}
	return out
}

// ty appends id and everything it mentions to the type table, components
// first, and returns its table reference.
func (w *writer) ty(id types.TypeID) uint32 {
	if id == types.NoTypeID {
		return 0
	}
	if ref, ok := w.typeIndex[id]; ok {
		return ref
	}
	t, ok := w.in.Lookup(id)
	if !ok {
		if w.err == nil {
			w.err = fmt.Errorf("metadata: dangling type id %d", id)
		}
		return 0
	}
	wt := wireType{Kind: uint8(t.Kind), Width: uint8(t.Width), Mutable: t.Mutable, Index: t.Index}
	switch t.Kind {
	case types.KindUniq, types.KindPtr, types.KindVec:
		wt.Elem = w.ty(t.Elem)
	case types.KindRptr:
		wt.Elem = w.ty(t.Elem)
		r := w.region(t.Region)
		wt.Region = &r
	case types.KindTuple:
		elems, _ := w.in.TupleElems(id)
		wt.Elems = w.tys(elems)
	case types.KindBareFn:
		sig, _ := w.in.FnSig(id)
		wt.Sig = &wireSig{
			Binder:   w.def(sig.Binder),
			Inputs:   w.tys(sig.Inputs),
			Output:   w.ty(sig.Output),
			Variadic: sig.Variadic,
			Style:    uint8(sig.Style),
			ABI:      uint8(sig.ABI),
		}
	case types.KindEnum, types.KindStruct:
		s, _ := w.in.AdtSubsts(id)
		ws := w.substs(s)
		wt.Substs = &ws
		d := w.def(t.Def)
		wt.Def = &d
	case types.KindParam, types.KindSelf:
		d := w.def(t.Def)
		wt.Def = &d
	}
	w.types = append(w.types, wt)
	ref, err := safecast.Conv[uint32](len(w.types))
	if err != nil {
		panic(fmt.Errorf("type table overflow: %w", err))
	}
	w.typeIndex[id] = ref
	return ref
}
