// Package astfile reads a crate description: a YAML document listing the
// item signatures of one crate, with types and signatures written in a
// small surface syntax.
//
//	crate: demo
//	items:
//	  - struct: Pair
//	    generics: [T, "U: Clone = int"]
//	    fields: {a: T, b: "&'static U"}
//	  - fn: first
//	    generics: [T]
//	    sig: "(p: Pair<T>) -> T"
//	  - trait: Show
//	    methods:
//	      - fn: show
//	        sig: "(&self) -> str"
//
// Scalars containing `: `, or starting with `&`, `*`, `!`, `[` or `~`, must
// be quoted so that YAML keeps them as strings.
package astfile

import (
	"errors"
	"fmt"
	"strings"

	"fortio.org/safecast"
	"gopkg.in/yaml.v3"

	"polyty/internal/ast"
	"polyty/internal/diag"
	"polyty/internal/source"
)

type Options struct {
	Strings  *source.Interner
	Reporter diag.Reporter
}

// LoadFile reads and parses the crate description at path.
func LoadFile(fs *source.FileSet, path string, opts Options) (*ast.Crate, error) {
	id, err := fs.Load(path)
	if err != nil {
		return nil, err
	}
	return Load(fs, id, opts)
}

// Load parses a crate description already registered in fs. Malformed
// entries are reported and skipped; an error is returned only when the file
// is not a YAML crate document at all.
func Load(fs *source.FileSet, id source.FileID, opts Options) (*ast.Crate, error) {
	f := fs.Get(id)
	if f == nil {
		return nil, fmt.Errorf("astfile: unknown file %d", id)
	}
	if opts.Reporter == nil {
		opts.Reporter = diag.NopReporter{}
	}
	if opts.Strings == nil {
		opts.Strings = source.NewInterner()
	}
	l := &loader{b: ast.NewBuilder(opts.Strings), file: f, rep: opts.Reporter}

	var doc yaml.Node
	if err := yaml.Unmarshal(f.Content, &doc); err != nil {
		diag.ReportError(l.rep, diag.InpBadDocument, source.Span{File: id}, "invalid crate description: %v", err).Emit()
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		diag.ReportError(l.rep, diag.InpBadDocument, source.Span{File: id}, "crate description must be a mapping").Emit()
		return nil, fmt.Errorf("%s: not a crate description", f.Path)
	}
	root := l.fields(doc.Content[0], "crate", "items")

	name := strings.TrimSuffix(baseName(f.Path), ".yaml")
	if n, ok := root["crate"]; ok {
		name = l.str(n)
	}
	var items []*ast.Item
	if n, ok := root["items"]; ok {
		items = l.items(n)
	}
	crate := l.b.At(source.Span{File: id}).Crate(name, items...)
	crate.File = id
	return crate, nil
}

func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}

type loader struct {
	b    *ast.Builder
	file *source.File
	rep  diag.Reporter
}

// Positions ------------------------------------------------------------------

func (l *loader) pos(n *yaml.Node) uint32 {
	line, err := safecast.Conv[uint32](n.Line)
	if err != nil {
		return 0
	}
	col, err := safecast.Conv[uint32](n.Column)
	if err != nil {
		return 0
	}
	return l.file.Offset(source.LineCol{Line: line, Col: col})
}

func (l *loader) span(n *yaml.Node) source.Span {
	start := l.pos(n)
	sp := source.Span{File: l.file.ID, Start: start, End: start}
	if n.Kind == yaml.ScalarNode {
		width, err := safecast.Conv[uint32](len(n.Value))
		if err == nil {
			sp.End = start + width
			if quoted(n) {
				sp.End += 2
			}
		}
	}
	return sp
}

// valueSpan is where the text of a scalar starts, past an opening quote.
func (l *loader) valueSpan(n *yaml.Node) source.Span {
	sp := l.span(n)
	if quoted(n) {
		sp.Start++
		sp.End--
	}
	return sp
}

func quoted(n *yaml.Node) bool {
	return n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0
}

func (l *loader) errorf(n *yaml.Node, code diag.Code, format string, args ...any) {
	diag.ReportError(l.rep, code, l.span(n), format, args...).Emit()
}

// Node helpers ---------------------------------------------------------------

// fields returns the values of a mapping by key, reporting keys outside allowed.
func (l *loader) fields(n *yaml.Node, allowed ...string) map[string]*yaml.Node {
	out := make(map[string]*yaml.Node)
	if n.Kind != yaml.MappingNode {
		l.errorf(n, diag.InpBadDocument, "expected a mapping")
		return out
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		known := false
		for _, a := range allowed {
			if a == k.Value {
				known = true
				break
			}
		}
		if !known {
			l.errorf(k, diag.InpBadDocument, "unknown key `%s`", k.Value)
			continue
		}
		if _, dup := out[k.Value]; dup {
			l.errorf(k, diag.InpBadDocument, "duplicate key `%s`", k.Value)
			continue
		}
		out[k.Value] = v
	}
	return out
}

func (l *loader) str(n *yaml.Node) string {
	if n.Kind != yaml.ScalarNode {
		l.errorf(n, diag.InpBadDocument, "expected a string")
		return ""
	}
	return n.Value
}

func (l *loader) flag(n *yaml.Node) bool {
	var v bool
	if err := n.Decode(&v); err != nil {
		l.errorf(n, diag.InpBadDocument, "expected true or false")
		return false
	}
	return v
}

func (l *loader) seq(n *yaml.Node) []*yaml.Node {
	if n.Kind != yaml.SequenceNode {
		l.errorf(n, diag.InpBadDocument, "expected a list")
		return nil
	}
	return n.Content
}

func (l *loader) vis(n *yaml.Node) ast.Visibility {
	switch l.str(n) {
	case "pub", "public":
		return ast.VisPublic
	case "priv", "private":
		return ast.VisPrivate
	case "", "inherited":
		return ast.VisInherited
	default:
		l.errorf(n, diag.InpBadVisibility, "unknown visibility `%s`", n.Value)
		return ast.VisInherited
	}
}

// Surface syntax -------------------------------------------------------------

// parse runs fn over the text of a scalar, reporting syntax errors with code.
func (l *loader) parse(n *yaml.Node, code diag.Code, fn func(p *parser) error) bool {
	text := l.str(n)
	at := l.valueSpan(n)
	p, err := newParser(l.b, text, at)
	if err == nil {
		err = fn(p)
	}
	if err != nil {
		sp := at
		var se *syntaxError
		if errors.As(err, &se) && p != nil {
			sp = p.spanRange(se.off, se.off+1)
		}
		diag.ReportError(l.rep, code, sp, "%s in `%s`", err.Error(), text).Emit()
		return false
	}
	return true
}

func (l *loader) ty(n *yaml.Node) *ast.Ty {
	var ty *ast.Ty
	ok := l.parse(n, diag.InpBadType, func(p *parser) error {
		t, err := p.parseTy()
		if err != nil {
			return err
		}
		ty = t
		return p.expectEOF()
	})
	if !ok {
		// уже сообщили; дальше идёт unit, чтобы не плодить ошибки
		return l.b.At(l.span(n)).NilTy()
	}
	return ty
}

func (l *loader) generics(n *yaml.Node) ast.Generics {
	var g ast.Generics
	if n == nil {
		return g
	}
	for _, e := range l.seq(n) {
		text := e
		if e.Kind == yaml.MappingNode && len(e.Content) == 2 {
			// `- T: Clone` parses as a one-entry mapping
			k, v := e.Content[0], e.Content[1]
			text = &yaml.Node{Kind: yaml.ScalarNode, Value: k.Value + ": " + v.Value, Line: k.Line, Column: k.Column}
		}
		var gp genericParam
		if !l.parse(text, diag.InpBadGenerics, func(p *parser) error {
			var err error
			gp, err = p.parseGenericParam()
			return err
		}) {
			continue
		}
		if gp.lifetime != "" {
			g.Lifetimes = append(g.Lifetimes, l.b.At(l.valueSpan(text)).Lifetime(gp.lifetime))
			continue
		}
		g.TyParams = append(g.TyParams, gp.param)
	}
	return g
}

func (l *loader) decl(n *yaml.Node, allowSelf bool) (*ast.FnDecl, ast.ExplicitSelf) {
	var decl *ast.FnDecl
	var self ast.ExplicitSelf
	ok := l.parse(n, diag.InpBadSignature, func(p *parser) error {
		var err error
		decl, self, err = p.parseDecl(allowSelf, false)
		if err != nil {
			return err
		}
		return p.expectEOF()
	})
	if !ok {
		return &ast.FnDecl{}, ast.ExplicitSelf{Kind: ast.SelfStatic, Span: l.span(n)}
	}
	return decl, self
}

func (l *loader) traitRef(n *yaml.Node) (ast.TraitRef, bool) {
	var tr ast.TraitRef
	ok := l.parse(n, diag.InpBadType, func(p *parser) error {
		var err error
		tr, err = p.parseTraitRef()
		if err != nil {
			return err
		}
		return p.expectEOF()
	})
	return tr, ok
}

func (l *loader) abi(n *yaml.Node) ast.ABI {
	if n == nil {
		return ast.ABIRust
	}
	a, ok := ast.ParseABI(l.str(n))
	if !ok {
		l.errorf(n, diag.InpBadSignature, "unknown ABI `%s`", n.Value)
	}
	return a
}
