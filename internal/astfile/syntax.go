package astfile

import (
	"fmt"
	"strings"

	"fortio.org/safecast"

	"polyty/internal/ast"
	"polyty/internal/source"
)

// syntaxError carries the offset of the offending token inside the snippet.
type syntaxError struct {
	off int
	msg string
}

func (e *syntaxError) Error() string { return e.msg }

// parser reads one scalar of surface syntax: a type, a signature, a generic
// parameter, a trait reference or an impl header.
type parser struct {
	b    *ast.Builder
	toks []token
	pos  int
	file source.FileID
	base uint32 // offset of the snippet inside the file
}

func newParser(b *ast.Builder, src string, at source.Span) (*parser, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	return &parser{b: b, toks: toks, file: at.File, base: at.Start}, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) peekAt(n int) token {
	if p.pos+n < len(p.toks) {
		return p.toks[p.pos+n]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) is(text string) bool {
	t := p.peek()
	return (t.kind == tokPunct || t.kind == tokIdent) && t.text == text
}

func (p *parser) eat(text string) bool {
	if p.is(text) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return &syntaxError{off: t.off, msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(text string) error {
	if !p.eat(text) {
		return p.errorf(p.peek(), "expected `%s`, found %s", text, p.peek())
	}
	return nil
}

func (p *parser) expectEOF() error {
	if t := p.peek(); t.kind != tokEOF {
		return p.errorf(t, "unexpected %s", t)
	}
	return nil
}

func (p *parser) span(t token) source.Span {
	n := len(t.text)
	if t.kind == tokString {
		n += 2
	}
	return p.spanRange(t.off, t.off+n)
}

func (p *parser) spanRange(from, to int) source.Span {
	lo, err := safecast.Conv[uint32](from)
	if err != nil {
		lo = 0
	}
	hi, err := safecast.Conv[uint32](to)
	if err != nil {
		hi = lo
	}
	return source.Span{File: p.file, Start: p.base + lo, End: p.base + hi}
}

// at points the builder at the token about to be consumed.
func (p *parser) at(t token) *ast.Builder { return p.b.At(p.span(t)) }

// Types ----------------------------------------------------------------------

func (p *parser) parseTy() (*ast.Ty, error) {
	t := p.peek()
	switch {
	case t.kind == tokPunct && t.text == "!":
		p.next()
		return p.at(t).BotTy(), nil
	case t.kind == tokPunct && t.text == "_":
		p.next()
		return p.at(t).InferTy(), nil
	case t.kind == tokPunct && t.text == "&":
		p.next()
		lt := ""
		if p.peek().kind == tokLifetime {
			lt = p.next().text
		}
		mut := p.eat("mut")
		elem, err := p.parseTy()
		if err != nil {
			return nil, err
		}
		return p.at(t).Ref(lt, mut, elem), nil
	case t.kind == tokPunct && t.text == "~":
		p.next()
		elem, err := p.parseTy()
		if err != nil {
			return nil, err
		}
		return p.at(t).Uniq(elem), nil
	case t.kind == tokPunct && t.text == "*":
		p.next()
		mut := p.eat("mut")
		elem, err := p.parseTy()
		if err != nil {
			return nil, err
		}
		return p.at(t).Ptr(mut, elem), nil
	case t.kind == tokPunct && t.text == "[":
		p.next()
		elem, err := p.parseTy()
		if err != nil {
			return nil, err
		}
		if err := p.expect("]"); err != nil {
			return nil, err
		}
		return p.at(t).Vec(elem), nil
	case t.kind == tokPunct && t.text == "(":
		return p.parseTuple()
	case t.kind == tokIdent && (t.text == "fn" || t.text == "unsafe" || t.text == "extern"):
		return p.parseBareFn()
	case t.kind == tokIdent:
		name, lts, args, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		return p.at(t).PathTyLt(name, lts, args...), nil
	default:
		return nil, p.errorf(t, "expected a type, found %s", t)
	}
}

func (p *parser) parseTuple() (*ast.Ty, error) {
	open := p.next()
	if p.eat(")") {
		return p.at(open).NilTy(), nil
	}
	var elems []*ast.Ty
	trailing := false
	for {
		el, err := p.parseTy()
		if err != nil {
			return nil, err
		}
		elems = append(elems, el)
		if !p.eat(",") {
			trailing = false
			break
		}
		trailing = true
		if p.is(")") {
			break
		}
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	if len(elems) == 1 && !trailing {
		// (T) is just T
		return elems[0], nil
	}
	return p.at(open).Tup(elems...), nil
}

// parsePath reads `a::b::C<'a, T>`; arguments attach to the last segment.
func (p *parser) parsePath() (string, []string, []*ast.Ty, error) {
	var parts []string
	for {
		t := p.next()
		if t.kind != tokIdent {
			return "", nil, nil, p.errorf(t, "expected a name, found %s", t)
		}
		parts = append(parts, t.text)
		if !p.eat("::") {
			break
		}
	}
	var lts []string
	var args []*ast.Ty
	if p.eat("<") {
		for !p.is(">") {
			if p.peek().kind == tokLifetime {
				lts = append(lts, p.next().text)
			} else {
				ty, err := p.parseTy()
				if err != nil {
					return "", nil, nil, err
				}
				args = append(args, ty)
			}
			if !p.eat(",") {
				break
			}
		}
		if err := p.expect(">"); err != nil {
			return "", nil, nil, err
		}
	}
	return strings.Join(parts, "::"), lts, args, nil
}

func (p *parser) parseBareFn() (*ast.Ty, error) {
	start := p.peek()
	style, abi, err := p.parseFnQualifiers()
	if err != nil {
		return nil, err
	}
	if err := p.expect("fn"); err != nil {
		return nil, err
	}
	var lts []string
	if p.eat("<") {
		for !p.is(">") {
			t := p.next()
			if t.kind != tokLifetime {
				return nil, p.errorf(t, "expected a lifetime, found %s", t)
			}
			lts = append(lts, t.text)
			if !p.eat(",") {
				break
			}
		}
		if err := p.expect(">"); err != nil {
			return nil, err
		}
	}
	decl, _, err := p.parseDecl(false, true)
	if err != nil {
		return nil, err
	}
	ty := p.at(start).BareFn(lts, decl)
	ty.Fn.Style = style
	ty.Fn.ABI = abi
	return ty, nil
}

func (p *parser) parseFnQualifiers() (ast.FnStyle, ast.ABI, error) {
	style := ast.NormalFn
	abi := ast.ABIRust
	if p.eat("unsafe") {
		style = ast.UnsafeFn
	}
	if p.is("extern") {
		p.next()
		abi = ast.ABIC
		if t := p.peek(); t.kind == tokString {
			p.next()
			a, ok := ast.ParseABI(t.text)
			if !ok {
				return style, abi, p.errorf(t, "unknown ABI %q", t.text)
			}
			abi = a
		}
	}
	return style, abi, nil
}

// Signatures -----------------------------------------------------------------

// parseDecl reads `(args) -> ret`. With allowSelf the first argument may be
// an explicit self; otherwise the receiver is static. In a bare fn type
// (bare) argument names are optional.
func (p *parser) parseDecl(allowSelf, bare bool) (*ast.FnDecl, ast.ExplicitSelf, error) {
	self := ast.ExplicitSelf{Kind: ast.SelfStatic, Span: p.span(p.peek())}
	if err := p.expect("("); err != nil {
		return nil, self, err
	}
	decl := &ast.FnDecl{}
	first := true
	for !p.is(")") {
		if p.eat("...") {
			decl.Variadic = true
			break
		}
		if first && allowSelf {
			if es, ok := p.parseSelf(); ok {
				self = es
				first = false
				if !p.eat(",") {
					break
				}
				continue
			}
		}
		first = false
		arg, err := p.parseArg(bare)
		if err != nil {
			return nil, self, err
		}
		decl.Inputs = append(decl.Inputs, arg)
		if !p.eat(",") {
			break
		}
	}
	if err := p.expect(")"); err != nil {
		return nil, self, err
	}
	if p.eat("->") {
		out, err := p.parseTy()
		if err != nil {
			return nil, self, err
		}
		decl.Output = out
	}
	return decl, self, nil
}

// parseSelf recognises `self`, `~self`, `&self`, `&'a self`, `&mut self` and
// `&'a mut self`, consuming nothing when the argument is something else.
func (p *parser) parseSelf() (ast.ExplicitSelf, bool) {
	t := p.peek()
	switch {
	case t.kind == tokIdent && t.text == "self" && !p.peekAt(1).isPunct(":"):
		p.next()
		return p.at(t).SelfValue(), true
	case t.kind == tokPunct && t.text == "~" && p.peekAt(1).isIdent("self"):
		p.pos += 2
		return p.at(t).SelfUniq(), true
	case t.kind == tokPunct && t.text == "&":
		n := 1
		lt := ""
		if p.peekAt(n).kind == tokLifetime {
			lt = p.peekAt(n).text
			n++
		}
		mut := false
		if p.peekAt(n).isIdent("mut") {
			mut = true
			n++
		}
		if !p.peekAt(n).isIdent("self") {
			return ast.ExplicitSelf{}, false
		}
		p.pos += n + 1
		return p.at(t).SelfRef(lt, mut), true
	}
	return ast.ExplicitSelf{}, false
}

func (t token) isIdent(s string) bool { return t.kind == tokIdent && t.text == s }
func (t token) isPunct(s string) bool { return t.kind == tokPunct && t.text == s }

// parseArg reads `pat: T`. An identifier or `_` pattern is kept as such;
// anything else is recorded as a complex pattern. With optionalPat a lone
// type (`fn(int)`) is accepted as an argument with a wildcard pattern.
func (p *parser) parseArg(optionalPat bool) (ast.Arg, error) {
	start := p.peek()
	pat := ast.PatOther
	switch {
	case start.kind == tokIdent && p.peekAt(1).isPunct(":"):
		p.next()
		pat = ast.PatIdent
	case start.isPunct("_") && p.peekAt(1).isPunct(":"):
		p.next()
		pat = ast.PatWild
	default:
		colon := p.patternEnd()
		if colon < 0 {
			if optionalPat {
				ty, err := p.parseTy()
				if err != nil {
					return ast.Arg{}, err
				}
				return p.b.At(ty.Span).Arg(ty, ast.PatWild), nil
			}
			return ast.Arg{}, p.errorf(p.peekAt(-colon-1), "expected `:` after argument pattern")
		}
		p.pos = colon
	}
	patEnd := p.peek().off
	if err := p.expect(":"); err != nil {
		return ast.Arg{}, err
	}
	ty, err := p.parseTy()
	if err != nil {
		return ast.Arg{}, err
	}
	arg := p.b.At(p.spanRange(start.off, patEnd)).Arg(ty, pat)
	return arg, nil
}

// patternEnd looks ahead for the `:` closing an argument pattern and returns
// its token index. The scan stops at a top-level `,` or at the `)` closing
// the argument list; then it returns -(n+1), n being the offset of the
// stopping token from the current position.
func (p *parser) patternEnd() int {
	depth := 0
	for i := p.pos; ; i++ {
		t := p.toks[i]
		if t.kind == tokEOF {
			return -(i - p.pos + 1)
		}
		if depth == 0 && t.isPunct(":") {
			return i
		}
		if depth == 0 && t.isPunct(",") {
			return -(i - p.pos + 1)
		}
		switch t.text {
		case "(", "[", "<":
			depth++
		case ")", "]", ">":
			depth--
		}
		if depth < 0 {
			return -(i - p.pos + 1)
		}
	}
}

// Generics and trait references ----------------------------------------------

// parseTraitRef reads `a::Tr<'a, T>`.
func (p *parser) parseTraitRef() (ast.TraitRef, error) {
	t := p.peek()
	name, lts, args, err := p.parsePath()
	if err != nil {
		return ast.TraitRef{}, err
	}
	return p.at(t).TraitRefLt(name, lts, args...), nil
}

// genericParam is one entry of a generics list: a lifetime or a type parameter.
type genericParam struct {
	lifetime string
	param    ast.TyParam
}

// parseGenericParam reads `'a` or `T: Bound + 'static = Default`.
func (p *parser) parseGenericParam() (genericParam, error) {
	t := p.next()
	if t.kind == tokLifetime {
		return genericParam{lifetime: t.text}, p.expectEOF()
	}
	if t.kind != tokIdent {
		return genericParam{}, p.errorf(t, "expected a type parameter name, found %s", t)
	}
	var bounds []ast.TyParamBound
	if p.eat(":") {
		for {
			bt := p.peek()
			if bt.kind == tokLifetime {
				p.next()
				if bt.text != "'static" {
					return genericParam{}, p.errorf(bt, "only `'static` is allowed as a lifetime bound")
				}
				bounds = append(bounds, p.at(bt).StaticBound())
			} else {
				tr, err := p.parseTraitRef()
				if err != nil {
					return genericParam{}, err
				}
				bounds = append(bounds, ast.TyParamBound{Kind: ast.BoundTrait, Trait: &tr, Span: p.span(bt)})
			}
			if !p.eat("+") {
				break
			}
		}
	}
	var def *ast.Ty
	if p.eat("=") {
		d, err := p.parseTy()
		if err != nil {
			return genericParam{}, err
		}
		def = d
	}
	if err := p.expectEOF(); err != nil {
		return genericParam{}, err
	}
	return genericParam{param: p.at(t).TyParamDefault(t.text, def, bounds...)}, nil
}

// parseImplHeader reads `Tr<T> for Ty` or just `Ty`.
func (p *parser) parseImplHeader() (*ast.TraitRef, *ast.Ty, error) {
	start := p.pos
	if p.peek().kind == tokIdent {
		tr, err := p.parseTraitRef()
		if err == nil && p.eat("for") {
			self, err := p.parseTy()
			if err != nil {
				return nil, nil, err
			}
			return &tr, self, p.expectEOF()
		}
		p.pos = start
	}
	self, err := p.parseTy()
	if err != nil {
		return nil, nil, err
	}
	return nil, self, p.expectEOF()
}
