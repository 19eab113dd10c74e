package symbols

import (
	"polyty/internal/ast"
	"polyty/internal/source"
)

// EarlyBoundLifetimes returns, in declaration order, the lifetimes of g that
// appear in the bounds of its type parameters. Such lifetimes must be
// substituted when the fn is referenced; the rest are bound by the signature.
func EarlyBoundLifetimes(g *ast.Generics) []ast.Lifetime {
	if g == nil || len(g.Lifetimes) == 0 {
		return nil
	}
	used := make(map[source.StringID]bool)
	for _, p := range g.TyParams {
		for _, b := range p.Bounds {
			if b.Kind == ast.BoundTrait && b.Trait != nil {
				pathLifetimes(&b.Trait.Path, used)
			}
		}
	}
	var out []ast.Lifetime
	for _, lt := range g.Lifetimes {
		if used[lt.Name] {
			out = append(out, lt)
		}
	}
	return out
}

func pathLifetimes(p *ast.Path, used map[source.StringID]bool) {
	for _, seg := range p.Segments {
		for _, lt := range seg.Lifetimes {
			used[lt.Name] = true
		}
		for _, t := range seg.Types {
			tyLifetimes(t, used)
		}
	}
}

func tyLifetimes(t *ast.Ty, used map[source.StringID]bool) {
	if t == nil {
		return
	}
	switch t.Kind {
	case ast.TyPath:
		pathLifetimes(t.Path, used)
	case ast.TyRptr:
		if t.Lifetime != nil {
			used[t.Lifetime.Name] = true
		}
		tyLifetimes(t.Elem, used)
	case ast.TyUniq, ast.TyPtr, ast.TyVec:
		tyLifetimes(t.Elem, used)
	case ast.TyTup:
		for _, e := range t.Elems {
			tyLifetimes(e, used)
		}
	case ast.TyBareFn:
		if t.Fn.Decl == nil {
			return
		}
		for _, a := range t.Fn.Decl.Inputs {
			tyLifetimes(a.Ty, used)
		}
		tyLifetimes(t.Fn.Decl.Output, used)
	}
}
