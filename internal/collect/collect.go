// Package collect computes the type scheme of every item signature in a
// crate and records it in the shared type context. Items may be visited in
// any order: whatever a signature needs is computed on demand and memoized.
package collect

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"polyty/internal/ast"
	"polyty/internal/diag"
	"polyty/internal/lang"
	"polyty/internal/source"
	"polyty/internal/symbols"
	"polyty/internal/tcx"
	"polyty/internal/trace"
	"polyty/internal/types"
)

// Resolver answers name-resolution questions about the crate being
// collected. *symbols.Result implements it.
type Resolver interface {
	ResolveReference(id ast.NodeID) (symbols.Def, bool)
	ResolveLifetime(id ast.NodeID) (symbols.NamedRegion, bool)
	EarlyBoundLifetimes(g *ast.Generics) []ast.Lifetime
	Name(def ast.DefID) string
}

// Options tune a collection run.
type Options struct {
	// Jobs bounds the number of items converted concurrently; <= 1 converts
	// sequentially in crate order.
	Jobs int
}

// FatalError aborts collection. The diagnostic has already been reported
// when a FatalError is returned.
type FatalError struct {
	Code diag.Code
	Span source.Span
	Msg  string
	Err  error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code.ID(), e.Msg)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Collector runs the collection pass over one crate.
type Collector struct {
	cx  *tcx.Ctxt
	res Resolver

	selfName source.StringID
}

func New(cx *tcx.Ctxt, res Resolver) *Collector {
	return &Collector{
		cx:       cx,
		res:      res,
		selfName: cx.Strings.Intern("Self"),
	}
}

// Ctxt returns the context the collector writes into.
func (c *Collector) Ctxt() *tcx.Ctxt { return c.cx }

// CollectItemTypes converts every item and foreign item of the crate. The
// first fatal error stops the run; non-fatal problems are only reported.
func (c *Collector) CollectItemTypes(ctx context.Context, crate *ast.Crate, opts Options) error {
	ctx, span := trace.Start(ctx, trace.ScopePass, "collect")
	units := ast.Units(crate)
	span.WithExtra("units", fmt.Sprint(len(units)))

	err := c.collectIntrinsicTypes(ctx, crate.Span)
	if err == nil {
		err = c.convertUnits(ctx, units, opts.Jobs)
	}
	span.End(errDetail(err))
	return err
}

func (c *Collector) convertUnits(ctx context.Context, units []ast.Unit, jobs int) error {
	if jobs <= 1 {
		for _, u := range units {
			if err := c.convertUnit(ctx, u); err != nil {
				return err
			}
		}
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for _, u := range units {
		g.Go(func() error {
			return c.convertUnit(gctx, u)
		})
	}
	return g.Wait()
}

func (c *Collector) convertUnit(ctx context.Context, u ast.Unit) error {
	if u.Foreign != nil {
		return c.guard(u.Foreign.Span, func() error { return c.convertForeign(ctx, u.Foreign, u.ABI) })
	}
	return c.guard(u.Item.Span, func() error { return c.convertItem(ctx, u.Item) })
}

// guard turns a substitution panic raised by fn into a reported internal
// error. Other panics are not ours to handle.
func (c *Collector) guard(sp source.Span, fn func() error) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		se, ok := r.(*types.SubstError)
		if !ok {
			panic(r)
		}
		err = c.fatalWrap(se, sp, diag.CollectInternal, "internal error: %v", se)
	}()
	return fn()
}

// collectIntrinsicTypes records the types the compiler itself refers to by
// lang item name. Absent lang items are skipped.
func (c *Collector) collectIntrinsicTypes(ctx context.Context, sp source.Span) error {
	for _, name := range lang.Intrinsics {
		def, ok := c.cx.Lang.Get(name)
		if !ok {
			continue
		}
		tpt, err := c.getItemType(ctx, def, sp)
		if err != nil {
			return err
		}
		if err := c.cx.Intrinsics.Insert(def, tpt.Ty); err != nil {
			return c.lift(sp, err)
		}
	}
	return nil
}

// query runs fn at most once for key. Errors are lifted inside the memoized
// computation so every later caller sees the same, already reported error.
func (c *Collector) query(ctx context.Context, key string, sp source.Span, fn func(context.Context) error) error {
	err := c.cx.Queries.Do(ctx, key, func(ctx context.Context) error {
		ctx, span := trace.Start(ctx, trace.ScopeQuery, key)
		// паника внутри singleflight уронит всех ожидающих, ловим здесь
		err := c.lift(sp, c.guard(sp, func() error { return fn(ctx) }))
		span.End(errDetail(err))
		return err
	})
	return c.lift(sp, err)
}

// lift turns engine and table failures into reported fatal errors.
// Cancellation passes through untouched.
func (c *Collector) lift(sp source.Span, err error) error {
	if err == nil {
		return nil
	}
	var fe *FatalError
	if errors.As(err, &fe) {
		return err
	}
	var ce *tcx.CycleError
	if errors.As(err, &ce) {
		return c.fatalWrap(err, sp, diag.CollectCycle, "cycle detected when computing %s", c.describeCycle(ce.Cycle))
	}
	var conflict *tcx.ConflictError
	if errors.As(err, &conflict) {
		return c.fatalWrap(err, sp, diag.CollectInternal,
			"internal error: conflicting entry for %s in %s", c.describeKey(conflict.Key), conflict.Table)
	}
	return err
}

func (c *Collector) fatal(sp source.Span, code diag.Code, format string, args ...any) error {
	return c.fatalWrap(nil, sp, code, format, args...)
}

func (c *Collector) fatalWrap(cause error, sp source.Span, code diag.Code, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	diag.ReportFatal(c.cx.Reporter, code, sp, "%s", msg).Emit()
	return &FatalError{Code: code, Span: sp, Msg: msg, Err: cause}
}

// bug reports a broken internal invariant.
func (c *Collector) bug(sp source.Span, format string, args ...any) error {
	return c.fatal(sp, diag.CollectInternal, "internal error: "+format, args...)
}

func (c *Collector) errorf(sp source.Span, code diag.Code, format string, args ...any) {
	diag.ReportError(c.cx.Reporter, code, sp, format, args...).Emit()
}

func (c *Collector) str(id source.StringID) string {
	s, _ := c.cx.Strings.Lookup(id)
	return s
}

func (c *Collector) itemName(it *ast.Item) string {
	if n := c.res.Name(ast.LocalDef(it.ID)); n != "" {
		return n
	}
	return c.str(it.Ident.Name)
}

func (c *Collector) pathString(p *ast.Path) string {
	parts := make([]string, len(p.Segments))
	for i, seg := range p.Segments {
		parts[i] = c.str(seg.Ident.Name)
	}
	return strings.Join(parts, "::")
}

// writeTy records the type of a signature node. Later refinements of the
// same node replace earlier ones.
func (c *Collector) writeTy(id ast.NodeID, t types.TypeID) {
	c.cx.NodeTypes.Overwrite(id, t)
}

func errDetail(err error) string {
	if err == nil {
		return ""
	}
	return "error"
}

// Query keys. Every key names the def it computes so cycles can be reported
// in source terms.
const (
	keyType    = "type"
	keyTrait   = "trait"
	keyConvert = "convert"
	keyParam   = "param"
)

func queryKey(kind string, def ast.DefID) string {
	return kind + "@" + def.String()
}

func (c *Collector) describeKey(key string) string {
	kind, ref, ok := strings.Cut(key, "@")
	if !ok {
		return key
	}
	def, err := ast.ParseDefID(ref)
	if err != nil {
		return key
	}
	name := c.res.Name(def)
	if name == "" {
		name = def.String()
	}
	switch kind {
	case keyType:
		return "the type of `" + name + "`"
	case keyTrait:
		return "the definition of trait `" + name + "`"
	case keyConvert:
		return "the signature of `" + name + "`"
	case keyParam:
		return "the bounds of `" + name + "`"
	default:
		return name
	}
}

func (c *Collector) describeCycle(keys []string) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = c.describeKey(k)
	}
	return strings.Join(parts, ", which requires ")
}
