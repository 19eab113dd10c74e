// Package driver runs the collection pipeline for one crate: load the crate
// description, load extern crate metadata, resolve names, collect item
// types and optionally emit metadata for dependents.
package driver

import (
	"context"
	"errors"
	"fmt"

	"polyty/internal/ast"
	"polyty/internal/astfile"
	"polyty/internal/collect"
	"polyty/internal/config"
	"polyty/internal/diag"
	"polyty/internal/metadata"
	"polyty/internal/observ"
	"polyty/internal/source"
	"polyty/internal/symbols"
	"polyty/internal/tcx"
	"polyty/internal/trace"
	"polyty/internal/types"
)

// Options configure one pipeline run.
type Options struct {
	// Jobs is the number of items converted concurrently; <= 1 is sequential.
	Jobs           int
	MaxDiagnostics int
	Externs        []config.ExternCrate
	// EmitMetadata is where to write the crate metadata; empty skips it.
	EmitMetadata string
	// Timings adds an ObsTimings diagnostic with the phase report.
	Timings  bool
	Observer PhaseObserver
}

// Result holds everything a run produced. It is returned even when the run
// stopped early, so that diagnostics can still be rendered.
type Result struct {
	Files   *source.FileSet
	Strings *source.Interner
	Types   *types.Interner
	Bag     *diag.Bag
	Crate   *ast.Crate
	Symbols *symbols.Result
	Ctxt    *tcx.Ctxt
	Externs *metadata.Crates
	Timing  observ.Report
	// Err is the error that stopped the run, nil when every phase completed.
	Err error
}

// Failed reports whether the run stopped or recorded an error diagnostic.
func (r *Result) Failed() bool {
	return r.Err != nil || r.Bag.HasErrors()
}

// Collect runs the pipeline over the crate description at path.
func Collect(ctx context.Context, path string, opts Options) *Result {
	fs := source.NewFileSet()
	id, err := fs.Load(path)
	if err != nil {
		r := newResult(fs, opts)
		diag.ReportFatal(r.reporter(), diag.IOLoadFileError, source.NoSpan, "%v", err).Emit()
		r.Err = err
		return r
	}
	return CollectFile(ctx, fs, id, opts)
}

// CollectFile runs the pipeline over a file already registered in fs.
func CollectFile(ctx context.Context, fs *source.FileSet, id source.FileID, opts Options) *Result {
	ctx, span := trace.Start(ctx, trace.ScopeDriver, "collect")
	r := newResult(fs, opts)
	p := &pipeline{r: r, opts: opts, timer: observ.NewTimer()}
	r.Err = p.run(ctx, id)
	r.Bag.Sort()
	r.Timing = p.timer.Report()
	if opts.Timings {
		appendTimingDiagnostic(r.Bag, timingPayload{Kind: "collect", Path: fs.Get(id).Path, TotalMS: r.Timing.TotalMS, Phases: r.Timing.Phases})
	}
	span.End(errDetail(r.Err))
	return r
}

func newResult(fs *source.FileSet, opts Options) *Result {
	strs := source.NewInterner()
	in := types.NewInterner()
	return &Result{
		Files:   fs,
		Strings: strs,
		Types:   in,
		Bag:     diag.NewBag(opts.MaxDiagnostics),
		Externs: metadata.NewCrates(in, strs),
	}
}

func (r *Result) reporter() diag.Reporter {
	return diag.BagReporter{Bag: r.Bag}
}

type pipeline struct {
	r     *Result
	opts  Options
	timer *observ.Timer
	rep   diag.Reporter
}

func (p *pipeline) run(ctx context.Context, id source.FileID) error {
	// одинаковые ошибки из параллельных воркеров схлопываются
	p.rep = diag.NewDedupReporter(p.r.reporter())
	r := p.r

	err := p.phase(ctx, "load", func(context.Context) error {
		crate, err := astfile.Load(r.Files, id, astfile.Options{Strings: r.Strings, Reporter: p.rep})
		r.Crate = crate
		return err
	})
	if err != nil {
		return err
	}
	if err := p.phase(ctx, "externs", func(ctx context.Context) error {
		return p.loadExterns(ctx, p.opts.Externs)
	}); err != nil {
		return err
	}
	_ = p.phase(ctx, "resolve", func(context.Context) error {
		r.Symbols = symbols.ResolveCrate(r.Crate, symbols.Options{Strings: r.Strings, Reporter: p.rep, Externs: r.Externs})
		return nil
	})

	r.Ctxt = tcx.New(tcx.Config{
		Types:    r.Types,
		Strings:  r.Strings,
		Map:      ast.NewMap(r.Crate),
		Lang:     r.Symbols.Lang,
		Extern:   r.Externs,
		Reporter: p.rep,
	})
	if err := p.phase(ctx, "collect", func(ctx context.Context) error {
		return collect.New(r.Ctxt, r.Symbols).CollectItemTypes(ctx, r.Crate, collect.Options{Jobs: p.opts.Jobs})
	}); err != nil {
		return err
	}

	if p.opts.EmitMetadata == "" {
		return nil
	}
	// метаданные с ошибками никому не нужны
	if r.Bag.HasErrors() {
		return nil
	}
	return p.phase(ctx, "emit", func(context.Context) error {
		return p.emit(p.opts.EmitMetadata)
	})
}

// phase times fn and wraps it in a pass span.
func (p *pipeline) phase(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := trace.Start(ctx, trace.ScopePass, name)
	idx := p.timer.Begin(name)
	p.notify(PhaseEvent{Name: name, Status: PhaseStart})
	err := fn(ctx)
	span.End(errDetail(err))
	p.notify(PhaseEvent{Name: name, Status: PhaseEnd, Elapsed: p.timer.End(idx, errDetail(err))})
	return err
}

func (p *pipeline) notify(ev PhaseEvent) {
	if p.opts.Observer != nil {
		p.opts.Observer(ev)
	}
}

// Exports describes the collected crate for the metadata writer.
func (r *Result) Exports() *metadata.Exports {
	return &metadata.Exports{
		Crate:     r.Crate.Name,
		Ctxt:      r.Ctxt,
		Exports:   r.Symbols.Exports,
		Name:      r.Symbols.Name,
		CrateName: r.Externs.CrateName,
	}
}

func (p *pipeline) emit(path string) error {
	if err := metadata.WriteFile(path, p.r.Exports()); err != nil {
		diag.ReportFatal(p.rep, diag.IOMetadata, source.NoSpan, "cannot write metadata: %v", err).Emit()
		return fmt.Errorf("emit metadata: %w", err)
	}
	return nil
}

// IsFatal reports whether err stopped the run after a fatal diagnostic,
// as opposed to an I/O failure.
func IsFatal(err error) bool {
	var fe *collect.FatalError
	return errors.As(err, &fe)
}

func errDetail(err error) string {
	if err == nil {
		return ""
	}
	return "error: " + err.Error()
}
