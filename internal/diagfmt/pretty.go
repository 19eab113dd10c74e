package diagfmt

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"polyty/internal/diag"
	"polyty/internal/source"
)

type palette struct {
	sev    map[diag.Severity]*color.Color
	loc    *color.Color
	gutter *color.Color
	caret  *color.Color
	note   *color.Color
}

func newPalette(enabled bool) *palette {
	p := &palette{
		sev: map[diag.Severity]*color.Color{
			diag.SevInfo:    color.New(color.FgCyan),
			diag.SevWarning: color.New(color.FgYellow, color.Bold),
			diag.SevError:   color.New(color.FgRed, color.Bold),
			diag.SevFatal:   color.New(color.FgMagenta, color.Bold),
		},
		loc:    color.New(color.Bold),
		gutter: color.New(color.FgBlue),
		caret:  color.New(color.FgRed, color.Bold),
		note:   color.New(color.FgGreen),
	}
	all := []*color.Color{p.loc, p.gutter, p.caret, p.note}
	for _, c := range p.sev {
		all = append(all, c)
	}
	// глобальный color.NoColor не трогаем: решает вызывающий
	for _, c := range all {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Pretty форматирует диагностики в человекочитаемый вид.
// Идёт по bag.Items() (ожидается bag.Sort() заранее).
// Для каждого diag печатает:
// <path>:<line>:<col>: <SEV> <CODE>: <Message>
// затем контекст строки с подчёркиванием ^~~~ по Span, затем Notes.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	r := &prettyRenderer{w: w, fs: fs, opts: opts, pal: newPalette(opts.Color)}
	for _, d := range bag.Items() {
		r.diagnostic(d)
	}
	if n := bag.Dropped(); n > 0 {
		fmt.Fprintf(w, "... %d more diagnostics not shown\n", n)
	}
}

type prettyRenderer struct {
	w    io.Writer
	fs   *source.FileSet
	opts PrettyOpts
	pal  *palette
}

func (r *prettyRenderer) diagnostic(d diag.Diagnostic) {
	sev := r.pal.sev[d.Severity]
	if sev == nil {
		sev = r.pal.loc
	}
	if loc := r.location(d.Primary); loc != "" {
		r.pal.loc.Fprint(r.w, loc+": ")
	}
	sev.Fprintf(r.w, "%s %s", d.Severity, d.Code.ID())
	fmt.Fprintf(r.w, ": %s\n", d.Message)
	r.excerpt(d.Primary)

	if !r.opts.ShowNotes && d.Severity < diag.SevFatal {
		return
	}
	for _, n := range d.Notes {
		r.pal.note.Fprint(r.w, "  note")
		if loc := r.location(n.Span); loc != "" {
			fmt.Fprintf(r.w, " (%s)", loc)
		}
		fmt.Fprintf(r.w, ": %s\n", n.Msg)
	}
}

// location is `path:line:col`, or "" for spans outside any file.
func (r *prettyRenderer) location(sp source.Span) string {
	if sp.File == 0 || r.fs == nil {
		return ""
	}
	f := r.fs.Get(sp.File)
	if f == nil {
		return ""
	}
	start, _ := r.fs.Resolve(sp)
	return fmt.Sprintf("%s:%d:%d", formatPath(f.Path, r.opts.PathMode, r.opts.BaseDir), start.Line, start.Col)
}

// excerpt prints the primary line with its context and a caret underline.
func (r *prettyRenderer) excerpt(sp source.Span) {
	if sp.File == 0 || r.fs == nil || r.opts.Context < 0 {
		return
	}
	f := r.fs.Get(sp.File)
	if f == nil || len(f.Content) == 0 {
		return
	}
	start, end := r.fs.Resolve(sp)
	ctx := uint32(r.opts.Context)
	first := start.Line - min(ctx, start.Line-1)
	last := start.Line + ctx
	if n := uint32(len(f.LineIdx)) + 1; last > n {
		last = n
	}
	gw := len(strconv.FormatUint(uint64(last), 10))

	for ln := first; ln <= last; ln++ {
		text := expandTabs(f.GetLine(ln))
		if ln != start.Line && strings.TrimSpace(text) == "" {
			continue
		}
		r.pal.gutter.Fprintf(r.w, "%*d | ", gw, ln)
		fmt.Fprintln(r.w, r.clip(text))
		if ln != start.Line {
			continue
		}
		line := f.GetLine(ln)
		pad, width := caretColumns(line, start, end)
		r.pal.gutter.Fprintf(r.w, "%*s | ", gw, "")
		fmt.Fprint(r.w, strings.Repeat(" ", pad))
		r.pal.caret.Fprintln(r.w, "^"+strings.Repeat("~", width-1))
	}
}

// clip truncates a source line to the configured width.
func (r *prettyRenderer) clip(s string) string {
	if r.opts.Width == 0 || runewidth.StringWidth(s) <= int(r.opts.Width) {
		return s
	}
	return runewidth.Truncate(s, int(r.opts.Width), "...")
}

// caretColumns returns the display offset of the span start and the display
// width of the underlined text on the start line, at least one.
func caretColumns(line string, start, end source.LineCol) (pad, width int) {
	from := max(min(int(start.Col)-1, len(line)), 0)
	to := len(line)
	// span на несколько строк подчёркиваем до конца первой
	if end.Line == start.Line && int(end.Col)-1 < to && int(end.Col)-1 >= from {
		to = int(end.Col) - 1
	}
	pad = runewidth.StringWidth(expandTabs(line[:from]))
	width = max(runewidth.StringWidth(expandTabs(line[from:to])), 1)
	return pad, width
}

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", "    ")
}
