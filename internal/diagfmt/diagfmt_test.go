package diagfmt

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"polyty/internal/diag"
	"polyty/internal/source"
)

func sample() (*source.FileSet, *diag.Bag) {
	fs := source.NewFileSet()
	id := fs.AddVirtual("/home/user/project/src/demo.yaml", []byte("items:\n  - struct: S\n    fields: {a: int, a: int}\n"))
	bag := diag.NewBag(10)
	// второе `a` в третьей строке
	bag.Add(diag.New(diag.SevError, diag.CollectDuplicateField, source.Span{File: id, Start: 42, End: 43}, "field `a` is already declared").
		WithNote(source.Span{File: id, Start: 34, End: 35}, "previous declaration of `a`"))
	bag.Add(diag.New(diag.SevFatal, diag.MetaVersion, source.NoSpan, "extern crate `core`: format 2.0.0"))
	return fs, bag
}

func TestPrettyRendersExcerpt(t *testing.T) {
	fs, bag := sample()
	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{Context: 1, PathMode: PathModeBasename, ShowNotes: true})
	out := buf.String()

	for _, want := range []string{
		"demo.yaml:3:22: ERROR COL4001: field `a` is already declared",
		"2 |   - struct: S",
		"3 |     fields: {a: int, a: int}",
		"  | " + strings.Repeat(" ", 21) + "^\n",
		"note (demo.yaml:3:14): previous declaration of `a`",
		"FATAL META5001: extern crate `core`: format 2.0.0",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output misses %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("colors without Color:\n%q", out)
	}
}

func TestPrettyColorAndNotes(t *testing.T) {
	fs, bag := sample()
	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{Color: true})
	out := buf.String()
	if !strings.Contains(out, "\x1b[") {
		t.Fatalf("expected escape codes:\n%q", out)
	}
	if strings.Contains(out, "previous declaration") {
		t.Fatalf("notes of an error shown without ShowNotes")
	}
}

func TestPathModes(t *testing.T) {
	cases := []struct {
		mode PathMode
		base string
		want string
	}{
		{PathModeRelative, "/home/user/project", "src/demo.yaml"},
		{PathModeBasename, "", "demo.yaml"},
		{PathModeAuto, "", "/home/user/project/src/demo.yaml"},
		{PathModeRelative, "/elsewhere", "/home/user/project/src/demo.yaml"},
	}
	for _, tc := range cases {
		if got := formatPath("/home/user/project/src/demo.yaml", tc.mode, tc.base); got != tc.want {
			t.Fatalf("mode %d base %q: %q, want %q", tc.mode, tc.base, got, tc.want)
		}
	}
	if got := formatPath("/very/long/absolute/path/to/some/nested/directory/file.yaml", PathModeAuto, ""); got != "file.yaml" {
		t.Fatalf("auto long path = %q", got)
	}
}

func TestCaretColumnsWideRunes(t *testing.T) {
	line := "名前: int"
	pad, width := caretColumns(line, source.LineCol{Line: 1, Col: 1}, source.LineCol{Line: 1, Col: 7})
	if pad != 0 || width != 4 {
		t.Fatalf("pad=%d width=%d", pad, width)
	}
	pad, width = caretColumns(line, source.LineCol{Line: 1, Col: 9}, source.LineCol{Line: 2, Col: 1})
	if pad != 6 || width != 3 {
		t.Fatalf("multi-line span: pad=%d width=%d", pad, width)
	}
}

func TestJSON(t *testing.T) {
	fs, bag := sample()
	var buf bytes.Buffer
	if err := JSON(&buf, bag, fs, JSONOpts{IncludePositions: true, IncludeNotes: true, PathMode: PathModeBasename}); err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var out DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Count != 2 || out.Diagnostics[0].Code != "COL4001" || out.Diagnostics[0].Location.StartLine != 3 {
		t.Fatalf("output = %+v", out)
	}
	if len(out.Diagnostics[0].Notes) != 1 || out.Diagnostics[1].Location.File != "" {
		t.Fatalf("output = %+v", out)
	}
	if trimmed := BuildDiagnosticsOutput(bag, fs, JSONOpts{Max: 1}); trimmed.Count != 1 || trimmed.Diagnostics[0].Notes != nil {
		t.Fatalf("trimmed = %+v", trimmed)
	}
}
