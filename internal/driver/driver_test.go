package driver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"polyty/internal/collect"
	"polyty/internal/config"
	"polyty/internal/diag"
	"polyty/internal/metadata"
)

const coreCrate = `crate: core
items:
  - trait: Send
    lang: send
  - struct: Box
    vis: pub
    generics: [T]
    fields: {v: T}
  - fn: id
    vis: pub
    generics: ["T: Send"]
    sig: "(x: T) -> T"
`

const appCrate = `crate: app
items:
  - extern_crate: core
  - struct: Holder
    generics: [T]
    fields: {b: "core::Box<T>"}
  - fn: get
    generics: [T]
    sig: "(h: &Holder<T>) -> int"
`

func writeFile(t *testing.T, dir, name, text string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func schemeLines(r *Result) []string {
	var out []string
	for _, s := range r.Schemes() {
		out = append(out, s.String())
	}
	return out
}

func TestCollectListsSchemes(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "core.yaml", coreCrate)

	var phases []string
	r := Collect(context.Background(), path, Options{
		Jobs:     2,
		Timings:  true,
		Observer: func(ev PhaseEvent) {
			if ev.Status == PhaseEnd {
				phases = append(phases, ev.Name)
			}
		},
	})
	if r.Err != nil || r.Failed() {
		t.Fatalf("collect failed: %v %v", r.Err, r.Bag.Items())
	}
	want := []string{
		"struct Box<T/#0>: Box<T/#0>",
		"fn id<T/#0: Send>: fn(T/#0) -> T/#0",
	}
	got := schemeLines(r)
	for _, w := range want {
		found := false
		for _, g := range got {
			if g == w {
				found = true
			}
		}
		if !found {
			t.Fatalf("missing %q in %q", w, got)
		}
	}
	if strings.Join(phases, ",") != "load,externs,resolve,collect" {
		t.Fatalf("phases = %v", phases)
	}
	if r.Bag.Count(diag.ObsTimings) != 1 || len(r.Timing.Phases) != 4 {
		t.Fatalf("timings not recorded: %+v", r.Timing)
	}
}

func TestEmitAndLoadExtern(t *testing.T) {
	dir := t.TempDir()
	meta := filepath.Join(dir, "core.meta")
	core := Collect(context.Background(), writeFile(t, dir, "core.yaml", coreCrate), Options{EmitMetadata: meta})
	if core.Failed() {
		t.Fatalf("core: %v %v", core.Err, core.Bag.Items())
	}
	if _, err := os.Stat(meta); err != nil {
		t.Fatalf("metadata not written: %v", err)
	}

	app := Collect(context.Background(), writeFile(t, dir, "app.yaml", appCrate), Options{
		Externs: []config.ExternCrate{{Name: "core", Path: meta, Version: "^1.0"}},
	})
	if app.Failed() {
		t.Fatalf("app: %v %v", app.Err, app.Bag.Items())
	}
	got := strings.Join(schemeLines(app), "\n")
	for _, w := range []string{
		"struct Holder<T/#0>: Holder<T/#0>",
		"fn get<T/#0>: fn(&Holder<T/#0>) -> int",
	} {
		if !strings.Contains(got, w) {
			t.Fatalf("missing %q in\n%s", w, got)
		}
	}
	if app.Externs.Len() != 1 {
		t.Fatalf("externs loaded: %d", app.Externs.Len())
	}
}

func TestExternFailures(t *testing.T) {
	dir := t.TempDir()
	meta := filepath.Join(dir, "core.meta")
	if r := Collect(context.Background(), writeFile(t, dir, "core.yaml", coreCrate), Options{EmitMetadata: meta}); r.Failed() {
		t.Fatalf("core: %v", r.Err)
	}
	app := writeFile(t, dir, "app.yaml", appCrate)

	cases := []struct {
		name string
		ext  config.ExternCrate
		code diag.Code
		is   error
	}{
		{"missing file", config.ExternCrate{Name: "core", Path: filepath.Join(dir, "nope.meta")}, diag.IOMetadata, os.ErrNotExist},
		{"version", config.ExternCrate{Name: "core", Path: meta, Version: "^2.0"}, diag.MetaVersion, metadata.ErrVersion},
		{"corrupt", config.ExternCrate{Name: "core", Path: writeFile(t, dir, "bad.meta", "\xc1")}, diag.MetaCorrupt, metadata.ErrCorrupt},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := Collect(context.Background(), app, Options{Externs: []config.ExternCrate{tc.ext}})
			if r.Err == nil || !errors.Is(r.Err, tc.is) {
				t.Fatalf("err = %v, want %v", r.Err, tc.is)
			}
			if r.Bag.Count(tc.code) != 1 || !r.Bag.HasFatal() {
				t.Fatalf("diagnostics = %v", r.Bag.Items())
			}
			if r.Ctxt != nil {
				t.Fatalf("collection ran after a failed extern load")
			}
		})
	}
}

func TestFatalCycleStopsRun(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cyc.yaml", `crate: cyc
items:
  - type: A
    is: B
  - type: B
    is: A
`)
	r := Collect(context.Background(), path, Options{EmitMetadata: filepath.Join(dir, "cyc.meta")})
	if !IsFatal(r.Err) {
		t.Fatalf("err = %v", r.Err)
	}
	var fe *collect.FatalError
	if !errors.As(r.Err, &fe) || fe.Code != diag.CollectCycle {
		t.Fatalf("fatal = %+v", fe)
	}
	if _, err := os.Stat(filepath.Join(dir, "cyc.meta")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("metadata written for a failed crate")
	}
}

func TestMissingCrateFile(t *testing.T) {
	r := Collect(context.Background(), filepath.Join(t.TempDir(), "none.yaml"), Options{})
	if r.Err == nil || r.Bag.Count(diag.IOLoadFileError) != 1 {
		t.Fatalf("err = %v, diagnostics = %v", r.Err, r.Bag.Items())
	}
	if IsFatal(r.Err) {
		t.Fatalf("an I/O failure is not a collection fatal")
	}
}
