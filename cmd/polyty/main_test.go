package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"polyty/internal/config"
)

func TestParseExterns(t *testing.T) {
	got, err := parseExterns([]string{"core=lib/core.meta", "std = std.meta@^1.0"})
	if err != nil {
		t.Fatalf("parseExterns: %v", err)
	}
	want := []config.ExternCrate{
		{Name: "core", Path: "lib/core.meta"},
		{Name: "std", Path: "std.meta", Version: "^1.0"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("extern %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	for _, bad := range []string{"core", "=x.meta", "core="} {
		if _, err := parseExterns([]string{bad}); err == nil {
			t.Fatalf("parseExterns(%q) succeeded", bad)
		}
	}
}

func TestMergeExternsKeepsOrder(t *testing.T) {
	base := []config.ExternCrate{{Name: "core", Path: "a"}, {Name: "std", Path: "b"}}
	got := mergeExterns(base, []config.ExternCrate{{Name: "core", Path: "c"}, {Name: "io", Path: "d"}})
	if len(got) != 3 || got[0].Path != "c" || got[1].Name != "std" || got[2].Name != "io" {
		t.Fatalf("merged = %+v", got)
	}
	if base[0].Path != "a" {
		t.Fatalf("base modified")
	}
}

func TestEmitThenCollect(t *testing.T) {
	dir := t.TempDir()
	core := filepath.Join(dir, "core.yaml")
	app := filepath.Join(dir, "app.yaml")
	if err := os.WriteFile(core, []byte("crate: core\nitems:\n  - struct: Box\n    vis: pub\n    generics: [T]\n    fields: {v: T}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(app, []byte("crate: app\nitems:\n  - extern_crate: core\n  - type: Boxed\n    is: \"core::Box<int>\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	}()

	meta := filepath.Join(dir, "core.meta")
	rootCmd.SetArgs([]string{"emit", core, "-o", meta})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("emit: %v\n%s", err, errOut.String())
	}
	if _, err := os.Stat(meta); err != nil {
		t.Fatalf("metadata not written: %v", err)
	}

	out.Reset()
	rootCmd.SetArgs([]string{"collect", app, "--extern", "core=" + meta})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("collect: %v\n%s", err, errOut.String())
	}
	if !strings.Contains(out.String(), "type Boxed: core::Box<int>") {
		t.Fatalf("schemes:\n%s", out.String())
	}
}

func TestCollectReportsFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("crate: bad\nitems:\n  - type: T\n    is: Missing\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	}()

	rootCmd.SetArgs([]string{"collect", path, "--format", "json"})
	err := rootCmd.Execute()
	if !errors.Is(err, errFailed) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(errOut.String(), `"severity"`) {
		t.Fatalf("json diagnostics expected:\n%s", errOut.String())
	}
}
