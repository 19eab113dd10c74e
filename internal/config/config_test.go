package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, dir, text string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestDiscoverWalksUp(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, `
[crate]
name = "demo"
root = "src/demo.yaml"

[collect]
jobs = 4

[[extern]]
name = "core"
path = "target/core.meta"
version = "^1.0"
`)
	nested := filepath.Join(root, "src", "deep")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	m, ok, err := Discover(nested)
	if err != nil || !ok {
		t.Fatalf("Discover: ok=%v err=%v", ok, err)
	}
	if m.Root != root {
		t.Fatalf("root = %q, want %q", m.Root, root)
	}
	if got := m.CratePath(); got != filepath.Join(root, "src", "demo.yaml") {
		t.Fatalf("crate path = %q", got)
	}
	if m.Config.Collect.Jobs != 4 || m.Config.Collect.MaxDiagnostics != 100 || m.Config.Trace.Level != "off" {
		t.Fatalf("config = %+v", m.Config)
	}
	ext := m.Externs()
	if len(ext) != 1 || ext[0].Path != filepath.Join(root, "target", "core.meta") || ext[0].Version != "^1.0" {
		t.Fatalf("externs = %+v", ext)
	}
}

func TestDiscoverWithoutManifest(t *testing.T) {
	dir := t.TempDir()
	path, ok, err := Find(dir)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if ok && strings.HasPrefix(path, dir) {
		t.Fatalf("found %q inside an empty directory", path)
	}
}

func TestLoadFileRejects(t *testing.T) {
	cases := []struct {
		name, text, want string
	}{
		{"no crate", "[collect]\njobs = 1\n", "missing [crate]"},
		{"no root", "[crate]\nname = \"x\"\n", "missing [crate].root"},
		{"unknown key", "[crate]\nroot = \"a.yaml\"\ncolour = true\n", "unknown keys: crate.colour"},
		{"negative jobs", "[crate]\nroot = \"a.yaml\"\n[collect]\njobs = -1\n", "jobs must not be negative"},
		{"extern without path", "[crate]\nroot = \"a.yaml\"\n[[extern]]\nname = \"core\"\n", "core: missing path"},
		{"extern twice", "[crate]\nroot = \"a.yaml\"\n[[extern]]\nname = \"core\"\npath = \"a\"\n[[extern]]\nname = \"core\"\npath = \"b\"\n", "listed twice"},
		{"bad toml", "[crate\n", "failed to parse TOML"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeManifest(t, t.TempDir(), tc.text)
			_, err := LoadFile(path)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want %q", err, tc.want)
			}
		})
	}
}
