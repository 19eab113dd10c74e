// Package config reads the polyty.toml project manifest.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the manifest file searched for by Find.
const FileName = "polyty.toml"

// Manifest is a parsed polyty.toml together with where it was found.
type Manifest struct {
	Path   string
	Root   string
	Config Config
}

type Config struct {
	Crate   CrateConfig   `toml:"crate"`
	Collect CollectConfig `toml:"collect"`
	Trace   TraceConfig   `toml:"trace"`
	Extern  []ExternCrate `toml:"extern"`
}

type CrateConfig struct {
	Name string `toml:"name"`
	Root string `toml:"root"`
}

type CollectConfig struct {
	// Jobs is the number of parallel workers; 0 collects sequentially.
	Jobs           int `toml:"jobs"`
	MaxDiagnostics int `toml:"max_diagnostics"`
}

type TraceConfig struct {
	Level  string `toml:"level"`
	Output string `toml:"output"`
}

// ExternCrate is a dependency loaded from crate metadata.
type ExternCrate struct {
	Name string `toml:"name"`
	Path string `toml:"path"`
	// Version is a semver constraint on the metadata format.
	Version string `toml:"version"`
}

// Default returns the settings used without a manifest.
func Default() Config {
	return Config{
		Collect: CollectConfig{MaxDiagnostics: 100},
		Trace:   TraceConfig{Level: "off", Output: "-"},
	}
}

// Find walks up from startDir to locate polyty.toml.
func Find(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Discover finds and loads the manifest above startDir. ok is false when
// there is none.
func Discover(startDir string) (*Manifest, bool, error) {
	path, ok, err := Find(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, true, err
	}
	return &Manifest{Path: path, Root: filepath.Dir(path), Config: cfg}, true, nil
}

// LoadFile parses and validates a manifest. Missing sections keep the
// values of Default.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if !meta.IsDefined("crate") {
		return Config{}, fmt.Errorf("%s: missing [crate]", path)
	}
	if !meta.IsDefined("crate", "root") || strings.TrimSpace(cfg.Crate.Root) == "" {
		return Config{}, fmt.Errorf("%s: missing [crate].root", path)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Collect.Jobs < 0 {
		return fmt.Errorf("[collect].jobs must not be negative")
	}
	if c.Collect.MaxDiagnostics < 0 {
		return fmt.Errorf("[collect].max_diagnostics must not be negative")
	}
	seen := make(map[string]bool, len(c.Extern))
	for i, e := range c.Extern {
		if strings.TrimSpace(e.Name) == "" {
			return fmt.Errorf("[[extern]] #%d: missing name", i+1)
		}
		if strings.TrimSpace(e.Path) == "" {
			return fmt.Errorf("[[extern]] %s: missing path", e.Name)
		}
		if seen[e.Name] {
			return fmt.Errorf("[[extern]] %s: listed twice", e.Name)
		}
		seen[e.Name] = true
	}
	return nil
}

// CratePath is the crate description path, relative to the manifest.
func (m *Manifest) CratePath() string {
	return m.resolve(m.Config.Crate.Root)
}

// Externs returns the extern crates with paths made relative to the manifest.
func (m *Manifest) Externs() []ExternCrate {
	out := make([]ExternCrate, len(m.Config.Extern))
	for i, e := range m.Config.Extern {
		e.Path = m.resolve(e.Path)
		out[i] = e
	}
	return out
}

func (m *Manifest) resolve(p string) string {
	p = filepath.FromSlash(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Root, p)
}
