package diagfmt

import (
	"path/filepath"
	"strings"
)

// autoPathLimit is the length above which PathModeAuto falls back to the basename.
const autoPathLimit = 40

func formatPath(path string, mode PathMode, baseDir string) string {
	switch mode {
	case PathModeAbsolute:
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	case PathModeRelative:
		if baseDir == "" {
			return path
		}
		if rel, err := filepath.Rel(baseDir, path); err == nil && !strings.HasPrefix(rel, "..") {
			return rel
		}
		return path
	case PathModeBasename:
		return filepath.Base(path)
	default:
		if len(path) > autoPathLimit {
			return filepath.Base(path)
		}
		return path
	}
}
