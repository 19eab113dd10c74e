package diagfmt

import (
	"os"

	"github.com/mattn/go-isatty"
)

// ColorEnabled decides whether to colorize output written to f for a
// --color value of auto, on or off. Auto honours NO_COLOR and TERM=dumb.
func ColorEnabled(mode string, f *os.File) bool {
	switch mode {
	case "on", "always":
		return true
	case "off", "never":
		return false
	}
	// NO_COLOR convention: https://no-color.org/
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	if f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
