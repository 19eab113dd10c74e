package version

import (
	"testing"

	"github.com/fatih/color"
)

func TestColoredPlain(t *testing.T) {
	saved, savedNoColor := Version, color.NoColor
	defer func() { Version, color.NoColor = saved, savedNoColor }()
	color.NoColor = true

	cases := map[string]string{
		"1.2.3":      "1.2.3",
		"0.1.0-dev":  "0.1.0-dev",
		"   ":        "dev",
		"nightly":    "nightly",
		"2.0.0-rc.1": "2.0.0-rc.1",
	}
	for in, want := range cases {
		Version = in
		if got := Colored(); got != want {
			t.Fatalf("Colored(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestColoredUsesEscapes(t *testing.T) {
	saved, savedNoColor := Version, color.NoColor
	defer func() { Version, color.NoColor = saved, savedNoColor }()
	color.NoColor = false

	Version = "1.2.3"
	if got := Colored(); got == "1.2.3" {
		t.Fatalf("expected colored output, got %q", got)
	}
}
