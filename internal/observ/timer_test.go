package observ

import (
	"strings"
	"testing"
	"time"
)

func TestTimerReport(t *testing.T) {
	tm := NewTimer()
	a := tm.Begin("load")
	time.Sleep(time.Millisecond)
	if d := tm.End(a, ""); d <= 0 {
		t.Fatalf("duration = %v", d)
	}
	b := tm.Begin("collect")
	tm.End(b, "error: cycle")
	if d := tm.End(7, "ignored"); d != 0 {
		t.Fatalf("unknown index returned %v", d)
	}

	r := tm.Report()
	if len(r.Phases) != 2 || r.Phases[0].Name != "load" || r.Phases[1].Note != "error: cycle" {
		t.Fatalf("report = %+v", r)
	}
	if r.TotalMS < r.Phases[0].DurationMS {
		t.Fatalf("total %v below phase %v", r.TotalMS, r.Phases[0].DurationMS)
	}
	s := tm.Summary()
	for _, want := range []string{"timings:", "load", "collect", "// error: cycle", "total"} {
		if !strings.Contains(s, want) {
			t.Fatalf("summary misses %q:\n%s", want, s)
		}
	}
}

func TestEmptyTimer(t *testing.T) {
	if r := NewTimer().Report(); r.TotalMS != 0 || r.Phases != nil {
		t.Fatalf("report = %+v", r)
	}
}
