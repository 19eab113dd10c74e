package trace

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestLevelFiltersScopes(t *testing.T) {
	if !LevelPhase.ShouldEmit(ScopePass) || LevelPhase.ShouldEmit(ScopeItem) {
		t.Fatalf("phase level must stop at passes")
	}
	if !LevelDebug.ShouldEmit(ScopeQuery) {
		t.Fatalf("debug level must emit queries")
	}
}

func TestStartNestsSpans(t *testing.T) {
	ring := NewRingTracer(16, LevelDebug)
	ctx := WithTracer(context.Background(), ring)
	ctx, outer := Start(ctx, ScopePass, "collect")
	_, inner := Start(ctx, ScopeItem, "convert:Foo")
	inner.End("")
	outer.End("")

	evs := ring.Snapshot()
	if len(evs) != 4 {
		t.Fatalf("expected 4 events, got %d", len(evs))
	}
	if evs[1].ParentID != outer.ID() {
		t.Fatalf("inner span parent = %d, want %d", evs[1].ParentID, outer.ID())
	}
}

func TestStreamTracerText(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelPhase, FormatText)
	sp := Begin(tr, ScopePass, "resolve", 0)
	sp.WithExtra("items", "3").End("ok")
	Begin(tr, ScopeQuery, "type:0:1", sp.ID()).End("")

	out := buf.String()
	if !strings.Contains(out, "resolve (ok) {items=3}") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if strings.Contains(out, "type:0:1") {
		t.Fatalf("query span must be filtered at phase level")
	}
}
