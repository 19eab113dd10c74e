package tcx

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestEngineRunsOnce(t *testing.T) {
	e := NewEngine()
	var runs atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = e.Do(context.Background(), "k", func(context.Context) error {
				runs.Add(1)
				return nil
			})
		}()
	}
	wg.Wait()
	if runs.Load() != 1 {
		t.Fatalf("fn ran %d times", runs.Load())
	}
	if !e.Done("k") {
		t.Fatalf("key not marked done")
	}
}

func TestEngineMemoizesErrors(t *testing.T) {
	e := NewEngine()
	boom := errors.New("boom")
	calls := 0
	fn := func(context.Context) error { calls++; return boom }
	if err := e.Do(context.Background(), "k", fn); !errors.Is(err, boom) {
		t.Fatalf("first call: %v", err)
	}
	if err := e.Do(context.Background(), "k", fn); !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("second call: %v (calls=%d)", err, calls)
	}
}

func TestEngineDetectsCycle(t *testing.T) {
	e := NewEngine()
	var a, b func(context.Context) error
	a = func(ctx context.Context) error { return e.Do(ctx, "b", b) }
	b = func(ctx context.Context) error { return e.Do(ctx, "a", a) }
	err := e.Do(context.Background(), "a", a)
	var ce *CycleError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CycleError, got %v", err)
	}
	if len(ce.Cycle) != 3 || ce.Cycle[0] != "a" || ce.Cycle[2] != "a" {
		t.Fatalf("unexpected cycle path %v", ce.Cycle)
	}
}

func TestTableInsertOnce(t *testing.T) {
	tab := NewTable[int, string]("t", func(a, b string) bool { return a == b })
	if err := tab.Insert(1, "x"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tab.Insert(1, "x"); err != nil {
		t.Fatalf("idempotent insert failed: %v", err)
	}
	var ce *ConflictError
	if err := tab.Insert(1, "y"); !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	tab.Overwrite(1, "y")
	if v, _ := tab.Lookup(1); v != "y" {
		t.Fatalf("overwrite lost: %q", v)
	}
}
