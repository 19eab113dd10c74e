package source

import (
	"sync"
	"testing"
)

func TestInternerStableIDs(t *testing.T) {
	in := NewInterner()
	a := in.Intern("Option")
	b := in.Intern("Option")
	if a != b || a == NoStringID {
		t.Fatalf("expected stable non-zero id, got %d and %d", a, b)
	}
	if s := in.MustLookup(a); s != "Option" {
		t.Fatalf("lookup returned %q", s)
	}
}

func TestInternerConcurrent(t *testing.T) {
	in := NewInterner()
	var wg sync.WaitGroup
	ids := make([]StringID, 16)
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids[i] = in.Intern("Self")
		}()
	}
	wg.Wait()
	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("concurrent interning produced different ids")
		}
	}
	if in.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", in.Len())
	}
}
