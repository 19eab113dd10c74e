package diag

import (
	"testing"

	"polyty/internal/source"
)

func TestBagLimitKeepsFatal(t *testing.T) {
	bag := NewBag(1)
	r := BagReporter{Bag: bag}
	ReportError(r, CollectDuplicateField, source.Span{File: 1, Start: 4, End: 5}, "field `%s` is already declared", "x").Emit()
	ReportError(r, CollectDuplicateMethod, source.Span{File: 1, Start: 9, End: 10}, "duplicate method").Emit()
	ReportFatal(r, CollectNotATrait, source.Span{File: 1, Start: 1, End: 2}, "`Foo` is not a trait").Emit()
	if bag.Len() != 2 || bag.Dropped() != 1 {
		t.Fatalf("expected 2 kept and 1 dropped, got %d/%d", bag.Len(), bag.Dropped())
	}
	if !bag.HasFatal() || !bag.HasErrors() {
		t.Fatalf("expected fatal and error flags")
	}
	bag.Sort()
	if first := bag.Items()[0]; first.Code != CollectNotATrait {
		t.Fatalf("expected fatal first after sort, got %s", first.Code)
	}
}

func TestDedupReporter(t *testing.T) {
	bag := NewBag(10)
	r := NewDedupReporter(BagReporter{Bag: bag})
	sp := source.Span{File: 1, Start: 3, End: 7}
	for range 3 {
		ReportError(r, CollectForwardDefault, sp, "type parameters with a default cannot use forward declared identifiers").Emit()
	}
	if bag.Count(CollectForwardDefault) != 1 {
		t.Fatalf("expected a single diagnostic, got %d", bag.Count(CollectForwardDefault))
	}
}

func TestCodeID(t *testing.T) {
	if id := CollectDuplicateSupertrait.ID(); id != "COL4003" {
		t.Fatalf("unexpected id %s", id)
	}
}
