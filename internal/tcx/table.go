package tcx

import (
	"fmt"
	"sync"
)

// ConflictError reports a second, different value for an insert-once key.
type ConflictError struct {
	Table string
	Key   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting entry for %s in %s", e.Key, e.Table)
}

// Table is an insert-once map. Re-inserting an equal value is a no-op;
// inserting a different one fails with *ConflictError.
type Table[K comparable, V any] struct {
	name string
	eq   func(a, b V) bool
	mu   sync.RWMutex
	m    map[K]V
}

func NewTable[K comparable, V any](name string, eq func(a, b V) bool) *Table[K, V] {
	return &Table[K, V]{name: name, eq: eq, m: make(map[K]V)}
}

func (t *Table[K, V]) Name() string { return t.name }

func (t *Table[K, V]) Lookup(k K) (V, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.m[k]
	return v, ok
}

func (t *Table[K, V]) Insert(k K, v V) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.m[k]; ok {
		if t.eq != nil && t.eq(prev, v) {
			return nil
		}
		return &ConflictError{Table: t.name, Key: fmt.Sprint(k)}
	}
	t.m[k] = v
	return nil
}

// Overwrite replaces the entry unconditionally. Reserved for the few places
// that refine a previously recorded value.
func (t *Table[K, V]) Overwrite(k K, v V) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.m[k] = v
}

func (t *Table[K, V]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.m)
}

// Range calls fn for every entry until it returns false. Order is unspecified.
func (t *Table[K, V]) Range(fn func(K, V) bool) {
	t.mu.RLock()
	snapshot := make(map[K]V, len(t.m))
	for k, v := range t.m {
		snapshot[k] = v
	}
	t.mu.RUnlock()
	for k, v := range snapshot {
		if !fn(k, v) {
			return
		}
	}
}
