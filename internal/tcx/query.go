package tcx

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// CycleError reports a query that depends on itself.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return "cycle detected: " + strings.Join(e.Cycle, " -> ")
}

// frame is one active query on a chain; chains are per call tree, so a
// parallel worker starts its own.
type frame struct {
	chain  uint64
	key    string
	parent *frame
}

type frameKey struct{}

func frameFrom(ctx context.Context) *frame {
	f, _ := ctx.Value(frameKey{}).(*frame)
	return f
}

// Engine runs every keyed computation at most once and memoizes its error.
// Concurrent demands for one key share a single execution. A key demanded
// again while it is still running on the same chain, or on a chain that is
// itself waiting for the current one, is a cycle.
type Engine struct {
	group     singleflight.Group
	nextChain atomic.Uint64

	mu      sync.Mutex
	done    map[string]error
	holders map[string]uint64 // running key -> chain executing it
	waiting map[uint64]string // chain -> key it is blocked on
}

func NewEngine() *Engine {
	return &Engine{
		done:    make(map[string]error),
		holders: make(map[string]uint64),
		waiting: make(map[uint64]string),
	}
}

// Do runs fn for key unless it has already run; the memoized error is
// returned on later calls.
func (e *Engine) Do(ctx context.Context, key string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	parent := frameFrom(ctx)
	chain := e.chainOf(parent)

	e.mu.Lock()
	if err, ok := e.done[key]; ok {
		e.mu.Unlock()
		return err
	}
	for f := parent; f != nil; f = f.parent {
		if f.key == key {
			e.mu.Unlock()
			return &CycleError{Cycle: cyclePath(parent, key)}
		}
	}
	if holder, running := e.holders[key]; running && holder != chain && e.waitsOnLocked(holder, chain) {
		e.mu.Unlock()
		return &CycleError{Cycle: []string{key, "(across workers)"}}
	}
	// recorded even before a holder appears: the leader may not have
	// registered yet, and a later demand must still see this chain blocked
	e.waiting[chain] = key
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.waiting, chain)
		e.mu.Unlock()
	}()

	_, err, _ := e.group.Do(key, func() (any, error) {
		e.mu.Lock()
		if err, ok := e.done[key]; ok {
			e.mu.Unlock()
			return nil, err
		}
		e.holders[key] = chain
		delete(e.waiting, chain)
		e.mu.Unlock()

		err := fn(context.WithValue(ctx, frameKey{}, &frame{chain: chain, key: key, parent: parent}))

		e.mu.Lock()
		delete(e.holders, key)
		// a cancelled demand must not poison the key for later callers
		if !isTransient(ctx, err) {
			e.done[key] = err
		}
		e.mu.Unlock()
		return nil, err
	})
	return err
}

func (e *Engine) chainOf(parent *frame) uint64 {
	if parent != nil {
		return parent.chain
	}
	return e.nextChain.Add(1)
}

// waitsOnLocked reports whether chain `from` transitively waits on chain `target`.
func (e *Engine) waitsOnLocked(from, target uint64) bool {
	seen := make(map[uint64]bool)
	for cur := from; !seen[cur]; {
		if cur == target {
			return true
		}
		seen[cur] = true
		key, ok := e.waiting[cur]
		if !ok {
			return false
		}
		next, ok := e.holders[key]
		if !ok {
			return false
		}
		cur = next
	}
	return false
}

// Done reports whether key has completed.
func (e *Engine) Done(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.done[key]
	return ok
}

func isTransient(ctx context.Context, err error) bool {
	return err != nil && ctx.Err() != nil
}

func cyclePath(top *frame, key string) []string {
	var rev []string
	for f := top; f != nil; f = f.parent {
		rev = append(rev, f.key)
		if f.key == key {
			break
		}
	}
	out := make([]string, 0, len(rev)+1)
	for i := len(rev) - 1; i >= 0; i-- {
		out = append(out, rev[i])
	}
	return append(out, key)
}
