package cache

import (
	"context"
	"sync"

	"dispatchd/internal/metrics"
)

type flight struct {
	done chan struct{}
	val  any
	err  error
}

// Group collapses concurrent identical fetches into a single execution.
// For a given key, at most one fn runs at a time; every caller that
// arrives while it is in flight receives its result, success or failure.
type Group struct {
	mu       sync.Mutex
	inflight map[string]*flight
}

func NewGroup() *Group {
	return &Group{inflight: map[string]*flight{}}
}

// Do returns the result of fn for key, joining an in-flight execution
// if one exists. The fetch runs detached from any single caller's
// context, so a caller that abandons the wait does not starve the
// others; its own ctx error is returned while the fetch completes.
// Once the fetch settles the slot is cleared, so the next call for the
// same key triggers a fresh execution.
func (g *Group) Do(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	g.mu.Lock()
	if f, ok := g.inflight[key]; ok {
		g.mu.Unlock()
		metrics.DedupCollapsed.Inc()
		return f.wait(ctx)
	}
	f := &flight{done: make(chan struct{})}
	g.inflight[key] = f
	g.mu.Unlock()

	go func() {
		f.val, f.err = fn(context.WithoutCancel(ctx))
		g.mu.Lock()
		delete(g.inflight, key)
		g.mu.Unlock()
		close(f.done)
	}()

	return f.wait(ctx)
}

func (f *flight) wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
