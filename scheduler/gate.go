package scheduler

import (
	"context"
	"sync"
)

// gate is a manual-reset event. Wait blocks while the gate is cleared and
// passes immediately while it is set. Set and Clear may be called from any
// goroutine.
type gate struct {
	mu  sync.Mutex
	ch  chan struct{}
	set bool
}

func newGate() *gate {
	return &gate{ch: make(chan struct{})}
}

// Set opens the gate, releasing all current and future waiters.
func (g *gate) Set() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.set {
		g.set = true
		close(g.ch)
	}
}

// Clear closes the gate so subsequent waits block.
func (g *gate) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.set {
		g.set = false
		g.ch = make(chan struct{})
	}
}

// IsSet reports whether the gate is currently open.
func (g *gate) IsSet() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.set
}

// Wait blocks until the gate is set or ctx is done.
func (g *gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	ch := g.ch
	g.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
