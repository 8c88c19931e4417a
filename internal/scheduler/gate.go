package scheduler

import (
	"context"
	"sync"
)

// Gate is the binary pause signal controlling whether segment consumption may
// proceed. Waiters block without busy-waiting while the gate is closed and
// resume immediately when it reopens.
type Gate struct {
	mu   sync.Mutex
	open bool
	ch   chan struct{} // closed while the gate is open
}

// NewGate returns an open gate.
func NewGate() *Gate {
	ch := make(chan struct{})
	close(ch)
	return &Gate{open: true, ch: ch}
}

// Open releases all waiters. Idempotent.
func (g *Gate) Open() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.open {
		return
	}
	g.open = true
	close(g.ch)
}

// Close parks subsequent waiters. Idempotent.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.open {
		return
	}
	g.open = false
	g.ch = make(chan struct{})
}

// IsOpen reports the current gate state.
func (g *Gate) IsOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open
}

// Wait blocks until the gate is open or the context is done.
func (g *Gate) Wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		open := g.open
		ch := g.ch
		g.mu.Unlock()
		if open {
			return nil
		}
		select {
		case <-ch:
			// Reopened; loop to confirm it was not closed again.
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
