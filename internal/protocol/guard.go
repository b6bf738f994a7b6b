package protocol

import (
	"context"
	"sync"
)

type guardKey struct {
	g *Guard
}

// Guard serializes entry points of one component and rejects re-entry.
//
// Enter marks the returned context; every call a component makes into an untrusted
// collaborator must pass that context along. A collaborator that calls back into the
// same component with it receives ErrReentrant instead of blocking on the lock.
type Guard struct {
	mu sync.Mutex
}

// Enter acquires the guard. The returned release func must be called exactly once.
func (g *Guard) Enter(ctx context.Context) (context.Context, func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Value(guardKey{g}) != nil {
		return ctx, func() {}, ErrReentrant
	}
	g.mu.Lock()
	return context.WithValue(ctx, guardKey{g}, true), g.mu.Unlock, nil
}

// Held reports whether ctx was produced by Enter on this guard.
func (g *Guard) Held(ctx context.Context) bool {
	return ctx != nil && ctx.Value(guardKey{g}) != nil
}

// View acquires the guard for a read-only call. When ctx already holds the guard, as
// in a collaborator callback, it does not lock and the caller sees in-progress state.
func (g *Guard) View(ctx context.Context) func() {
	if g.Held(ctx) {
		return func() {}
	}
	g.mu.Lock()
	return g.mu.Unlock
}
