// Package gate implements the Foreign Runtime Gate (C5): the single
// process-wide serialization point through which components C6 and C8 may
// touch foreign state.
//
// The teacher serializes ownership of shared interpreter state by routing
// every touch through one dedicated goroutine's select loop (addon.go's
// manageAddons, scheduler.go's schedule) rather than through a raw mutex.
// A foreign call here is a blocking round trip, not a fire-and-forget
// message, so Gate is instead a mutex -- but reentrancy is tracked the same
// way the teacher tracks "is this addon already being initialized along
// this call chain" (addon.go's inited map keyed by name): by a token
// threaded through context.Context rather than by inspecting a raw
// goroutine or OS-thread id, which Go does not expose stably. A context
// that already carries this Gate's token proves the call chain already
// holds it.
package gate

import (
	"context"
	"fmt"
	"runtime"
	"sync"
)

type tokenKey struct{}

// Gate is a reentrant-by-call-chain lock guarding the foreign runtime.
// mu is the actual exclusive hold, taken once per outermost Acquire; cmu
// guards the depth/site bookkeeping, which a reentrant Acquire must update
// without attempting to take mu again (sync.Mutex is not reentrant).
type Gate struct {
	mu  sync.Mutex
	cmu sync.Mutex

	depth int
	site  string
}

// New creates an unheld Gate.
func New() *Gate {
	return &Gate{}
}

func (g *Gate) heldBy(ctx context.Context) bool {
	held, _ := ctx.Value(tokenKey{}).(*Gate)
	return held == g
}

// Release pairs with one Acquire call, per §4.4's "releases MUST pair with
// acquisitions ... (stack discipline)."
type Release func()

// Acquire blocks until the gate is held for the current call chain,
// recording the acquiring call site for diagnostics (§4.4). If ctx already
// carries this gate's token -- i.e. an ancestor call in the same chain
// already holds it -- Acquire does not block on mu, implementing the
// required reentrancy. The returned context must be threaded into any
// nested call that also needs the gate; the returned Release must be
// called exactly once, in LIFO order with any nested acquisitions.
func (g *Gate) Acquire(ctx context.Context) (context.Context, Release, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if g.heldBy(ctx) {
		g.cmu.Lock()
		g.depth++
		g.cmu.Unlock()
		return ctx, func() { g.release(false) }, nil
	}

	g.mu.Lock()
	_, file, line, ok := runtime.Caller(1)
	g.cmu.Lock()
	if ok {
		g.site = fmt.Sprintf("%s:%d", file, line)
	}
	g.depth = 1
	g.cmu.Unlock()
	next := context.WithValue(ctx, tokenKey{}, g)
	return next, func() { g.release(true) }, nil
}

func (g *Gate) release(outer bool) {
	g.cmu.Lock()
	if g.depth <= 0 {
		g.cmu.Unlock()
		panic("gate: release without matching acquire")
	}
	g.depth--
	d := g.depth
	g.cmu.Unlock()
	if outer {
		if d != 0 {
			panic("gate: outer release called before matching inner releases")
		}
		g.mu.Unlock()
	}
}

// Site returns the file:line of the current (or most recent) outermost
// acquisition, for diagnostics.
func (g *Gate) Site() string {
	g.cmu.Lock()
	defer g.cmu.Unlock()
	return g.site
}

// Held reports whether the gate is currently held by any call chain.
func (g *Gate) Held() bool {
	g.cmu.Lock()
	defer g.cmu.Unlock()
	return g.depth > 0
}
