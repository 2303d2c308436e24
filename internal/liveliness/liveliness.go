// Package liveliness provides a cooperative "should I keep running" flag
// that a long-running local execution polls, and that the dispatcher can
// revoke and later reinstate without touching the poller's goroutine.
package liveliness

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrTornDown is returned by Restore once the flag's holder has exited.
	ErrTornDown = errors.New("liveliness: manager torn down")
	// ErrGuardConsumed is returned when a guard is used after Cancel,
	// Restore or Forget already consumed it.
	ErrGuardConsumed = errors.New("liveliness: guard already consumed")
	// ErrNotAlive is the cancellation cause set by WhileAlive.
	ErrNotAlive = errors.New("liveliness: no longer alive")
)

// Manager reports whether a unit of work should keep running.
type Manager interface {
	IsAlive() bool
}

type cell struct {
	mu       sync.Mutex
	alive    bool
	tornDown bool
}

// Flag is the Manager side of a guard pair, handed to the execution that
// polls it.
type Flag struct {
	c *cell
}

// Create returns a live flag and the guard that controls it.
func Create() (*Flag, *Guard) {
	c := &cell{alive: true}
	return &Flag{c: c}, &Guard{c: c}
}

func (f *Flag) IsAlive() bool {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	return f.c.alive
}

// TearDown records that the holder stopped observing the flag. A cancelled
// guard can no longer be restored afterwards.
func (f *Flag) TearDown() {
	f.c.mu.Lock()
	f.c.tornDown = true
	f.c.mu.Unlock()
}

// Guard owns the right to cancel a Flag.
type Guard struct {
	mu sync.Mutex
	c  *cell
}

func (g *Guard) take() *cell {
	g.mu.Lock()
	defer g.mu.Unlock()
	c := g.c
	g.c = nil
	return c
}

// Cancel marks the flag dead and consumes the guard.
func (g *Guard) Cancel() *CancelledGuard {
	c := g.take()
	if c != nil {
		c.mu.Lock()
		c.alive = false
		c.mu.Unlock()
	}
	return &CancelledGuard{c: c}
}

// Forget consumes the guard without ever signalling cancellation.
func (g *Guard) Forget() {
	g.take()
}

// CancelledGuard remembers a cancellation so it can be undone.
type CancelledGuard struct {
	mu sync.Mutex
	c  *cell
}

func (g *CancelledGuard) take() *cell {
	g.mu.Lock()
	defer g.mu.Unlock()
	c := g.c
	g.c = nil
	return c
}

// Restore marks the flag alive again and returns a fresh guard for it.
// It fails with ErrTornDown if the holder already exited.
func (g *CancelledGuard) Restore() (*Guard, error) {
	c := g.take()
	if c == nil {
		return nil, ErrGuardConsumed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tornDown {
		return nil, ErrTornDown
	}
	c.alive = true
	return &Guard{c: c}, nil
}

// Forget drops the cancelled guard; the flag stays dead.
func (g *CancelledGuard) Forget() {
	g.take()
}

type and struct {
	a, b Manager
}

func (m and) IsAlive() bool {
	return m.a.IsAlive() && m.b.IsAlive()
}

// And returns a Manager alive only while both a and b are.
func And(a, b Manager) Manager {
	return and{a: a, b: b}
}

type ctxManager struct {
	ctx context.Context
}

func (m ctxManager) IsAlive() bool {
	return m.ctx.Err() == nil
}

// Context adapts a context into a Manager that dies with it.
func Context(ctx context.Context) Manager {
	return ctxManager{ctx: ctx}
}

type alwaysAlive struct{}

func (alwaysAlive) IsAlive() bool { return true }

// Alive returns a Manager that never dies.
func Alive() Manager {
	return alwaysAlive{}
}

// WhileAlive derives a context that is cancelled with ErrNotAlive as soon
// as m is observed dead. m is polled every interval.
func WhileAlive(ctx context.Context, m Manager, interval time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(ctx)
	if !m.IsAlive() {
		cancel(ErrNotAlive)
		return ctx, func() { cancel(context.Canceled) }
	}
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !m.IsAlive() {
					cancel(ErrNotAlive)
					return
				}
			}
		}
	}()
	return ctx, func() { cancel(context.Canceled) }
}

var (
	_ Manager = (*Flag)(nil)
	_ Manager = and{}
	_ Manager = ctxManager{}
)
