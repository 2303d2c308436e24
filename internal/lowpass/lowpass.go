// Package lowpass implements an admission gate that only lets callers
// through while the number of accessors, waiting ones included, is within
// capacity.
package lowpass

import (
	"context"
	"sync"
)

// Filter bounds how many accessors may proceed at once.
type Filter struct {
	mu        sync.Mutex
	accessors int
	capacity  int
	waiters   []chan struct{}
}

// New returns a filter admitting up to capacity accessors.
func New(capacity int) *Filter {
	if capacity < 1 {
		capacity = 1
	}
	return &Filter{capacity: capacity}
}

// Capacity returns the configured capacity.
func (f *Filter) Capacity() int {
	return f.capacity
}

// Accessors returns the number of holders plus waiters.
func (f *Filter) Accessors() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accessors
}

func (f *Filter) dispatchMore() bool {
	return f.accessors <= f.capacity
}

// Access counts the caller as an accessor and waits until the filter admits
// it. If ctx ends first the slot is given back and ctx's error returned.
func (f *Filter) Access(ctx context.Context) (*Guard, error) {
	f.mu.Lock()
	f.accessors++
	// Created up front so an abandoned wait gives its slot back.
	g := &Guard{f: f}

	for {
		if f.dispatchMore() {
			// Pass the wake-up on if there is still room.
			if len(f.waiters) > 0 && f.dispatchMore() {
				f.notifyOneLocked()
			}
			f.mu.Unlock()
			return g, nil
		}
		ch := make(chan struct{})
		f.waiters = append(f.waiters, ch)
		f.mu.Unlock()

		select {
		case <-ch:
			f.mu.Lock()
		case <-ctx.Done():
			f.mu.Lock()
			f.removeWaiterLocked(ch)
			f.mu.Unlock()
			g.Release()
			return nil, ctx.Err()
		}
	}
}

func (f *Filter) notifyOneLocked() {
	if len(f.waiters) == 0 {
		return
	}
	ch := f.waiters[0]
	f.waiters = f.waiters[1:]
	close(ch)
}

func (f *Filter) removeWaiterLocked(ch chan struct{}) {
	for i, w := range f.waiters {
		if w == ch {
			f.waiters = append(f.waiters[:i], f.waiters[i+1:]...)
			return
		}
	}
}

// Guard is held while an accessor is admitted.
type Guard struct {
	once sync.Once
	f    *Filter
}

// Release gives the slot back and wakes one waiter if there is room.
// Calling it more than once has no further effect.
func (g *Guard) Release() {
	g.once.Do(func() {
		f := g.f
		f.mu.Lock()
		defer f.mu.Unlock()
		f.accessors--
		if f.dispatchMore() {
			f.notifyOneLocked()
		}
	})
}
