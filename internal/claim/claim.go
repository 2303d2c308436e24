// Package claim provides the single-winner exclusivity token that an
// executor must hold before producing effects visible outside a command
// dispatch, such as writing outputs.
package claim

import (
	"context"
	"errors"
	"sync"
)

// ErrInconsistentClaim is returned by Release when the manager does not
// record the claim being released as the current holder.
var ErrInconsistentClaim = errors.New("claim: released while not held")

// Claim proves its holder committed to being the authoritative executor.
type Claim interface {
	// Release surrenders exclusivity so the other side may claim.
	Release() error
}

// Manager yields at most one Claim. Claim is one-shot: a Manager must not
// be used again after it has been called.
type Manager interface {
	Claim(ctx context.Context) Claim
}

// MutexManager grants the claim to whichever caller takes its lock first
// while nothing is held. Copies made with Share observe the same state.
type MutexManager struct {
	state *claimState
}

type claimState struct {
	mu      sync.Mutex
	held    bool
	holder  uint64
	nextGen uint64
	// released is closed and replaced every time the held claim is released.
	released chan struct{}
}

// NewMutexManager returns a manager with nothing claimed.
func NewMutexManager() *MutexManager {
	return &MutexManager{state: &claimState{released: make(chan struct{})}}
}

// Share returns another handle on the same claim state.
func (m *MutexManager) Share() *MutexManager {
	return &MutexManager{state: m.state}
}

// Held reports whether a claim is currently live.
func (m *MutexManager) Held() bool {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()
	return m.state.held
}

// Claim waits until nothing is held and takes the claim. If ctx ends first
// the returned claim is denied; releasing it does nothing.
func (m *MutexManager) Claim(ctx context.Context) Claim {
	s := m.state
	for {
		s.mu.Lock()
		if !s.held {
			s.nextGen++
			s.held = true
			s.holder = s.nextGen
			s.mu.Unlock()
			return &mutexClaim{state: s, gen: s.holder}
		}
		wait := s.released
		s.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return deniedClaim{}
		}
	}
}

type mutexClaim struct {
	state *claimState
	gen   uint64
}

func (c *mutexClaim) Release() error {
	s := c.state
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.held || s.holder != c.gen {
		return ErrInconsistentClaim
	}
	s.held = false
	s.holder = 0
	close(s.released)
	s.released = make(chan struct{})
	return nil
}

type deniedClaim struct{}

func (deniedClaim) Release() error { return nil }
func (deniedClaim) Denied() bool   { return true }

// Refused returns a claim that was never granted.
func Refused() Claim {
	return deniedClaim{}
}

// Denied reports whether c was never granted. Wrapping claims report
// through a Denied method of their own.
func Denied(c Claim) bool {
	if c == nil {
		return true
	}
	d, ok := c.(interface{ Denied() bool })
	return ok && d.Denied()
}

var (
	_ Manager = (*MutexManager)(nil)
	_ Claim   = (*mutexClaim)(nil)
	_ Claim   = deniedClaim{}
)
