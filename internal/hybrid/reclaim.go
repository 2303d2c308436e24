package hybrid

import (
	"context"
	"fmt"
	"sync"

	"github.com/deixis/hybridexec/internal/claim"
	"github.com/deixis/hybridexec/internal/liveliness"
)

// reClaimManager is the claim manager handed to the remote executor. Taking
// the claim first cancels any in-flight local execution.
type reClaimManager struct {
	mu    sync.Mutex
	guard *liveliness.Guard
	inner claim.Manager
}

func newReClaimManager(localGuard *liveliness.Guard, inner claim.Manager) *reClaimManager {
	return &reClaimManager{guard: localGuard, inner: inner}
}

func (m *reClaimManager) take() *liveliness.Guard {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.guard
	m.guard = nil
	return g
}

func (m *reClaimManager) Claim(ctx context.Context) claim.Claim {
	guard := m.take()
	if guard == nil {
		return claim.Refused()
	}

	// Kill in-flight local commands.
	cancelled := guard.Cancel()

	// If the lock never comes, local execution finished and ctx ends.
	c := m.inner.Claim(ctx)

	return &reClaim{cancelled: cancelled, inner: c}
}

// Close lets local execution proceed if the remote side never claimed.
// It is safe to call more than once and after Claim.
func (m *reClaimManager) Close() {
	if g := m.take(); g != nil {
		g.Forget()
	}
}

// reClaim restores local liveliness when released, so that a remote claim
// followed by a remote failure lets local execution continue.
//
// This does not help when local claimed first, remote then cancelled it and
// claimed, and remote failed: local already acted on the cancellation and
// the remote failure is final. Fixing that needs local to release its claim
// instead of returning ClaimCancelled.
type reClaim struct {
	cancelled *liveliness.CancelledGuard
	inner     claim.Claim
}

func (c *reClaim) Release() error {
	if claim.Denied(c.inner) {
		c.cancelled.Forget()
		return nil
	}

	// Only fails if local execution started without the claim.
	guard, err := c.cancelled.Restore()
	if err != nil {
		return fmt.Errorf("unable to restore cancelled liveliness guard: %w", err)
	}
	guard.Forget()

	return c.inner.Release()
}

func (c *reClaim) Denied() bool {
	return claim.Denied(c.inner)
}

var (
	_ claim.Manager = (*reClaimManager)(nil)
	_ claim.Claim   = (*reClaim)(nil)
)
