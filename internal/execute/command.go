// Package execute holds the types shared by every executor: the prepared
// command, the per-attempt manager, and the result of an attempt.
package execute

import (
	"context"
	"errors"
	"time"
)

// Request is what the caller asks to run.
type Request struct {
	Args       []string
	Env        []string
	Cwd        string
	Timeout    time.Duration // zero means the executor's default
	Preference ExecutorPreference
}

// ActionPaths summarises the inputs a command reads.
type ActionPaths struct {
	Inputs      []string
	InputsBytes uint64
}

// PreparedCommand is an immutable, ready-to-run action.
type PreparedCommand struct {
	Request Request
	Paths   ActionPaths
}

// Validate rejects commands no executor could run.
func (c *PreparedCommand) Validate() error {
	if c == nil || len(c.Request.Args) == 0 {
		return errors.New("no command provided")
	}
	return nil
}

// Executor runs a prepared command and reports the outcome. Infrastructure
// faults are reported through the result's status, not as Go errors.
type Executor interface {
	ExecCmd(ctx context.Context, cmd *PreparedCommand, m *CommandExecutionManager) *Result
}
