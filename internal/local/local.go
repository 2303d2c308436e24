// Package local runs commands as subprocesses of the current host.
package local

import (
	"context"
	"errors"
	"time"

	"github.com/deixis/hybridexec/internal/claim"
	"github.com/deixis/hybridexec/internal/execute"
	"github.com/deixis/hybridexec/internal/liveliness"
	"github.com/deixis/hybridexec/internal/runner"
)

// DefaultPollInterval is how often a running process checks its liveliness.
const DefaultPollInterval = 50 * time.Millisecond

// Executor claims a command, then runs it with the runner. The process is
// killed as soon as the attempt's liveliness is lost.
type Executor struct {
	Runner       *runner.Runner
	PollInterval time.Duration
}

// New returns an executor running commands with r.
func New(r *runner.Runner, pollInterval time.Duration) *Executor {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Executor{Runner: r, PollInterval: pollInterval}
}

func (e *Executor) ExecCmd(ctx context.Context, cmd *execute.PreparedCommand, m *execute.CommandExecutionManager) *execute.Result {
	log := m.Events.Logger().With().Str("executor", execute.ExecutorLocal).Logger()
	report := execute.NewReport(execute.ExecutorLocal)

	if !m.Liveliness.IsAlive() {
		return cancelled(report, nil)
	}

	c := m.Claim(ctx)
	if claim.Denied(c) {
		log.Debug().Msg("claim denied")
		return cancelled(report, nil)
	}

	// The other side may have cancelled us while we waited for the claim.
	if !m.Liveliness.IsAlive() {
		return cancelled(report, c)
	}

	runCtx, stop := liveliness.WhileAlive(ctx, m.Liveliness, e.PollInterval)
	defer stop()

	log.Debug().Strs("args", cmd.Request.Args).Msg("running command")
	res, err := e.Runner.Run(runCtx, runner.Command{
		Args:    cmd.Request.Args,
		Env:     cmd.Request.Env,
		Cwd:     cmd.Request.Cwd,
		Timeout: cmd.Request.Timeout,
	})
	if errors.Is(context.Cause(runCtx), liveliness.ErrNotAlive) {
		log.Debug().Msg("liveliness lost, process killed")
		return cancelled(report, c)
	}
	if err != nil {
		r := m.Error(execute.ExecutorLocal, err)
		r.Claim = c
		return r
	}

	report.ID = res.RunID
	report.ExitCode = res.ExitCode
	report.Stdout = string(res.Stdout)
	report.Stderr = string(res.Stderr)
	report.Truncated = res.Truncated

	status := execute.StatusOf(res.ExitCode, res.TimedOut, res.Cancelled)
	report.Finish(status)
	log.Debug().Stringer("status", status).Int("exit_code", res.ExitCode).Dur("duration", res.Duration).Msg("command finished")
	return &execute.Result{Report: report, Claim: c}
}

func cancelled(report execute.Report, c claim.Claim) *execute.Result {
	report.ExitCode = -1
	report.Finish(execute.ClaimCancelled)
	return &execute.Result{Report: report, Claim: c}
}

var _ execute.Executor = (*Executor)(nil)
