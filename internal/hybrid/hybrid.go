// Package hybrid dispatches a command to a local and a remote executor and
// settles on one authoritative result.
//
// Both candidates are built for every command but only run when the level
// asks for them. When they race, the claim decides which side may produce
// externally visible effects: the remote side cancels local execution
// before claiming, and a retryable outcome hands the claim over to the
// other side.
package hybrid

import (
	"context"
	"fmt"
	"runtime"

	"github.com/deixis/hybridexec/internal/claim"
	"github.com/deixis/hybridexec/internal/execute"
	"github.com/deixis/hybridexec/internal/liveliness"
	"github.com/deixis/hybridexec/internal/lowpass"
	"github.com/deixis/hybridexec/internal/metrics"
)

// RemoteExecutor is an executor that runs commands on a remote worker.
type RemoteExecutor interface {
	execute.Executor
	// IsActionTooLarge reports whether the inputs exceed what the remote
	// side accepts.
	IsActionTooLarge(paths execute.ActionPaths) bool
	RePlatform() *execute.Platform
	ReUseCase() execute.UseCase
}

// Executor accepts commands and dispatches them to the local executor, the
// remote one, or both, unless the request expresses a preference.
//
// If the remote executor claims a command but does not produce a usable
// result, the command is handed to the local executor.
type Executor struct {
	Local      execute.Executor
	Remote     RemoteExecutor
	Level      execute.Level
	Preference execute.ExecutorPreference

	filter *lowpass.Filter
}

// Option configures an Executor.
type Option func(*Executor)

// WithLowPassFilter shares f between executors. The default filter admits
// one race per CPU.
func WithLowPassFilter(f *lowpass.Filter) Option {
	return func(e *Executor) {
		e.filter = f
	}
}

// New returns a hybrid executor dispatching to local and remote.
func New(local execute.Executor, remote RemoteExecutor, level execute.Level, preference execute.ExecutorPreference, opts ...Option) *Executor {
	e := &Executor{
		Local:      local,
		Remote:     remote,
		Level:      level,
		Preference: preference,
	}
	for _, o := range opts {
		o(e)
	}
	if e.filter == nil {
		e.filter = lowpass.New(runtime.NumCPU())
	}
	return e
}

// RePlatform returns the remote executor's platform.
func (e *Executor) RePlatform() *execute.Platform {
	return e.Remote.RePlatform()
}

// ReUseCase returns the remote executor's use case.
func (e *Executor) ReUseCase() execute.UseCase {
	return e.Remote.ReUseCase()
}

// ExecCmd runs cmd and returns the authoritative result. Discarded attempts
// are attached as the result's Rejected report.
func (e *Executor) ExecCmd(ctx context.Context, cmd *execute.PreparedCommand, manager *execute.CommandExecutionManager) *execute.Result {
	if err := cmd.Validate(); err != nil {
		return manager.Error(execute.ExecutorHybrid, err)
	}
	res := e.exec(ctx, cmd, manager)
	metrics.RecordHybridResult(res.Report.Executor, res.Report.Status.String())
	return res
}

func (e *Executor) exec(ctx context.Context, cmd *execute.PreparedCommand, manager *execute.CommandExecutionManager) *execute.Result {
	log := manager.Events.Logger()

	// When remote takes the claim it cancels local execution through this
	// guard. That is what makes a true race possible: if remote finishes
	// after local started, local comes back with ClaimCancelled, local's
	// claim is released and remote resumes.
	localFlag, localGuard := liveliness.Create()
	claims := claim.NewMutexManager()
	reclaims := newReClaimManager(localGuard, claims.Share())

	// Neither task does anything until it is started.
	local := newTask(ctx, execute.ExecutorLocal, func(ctx context.Context) *execute.Result {
		defer localFlag.TearDown()
		m := execute.NewCommandExecutionManager(
			claims.Share(),
			manager.Events,
			liveliness.And(manager.Liveliness, localFlag),
		)
		return e.Local.ExecCmd(ctx, cmd, m)
	}, nil)

	remote := newTask(ctx, execute.ExecutorRemote, func(ctx context.Context) *execute.Result {
		defer reclaims.Close()
		m := execute.NewCommandExecutionManager(reclaims, manager.Events, manager.Liveliness)
		return e.Remote.ExecCmd(ctx, cmd, m)
	}, reclaims.Close)

	preference := e.Preference.And(cmd.Request.Preference)

	if preference.RequiresLocal() || e.Remote.IsActionTooLarge(cmd.Paths) {
		remote.abandon()
		log.Debug().Stringer("preference", preference).Msg("hybrid: local only")
		return local.wait()
	}

	primary, secondary := remote, local
	if preference.PrefersLocal() {
		primary, secondary = local, remote
	}

	var first, second *task
	switch e.Level.Kind {
	case execute.LevelLimited:
		defer secondary.abandon()
		return primary.wait()
	case execute.LevelFallback:
		// The primary always wins since the secondary is not started.
		primary.wait()
		first, second = primary, secondary
	default:
		if e.Level.LowPassFilter {
			secondary.gate = e.admit
		}
		first, second = race(primary, secondary)
	}

	firstRes := first.res
	if !e.isRetryable(firstRes) {
		second.abandon()
		return firstRes
	}

	log.Debug().
		Str("executor", first.name).
		Stringer("status", firstRes.Report.Status).
		Msg("hybrid: falling back")
	metrics.RecordFallback(first.name, firstRes.Report.Status.String())

	// Let the other side proceed.
	if c := firstRes.TakeClaim(); c != nil {
		if err := c.Release(); err != nil {
			second.abandon()
			return manager.Error(execute.ExecutorHybrid, fmt.Errorf("local execution started executing without a claim: %w", err))
		}
	}

	// The gate bounds races only. A fallback is never held back.
	second.ungate()
	secondRes := second.wait()
	rejected := firstRes.Report
	secondRes.Rejected = &rejected
	return secondRes
}

func (e *Executor) isRetryable(r *execute.Result) bool {
	switch r.Report.Status {
	case execute.ClaimCancelled:
		// The other side asked for cancellation and its result is coming.
		return true
	case execute.Success:
		return false
	case execute.Failure:
		return e.Level.FallbackOnFailure
	case execute.Error, execute.TimedOut:
		// Infrastructure faults are the point of falling back.
		return true
	default:
		return false
	}
}

func (e *Executor) admit(ctx context.Context) (func(), error) {
	g, err := e.filter.Access(ctx)
	metrics.SetLowPassAccessors(e.filter.Accessors())
	if err != nil {
		return nil, err
	}
	return func() {
		g.Release()
		metrics.SetLowPassAccessors(e.filter.Accessors())
	}, nil
}

var _ execute.Executor = (*Executor)(nil)
