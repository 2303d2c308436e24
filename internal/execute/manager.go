package execute

import (
	"context"
	"sync/atomic"

	"github.com/deixis/hybridexec/internal/claim"
	"github.com/deixis/hybridexec/internal/liveliness"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EventDispatcher carries the trace a command belongs to and the logger its
// events go to.
type EventDispatcher struct {
	traceID uuid.UUID
	log     zerolog.Logger
}

// NewEventDispatcher starts a new trace logging to log.
func NewEventDispatcher(log zerolog.Logger) *EventDispatcher {
	id := uuid.New()
	return &EventDispatcher{
		traceID: id,
		log:     log.With().Str("trace_id", id.String()).Logger(),
	}
}

// NullEventDispatcher discards every event.
func NullEventDispatcher() *EventDispatcher {
	return &EventDispatcher{traceID: uuid.New(), log: zerolog.Nop()}
}

func (d *EventDispatcher) TraceID() uuid.UUID {
	return d.traceID
}

// Logger returns a logger tagged with the trace id.
func (d *EventDispatcher) Logger() *zerolog.Logger {
	return &d.log
}

// CommandExecutionManager is handed to an executor for a single attempt.
// It owns the claim manager for that attempt, the event dispatcher and the
// liveliness the attempt must honour.
type CommandExecutionManager struct {
	claims     claim.Manager
	claimed    atomic.Bool
	Events     *EventDispatcher
	Liveliness liveliness.Manager
}

func NewCommandExecutionManager(claims claim.Manager, events *EventDispatcher, live liveliness.Manager) *CommandExecutionManager {
	if events == nil {
		events = NullEventDispatcher()
	}
	if live == nil {
		live = liveliness.Alive()
	}
	return &CommandExecutionManager{
		claims:     claims,
		Events:     events,
		Liveliness: live,
	}
}

// Claim asks the claim manager for the claim. It may be called once; later
// calls get a refused claim.
func (m *CommandExecutionManager) Claim(ctx context.Context) claim.Claim {
	if !m.claimed.CompareAndSwap(false, true) {
		return claim.Refused()
	}
	return m.claims.Claim(ctx)
}

// Error builds the result for a fault internal to executor.
func (m *CommandExecutionManager) Error(executor string, err error) *Result {
	report := NewReport(executor)
	report.Error = err.Error()
	report.ExitCode = -1
	report.Finish(Error)
	m.Events.Logger().Error().Err(err).Str("executor", executor).Msg("command execution error")
	return &Result{Report: report}
}
