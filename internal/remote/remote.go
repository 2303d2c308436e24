// Package remote executes commands on a worker reached over MCP.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/hybridexec"
	"github.com/deixis/hybridexec/internal/claim"
	"github.com/deixis/hybridexec/internal/execute"
)

// Options describes the worker and what it accepts.
type Options struct {
	Address            string // streamable HTTP endpoint of the worker
	UseCase            execute.UseCase
	ActionKey          string
	MaxInputFilesBytes uint64 // zero means no limit
	Properties         map[string]string
}

// Executor runs commands through a worker's execute tool. The MCP session
// is opened on first use and shared by every command.
type Executor struct {
	opts      Options
	transport func() mcp.Transport

	mu      sync.Mutex
	session *mcp.ClientSession
}

// New returns an executor talking streamable HTTP to opts.Address.
func New(opts Options) *Executor {
	return NewWithTransport(opts, func() mcp.Transport {
		return &mcp.StreamableClientTransport{Endpoint: opts.Address}
	})
}

// NewWithTransport returns an executor that connects over the transports
// returned by dial.
func NewWithTransport(opts Options, dial func() mcp.Transport) *Executor {
	if opts.UseCase == "" {
		opts.UseCase = execute.DefaultUseCase
	}
	return &Executor{opts: opts, transport: dial}
}

func (e *Executor) connect(ctx context.Context) (*mcp.ClientSession, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		return e.session, nil
	}
	client := mcp.NewClient(&mcp.Implementation{Name: "hybridexec", Version: hybridexec.Version}, nil)
	cs, err := client.Connect(ctx, e.transport(), nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to worker %s: %w", e.opts.Address, err)
	}
	e.session = cs
	return cs, nil
}

// drop forgets a session that failed so the next command reconnects.
func (e *Executor) drop(cs *mcp.ClientSession) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == cs {
		_ = cs.Close()
		e.session = nil
	}
}

// Close ends the worker session, if any.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	err := e.session.Close()
	e.session = nil
	return err
}

// ExecCmd runs cmd on the worker. Outputs are only accepted once the claim
// is held; a command whose claim is denied reports ClaimCancelled.
func (e *Executor) ExecCmd(ctx context.Context, cmd *execute.PreparedCommand, m *execute.CommandExecutionManager) *execute.Result {
	log := m.Events.Logger().With().Str("executor", execute.ExecutorRemote).Logger()

	cs, err := e.connect(ctx)
	if err != nil {
		return m.Error(execute.ExecutorRemote, err)
	}

	args := ExecuteArgs{
		Args:      cmd.Request.Args,
		Env:       cmd.Request.Env,
		Cwd:       cmd.Request.Cwd,
		TimeoutMs: cmd.Request.Timeout.Milliseconds(),
		TraceID:   m.Events.TraceID().String(),
		UseCase:   e.opts.UseCase.String(),
		ActionKey: e.opts.ActionKey,
		Platform:  e.opts.Properties,
	}
	log.Debug().Strs("args", args.Args).Str("use_case", args.UseCase).Msg("sending command to worker")

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{Name: ExecuteTool, Arguments: args})
	if err != nil {
		if ctx.Err() != nil {
			return cancelled(ctx.Err())
		}
		e.drop(cs)
		return m.Error(execute.ExecutorRemote, fmt.Errorf("calling %s: %w", ExecuteTool, err))
	}

	report, err := decodeReport(res)
	if err != nil {
		return m.Error(execute.ExecutorRemote, err)
	}
	report.Executor = execute.ExecutorRemote

	// Infrastructure outcomes carry no outputs worth claiming.
	if report.Status == execute.Error || report.Status == execute.TimedOut || report.Status == execute.ClaimCancelled {
		log.Debug().Stringer("status", report.Status).Msg("worker did not complete the command")
		return &execute.Result{Report: report}
	}

	c := m.Claim(ctx)
	if claim.Denied(c) {
		log.Debug().Msg("claim denied")
		report.Status = execute.ClaimCancelled
		return &execute.Result{Report: report}
	}
	log.Debug().Stringer("status", report.Status).Int("exit_code", report.ExitCode).Msg("command finished")
	return &execute.Result{Report: report, Claim: c}
}

func decodeReport(res *mcp.CallToolResult) (execute.Report, error) {
	var text strings.Builder
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			text.WriteString(tc.Text)
		}
	}
	if res.IsError {
		return execute.Report{}, fmt.Errorf("worker rejected command: %s", text.String())
	}
	var report execute.Report
	if err := json.Unmarshal([]byte(text.String()), &report); err != nil {
		return execute.Report{}, fmt.Errorf("decoding worker report: %w", err)
	}
	if report.ID == "" {
		return execute.Report{}, errors.New("decoding worker report: missing id")
	}
	return report, nil
}

func cancelled(err error) *execute.Result {
	report := execute.NewReport(execute.ExecutorRemote)
	report.Error = err.Error()
	report.ExitCode = -1
	report.Finish(execute.ClaimCancelled)
	return &execute.Result{Report: report}
}

// IsActionTooLarge reports whether the inputs exceed the worker's limit.
func (e *Executor) IsActionTooLarge(paths execute.ActionPaths) bool {
	return e.opts.MaxInputFilesBytes > 0 && paths.InputsBytes > e.opts.MaxInputFilesBytes
}

// RePlatform returns the properties a worker must satisfy.
func (e *Executor) RePlatform() *execute.Platform {
	return &execute.Platform{Properties: e.opts.Properties}
}

func (e *Executor) ReUseCase() execute.UseCase {
	return e.opts.UseCase
}

var _ execute.Executor = (*Executor)(nil)
