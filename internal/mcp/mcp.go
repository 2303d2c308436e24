// Package mcp provides the worker MCP server. A worker runs commands on
// behalf of remote executors and keeps a record of every run.
package mcp

import (
	"context"
	_ "embed"
	"net/url"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/deixis/hybridexec"
	"github.com/deixis/hybridexec/internal/config"
	"github.com/deixis/hybridexec/internal/remote"
	"github.com/deixis/hybridexec/internal/report"
	"github.com/deixis/hybridexec/internal/runner"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	mu     sync.RWMutex
	runner runner.Runner // copied per call; replaced when roots change
	store  report.Store
	log    zerolog.Logger
}

// NewServer creates a worker MCP server with its tools registered.
func NewServer(r *runner.Runner, store report.Store, opts ...ServerOption) *mcp.Server {
	so := serverOptions{log: zerolog.Nop()}
	for _, o := range opts {
		o(&so)
	}

	h := &handler{
		runner: *r,
		store:  store,
		log:    so.log.With().Str("component", "worker").Logger(),
	}

	mcpOpts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
	}
	if so.followRoots {
		mcpOpts.InitializedHandler = func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateWorkspaceFromRoots(ctx, req.Session)
		}
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "hybridexec-worker", Version: hybridexec.Version}, mcpOpts)

	mcp.AddTool(s, &mcp.Tool{
		Name: remote.ExecuteTool,
		Description: `Run a command on this worker and return its report as JSON.

The report carries the status (success, failure, error, timed_out), exit code and
captured output. Every run is recorded and can be retrieved with inspect.`,
	}, h.executeHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        remote.InspectTool,
		Description: "Show the record of a previous run by its id.",
	}, h.inspectHandler)

	return s
}

// ServerOption configures the worker MCP server.
type ServerOption func(*serverOptions)

type serverOptions struct {
	log         zerolog.Logger
	followRoots bool
}

// WithLogger sets the logger tool handlers write to.
func WithLogger(log zerolog.Logger) ServerOption {
	return func(o *serverOptions) {
		o.log = log
	}
}

// WithRoots makes the worker adopt the first root the client advertises as
// its workspace, reloading the configuration found there.
func WithRoots() ServerOption {
	return func(o *serverOptions) {
		o.followRoots = true
	}
}

func (h *handler) currentRunner() runner.Runner {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.runner
}

// updateWorkspaceFromRoots queries the client for MCP roots and updates the
// runner if a valid root is returned. This is called during session
// initialization, before any tool calls.
func (h *handler) updateWorkspaceFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil || len(roots.Roots) == 0 {
		return
	}

	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}
	workspace := u.Path

	loaded, err := config.Load(workspace)
	if err != nil {
		h.log.Warn().Err(err).Str("workspace", workspace).Msg("ignoring root with invalid config")
		return
	}

	h.mu.Lock()
	h.runner = runner.Runner{
		Workspace: workspace,
		Timeout:   loaded.Config.Timeout(),
		MaxOutput: loaded.Config.MaxOutputBytes(),
	}
	h.mu.Unlock()
	h.log.Info().Str("workspace", workspace).Msg("workspace updated from client roots")
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
