package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/hybridexec/internal/execute"
	"github.com/deixis/hybridexec/internal/metrics"
	"github.com/deixis/hybridexec/internal/remote"
	"github.com/deixis/hybridexec/internal/report"
	"github.com/deixis/hybridexec/internal/runner"
)

func (h *handler) executeHandler(ctx context.Context, req *mcp.CallToolRequest, params remote.ExecuteArgs) (*mcp.CallToolResult, any, error) {
	if len(params.Args) == 0 {
		return errorResult("args is required")
	}

	log := h.log.With().
		Str("trace_id", params.TraceID).
		Str("use_case", params.UseCase).
		Strs("args", params.Args).
		Logger()

	r := h.currentRunner()
	rep := execute.NewReport(execute.ExecutorRemote)

	res, err := r.Run(ctx, runner.Command{
		Args:    params.Args,
		Env:     params.Env,
		Cwd:     params.Cwd,
		Timeout: time.Duration(params.TimeoutMs) * time.Millisecond,
	})
	if err != nil {
		rep.Error = err.Error()
		rep.ExitCode = -1
		rep.Finish(execute.Error)
		log.Warn().Err(err).Msg("command could not be run")
	} else {
		rep.ID = res.RunID
		rep.ExitCode = res.ExitCode
		rep.Stdout = string(res.Stdout)
		rep.Stderr = string(res.Stderr)
		rep.Truncated = res.Truncated
		rep.Finish(execute.StatusOf(res.ExitCode, res.TimedOut, res.Cancelled))
		log.Debug().Stringer("status", rep.Status).Int("exit_code", res.ExitCode).Msg("command finished")
	}
	metrics.RecordWorkerExecution(rep.Status.String(), rep.Duration.Seconds())

	// Save for inspect.
	record := report.NewRecord(params.TraceID, params.Args, &execute.Result{Report: rep})
	if err := h.store.Save(record); err != nil {
		log.Warn().Err(err).Str("id", record.ID).Msg("record not saved")
	}

	data, err := json.Marshal(rep)
	if err != nil {
		return errorResult(fmt.Sprintf("encoding report: %v", err))
	}
	return textResult(string(data))
}
