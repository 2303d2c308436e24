package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/hybridexec/internal/execute"
	"github.com/deixis/hybridexec/internal/report"
)

type inspectParams struct {
	ID string `json:"id" jsonschema:"the report id returned by execute"`
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	if params.ID == "" {
		return errorResult("id is required")
	}

	record, err := h.store.Load(params.ID)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load record %s: %v", params.ID, err))
	}
	return textResult(FormatRecord(record))
}

// FormatRecord renders a record for humans, attempts in the order they
// were settled.
func FormatRecord(r *report.Record) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Record: %s\n", r.ID)
	if r.TraceID != "" {
		fmt.Fprintf(&b, "Trace: %s\n", r.TraceID)
	}
	fmt.Fprintf(&b, "Command: %s\n", strings.Join(r.Args, " "))
	fmt.Fprintf(&b, "Outcome: %s\n", r.Summary())

	for _, a := range r.Attempts() {
		fmt.Fprintln(&b)
		writeAttempt(&b, a, a.ID == r.Final.ID)
	}
	return b.String()
}

func writeAttempt(b *strings.Builder, a execute.Report, final bool) {
	label := "rejected"
	if final {
		label = "final"
	}
	fmt.Fprintf(b, "[%s] %s %s exit=%d duration=%s\n", label, a.Executor, a.Status, a.ExitCode, a.Duration)
	if a.Error != "" {
		fmt.Fprintf(b, "error: %s\n", a.Error)
	}
	writeStream(b, "stdout", a.Stdout)
	writeStream(b, "stderr", a.Stderr)
	if a.Truncated {
		fmt.Fprintln(b, "(output truncated)")
	}
}

func writeStream(b *strings.Builder, name, text string) {
	if text == "" {
		return
	}
	fmt.Fprintf(b, "%s:\n", name)
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		fmt.Fprintf(b, "    %s\n", line)
	}
}
