// Package report persists execution records: the authoritative attempt of
// a command and the attempt it replaced, if any.
package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/deixis/hybridexec/internal/execute"
)

// ErrNotFound is returned by Load when no record has the given id.
var ErrNotFound = errors.New("report: record not found")

// Store persists and retrieves execution records.
type Store interface {
	Save(record *Record) error
	Load(id string) (*Record, error)
}

// Record is everything known about one dispatched command.
type Record struct {
	ID        string          `json:"id"`
	TraceID   string          `json:"trace_id,omitempty"`
	Args      []string        `json:"args"`
	Final     execute.Report  `json:"final"`
	Rejected  *execute.Report `json:"rejected,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewRecord captures res as the outcome of args. The record shares the id
// of its final report.
func NewRecord(traceID string, args []string, res *execute.Result) *Record {
	return &Record{
		ID:        res.Report.ID,
		TraceID:   traceID,
		Args:      args,
		Final:     res.Report,
		Rejected:  res.Rejected,
		CreatedAt: time.Now().UTC(),
	}
}

// Attempts returns the reports in the order they were settled.
func (r *Record) Attempts() []execute.Report {
	if r.Rejected == nil {
		return []execute.Report{r.Final}
	}
	return []execute.Report{*r.Rejected, r.Final}
}

// FellBack reports whether another attempt was discarded before the final one.
func (r *Record) FellBack() bool {
	return r.Rejected != nil
}

// Summary renders a one-line description, e.g.
// "remote error -> local success (exit 0)".
func (r *Record) Summary() string {
	var parts []string
	for _, a := range r.Attempts() {
		parts = append(parts, fmt.Sprintf("%s %s", a.Executor, a.Status))
	}
	return fmt.Sprintf("%s (exit %d)", strings.Join(parts, " -> "), r.Final.ExitCode)
}
