package execute

import (
	"fmt"
	"time"

	"github.com/deixis/hybridexec/internal/claim"
	"github.com/google/uuid"
)

// Status is the outcome of one execution attempt.
type Status int

const (
	// Success means the process ran and exited as expected.
	Success Status = iota
	// Failure means the process ran and exited non-zero.
	Failure
	// Error is an infrastructure failure: the command could not be run.
	Error
	// TimedOut means the executor gave up waiting for the command.
	TimedOut
	// ClaimCancelled means the other executor took over the command.
	ClaimCancelled
)

var statusNames = []string{"success", "failure", "error", "timed_out", "claim_cancelled"}

func (s Status) String() string {
	if int(s) >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	for i, name := range statusNames {
		if name == string(b) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", b)
}

// Executor names recorded in reports.
const (
	ExecutorLocal  = "local"
	ExecutorRemote = "remote"
	ExecutorHybrid = "hybrid"
)

// Report describes one execution attempt.
type Report struct {
	ID        string        `json:"id"`
	Executor  string        `json:"executor"`
	Status    Status        `json:"status"`
	ExitCode  int           `json:"exit_code"`
	Stdout    string        `json:"stdout,omitempty"`
	Stderr    string        `json:"stderr,omitempty"`
	Error     string        `json:"error,omitempty"`
	Truncated bool          `json:"truncated,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// NewReport starts a report for an attempt on executor.
func NewReport(executor string) Report {
	return Report{
		ID:        uuid.New().String(),
		Executor:  executor,
		StartedAt: time.Now(),
	}
}

// Finish sets the status and stamps the duration.
func (r *Report) Finish(status Status) {
	r.Status = status
	r.Duration = time.Since(r.StartedAt)
}

// Result is what an executor hands back for a command. Claim is non-nil
// while the executor still holds its claim.
type Result struct {
	Report   Report
	Claim    claim.Claim
	Rejected *Report
}

// TakeClaim returns the held claim, leaving none on the result.
func (r *Result) TakeClaim() claim.Claim {
	c := r.Claim
	r.Claim = nil
	return c
}

// StatusOf classifies a finished process. A cancelled run means the other
// side took over.
func StatusOf(exitCode int, timedOut, cancelled bool) Status {
	switch {
	case cancelled:
		return ClaimCancelled
	case timedOut:
		return TimedOut
	case exitCode == 0:
		return Success
	default:
		return Failure
	}
}
