package local

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/deixis/hybridexec/internal/claim"
	"github.com/deixis/hybridexec/internal/execute"
	"github.com/deixis/hybridexec/internal/liveliness"
	"github.com/deixis/hybridexec/internal/runner"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	return New(&runner.Runner{
		Workspace: t.TempDir(),
		Timeout:   10 * time.Second,
		MaxOutput: 1 << 20,
	}, 5*time.Millisecond)
}

func cmd(args ...string) *execute.PreparedCommand {
	return &execute.PreparedCommand{Request: execute.Request{Args: args}}
}

func TestExecCmd_Statuses(t *testing.T) {
	tests := []struct {
		name   string
		cmd    *execute.PreparedCommand
		want   execute.Status
		exit   int
		stdout string
	}{
		{"success", cmd("echo", "hi"), execute.Success, 0, "hi"},
		{"failure", cmd("sh", "-c", "exit 2"), execute.Failure, 2, ""},
		{"error", cmd("nonexistent-binary-xyz-123"), execute.Error, -1, ""},
		{
			"timed out",
			&execute.PreparedCommand{Request: execute.Request{Args: []string{"sleep", "10"}, Timeout: 50 * time.Millisecond}},
			execute.TimedOut, -1, "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestExecutor(t)
			claims := claim.NewMutexManager()
			m := execute.NewCommandExecutionManager(claims, nil, nil)

			res := e.ExecCmd(context.Background(), tt.cmd, m)
			if res.Report.Status != tt.want {
				t.Fatalf("Status = %s, want %s (error %q)", res.Report.Status, tt.want, res.Report.Error)
			}
			if tt.want != execute.TimedOut && res.Report.ExitCode != tt.exit {
				t.Errorf("ExitCode = %d, want %d", res.Report.ExitCode, tt.exit)
			}
			if !strings.Contains(res.Report.Stdout, tt.stdout) {
				t.Errorf("Stdout = %q, want %q", res.Report.Stdout, tt.stdout)
			}
			if res.Report.Executor != execute.ExecutorLocal {
				t.Errorf("Executor = %s", res.Report.Executor)
			}
			if res.Claim == nil || !claims.Held() {
				t.Error("result does not hold the claim")
			}
		})
	}
}

func TestExecCmd_DeadBeforeStart(t *testing.T) {
	e := newTestExecutor(t)
	flag, guard := liveliness.Create()
	guard.Cancel()
	claims := claim.NewMutexManager()
	m := execute.NewCommandExecutionManager(claims, nil, flag)

	res := e.ExecCmd(context.Background(), cmd("echo", "hi"), m)
	if res.Report.Status != execute.ClaimCancelled {
		t.Fatalf("Status = %s, want claim_cancelled", res.Report.Status)
	}
	if res.Claim != nil || claims.Held() {
		t.Error("claim taken by a dead execution")
	}
}

func TestExecCmd_ClaimDenied(t *testing.T) {
	e := newTestExecutor(t)
	claims := claim.NewMutexManager()
	held := claims.Claim(context.Background())
	defer held.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	m := execute.NewCommandExecutionManager(claims.Share(), nil, nil)

	res := e.ExecCmd(ctx, cmd("echo", "hi"), m)
	if res.Report.Status != execute.ClaimCancelled {
		t.Fatalf("Status = %s, want claim_cancelled", res.Report.Status)
	}
	if res.Claim != nil {
		t.Error("denied execution returned a claim")
	}
}

func TestExecCmd_LivelinessLostKillsProcess(t *testing.T) {
	e := newTestExecutor(t)
	flag, guard := liveliness.Create()
	claims := claim.NewMutexManager()
	m := execute.NewCommandExecutionManager(claims, nil, flag)

	time.AfterFunc(50*time.Millisecond, func() { guard.Cancel() })

	start := time.Now()
	res := e.ExecCmd(context.Background(), cmd("sleep", "10"), m)
	if res.Report.Status != execute.ClaimCancelled {
		t.Fatalf("Status = %s, want claim_cancelled", res.Report.Status)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("process was not killed on liveliness loss")
	}
	if res.Claim == nil || !claims.Held() {
		t.Fatal("cancelled execution should hand back the claim it holds")
	}
	if err := res.TakeClaim().Release(); err != nil {
		t.Errorf("Release: %v", err)
	}
}
