package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/deixis/hybridexec"
	"github.com/deixis/hybridexec/internal/config"
	"github.com/deixis/hybridexec/internal/execute"
	"github.com/deixis/hybridexec/internal/hybrid"
	"github.com/deixis/hybridexec/internal/local"
	"github.com/deixis/hybridexec/internal/remote"
)

func TestVersionCmd(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if strings.TrimSpace(out.String()) != hybridexec.Version {
		t.Errorf("version output = %q", out.String())
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := &config.Config{Hybrid: config.HybridConfig{Level: "full", LowPassFilter: true}}
	f := execFlags{level: "limited", remote: "http://w/mcp", lowPass: false}
	set := map[string]bool{"level": true, "remote": true}

	applyFlags(cfg, f, func(name string) bool { return set[name] })

	if cfg.Hybrid.Level != "limited" || cfg.Remote.Address != "http://w/mcp" {
		t.Errorf("flags not applied: %+v", cfg)
	}
	if !cfg.Hybrid.LowPassFilter {
		t.Error("unset flag overrode the config")
	}
}

func TestActionPaths(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	if err := os.WriteFile(a, make([]byte, 10), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, make([]byte, 5), 0o644); err != nil {
		t.Fatal(err)
	}

	paths, err := actionPaths([]string{a, b})
	if err != nil {
		t.Fatalf("actionPaths: %v", err)
	}
	if paths.InputsBytes != 15 || len(paths.Inputs) != 2 {
		t.Errorf("paths = %+v", paths)
	}
	if _, err := actionPaths([]string{filepath.Join(dir, "missing")}); err == nil {
		t.Error("expected error for a missing input")
	}
}

func TestBuildExecutor(t *testing.T) {
	tests := []struct {
		name  string
		cfg   config.Config
		check func(t *testing.T, e any)
	}{
		{"local", config.Config{}, func(t *testing.T, e any) {
			if _, ok := e.(*local.Executor); !ok {
				t.Errorf("got %T, want *local.Executor", e)
			}
		}},
		{"remote", config.Config{Local: config.LocalConfig{Disabled: true}, Remote: config.RemoteConfig{Address: "http://w/mcp"}}, func(t *testing.T, e any) {
			if _, ok := e.(*remote.Executor); !ok {
				t.Errorf("got %T, want *remote.Executor", e)
			}
		}},
		{"hybrid", config.Config{Remote: config.RemoteConfig{Address: "http://w/mcp"}}, func(t *testing.T, e any) {
			if _, ok := e.(*hybrid.Executor); !ok {
				t.Errorf("got %T, want *hybrid.Executor", e)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			e, closeFn, err := buildExecutor(&config.LoadResult{Config: &cfg, RepoRoot: t.TempDir()})
			if err != nil {
				t.Fatalf("buildExecutor: %v", err)
			}
			defer closeFn()
			tt.check(t, e)
		})
	}

	cfg := config.Config{Local: config.LocalConfig{Disabled: true}}
	if _, _, err := buildExecutor(&config.LoadResult{Config: &cfg}); !errors.Is(err, config.ErrMissingLocalAndRemote) {
		t.Errorf("err = %v, want ErrMissingLocalAndRemote", err)
	}
}

func TestExitError(t *testing.T) {
	var err error = &exitError{code: 3}
	var ee *exitError
	if !errors.As(err, &ee) || ee.code != 3 || err.Error() != "exit status 3" {
		t.Errorf("exitError = %v", err)
	}
}

type releaseRecorder struct{ released bool }

func (c *releaseRecorder) Release() error {
	c.released = true
	return errors.New("nothing to restore")
}

func TestSettleDropsClaim(t *testing.T) {
	c := &releaseRecorder{}
	res := &execute.Result{Report: execute.NewReport(execute.ExecutorRemote), Claim: c}

	settle(res)

	if res.Claim != nil {
		t.Error("claim still attached after settle")
	}
	if c.released {
		t.Error("settled claim was released")
	}
}
