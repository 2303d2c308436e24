package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/deixis/hybridexec/internal/claim"
	"github.com/deixis/hybridexec/internal/config"
	"github.com/deixis/hybridexec/internal/execute"
	"github.com/deixis/hybridexec/internal/hybrid"
	"github.com/deixis/hybridexec/internal/liveliness"
	"github.com/deixis/hybridexec/internal/local"
	"github.com/deixis/hybridexec/internal/logging"
	"github.com/deixis/hybridexec/internal/lowpass"
	"github.com/deixis/hybridexec/internal/remote"
	"github.com/deixis/hybridexec/internal/report"
	"github.com/deixis/hybridexec/internal/runner"
)

type execFlags struct {
	level             string
	prefer            string
	fallbackOnFailure bool
	lowPass           bool
	remote            string
	cwd               string
	env               []string
	inputs            []string
	jsonOut           bool
}

func newExecCmd() *cobra.Command {
	var f execFlags
	cmd := &cobra.Command{
		Use:   "exec [flags] -- command [args...]",
		Short: "Run a command through the configured executors",
		Long: `Run a command locally, remotely, or on both, as configured.

The command's output is written to stdout and stderr and the process exits
with the command's exit code. Every run is recorded; use "hybridexec inspect"
with the printed record id to see the attempts that were made.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd, f, args, cmd.Flags().Changed)
		},
	}
	fl := cmd.Flags()
	fl.SetInterspersed(false)
	fl.StringVar(&f.level, "level", "", "hybrid level: limited, fallback or full")
	fl.StringVar(&f.prefer, "prefer", "", "request preference: prefers_local, prefers_remote, requires_local or requires_remote")
	fl.BoolVar(&f.fallbackOnFailure, "fallback-on-failure", false, "also fall back when the command exits non-zero")
	fl.BoolVar(&f.lowPass, "low-pass", false, "bound concurrent races with the low-pass filter")
	fl.StringVar(&f.remote, "remote", "", "worker MCP endpoint, overrides remote.address")
	fl.StringVar(&f.cwd, "cwd", "", "working directory relative to the repository root")
	fl.StringArrayVar(&f.env, "env", nil, "KEY=VALUE added to the command environment (repeatable)")
	fl.StringSliceVar(&f.inputs, "input", nil, "input files, used to decide whether the action fits the worker")
	fl.BoolVar(&f.jsonOut, "json", false, "print the execution record as JSON instead of the command output")
	return cmd
}

// applyFlags overlays explicitly set flags on the loaded configuration.
func applyFlags(cfg *config.Config, f execFlags, changed func(string) bool) {
	if changed("level") {
		cfg.Hybrid.Level = f.level
	}
	if changed("fallback-on-failure") {
		cfg.Hybrid.FallbackOnFailure = f.fallbackOnFailure
	}
	if changed("low-pass") {
		cfg.Hybrid.LowPassFilter = f.lowPass
	}
	if changed("remote") {
		cfg.Remote.Address = f.remote
	}
}

func runExec(cmd *cobra.Command, f execFlags, args []string, changed func(string) bool) error {
	logger := logging.InitLogger("hybridexec")

	workspace, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining workspace: %w", err)
	}
	loaded, err := config.Load(workspace)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg := loaded.Config
	applyFlags(cfg, f, changed)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	preference, err := execute.ParsePreference(f.prefer)
	if err != nil {
		return err
	}
	paths, err := actionPaths(f.inputs)
	if err != nil {
		return err
	}

	executor, closeExecutor, err := buildExecutor(loaded)
	if err != nil {
		return err
	}
	defer closeExecutor()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	events := execute.NewEventDispatcher(logger)
	manager := execute.NewCommandExecutionManager(claim.NewMutexManager(), events, liveliness.Context(ctx))
	prepared := &execute.PreparedCommand{
		Request: execute.Request{
			Args:       args,
			Env:        f.env,
			Cwd:        f.cwd,
			Timeout:    cfg.Timeout(),
			Preference: preference,
		},
		Paths: paths,
	}

	res := executor.ExecCmd(ctx, prepared, manager)
	settle(res)

	record := report.NewRecord(events.TraceID().String(), args, res)
	saveRecord(logger, loaded, record)

	if f.jsonOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(record); err != nil {
			return err
		}
	} else {
		fmt.Fprint(cmd.OutOrStdout(), res.Report.Stdout)
		fmt.Fprint(cmd.ErrOrStderr(), res.Report.Stderr)
		if res.Report.Error != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "hybridexec: %s\n", res.Report.Error)
		}
	}
	logger.Info().
		Str("record", record.ID).
		Str("outcome", record.Summary()).
		Msg("command settled")

	if res.Report.Status != execute.Success {
		code := res.Report.ExitCode
		if code <= 0 {
			code = 1
		}
		return &exitError{code: code}
	}
	return nil
}

// settle drops the winning claim once the command has finished. Releasing a
// remote win would restore a local attempt that is already torn down.
func settle(res *execute.Result) {
	_ = res.TakeClaim()
}

// buildExecutor assembles the executor selected by the configuration.
func buildExecutor(loaded *config.LoadResult) (execute.Executor, func(), error) {
	cfg := loaded.Config
	kind, err := cfg.ExecutorKind()
	if err != nil {
		return nil, nil, err
	}

	r := &runner.Runner{
		Workspace: loaded.RepoRoot,
		Timeout:   cfg.Timeout(),
		MaxOutput: cfg.MaxOutputBytes(),
	}
	localExec := local.New(r, cfg.PollInterval())

	switch kind {
	case config.KindLocal:
		return localExec, func() {}, nil
	case config.KindRemote:
		remoteExec := remote.New(cfg.Remote.Options())
		return remoteExec, func() { _ = remoteExec.Close() }, nil
	default:
		level, err := cfg.Level()
		if err != nil {
			return nil, nil, err
		}
		preference, err := cfg.Preference()
		if err != nil {
			return nil, nil, err
		}
		remoteExec := remote.New(cfg.Remote.Options())
		h := hybrid.New(localExec, remoteExec, level, preference,
			hybrid.WithLowPassFilter(lowpass.New(cfg.LowPassCapacity())))
		return h, func() { _ = remoteExec.Close() }, nil
	}
}

// actionPaths sums the sizes of the declared inputs.
func actionPaths(inputs []string) (execute.ActionPaths, error) {
	paths := execute.ActionPaths{Inputs: inputs}
	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			return execute.ActionPaths{}, fmt.Errorf("input %s: %w", in, err)
		}
		paths.InputsBytes += uint64(info.Size())
	}
	return paths, nil
}

func openStore(loaded *config.LoadResult) report.Store {
	return report.NewLRUStore(loaded.Config.RecordCacheSize(), report.NewDiskStore(loaded.RecordDir()))
}

func saveRecord(logger zerolog.Logger, loaded *config.LoadResult, record *report.Record) {
	if err := openStore(loaded).Save(record); err != nil {
		logger.Warn().Err(err).Str("record", record.ID).Msg("record not saved")
	}
}
