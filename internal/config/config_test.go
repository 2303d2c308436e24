package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/deixis/hybridexec/internal/execute"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_FromRepoRoot(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module example.com/test\n")
	writeFile(t, dir, YAMLFile, "version: 1\ntimeout: 10m\n")

	res, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.RepoRoot != dir {
		t.Errorf("RepoRoot = %q, want %q", res.RepoRoot, dir)
	}
	if res.Config.Version != 1 {
		t.Errorf("Config.Version = %d, want 1", res.Config.Version)
	}
	if res.Config.Timeout() != 10*time.Minute {
		t.Errorf("Timeout = %v, want 10m", res.Config.Timeout())
	}
	if res.Path != filepath.Join(dir, YAMLFile) {
		t.Errorf("Path = %q", res.Path)
	}
}

func TestLoad_FromSubdirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "go.mod", "module example.com/test\n")
	writeFile(t, root, YAMLFile, "version: 2\n")

	sub := filepath.Join(root, "pkg", "foo")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	res, err := Load(sub)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.RepoRoot != root {
		t.Errorf("RepoRoot = %q, want %q", res.RepoRoot, root)
	}
	if res.Config.Version != 2 {
		t.Errorf("Config.Version = %d, want 2", res.Config.Version)
	}
}

func TestLoad_NoGoMod(t *testing.T) {
	dir := t.TempDir()

	res, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.RepoRoot != dir {
		t.Errorf("RepoRoot = %q, want %q (fallback to workspace)", res.RepoRoot, dir)
	}
	if res.Path != "" {
		t.Errorf("Path = %q, want none", res.Path)
	}
	if res.Config.Timeout() != DefaultTimeout || res.Config.MaxOutputBytes() != DefaultMaxOutput {
		t.Errorf("expected defaults, got %v / %d", res.Config.Timeout(), res.Config.MaxOutputBytes())
	}
}

func TestLoad_TOML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module example.com/test\n")
	writeFile(t, dir, TOMLFile, `
timeout = "30s"

[remote]
address = "http://worker:8080/mcp"
use_case = "ci"
max_input_files_bytes = 1024

[remote.properties]
os = "linux"

[hybrid]
level = "fallback"
fallback_on_failure = true
preference = "prefers_local"
`)

	res, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg := res.Config
	if cfg.Timeout() != 30*time.Second {
		t.Errorf("Timeout = %v", cfg.Timeout())
	}
	level, err := cfg.Level()
	if err != nil {
		t.Fatal(err)
	}
	if level != execute.Fallback(true) {
		t.Errorf("Level = %v, want fallback on failure", level)
	}
	pref, err := cfg.Preference()
	if err != nil {
		t.Fatal(err)
	}
	if pref != execute.PrefersLocal {
		t.Errorf("Preference = %v", pref)
	}
	opts := cfg.Remote.Options()
	if opts.UseCase != "ci" || opts.MaxInputFilesBytes != 1024 || opts.Properties["os"] != "linux" {
		t.Errorf("Options = %+v", opts)
	}
	kind, err := cfg.ExecutorKind()
	if err != nil || kind != KindHybrid {
		t.Errorf("ExecutorKind = %v, %v, want hybrid", kind, err)
	}
}

func TestLoad_TOMLUnknownKey(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, TOMLFile, "tiemout = \"30s\"\n")

	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLoad_YAMLPreferredOverTOML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, YAMLFile, "version: 3\n")
	writeFile(t, dir, TOMLFile, "version = 4\n")

	res, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Config.Version != 3 {
		t.Errorf("Version = %d, want 3 from YAML", res.Config.Version)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, YAMLFile, "timeout: [\n")

	if _, err := Load(dir); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestExecutorKind(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    Kind
		wantErr error
	}{
		{"local only", Config{}, KindLocal, nil},
		{"remote only", Config{Local: LocalConfig{Disabled: true}, Remote: RemoteConfig{Address: "x"}}, KindRemote, nil},
		{"hybrid", Config{Remote: RemoteConfig{Address: "x"}}, KindHybrid, nil},
		{"neither", Config{Local: LocalConfig{Disabled: true}}, 0, ErrMissingLocalAndRemote},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.ExecutorKind()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("kind = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAccessorDefaults(t *testing.T) {
	cfg := &Config{}
	level, err := cfg.Level()
	if err != nil {
		t.Fatal(err)
	}
	if level.Kind != execute.LevelFull {
		t.Errorf("default level = %v, want full", level)
	}
	if cfg.PollInterval() != DefaultPollInterval {
		t.Errorf("PollInterval = %v", cfg.PollInterval())
	}
	if cfg.LowPassCapacity() < 1 {
		t.Errorf("LowPassCapacity = %d", cfg.LowPassCapacity())
	}
	if cfg.Remote.Options().UseCase != execute.DefaultUseCase {
		t.Errorf("UseCase = %q", cfg.Remote.Options().UseCase)
	}
	cfg.Hybrid.Level = "sideways"
	if err := cfg.Validate(); err == nil {
		t.Error("Validate accepted an unknown level")
	}
}

func TestRecordDir(t *testing.T) {
	res := &LoadResult{Config: &Config{Records: RecordConfig{Dir: ".records"}}, RepoRoot: "/repo"}
	if got := res.RecordDir(); got != filepath.Join("/repo", ".records") {
		t.Errorf("RecordDir = %q", got)
	}
	res.Config.Records.Dir = ""
	if got := res.RecordDir(); got != filepath.Join("/repo", DefaultRecordDir) {
		t.Errorf("RecordDir = %q, want the default under the repository root", got)
	}
	res.Config.Records.Dir = "/var/records"
	if got := res.RecordDir(); got != "/var/records" {
		t.Errorf("RecordDir = %q", got)
	}
}
