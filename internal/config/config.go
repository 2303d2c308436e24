// Package config loads the optional .hybridexec.yaml or .hybridexec.toml
// file that sets the execution policy.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/deixis/hybridexec/internal/execute"
	"github.com/deixis/hybridexec/internal/remote"
)

// Default values for runner configuration.
const (
	DefaultTimeout      = 5 * time.Minute
	DefaultMaxOutput    = 1 << 20 // 1 MB
	DefaultPollInterval = 50 * time.Millisecond
	DefaultRecordCache  = 64
	DefaultRecordDir    = ".hybridexec/records"
)

// File names looked up at the repository root, in order.
const (
	YAMLFile = ".hybridexec.yaml"
	TOMLFile = ".hybridexec.toml"
)

// ErrMissingLocalAndRemote is returned when neither executor is enabled.
var ErrMissingLocalAndRemote = errors.New("executor config must have at least one of local or remote options")

// Config holds the parsed configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version      int          `yaml:"version" toml:"version"`
	RawTimeout   string       `yaml:"timeout" toml:"timeout"`       // e.g. "5m", "30s"
	RawMaxOutput int          `yaml:"max_output" toml:"max_output"` // bytes
	Local        LocalConfig  `yaml:"local" toml:"local"`
	Remote       RemoteConfig `yaml:"remote" toml:"remote"`
	Hybrid       HybridConfig `yaml:"hybrid" toml:"hybrid"`
	Records      RecordConfig `yaml:"records" toml:"records"`
}

// LocalConfig controls the local executor.
type LocalConfig struct {
	Disabled        bool   `yaml:"disabled" toml:"disabled"`
	RawPollInterval string `yaml:"poll_interval" toml:"poll_interval"` // liveliness poll period
}

// RemoteConfig controls the remote executor. Remote execution is enabled
// by setting an address.
type RemoteConfig struct {
	Address            string            `yaml:"address" toml:"address"` // worker MCP endpoint
	UseCase            string            `yaml:"use_case" toml:"use_case"`
	ActionKey          string            `yaml:"action_key" toml:"action_key"`
	MaxInputFilesBytes uint64            `yaml:"max_input_files_bytes" toml:"max_input_files_bytes"`
	Properties         map[string]string `yaml:"properties" toml:"properties"`
}

// HybridConfig controls how the two executors are combined.
type HybridConfig struct {
	Level             string `yaml:"level" toml:"level"`           // limited, fallback or full
	Preference        string `yaml:"preference" toml:"preference"` // e.g. prefers_local
	FallbackOnFailure bool   `yaml:"fallback_on_failure" toml:"fallback_on_failure"`
	LowPassFilter     bool   `yaml:"low_pass_filter" toml:"low_pass_filter"`
	LowPassCapacity   int    `yaml:"low_pass_capacity" toml:"low_pass_capacity"`
}

// RecordConfig controls where execution records are kept.
type RecordConfig struct {
	Dir       string `yaml:"dir" toml:"dir"` // relative to the repository root
	CacheSize int    `yaml:"cache_size" toml:"cache_size"`
}

// Timeout returns the configured timeout or the default.
func (c *Config) Timeout() time.Duration {
	if d, ok := parseDuration(c.RawTimeout); ok {
		return d
	}
	return DefaultTimeout
}

// MaxOutputBytes returns the configured max output size or the default.
func (c *Config) MaxOutputBytes() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return DefaultMaxOutput
}

// PollInterval returns how often local execution checks its liveliness.
func (c *Config) PollInterval() time.Duration {
	if d, ok := parseDuration(c.Local.RawPollInterval); ok {
		return d
	}
	return DefaultPollInterval
}

// Level returns the configured hybrid level. An empty level means full.
func (c *Config) Level() (execute.Level, error) {
	kind, err := execute.ParseLevelKind(c.Hybrid.Level)
	if err != nil {
		return execute.Level{}, fmt.Errorf("hybrid.level: %w", err)
	}
	switch kind {
	case execute.LevelLimited:
		return execute.Limited(), nil
	case execute.LevelFallback:
		return execute.Fallback(c.Hybrid.FallbackOnFailure), nil
	default:
		return execute.Full(c.Hybrid.FallbackOnFailure, c.Hybrid.LowPassFilter), nil
	}
}

// Preference returns the executor-level preference.
func (c *Config) Preference() (execute.ExecutorPreference, error) {
	p, err := execute.ParsePreference(c.Hybrid.Preference)
	if err != nil {
		return execute.Default, fmt.Errorf("hybrid.preference: %w", err)
	}
	return p, nil
}

// LowPassCapacity returns how many races may be admitted at once.
func (c *Config) LowPassCapacity() int {
	if c.Hybrid.LowPassCapacity > 0 {
		return c.Hybrid.LowPassCapacity
	}
	return runtime.NumCPU()
}

// RecordCacheSize returns the number of records kept in memory.
func (c *Config) RecordCacheSize() int {
	if c.Records.CacheSize > 0 {
		return c.Records.CacheSize
	}
	return DefaultRecordCache
}

// Options converts the remote section into executor options.
func (r *RemoteConfig) Options() remote.Options {
	useCase := execute.DefaultUseCase
	if r.UseCase != "" {
		useCase = execute.UseCase(r.UseCase)
	}
	return remote.Options{
		Address:            r.Address,
		UseCase:            useCase,
		ActionKey:          r.ActionKey,
		MaxInputFilesBytes: r.MaxInputFilesBytes,
		Properties:         r.Properties,
	}
}

// Kind says which executors a command may use.
type Kind int

const (
	KindLocal Kind = iota
	KindRemote
	KindHybrid
)

func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindRemote:
		return "remote"
	case KindHybrid:
		return "hybrid"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ExecutorKind picks the executor from which sides are enabled.
func (c *Config) ExecutorKind() (Kind, error) {
	local := !c.Local.Disabled
	remote := c.Remote.Address != ""
	switch {
	case local && remote:
		return KindHybrid, nil
	case remote:
		return KindRemote, nil
	case local:
		return KindLocal, nil
	default:
		return 0, ErrMissingLocalAndRemote
	}
}

// Validate checks every field that has a parsed form.
func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	if _, err := c.Preference(); err != nil {
		return err
	}
	if _, err := c.ExecutorKind(); err != nil {
		return err
	}
	for name, raw := range map[string]string{"timeout": c.RawTimeout, "local.poll_interval": c.Local.RawPollInterval} {
		if raw == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func parseDuration(raw string) (time.Duration, bool) {
	if raw == "" {
		return 0, false
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

// LoadResult holds the parsed config and the discovered repository root.
type LoadResult struct {
	Config   *Config
	RepoRoot string // directory containing go.mod; falls back to workspace
	Path     string // file the config was read from, empty if none
}

// RecordDir returns the absolute directory records are kept in.
func (r *LoadResult) RecordDir() string {
	dir := r.Config.Records.Dir
	if dir == "" {
		dir = DefaultRecordDir
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(r.RepoRoot, dir)
}

// Load reads the config file from the repository root.
// The repository root is discovered by walking upward from workspace
// looking for go.mod. If no config file exists, a default Config is returned.
func Load(workspace string) (*LoadResult, error) {
	root, err := findRepoRoot(workspace)
	if err != nil {
		// No go.mod found; use workspace as root.
		root = workspace
	}

	for _, name := range []string{YAMLFile, TOMLFile} {
		path := filepath.Join(root, name)
		cfg, err := LoadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &LoadResult{Config: cfg, RepoRoot: root, Path: path}, nil
	}
	return &LoadResult{Config: &Config{}, RepoRoot: root}, nil
}

// LoadFile parses a single config file, choosing the format by extension.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}

	cfg := &Config{}
	switch filepath.Ext(path) {
	case ".toml":
		meta, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("parsing %s: unknown key %q", filepath.Base(path), undecoded[0].String())
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
		}
	}
	return cfg, nil
}

// findRepoRoot walks upward from dir looking for a directory containing go.mod.
func findRepoRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
