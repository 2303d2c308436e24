// Package logging configures zerolog for the command line and tests.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Environment overrides applied by FromEnv.
const (
	EnvLevel     = "HYBRIDEXEC_LOG_LEVEL"
	EnvTimestamp = "HYBRIDEXEC_LOG_TIMESTAMP"
	EnvNoColor   = "HYBRIDEXEC_LOG_NOCOLOR"
)

// Profile describes how log lines are rendered.
type Profile struct {
	Level     zerolog.Level
	Timestamp bool
	NoColor   bool
	Out       io.Writer
}

// RuntimeProfile logs info and above to stderr with RFC3339 timestamps.
// Stdout is left to the commands being run.
func RuntimeProfile() Profile {
	return Profile{Level: zerolog.InfoLevel, Timestamp: true, Out: os.Stderr}
}

// TestProfile logs everything without timestamps or colors.
func TestProfile(out io.Writer) Profile {
	return Profile{Level: zerolog.DebugLevel, NoColor: true, Out: out}
}

// FromEnv applies the HYBRIDEXEC_LOG_* variables to p. Invalid values are
// ignored.
func FromEnv(p Profile) Profile {
	if v := strings.TrimSpace(os.Getenv(EnvLevel)); v != "" {
		if lvl, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			p.Level = lvl
		}
	}
	if v, err := strconv.ParseBool(os.Getenv(EnvTimestamp)); err == nil {
		p.Timestamp = v
	}
	if v, err := strconv.ParseBool(os.Getenv(EnvNoColor)); err == nil {
		p.NoColor = v
	}
	return p
}

// New builds a console logger tagged with app.
func New(app string, p Profile) zerolog.Logger {
	out := p.Out
	if out == nil {
		out = os.Stderr
	}
	output := zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    p.NoColor,
		TimeFormat: time.RFC3339,
	}
	if !p.Timestamp {
		output.PartsExclude = []string{zerolog.TimestampFieldName}
	}
	ctx := zerolog.New(output).Level(p.Level).With().Str("app", app)
	if p.Timestamp {
		ctx = ctx.Timestamp()
	}
	return ctx.Logger()
}

// InitLogger builds the runtime logger, honouring the environment, and
// installs it as the global logger.
func InitLogger(app string) zerolog.Logger {
	logger := New(app, FromEnv(RuntimeProfile()))
	log.Logger = logger
	return logger
}
