package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew_TestProfile(t *testing.T) {
	var buf bytes.Buffer
	logger := New("hybridexec", TestProfile(&buf))

	logger.Debug().Str("executor", "local").Msg("command finished")

	out := buf.String()
	for _, want := range []string{"command finished", "executor=local", "app=hybridexec"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("output %q contains color codes", out)
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	p := TestProfile(&buf)
	p.Level = zerolog.WarnLevel
	logger := New("hybridexec", p)

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("info line logged at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn line missing")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvLevel, "ERROR")
	t.Setenv(EnvTimestamp, "false")
	t.Setenv(EnvNoColor, "1")

	p := FromEnv(RuntimeProfile())
	if p.Level != zerolog.ErrorLevel {
		t.Errorf("Level = %v, want error", p.Level)
	}
	if p.Timestamp {
		t.Error("Timestamp = true, want false")
	}
	if !p.NoColor {
		t.Error("NoColor = false, want true")
	}
}

func TestFromEnv_InvalidIgnored(t *testing.T) {
	t.Setenv(EnvLevel, "loud")
	t.Setenv(EnvTimestamp, "sometimes")

	p := FromEnv(RuntimeProfile())
	if p.Level != zerolog.InfoLevel || !p.Timestamp {
		t.Errorf("profile changed by invalid values: %+v", p)
	}
}
