package execute

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/deixis/hybridexec/internal/claim"
)

func TestExecutorPreference_And(t *testing.T) {
	cases := []struct {
		static, request ExecutorPreference
		want            ExecutorPreference
	}{
		{Default, Default, Default},
		{Default, PrefersLocal, PrefersLocal},
		{PrefersRemote, Default, PrefersRemote},
		{PrefersRemote, PrefersLocal, PrefersRemote},
		{PrefersRemote, RequiresLocal, RequiresLocal},
		{RequiresLocal, PrefersRemote, RequiresLocal},
		{PrefersLocal, RequiresRemote, RequiresRemote},
		{RequiresRemote, RequiresLocal, RequiresLocal},
	}
	for _, tc := range cases {
		got := tc.static.And(tc.request)
		if got != tc.want {
			t.Errorf("%s.And(%s) = %s, want %s", tc.static, tc.request, got, tc.want)
		}
	}
}

func TestExecutorPreference_Predicates(t *testing.T) {
	if !RequiresLocal.PrefersLocal() {
		t.Error("RequiresLocal.PrefersLocal() = false, want true")
	}
	if PrefersLocal.RequiresLocal() {
		t.Error("PrefersLocal.RequiresLocal() = true, want false")
	}
	if RequiresRemote.PrefersLocal() {
		t.Error("RequiresRemote.PrefersLocal() = true, want false")
	}
}

func TestParsePreference(t *testing.T) {
	p, err := ParsePreference(" Prefers_Local ")
	if err != nil {
		t.Fatalf("ParsePreference: %v", err)
	}
	if p != PrefersLocal {
		t.Errorf("ParsePreference = %s, want prefers_local", p)
	}
	if _, err := ParsePreference("anywhere"); err == nil {
		t.Error("expected error for unknown preference")
	}
}

func TestParseLevelKind(t *testing.T) {
	k, err := ParseLevelKind("fallback")
	if err != nil || k != LevelFallback {
		t.Errorf("ParseLevelKind(fallback) = %v, %v", k, err)
	}
	if _, err := ParseLevelKind("eager"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestReport_JSONStatus(t *testing.T) {
	r := NewReport(ExecutorLocal)
	r.Finish(TimedOut)
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"status":"timed_out"`) {
		t.Errorf("report JSON = %s, want status timed_out", data)
	}
}

func TestPreparedCommand_Validate(t *testing.T) {
	var cmd *PreparedCommand
	if err := cmd.Validate(); err == nil {
		t.Error("nil command validated")
	}
	cmd = &PreparedCommand{Request: Request{Args: []string{"true"}}}
	if err := cmd.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestCommandExecutionManager_ClaimOnce(t *testing.T) {
	claims := claim.NewMutexManager()
	m := NewCommandExecutionManager(claims, nil, nil)

	c := m.Claim(context.Background())
	if claim.Denied(c) {
		t.Fatal("first claim denied")
	}
	if again := m.Claim(context.Background()); !claim.Denied(again) {
		t.Fatal("second claim on the same manager was granted")
	}
	if err := c.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestCommandExecutionManager_Error(t *testing.T) {
	m := NewCommandExecutionManager(claim.NewMutexManager(), nil, nil)
	res := m.Error(ExecutorHybrid, errors.New("boom"))
	if res.Report.Status != Error {
		t.Errorf("Status = %s, want error", res.Report.Status)
	}
	if res.Report.Error != "boom" {
		t.Errorf("Error = %q, want boom", res.Report.Error)
	}
	if res.Claim != nil {
		t.Error("error result holds a claim")
	}
}
