package execute

import (
	"fmt"
	"strings"
)

// ExecutorPreference is a ranked hint for where a command should run.
type ExecutorPreference int

const (
	Default ExecutorPreference = iota
	PrefersLocal
	PrefersRemote
	RequiresLocal
	RequiresRemote
)

var preferenceNames = map[ExecutorPreference]string{
	Default:        "default",
	PrefersLocal:   "prefers_local",
	PrefersRemote:  "prefers_remote",
	RequiresLocal:  "requires_local",
	RequiresRemote: "requires_remote",
}

func (p ExecutorPreference) String() string {
	if s, ok := preferenceNames[p]; ok {
		return s
	}
	return fmt.Sprintf("ExecutorPreference(%d)", int(p))
}

// ParsePreference parses the names printed by String. The empty string is
// Default.
func ParsePreference(s string) (ExecutorPreference, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Default, nil
	}
	for p, name := range preferenceNames {
		if name == s {
			return p, nil
		}
	}
	return Default, fmt.Errorf("unknown executor preference %q", s)
}

// And combines a static preference with a per-request one. A requirement
// on either side dominates any preference; between two preferences the
// receiver wins.
func (p ExecutorPreference) And(other ExecutorPreference) ExecutorPreference {
	switch {
	case p == RequiresLocal || other == RequiresLocal:
		return RequiresLocal
	case p == RequiresRemote || other == RequiresRemote:
		return RequiresRemote
	case p != Default:
		return p
	default:
		return other
	}
}

func (p ExecutorPreference) RequiresLocal() bool {
	return p == RequiresLocal
}

func (p ExecutorPreference) PrefersLocal() bool {
	return p == PrefersLocal || p == RequiresLocal
}

func (p ExecutorPreference) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *ExecutorPreference) UnmarshalText(b []byte) error {
	v, err := ParsePreference(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
