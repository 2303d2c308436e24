package execute

import "fmt"

// LevelKind selects how much a hybrid executor races its backends.
type LevelKind int

const (
	// LevelLimited runs only the preferred executor.
	LevelLimited LevelKind = iota
	// LevelFallback runs the preferred executor and falls back to the other
	// one on retryable outcomes.
	LevelFallback
	// LevelFull races both executors.
	LevelFull
)

func (k LevelKind) String() string {
	switch k {
	case LevelLimited:
		return "limited"
	case LevelFallback:
		return "fallback"
	case LevelFull:
		return "full"
	default:
		return fmt.Sprintf("LevelKind(%d)", int(k))
	}
}

// ParseLevelKind parses the names printed by LevelKind.String.
func ParseLevelKind(s string) (LevelKind, error) {
	switch s {
	case "limited":
		return LevelLimited, nil
	case "fallback":
		return LevelFallback, nil
	case "full", "":
		return LevelFull, nil
	default:
		return LevelLimited, fmt.Errorf("unknown hybrid level %q", s)
	}
}

// Level is the hybrid execution level. FallbackOnFailure is ignored for
// LevelLimited and LowPassFilter only applies to LevelFull.
type Level struct {
	Kind              LevelKind
	FallbackOnFailure bool
	LowPassFilter     bool
}

func Limited() Level {
	return Level{Kind: LevelLimited}
}

func Fallback(fallbackOnFailure bool) Level {
	return Level{Kind: LevelFallback, FallbackOnFailure: fallbackOnFailure}
}

func Full(fallbackOnFailure, lowPassFilter bool) Level {
	return Level{Kind: LevelFull, FallbackOnFailure: fallbackOnFailure, LowPassFilter: lowPassFilter}
}

func (l Level) String() string {
	switch l.Kind {
	case LevelFallback:
		return fmt.Sprintf("fallback(fallback_on_failure=%t)", l.FallbackOnFailure)
	case LevelFull:
		return fmt.Sprintf("full(fallback_on_failure=%t, low_pass_filter=%t)", l.FallbackOnFailure, l.LowPassFilter)
	default:
		return l.Kind.String()
	}
}
