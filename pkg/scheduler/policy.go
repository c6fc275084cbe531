package scheduler

import "fmt"

// Policy selects how the placement loop picks a target node for a task.
// Represented as a tagged variant rather than a bare string so the
// stealing loop can gate on it directly instead of comparing strings.
type Policy int

const (
	RoundRobin Policy = iota
	LeastLoaded
	WorkStealing
)

func (p Policy) String() string {
	switch p {
	case RoundRobin:
		return "round_robin"
	case LeastLoaded:
		return "least_loaded"
	case WorkStealing:
		return "work_stealing"
	default:
		return "unknown"
	}
}

// ParsePolicy parses the control-surface string form of a policy.
// Unrecognized values are rejected so the caller can ignore the command
// (§7: unknown policy values are a malformed-frame case, not fatal).
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "round_robin":
		return RoundRobin, nil
	case "least_loaded":
		return LeastLoaded, nil
	case "work_stealing":
		return WorkStealing, nil
	default:
		return 0, fmt.Errorf("unknown policy %q", s)
	}
}
