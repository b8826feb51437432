// Package automation runs per-user discovery, matching and proposal cycles.
//
// Each user owns an independent task. A task's cycle state follows:
//
//	IDLE ──► RUNNING ──► IDLE
//	             │
//	             └──► ERROR ──► IDLE
//
// ERROR is entered on an unhandled failure and left as soon as the failure is
// recorded; other users' tasks are never affected.
package automation

import "fmt"

// CycleState is the per-user cycle state.
type CycleState string

const (
	StateIdle    CycleState = "IDLE"
	StateRunning CycleState = "RUNNING"
	StateError   CycleState = "ERROR"
)

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[CycleState][]CycleState{
	StateIdle:    {StateRunning},
	StateRunning: {StateIdle, StateError},
	StateError:   {StateIdle},
}

// ParseState converts a raw string to a CycleState.
func ParseState(s string) (CycleState, error) {
	st := CycleState(s)
	switch st {
	case StateIdle, StateRunning, StateError:
		return st, nil
	}
	return "", fmt.Errorf("unknown cycle state %q", s)
}

// IsTransitionAllowed returns true when moving from → to is permitted.
func IsTransitionAllowed(from, to CycleState) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
