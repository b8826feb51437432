package automation

import (
	"errors"
	"fmt"
)

var (
	// ErrProfileNotFound is returned when the user has no freelancer profile.
	ErrProfileNotFound = errors.New("freelancer profile not found")
	// ErrPolicyNotFound is returned when the user has no automation policy.
	ErrPolicyNotFound = errors.New("automation policy not found")
	// ErrCycleInProgress is returned by RunManual while a cycle is running.
	ErrCycleInProgress = errors.New("a cycle is already running for this user")
	// ErrNotFound is returned for opportunities the user has not discovered.
	ErrNotFound = errors.New("opportunity not found")
)

// ValidationError wraps a user-facing validation message.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

// QuotaExceededError reports that the daily auto-proposal limit is reached.
type QuotaExceededError struct {
	UserID string
	Limit  int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("user %s reached the daily limit of %d auto proposals", e.UserID, e.Limit)
}

// handled reports whether err ends a cycle normally rather than in ERROR.
func handled(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrProfileNotFound) ||
		errors.Is(err, ErrPolicyNotFound)
}
