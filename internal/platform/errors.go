package platform

import (
	"context"
	"errors"
	"fmt"
)

// ConfigurationError marks an unsupported platform or missing credentials.
// Not retryable: the connection is deactivated and the user notified.
type ConfigurationError struct {
	Platform string
	Msg      string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("platform %s: configuration: %s", e.Platform, e.Msg)
}

// AuthError marks credentials rejected by the marketplace. Handled like
// ConfigurationError.
type AuthError struct {
	Platform string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("platform %s: credentials rejected: %v", e.Platform, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// TransientError marks a network failure or timeout. The next scheduled
// cycle retries implicitly.
type TransientError struct {
	Platform string
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("platform %s: transient: %v", e.Platform, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Kind classifies adapter failures.
type Kind int

const (
	KindNone Kind = iota
	KindTransient
	KindAuth
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindAuth:
		return "auth"
	case KindConfiguration:
		return "configuration"
	default:
		return "none"
	}
}

// Classify returns the failure kind of err. Errors that carry no adapter
// classification, including deadline expiry, are treated as transient.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	var ce *ConfigurationError
	if errors.As(err, &ce) {
		return KindConfiguration
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return KindAuth
	}
	return KindTransient
}

// DeactivatesConnection reports whether err must disable the user's
// connection to the platform.
func DeactivatesConnection(err error) bool {
	k := Classify(err)
	return k == KindAuth || k == KindConfiguration
}

// asTransient wraps unclassified errors from an adapter call.
func asTransient(platform string, err error) error {
	if err == nil {
		return nil
	}
	if Classify(err) != KindTransient {
		return err
	}
	var te *TransientError
	if errors.As(err, &te) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransientError{Platform: platform, Err: fmt.Errorf("call timed out: %w", err)}
	}
	return &TransientError{Platform: platform, Err: err}
}
