package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports that the primary geocoding provider found no match.
	ErrNotFound = errors.New("place not found")

	// ErrUnknownTask reports a task name outside the supported task kinds.
	ErrUnknownTask = errors.New("unknown task")
)

// ErrorClass tells the resolver how to react to a failed provider call.
type ErrorClass string

const (
	ClassRateLimited  ErrorClass = "rate_limited"
	ClassConnectivity ErrorClass = "connectivity"
	ClassHard         ErrorClass = "hard"
)

// Transient reports whether the class is worth retrying against the same provider.
func (c ErrorClass) Transient() bool {
	return c == ClassRateLimited || c == ClassConnectivity
}

// UpstreamError wraps a failed call to an external provider.
type UpstreamError struct {
	Provider   string
	Class      ErrorClass
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// ClassOf returns the class of an upstream failure. Errors that are not an
// *UpstreamError are treated as hard failures.
func ClassOf(err error) ErrorClass {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Class
	}
	return ClassHard
}
