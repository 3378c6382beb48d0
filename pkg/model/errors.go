package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNoShading reports that no terrain blocks the sky in any direction.
	// It is a result, not a failure: callers get a profile and no mask.
	ErrNoShading = errors.New("no shading from terrain")

	// ErrEmptyProfile is returned when mask synthesis is attempted without samples.
	ErrEmptyProfile = errors.New("horizon profile has no samples")

	// ErrContextTooFar is returned when a context footprint is too far from the origin
	// for reliable floating point work.
	ErrContextTooFar = errors.New("context too far from origin")
)

// ValidationError reports malformed or out-of-range input. The pipeline does not start.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
	Err    error // optional sentinel, e.g. ErrContextTooFar
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s (%v): %s: %v", e.Field, e.Value, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// DomainLimitError reports a radius exceeding the elevation source coverage.
// MaxM is the largest radius that stays inside the coverage.
type DomainLimitError struct {
	RequestedM float64
	MaxM       float64
	Suggestion string
}

func (e *DomainLimitError) Error() string {
	return fmt.Sprintf("radius %.0fm exceeds elevation coverage (max %.0fm): %s", e.RequestedM, e.MaxM, e.Suggestion)
}

// NetworkError wraps a download failure after all attempts were spent.
type NetworkError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("download %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// GeometryError reports degenerate terrain or mask geometry. It is fatal for a run.
type GeometryError struct {
	Stage string
	Err   error
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("geometry %s: %v", e.Stage, e.Err)
}

func (e *GeometryError) Unwrap() error { return e.Err }
