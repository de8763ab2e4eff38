package inspect

import (
	"errors"
	"fmt"
)

// EmptyGeometryError indicates an operation required holes but none are
// loaded. Recoverable: the caller must load a geometry snapshot first.
type EmptyGeometryError struct{}

func NewEmptyGeometryError() *EmptyGeometryError {
	return &EmptyGeometryError{}
}

func (e *EmptyGeometryError) Error() string {
	return "geometry snapshot contains no holes"
}

// IsEmptyGeometryError checks if the error is an EmptyGeometryError.
func IsEmptyGeometryError(err error) bool {
	var e *EmptyGeometryError
	return errors.As(err, &e)
}

// AmbiguousIdentifierError indicates a hole ID could not be parsed for a
// label-based sequencing strategy. Recovered locally by falling back to the
// spatial strategy; never fatal.
type AmbiguousIdentifierError struct {
	HoleID string
}

func NewAmbiguousIdentifierError(holeID string) *AmbiguousIdentifierError {
	return &AmbiguousIdentifierError{HoleID: holeID}
}

func (e *AmbiguousIdentifierError) Error() string {
	return fmt.Sprintf("hole id %q cannot be parsed as <side><column>[-<row>]", e.HoleID)
}

// IsAmbiguousIdentifierError checks if the error is an AmbiguousIdentifierError.
func IsAmbiguousIdentifierError(err error) bool {
	var e *AmbiguousIdentifierError
	return errors.As(err, &e)
}

// InvalidConfigurationError indicates a configuration value that would make a
// run meaningless (batch size <= 0, probability table not summing to one).
// Fatal at configuration time; a run never starts with one outstanding.
type InvalidConfigurationError struct {
	Field  string
	Reason string
}

func NewInvalidConfigurationError(field, reason string) *InvalidConfigurationError {
	return &InvalidConfigurationError{Field: field, Reason: reason}
}

func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

// IsInvalidConfigurationError checks if the error is an InvalidConfigurationError.
func IsInvalidConfigurationError(err error) bool {
	var e *InvalidConfigurationError
	return errors.As(err, &e)
}

// AlreadyRunningError indicates a start was requested while a simulation is
// active. The request is rejected, not queued.
type AlreadyRunningError struct{}

func NewAlreadyRunningError() *AlreadyRunningError {
	return &AlreadyRunningError{}
}

func (e *AlreadyRunningError) Error() string {
	return "a simulation is already running"
}

// IsAlreadyRunningError checks if the error is an AlreadyRunningError.
func IsAlreadyRunningError(err error) bool {
	var e *AlreadyRunningError
	return errors.As(err, &e)
}
