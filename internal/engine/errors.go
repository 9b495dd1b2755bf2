package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrDetached is returned by Save and Submit after Detach.
	ErrDetached = errors.New("engine detached")

	// ErrSaveInFlight is returned under OverlapReject while another cycle runs.
	ErrSaveInFlight = errors.New("save already in flight")

	// ErrDisabled is returned by Save and Submit on a disabled engine.
	ErrDisabled = errors.New("engine disabled")
)

// SaveError represents a save cycle that aborted because a collaborator
// failed. The snapshot captured for the cycle is kept and the form is not
// touched; nothing is retried.
type SaveError struct {
	// Code identifies the failing collaborator.
	Code SaveErrorCode

	// CycleID identifies the affected save cycle.
	CycleID string

	// Err is the collaborator's error.
	Err error
}

// SaveErrorCode categorizes save errors.
type SaveErrorCode string

const (
	// ErrCodePersistenceFailed indicates Persistence.OnSave returned an error.
	ErrCodePersistenceFailed SaveErrorCode = "PERSISTENCE_FAILED"

	// ErrCodeValidatorFailed indicates the validator itself returned an error
	// (as opposed to reporting invalid values).
	ErrCodeValidatorFailed SaveErrorCode = "VALIDATOR_FAILED"
)

// Error implements the error interface.
func (e *SaveError) Error() string {
	if e.CycleID != "" {
		return fmt.Sprintf("%s: %v (cycle=%s)", e.Code, e.Err, e.CycleID)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

// Unwrap returns the collaborator's error.
func (e *SaveError) Unwrap() error {
	return e.Err
}

// IsPersistenceError returns true if err is a persistence failure.
// Uses errors.As to handle wrapped errors.
func IsPersistenceError(err error) bool {
	var se *SaveError
	if errors.As(err, &se) {
		return se.Code == ErrCodePersistenceFailed
	}
	return false
}

// IsValidatorError returns true if err is a validator failure.
// Uses errors.As to handle wrapped errors.
func IsValidatorError(err error) bool {
	var se *SaveError
	if errors.As(err, &se) {
		return se.Code == ErrCodeValidatorFailed
	}
	return false
}
