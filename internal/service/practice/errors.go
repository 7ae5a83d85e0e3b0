package practice

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Common error types for the practice service
var (
	// ErrEmptySession indicates selection produced nothing to practice.
	ErrEmptySession = errors.New("nothing to practice now")

	// ErrInvalidInput indicates a malformed configuration, mode or action.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidAction indicates an action that is not allowed in the current step.
	ErrInvalidAction = fmt.Errorf("%w: action not allowed in current step", ErrInvalidInput)

	// ErrStaleAction indicates an action issued for a cursor or step the
	// session has already moved past. Widgets complete exactly once; repeats
	// land here.
	ErrStaleAction = errors.New("action does not match the current step")

	// ErrAdvanceInFlight indicates a progress write for the current item is
	// still outstanding.
	ErrAdvanceInFlight = errors.New("a write for the current item is still in flight")

	// ErrSessionNotRunning indicates the session is not accepting actions.
	ErrSessionNotRunning = errors.New("session is not running")

	// ErrSessionNotFound indicates no session exists with the given ID.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionNotOwned indicates the session belongs to a different user.
	ErrSessionNotOwned = errors.New("unauthorized access: session not owned by user")
)

// ServiceError wraps errors from the practice service with additional context.
// Store failures reach callers only inside a ServiceError.
type ServiceError struct {
	// Operation is the operation that failed (e.g., "start_session", "overview")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewStartSessionError returns a new ServiceError for the start_session operation.
func NewStartSessionError(message string, err error) *ServiceError {
	return &ServiceError{Operation: "start_session", Message: message, Err: err}
}

// NewRestartSessionError returns a new ServiceError for the restart_session operation.
func NewRestartSessionError(message string, err error) *ServiceError {
	return &ServiceError{Operation: "restart_session", Message: message, Err: err}
}

// NewOverviewError returns a new ServiceError for the overview operation.
func NewOverviewError(message string, err error) *ServiceError {
	return &ServiceError{Operation: "overview", Message: message, Err: err}
}

// PersistenceError reports that a computed progress record could not be
// written. It is attached to the step result rather than returned, since the
// session keeps going.
type PersistenceError struct {
	UserID uuid.UUID
	ItemID uuid.UUID
	Err    error
}

// Error implements the error interface for PersistenceError.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to save progress for item %s: %v", e.ItemID, e.Err)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}
