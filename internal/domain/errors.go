package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the stateless failure classes. Callers test with
// errors.Is after unwrapping.
var (
	ErrNotFound        = errors.New("record not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrPrecondition    = errors.New("precondition failed")
)

// ValidationError marks malformed input to create/update. It is surfaced to
// the caller as a form-level message, never as a crash.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// InvalidTransitionError marks a status-transition request that is not
// reachable from the current status.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

// ReconciliationError marks a partially applied finalize hand-off: the
// consultation record exists but the appointment status write kept failing.
// The call-ending action is reported as failed so the user can retry; the
// retry replays finalize idempotently.
type ReconciliationError struct {
	AppointmentID string
	Err           error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("finalize left appointment %s unreconciled: %v", e.AppointmentID, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }
