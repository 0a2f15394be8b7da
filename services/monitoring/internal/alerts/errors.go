package alerts

import "errors"

var (
	// ErrNotFound is returned when no alert has the requested id.
	ErrNotFound = errors.New("alert not found")
	// ErrInvalidTransition is returned when an update moves the status backwards.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrConcurrentUpdate is returned when the stored version changed underneath the caller.
	ErrConcurrentUpdate = errors.New("alert version mismatch")
	// ErrPublishFailed accompanies a persisted alert whose AlertCreated event was not published.
	ErrPublishFailed = errors.New("alert persisted but event publish failed")
	// ErrInvalidAlert is returned for create input that fails validation.
	ErrInvalidAlert = errors.New("invalid alert")
)
