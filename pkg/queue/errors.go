package queue

import "errors"

var (
	// ErrStorageNil is returned when a nil storage is provided.
	ErrStorageNil = errors.New("queue storage cannot be nil")

	// ErrPayloadNil is returned when attempting to enqueue a nil payload.
	ErrPayloadNil = errors.New("payload cannot be nil")

	// ErrNoTaskToClaim signals an empty queue; normal, not a failure.
	ErrNoTaskToClaim = errors.New("no task available to claim")

	// ErrHandlerNotFound is returned when no handler is registered for a
	// task name.
	ErrHandlerNotFound = errors.New("no handler registered for task type")

	// ErrNoHandlers is returned when a worker starts with nothing registered.
	ErrNoHandlers = errors.New("no task handlers registered")

	// ErrTaskNotFound is returned by storage for unknown task IDs.
	ErrTaskNotFound = errors.New("task not found")
)
