package issuance

import "errors"

var (
	// ErrUserNotFound is returned by a UserDirectory for unknown user IDs.
	ErrUserNotFound = errors.New("user not found")

	// ErrEnqueuerNil is returned when a Service is built without an enqueuer.
	ErrEnqueuerNil = errors.New("enqueuer cannot be nil")
)
